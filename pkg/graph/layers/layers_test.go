package layers_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/pkg/graph/layers"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/symbol"
)

type entries = []layers.Entry[int]

func mustNew(t *testing.T, es entries, parent *layers.Layer[int]) *layers.Layer[int] {
	t.Helper()
	l, flattened := layers.New(es, parent)
	require.False(t, flattened)
	return l
}

// snapshot returns every visible key with its value.
func snapshot(l *layers.Layer[int]) map[symbol.Symbol]int {
	out := map[symbol.Symbol]int{}
	l.Each(func(k symbol.Symbol, v int) { out[k] = v })
	return out
}

func TestEmptyChain(t *testing.T) {
	var l *layers.Layer[int]
	assert.Equal(t, 0, l.Depth())
	assert.Equal(t, 0, l.Len())
	_, ok := l.Lookup(1)
	assert.False(t, ok)
	assert.Nil(t, layers.Flatten(l))
}

func TestLookupMostRecentWins(t *testing.T) {
	base := mustNew(t, entries{{Key: 1, Value: 10}, {Key: 2, Value: 20}}, nil)
	top := mustNew(t, entries{{Key: 2, Value: 200}, {Key: 3, Value: 300}}, base)

	assert.Equal(t, 2, top.Depth())
	assert.Same(t, base, top.Parent())
	assert.Equal(t, 3, top.Len())

	v, ok := top.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, 200, v)
	v, _ = top.Lookup(1)
	assert.Equal(t, 10, v)
	assert.Equal(t, []symbol.Symbol{2, 3, 1}, top.Keys())
}

func TestDuplicateKeysInOneLayer(t *testing.T) {
	l := mustNew(t, entries{{Key: 1, Value: 1}, {Key: 1, Value: 2}}, nil)
	assert.Equal(t, 1, l.Len())
	v, _ := l.Lookup(1)
	assert.Equal(t, 2, v)
	assert.Len(t, l.Own(), 1)
}

func TestUpdateStacksRightOnLeft(t *testing.T) {
	left := mustNew(t, entries{{Key: 1, Value: 1}}, nil)
	r1 := mustNew(t, entries{{Key: 1, Value: 2}}, nil)
	right := mustNew(t, entries{{Key: 2, Value: 3}}, r1)

	got, flattened := layers.Update(left, right)
	assert.False(t, flattened)
	assert.Equal(t, 3, got.Depth())
	assert.Equal(t, map[symbol.Symbol]int{1: 2, 2: 3}, snapshot(got))

	// operands are left untouched
	assert.Equal(t, 2, right.Depth())
	assert.Equal(t, map[symbol.Symbol]int{1: 1}, snapshot(left))

	same, _ := layers.Update(left, nil)
	assert.Same(t, left, same)
	same, _ = layers.Update(nil, right)
	assert.Same(t, right, same)
}

// Rightmost wins across a chain of n single-layer updates, for n crossing
// the flattening bound.
func TestUpdateChainRightmostWins(t *testing.T) {
	for n := 1; n <= 2*layers.MaxChain+1; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var chain *layers.Layer[int]
			flattenings := 0
			for i := 0; i < n; i++ {
				// every layer sets key 0 and its own key i+1
				l := mustNew(t, entries{{Key: 0, Value: i}, {Key: symbol.Symbol(i + 1), Value: i}}, nil)
				var flat bool
				chain, flat = layers.Update(chain, l)
				if flat {
					flattenings++
				}
				assert.LessOrEqual(t, chain.Depth(), layers.MaxChain)
			}
			v, ok := chain.Lookup(0)
			require.True(t, ok)
			assert.Equal(t, n-1, v)
			assert.Equal(t, n+1, chain.Len())
			if n > layers.MaxChain {
				assert.Positive(t, flattenings)
			} else {
				assert.Zero(t, flattenings)
			}
		})
	}
}

func TestNewFlattensPastBound(t *testing.T) {
	var chain *layers.Layer[int]
	for i := 0; i < layers.MaxChain; i++ {
		chain = mustNew(t, entries{{Key: symbol.Symbol(i), Value: i}, {Key: 100, Value: i}}, chain)
	}
	before := snapshot(chain)

	next, flattened := layers.New(entries{{Key: 100, Value: 99}}, chain)
	require.True(t, flattened)
	assert.Equal(t, 1, next.Depth())

	want := before
	want[100] = 99
	if diff := cmp.Diff(want, snapshot(next)); diff != "" {
		t.Errorf("flattened chain mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenPreservesLookups(t *testing.T) {
	a := mustNew(t, entries{{Key: 1, Value: 1}, {Key: 2, Value: 2}}, nil)
	b := mustNew(t, entries{{Key: 2, Value: 20}, {Key: 3, Value: 30}}, a)
	c := mustNew(t, entries{{Key: 3, Value: 300}}, b)

	flat := layers.Flatten(c)
	assert.Equal(t, 1, flat.Depth())
	assert.Equal(t, c.Keys(), flat.Keys())
	if diff := cmp.Diff(snapshot(c), snapshot(flat)); diff != "" {
		t.Errorf("flatten changed lookups (-chain +flat):\n%s", diff)
	}
}
