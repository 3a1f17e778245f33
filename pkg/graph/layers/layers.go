// Package layers implements attribute sets as chains of immutable layers.
//
// A set is a chain of layers, most recent first. Lookup returns the entry
// from the first layer that has the key, so an update `a // b` is b's
// layers stacked on top of a's without copying any entries. Chains never
// grow past MaxChain: a construction that would exceed it is collapsed
// into a single layer with the same lookup results.
package layers

import "github.com/ConnorBaker/nix-sub005/pkg/graph/symbol"

// MaxChain bounds the number of layers in a chain.
const MaxChain = 8

// Entry is one key of a layer.
type Entry[V any] struct {
	Key   symbol.Symbol
	Value V
}

// Layer is one generation of an attribute set. A nil *Layer is the empty
// chain.
type Layer[V any] struct {
	keys   []symbol.Symbol
	vals   map[symbol.Symbol]V
	parent *Layer[V]
	depth  int
}

// New stacks a layer holding entries on top of parent. When a key occurs
// twice in entries the later one wins. The second result reports whether
// the chain had to be flattened to respect MaxChain.
func New[V any](entries []Entry[V], parent *Layer[V]) (*Layer[V], bool) {
	l := &Layer[V]{
		vals:   make(map[symbol.Symbol]V, len(entries)),
		parent: parent,
		depth:  parent.Depth() + 1,
	}
	for _, e := range entries {
		if _, dup := l.vals[e.Key]; !dup {
			l.keys = append(l.keys, e.Key)
		}
		l.vals[e.Key] = e.Value
	}
	if l.depth > MaxChain {
		return Flatten(l), true
	}
	return l, false
}

// Depth returns the number of layers in the chain.
func (l *Layer[V]) Depth() int {
	if l == nil {
		return 0
	}
	return l.depth
}

// Parent returns the next older layer.
func (l *Layer[V]) Parent() *Layer[V] {
	if l == nil {
		return nil
	}
	return l.parent
}

// Own returns the entries of this layer alone, in insertion order.
func (l *Layer[V]) Own() []Entry[V] {
	if l == nil {
		return nil
	}
	out := make([]Entry[V], len(l.keys))
	for i, k := range l.keys {
		out[i] = Entry[V]{Key: k, Value: l.vals[k]}
	}
	return out
}

// Lookup finds key in the most recent layer that has it.
func (l *Layer[V]) Lookup(key symbol.Symbol) (V, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if v, ok := cur.vals[key]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Each calls fn once per visible key, most recent layer first. Keys
// shadowed by a more recent layer are skipped.
func (l *Layer[V]) Each(fn func(key symbol.Symbol, v V)) {
	seen := make(map[symbol.Symbol]bool)
	for cur := l; cur != nil; cur = cur.parent {
		for _, k := range cur.keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			fn(k, cur.vals[k])
		}
	}
}

// Keys returns the visible keys in the order Each visits them.
func (l *Layer[V]) Keys() []symbol.Symbol {
	var keys []symbol.Symbol
	l.Each(func(k symbol.Symbol, _ V) { keys = append(keys, k) })
	return keys
}

// Len returns the number of visible keys.
func (l *Layer[V]) Len() int {
	if l != nil && l.parent == nil {
		return len(l.keys)
	}
	n := 0
	l.Each(func(symbol.Symbol, V) { n++ })
	return n
}

// Flatten collapses the chain into one layer with identical lookups.
func Flatten[V any](l *Layer[V]) *Layer[V] {
	if l == nil {
		return nil
	}
	out := &Layer[V]{vals: make(map[symbol.Symbol]V), depth: 1}
	l.Each(func(k symbol.Symbol, v V) {
		out.keys = append(out.keys, k)
		out.vals[k] = v
	})
	return out
}

// Update implements `left // right`: right's layers stacked on left. The
// second result reports whether the chain had to be flattened.
func Update[V any](left, right *Layer[V]) (*Layer[V], bool) {
	switch {
	case right == nil:
		return left, false
	case left == nil:
		return right, false
	}
	var stack []*Layer[V]
	for cur := right; cur != nil; cur = cur.parent {
		stack = append(stack, cur)
	}
	top := left
	for i := len(stack) - 1; i >= 0; i-- {
		src := stack[i]
		top = &Layer[V]{keys: src.keys, vals: src.vals, parent: top, depth: top.Depth() + 1}
	}
	if top.depth > MaxChain {
		return Flatten(top), true
	}
	return top, false
}
