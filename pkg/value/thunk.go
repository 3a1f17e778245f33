package value

import "github.com/ConnorBaker/nix-sub005/pkg/diagnostics"

type thunkState uint8

const (
	pending thunkState = iota
	forcing
	forced
)

// Thunk is a suspended computation evaluated at most once. A thunk that
// demands its own value while being forced fails with infinite recursion.
// A failed computation leaves the thunk pending, so forcing it again
// repeats the computation and its error.
type Thunk struct {
	state   thunkState
	val     Value
	compute func() (Value, error)
}

// NewThunk suspends fn.
func NewThunk(fn func() (Value, error)) *Thunk {
	return &Thunk{compute: fn}
}

// Forced wraps an already computed value.
func Forced(v Value) *Thunk {
	return &Thunk{state: forced, val: v}
}

// Force evaluates the thunk if needed and returns its value.
func (t *Thunk) Force() (Value, error) {
	switch t.state {
	case forced:
		return t.val, nil
	case forcing:
		return nil, diagnostics.InfiniteRecursion()
	}
	t.state = forcing
	v, err := t.compute()
	if err != nil {
		t.state = pending
		return nil, err
	}
	t.val, t.state, t.compute = v, forced, nil
	return v, nil
}

// IsForced reports whether the thunk already holds a value.
func (t *Thunk) IsForced() bool {
	return t.state == forced
}
