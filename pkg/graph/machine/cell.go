package machine

import (
	"errors"

	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

type cellState uint8

const (
	unforced cellState = iota
	forcing
	forced
)

// Cell is a suspended node in its frame, evaluated at most once. Forcing a
// cell that is already being forced fails with infinite recursion; a failed
// computation leaves the cell unforced.
type Cell struct {
	m     *Machine
	state cellState
	head  Head

	node term.Ref
	env  *Env

	// host is set for cells that wrap a host thunk.
	host *value.Thunk
	// thunk is the host view of the cell, built on first request.
	thunk *value.Thunk
}

func (m *Machine) forcedCell(h Head) *Cell {
	return &Cell{m: m, state: forced, head: h}
}

func (m *Machine) lazyCell(ref term.Ref, env *Env) *Cell {
	return &Cell{m: m, node: ref, env: env}
}

// hostCell wraps t. Repeated requests for one thunk share a cell.
func (m *Machine) hostCell(t *value.Thunk) *Cell {
	if c, ok := m.hostCells[t]; ok {
		return c
	}
	c := &Cell{m: m, host: t}
	m.hostCells[t] = c
	return c
}

// Force reduces the cell to weak head normal form.
func (c *Cell) Force() (Head, error) {
	switch c.state {
	case forced:
		return c.head, nil
	case forcing:
		return nil, diagnostics.InfiniteRecursion()
	}
	c.state = forcing
	h, err := c.compute()
	if err != nil {
		c.state = unforced
		return nil, err
	}
	c.head, c.state = h, forced
	c.env = nil
	return h, nil
}

func (c *Cell) compute() (Head, error) {
	if c.host != nil {
		v, err := c.host.Force()
		if err != nil {
			return nil, err
		}
		return c.m.fromHost(v)
	}
	// The host may already have computed the cell through its thunk.
	if c.thunk != nil && c.thunk.IsForced() {
		v, err := c.thunk.Force()
		if err != nil {
			return nil, err
		}
		return c.m.fromHost(v)
	}
	return c.m.WHNF(c.node, c.env)
}

// Thunk returns the cell as a host thunk. The same thunk is returned every
// time, so host-side identity checks see one value per cell.
func (c *Cell) Thunk() *value.Thunk {
	if c.host != nil {
		return c.host
	}
	if c.thunk == nil {
		node, env := c.node, c.env
		c.thunk = value.NewThunk(func() (value.Value, error) {
			h, err := c.Force()
			if err == nil {
				return c.m.toHost(h)
			}
			if errors.Is(err, ErrUnsupported) && c.m.detached {
				return c.m.fallbackNode(node, env)
			}
			return nil, err
		})
	}
	return c.thunk
}
