package graph

import (
	"fmt"

	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/safety"
	"github.com/vk/tickflow/internal/topologystore"
)

// Value is a graph value: an external observer of one node output. While a
// value exists the output is observed, so culling keeps its producer and
// every ancestor of it running.
type Value struct {
	h nodeid.Handle
}

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool {
	return v.h.IsZero()
}

func (v Value) String() string {
	return "value " + v.h.String()
}

// CreateValue attaches a graph value to an output port.
func (m *Manager) CreateValue(src topologystore.Endpoint) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("CreateValue"); err != nil {
		return Value{}, err
	}
	if _, err := m.outputPort("CreateValue", src); err != nil {
		return Value{}, err
	}
	v := Value{h: m.values.Allocate(src)}
	m.observers[src]++
	m.diff.RecordObserverChanged(src, true)
	return v, nil
}

// ReleaseValue detaches a graph value. Views resolved from it stay readable
// until the next tick.
func (m *Manager) ReleaseValue(v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("ReleaseValue"); err != nil {
		return err
	}
	ep, err := m.values.Get(v.h)
	if err != nil {
		return editError("ReleaseValue", nodeid.Handle{}, err)
	}
	src := *ep
	if err := m.values.Release(v.h); err != nil {
		return editError("ReleaseValue", nodeid.Handle{}, err)
	}
	// Destroying the node already detached it.
	if n, ok := m.observers[src]; ok {
		if n <= 1 {
			delete(m.observers, src)
		} else {
			m.observers[src] = n - 1
		}
		m.diff.RecordObserverChanged(src, false)
	}
	return nil
}

// View is a read of a graph value, valid until the next tick starts.
type View struct {
	safety  *safety.Manager
	token   *safety.Token
	value   any
	written bool
	tick    uint64
}

// Value returns the observed output. Once the next tick started it fails
// with safety.ErrSuperseded, and with safety.ErrDisposed if the node was
// destroyed and its storage freed.
func (v *View) Value() (any, error) {
	if err := v.safety.Check(v.token); err != nil {
		return nil, err
	}
	return v.value, nil
}

// Valid reports whether Value would succeed.
func (v *View) Valid() bool {
	return v.safety.Check(v.token) == nil
}

// Written reports whether the node ever wrote the output. Unwritten views
// carry the port default.
func (v *View) Written() bool {
	return v.written
}

// Tick returns the tick the view was resolved after.
func (v *View) Tick() uint64 {
	return v.tick
}

// Release gives the view's read token back before the next tick retires it.
func (v *View) Release() error {
	return v.safety.Release(v.token)
}

// Resolve reads a graph value. It must be called between ticks. Before the
// producing node first wrote the output, the view holds the port default.
func (m *Manager) Resolve(v Value) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("Resolve"); err != nil {
		return nil, err
	}
	ep, err := m.values.Get(v.h)
	if err != nil {
		return nil, editError("Resolve", nodeid.Handle{}, err)
	}
	src := *ep
	e, err := m.entry("Resolve", src.Node)
	if err != nil {
		return nil, err
	}

	tok, err := m.safety.Acquire(e.current, safety.ModeRead)
	if err != nil {
		return nil, err
	}
	val, written, err := m.state.Output(m.base, src.Node, src.Port)
	if err != nil {
		_ = m.safety.Release(tok)
		return nil, err
	}
	if !written {
		p, _ := e.desc.Output(src.Port)
		val = p.Default
	}
	return &View{safety: m.safety, token: tok, value: val, written: written, tick: m.tick}, nil
}

// ResolveAs reads a graph value as T. An unwritten output without a default
// yields the zero T.
func ResolveAs[T any](m *Manager, v Value) (T, error) {
	var zero T
	view, err := m.Resolve(v)
	if err != nil {
		return zero, err
	}
	defer func() { _ = view.Release() }()

	raw, err := view.Value()
	if err != nil || raw == nil {
		return zero, err
	}
	t, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrTypeMismatch, v, raw, zero)
	}
	return t, nil
}
