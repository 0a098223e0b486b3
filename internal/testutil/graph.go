package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/registry"
)

// NewGraph returns a graph over the node types of modules. The graph is
// closed when the test ends.
func NewGraph(t *testing.T, modules []registry.Module, opts ...graph.Option) *graph.Manager {
	t.Helper()
	reg := registry.New()
	reg.RegisterModules(context.Background(), modules...)
	m := graph.New(reg, opts...)
	t.Cleanup(func() { _, _ = m.Close() })
	return m
}

// Node creates a node and fails the test on error.
func Node(t *testing.T, m *graph.Manager, typ string, args node.Args) nodeid.Handle {
	t.Helper()
	h, err := m.CreateNode(typ, args)
	require.NoError(t, err)
	return h
}

// Connect links src.out to dst.in[index].
func Connect(t *testing.T, m *graph.Manager, src nodeid.Handle, out string, dst nodeid.Handle, in string, index int) {
	t.Helper()
	from, err := m.Output(src, out)
	require.NoError(t, err)
	to, err := m.Input(dst, in, index)
	require.NoError(t, err)
	_, err = m.Connect(from, to)
	require.NoError(t, err)
}

// ConnectFeedback links src.out to dst.in[index] across the tick boundary.
func ConnectFeedback(t *testing.T, m *graph.Manager, src nodeid.Handle, out string, dst nodeid.Handle, in string, index int) {
	t.Helper()
	from, err := m.Output(src, out)
	require.NoError(t, err)
	to, err := m.Input(dst, in, index)
	require.NoError(t, err)
	_, err = m.ConnectFeedback(from, to)
	require.NoError(t, err)
}

// Observe attaches a graph value to h.out.
func Observe(t *testing.T, m *graph.Manager, h nodeid.Handle, out string) graph.Value {
	t.Helper()
	src, err := m.Output(h, out)
	require.NoError(t, err)
	v, err := m.CreateValue(src)
	require.NoError(t, err)
	return v
}

// Run evaluates the graph ticks times.
func Run(t *testing.T, m *graph.Manager, ticks int) {
	t.Helper()
	for range ticks {
		require.NoError(t, m.Update(context.Background()))
	}
}

// Resolve returns the current value of v.
func Resolve(t *testing.T, m *graph.Manager, v graph.Value) any {
	t.Helper()
	view, err := m.Resolve(v)
	require.NoError(t, err)
	defer func() { _ = view.Release() }()
	val, err := view.Value()
	require.NoError(t, err)
	return val
}

// Float returns the current value of v as a float64.
func Float(t *testing.T, m *graph.Manager, v graph.Value) float64 {
	t.Helper()
	f, err := graph.ResolveAs[float64](m, v)
	require.NoError(t, err)
	return f
}

// Input returns the id of h's input port name.
func Input(t *testing.T, m *graph.Manager, h nodeid.Handle, name string) node.PortID {
	t.Helper()
	ep, err := m.Input(h, name, 0)
	require.NoError(t, err)
	return ep.Port
}
