package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/registry"
	"github.com/vk/tickflow/internal/topologystore"
	"github.com/zclconf/go-cty/cty"
)

var (
	errBoom    = errors.New("boom")
	errInit    = errors.New("init refused")
	errDestroy = errors.New("destroy refused")
)

func dataIn(name string) node.Port {
	return node.Port{Name: name, Category: node.Data, Default: 0.0}
}

func dataOut(name string) node.Port {
	return node.Port{Name: name, Category: node.Data}
}

func kernel(fn func(ec *node.ExecContext) error) func(node.Args) (node.Kernel, error) {
	return func(node.Args) (node.Kernel, error) {
		return node.KernelFunc(fn), nil
	}
}

type faultyKernel struct{}

func (faultyKernel) Execute(*node.ExecContext) error { return nil }
func (faultyKernel) Init(*node.InitContext) error    { return errInit }

type fragileKernel struct{}

func (fragileKernel) Execute(*node.ExecContext) error { return nil }
func (fragileKernel) Destroy() error                  { return errDestroy }

func testDescriptors() []*node.Descriptor {
	return []*node.Descriptor{
		{
			Type:    "tick",
			Outputs: []node.Port{dataOut("out")},
			New: kernel(func(ec *node.ExecContext) error {
				ec.SetOutput(0, float64(ec.Tick()))
				return nil
			}),
		},
		{
			Type:    "const",
			Outputs: []node.Port{{Name: "out", Category: node.Data, Default: -1.0}},
			New: func(args node.Args) (node.Kernel, error) {
				v, err := args.Float("value", 0)
				if err != nil {
					return nil, err
				}
				return node.KernelFunc(func(ec *node.ExecContext) error {
					ec.SetOutput(0, v)
					return nil
				}), nil
			},
		},
		{
			Type:    "inc",
			Inputs:  []node.Port{dataIn("in")},
			Outputs: []node.Port{dataOut("out")},
			New: kernel(func(ec *node.ExecContext) error {
				ec.SetOutput(0, ec.Float(0)+1)
				return nil
			}),
		},
		{
			Type:    "add",
			Inputs:  []node.Port{{Name: "terms", Category: node.Data, Array: true, Default: 0.0}},
			Outputs: []node.Port{dataOut("out")},
			New: kernel(func(ec *node.ExecContext) error {
				sum := 0.0
				for i := range ec.Width(0) {
					sum += ec.FloatAt(0, i)
				}
				ec.SetOutput(0, sum)
				return nil
			}),
		},
		{
			Type:    "vec",
			Outputs: []node.Port{dataOut("out")},
			New: kernel(func(ec *node.ExecContext) error {
				t := float64(ec.Tick())
				ec.SetOutput(0, []float64{t, 2 * t})
				return nil
			}),
		},
		{
			Type:    "fail",
			Inputs:  []node.Port{dataIn("in")},
			Outputs: []node.Port{dataOut("out")},
			New: func(args node.Args) (node.Kernel, error) {
				mode, err := args.String("mode", "error")
				if err != nil {
					return nil, err
				}
				return node.KernelFunc(func(*node.ExecContext) error {
					if mode == "panic" {
						panic("kernel exploded")
					}
					return errBoom
				}), nil
			},
		},
		{
			Type:    "faulty",
			Outputs: []node.Port{dataOut("out")},
			New:     func(node.Args) (node.Kernel, error) { return faultyKernel{}, nil },
		},
		{
			Type:    "fragile",
			Outputs: []node.Port{dataOut("out")},
			New:     func(node.Args) (node.Kernel, error) { return fragileKernel{}, nil },
		},
		{
			Type:        "sink",
			Inputs:      []node.Port{dataIn("in")},
			SideEffects: true,
			New:         kernel(func(*node.ExecContext) error { return nil }),
		},
		{
			Type:    "emitter",
			Outputs: []node.Port{{Name: "msgs", Category: node.Message}},
			New: func(args node.Args) (node.Kernel, error) {
				offset, err := args.Float("offset", 0)
				if err != nil {
					return nil, err
				}
				return node.KernelFunc(func(ec *node.ExecContext) error {
					t := float64(ec.Tick())
					ec.Emit(0, offset+t)
					ec.Emit(0, offset+10*t)
					return nil
				}), nil
			},
		},
		{
			Type:    "gather",
			Inputs:  []node.Port{{Name: "in", Category: node.Message}},
			Outputs: []node.Port{dataOut("out")},
			New: kernel(func(ec *node.ExecContext) error {
				ec.SetOutput(0, ec.Messages(0))
				return nil
			}),
		},
		{
			Type:    "domain",
			Inputs:  []node.Port{{Name: "x", Category: node.DomainSpecific}},
			Outputs: []node.Port{{Name: "y", Category: node.DomainSpecific}},
			New:     kernel(func(*node.ExecContext) error { return nil }),
		},
	}
}

func testRegistry(extra ...*node.Descriptor) *registry.Registry {
	reg := registry.New()
	for _, d := range testDescriptors() {
		reg.Register(d)
	}
	for _, d := range extra {
		reg.Register(d)
	}
	return reg
}

// newTestGraph creates a graph over the test node types, closed at cleanup.
func newTestGraph(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := New(testRegistry(), opts...)
	t.Cleanup(func() { _, _ = m.Close() })
	return m
}

func mustNode(t *testing.T, m *Manager, typ string, args ...node.Args) nodeid.Handle {
	t.Helper()
	var a node.Args
	if len(args) > 0 {
		a = args[0]
	}
	h, err := m.CreateNode(typ, a)
	require.NoError(t, err)
	return h
}

func num(name string, v float64) node.Args {
	return node.Args{name: cty.NumberFloatVal(v)}
}

func out(t *testing.T, m *Manager, h nodeid.Handle) topologystore.Endpoint {
	t.Helper()
	ep, err := m.Output(h, "out")
	require.NoError(t, err)
	return ep
}

func in(t *testing.T, m *Manager, h nodeid.Handle, name string, index int) topologystore.Endpoint {
	t.Helper()
	ep, err := m.Input(h, name, index)
	require.NoError(t, err)
	return ep
}

// link connects src.out to dst.in.
func link(t *testing.T, m *Manager, src, dst nodeid.Handle) {
	t.Helper()
	_, err := m.Connect(out(t, m, src), in(t, m, dst, "in", 0))
	require.NoError(t, err)
}

func observe(t *testing.T, m *Manager, h nodeid.Handle) Value {
	t.Helper()
	v, err := m.CreateValue(out(t, m, h))
	require.NoError(t, err)
	return v
}

func update(t *testing.T, m *Manager, times int) {
	t.Helper()
	for range times {
		require.NoError(t, m.Update(context.Background()))
	}
}

func resolveFloat(t *testing.T, m *Manager, v Value) float64 {
	t.Helper()
	f, err := ResolveAs[float64](m, v)
	require.NoError(t, err)
	return f
}

func runs(t *testing.T, m *Manager, h nodeid.Handle) uint64 {
	t.Helper()
	n, err := m.ExecutionCount(h)
	require.NoError(t, err)
	return n
}
