// Package arith provides numeric node types.
package arith

import (
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func dataIn(name string) node.Port {
	return node.Port{Name: name, Category: node.Data, Default: 0.0}
}

func dataOut(name string) node.Port {
	return node.Port{Name: name, Category: node.Data}
}

// Register registers the arithmetic node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Descriptor{
		Type:    "clock",
		Outputs: []node.Port{dataOut("out")},
		New:     newClock,
	})
	r.Register(&node.Descriptor{
		Type:    "constant",
		Outputs: []node.Port{dataOut("out")},
		New:     newConstant,
	})
	r.Register(&node.Descriptor{
		Type:    "add",
		Inputs:  []node.Port{{Name: "terms", Category: node.Data, Array: true, Default: 0.0}},
		Outputs: []node.Port{dataOut("out")},
		New: func(node.Args) (node.Kernel, error) {
			return node.KernelFunc(add), nil
		},
	})
	r.Register(&node.Descriptor{
		Type:    "scale",
		Inputs:  []node.Port{dataIn("in")},
		Outputs: []node.Port{dataOut("out")},
		New:     newScale,
	})
	r.Register(&node.Descriptor{
		Type:    "accumulate",
		Inputs:  []node.Port{dataIn("in")},
		Outputs: []node.Port{dataOut("out")},
		New:     newAccumulator,
	})
	r.Register(&node.Descriptor{
		Type:    "passthrough",
		Inputs:  []node.Port{{Name: "in", Category: node.Data}},
		Outputs: []node.Port{dataOut("out")},
		New: func(node.Args) (node.Kernel, error) {
			return node.KernelFunc(passthrough), nil
		},
	})
}
