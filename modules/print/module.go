// Package print provides a sink node writing its input to an output stream
// once per tick.
package print

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines; os.Stdout when nil.
	Out io.Writer

	mu sync.Mutex
}

// Register registers the "print" node type.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Descriptor{
		Type:        "print",
		Inputs:      []node.Port{{Name: "input", Category: node.Data}},
		SideEffects: true,
		New: func(args node.Args) (node.Kernel, error) {
			label, err := args.String("label", "")
			if err != nil {
				return nil, err
			}
			return node.KernelFunc(func(ec *node.ExecContext) error {
				return m.print(ec, label)
			}), nil
		},
	})
}

func (m *Module) print(ec *node.ExecContext, label string) error {
	if label == "" {
		label = ec.Node().String()
	}
	v := ec.Input(0)
	ec.Logger().Debug("Printing input.", "label", label)

	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.Out
	if w == nil {
		w = os.Stdout
	}

	if v == nil {
		_, err := fmt.Fprintf(w, "[%d] %s = (null)\n", ec.Tick(), label)
		return err
	}
	if mv, ok := v.(map[string]any); ok {
		// Sort keys for consistent output
		for _, k := range slices.Sorted(maps.Keys(mv)) {
			if _, err := fmt.Fprintf(w, "[%d] %s.%s = %v\n", ec.Tick(), label, k, mv[k]); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintf(w, "[%d] %s = %v\n", ec.Tick(), label, v)
	return err
}
