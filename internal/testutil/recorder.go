package testutil

import (
	"slices"
	"sync"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
)

// Recorder is a module registering the "record" sink. Every executing record
// node appends its input to the recorder, keyed by its "id" argument.
type Recorder struct {
	mu   sync.Mutex
	seen map[string][]any
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{seen: make(map[string][]any)}
}

// Register implements the registry.Module interface.
func (r *Recorder) Register(reg *registry.Registry) {
	reg.Register(&node.Descriptor{
		Type:        "record",
		Inputs:      []node.Port{{Name: "in", Category: node.Data}},
		SideEffects: true,
		New: func(args node.Args) (node.Kernel, error) {
			id, err := args.String("id", "default")
			if err != nil {
				return nil, err
			}
			return node.KernelFunc(func(ec *node.ExecContext) error {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.seen[id] = append(r.seen[id], ec.Input(0))
				return nil
			}), nil
		},
	})
}

// Values returns what the record node id saw, one entry per tick it ran.
func (r *Recorder) Values(id string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.seen[id])
}
