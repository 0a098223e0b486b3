// Package socketio provides a sink node emitting its input to a socket.io
// server on every tick.
package socketio

import (
	"errors"
	"fmt"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/publish"
	"github.com/vk/tickflow/internal/registry"
)

// ErrNoPublisher is returned when a socketio node is created without a
// configured connection.
var ErrNoPublisher = errors.New("no socket.io publisher configured")

// Module implements the registry.Module interface for this package.
type Module struct {
	// Publisher returns the shared connection, or nil when none is
	// configured. It is called once per created node.
	Publisher func() *publish.Publisher
	// RunID, when set, is stamped into every payload.
	RunID func() string
}

// Register registers the "socketio" node type.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Descriptor{
		Type:        "socketio",
		Inputs:      []node.Port{{Name: "value", Category: node.Data}},
		SideEffects: true,
		New:         m.newEmitter,
	})
}

func (m *Module) newEmitter(args node.Args) (node.Kernel, error) {
	key, err := args.String("key", "value")
	if err != nil {
		return nil, err
	}
	every, err := args.Int("every", 1)
	if err != nil {
		return nil, err
	}
	if every < 1 {
		return nil, fmt.Errorf("argument \"every\" must be positive, got %d", every)
	}
	var p *publish.Publisher
	if m.Publisher != nil {
		p = m.Publisher()
	}
	if p == nil {
		return nil, ErrNoPublisher
	}
	var runID string
	if m.RunID != nil {
		runID = m.RunID()
	}
	return node.KernelFunc(func(ec *node.ExecContext) error {
		if ec.Tick()%uint64(every) != 0 {
			return nil
		}
		return p.Publish(ec.Context(), publish.Payload{
			RunID:  runID,
			Tick:   ec.Tick(),
			Values: map[string]any{key: ec.Input(0)},
		})
	}), nil
}
