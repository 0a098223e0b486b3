// Package message provides node types producing and consuming per-tick
// message streams.
package message

import (
	"fmt"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the "ticker" and "collect" node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Descriptor{
		Type:    "ticker",
		Outputs: []node.Port{{Name: "events", Category: node.Message}},
		New:     newTicker,
	})
	r.Register(&node.Descriptor{
		Type:   "collect",
		Inputs: []node.Port{{Name: "events", Category: node.Message}},
		Outputs: []node.Port{
			{Name: "count", Category: node.Data, Default: 0.0},
			{Name: "total", Category: node.Data, Default: 0.0},
			{Name: "last", Category: node.Data},
		},
		New: func(node.Args) (node.Kernel, error) { return &collector{}, nil },
	})
}

// newTicker emits burst messages every period ticks. Each message carries
// the tick number.
func newTicker(args node.Args) (node.Kernel, error) {
	period, err := args.Int("every", 1)
	if err != nil {
		return nil, err
	}
	burst, err := args.Int("burst", 1)
	if err != nil {
		return nil, err
	}
	if period < 1 {
		return nil, fmt.Errorf("argument \"every\" must be positive, got %d", period)
	}
	return node.KernelFunc(func(ec *node.ExecContext) error {
		if ec.Tick()%uint64(period) != 0 {
			return nil
		}
		for range burst {
			ec.Emit(0, float64(ec.Tick()))
		}
		return nil
	}), nil
}

type collector struct {
	total int
}

// Execute implements node.Kernel.
func (c *collector) Execute(ec *node.ExecContext) error {
	msgs := ec.Messages(0)
	c.total += len(msgs)
	ec.SetOutput(0, float64(len(msgs)))
	ec.SetOutput(1, float64(c.total))
	if len(msgs) > 0 {
		ec.SetOutput(2, msgs[len(msgs)-1])
	}
	return nil
}
