package node

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/nodeid"
)

// Inputs resolves a node's input ports for the current tick.
type Inputs interface {
	// Value returns the value at port[index] and whether anything supplied it.
	Value(port PortID, index int) (any, bool)
	// Width returns the number of elements of an array port (1 otherwise).
	Width(port PortID) int
	// Messages returns every message delivered to a message port this tick,
	// in connection order.
	Messages(port PortID) []any
}

// Outputs receives a node's writes for the current tick. A value must not be
// mutated after Set: graph-value views and downstream readers share it.
type Outputs interface {
	Set(port PortID, v any)
	Emit(port PortID, msg any)
}

// ExecContext is handed to Kernel.Execute. A kernel writes its own outputs
// through it without taking an access token: the node is the single writer of
// its output storage for the duration of its task.
type ExecContext struct {
	ctx  context.Context
	node nodeid.Handle
	tick uint64
	desc *Descriptor
	in   Inputs
	out  Outputs
}

// NewExecContext binds the per-tick input and output views of a node.
func NewExecContext(ctx context.Context, h nodeid.Handle, tick uint64, desc *Descriptor, in Inputs, out Outputs) *ExecContext {
	return &ExecContext{ctx: ctx, node: h, tick: tick, desc: desc, in: in, out: out}
}

// Context returns the tick context.
func (c *ExecContext) Context() context.Context { return c.ctx }

// Node returns the handle of the executing node.
func (c *ExecContext) Node() nodeid.Handle { return c.node }

// Tick returns the number of the tick being evaluated, starting at 1.
func (c *ExecContext) Tick() uint64 { return c.tick }

// Logger returns the logger carried by the tick context.
func (c *ExecContext) Logger() *slog.Logger {
	return ctxlog.FromContext(c.ctx).With("nodeID", c.node.String(), "type", c.desc.Type)
}

// Input returns the value of a scalar input port, or the port default.
func (c *ExecContext) Input(port PortID) any {
	return c.InputAt(port, 0)
}

// InputAt returns element index of an input port, or the port default.
func (c *ExecContext) InputAt(port PortID, index int) any {
	if v, ok := c.in.Value(port, index); ok {
		return v
	}
	if p, ok := c.desc.Input(port); ok {
		return p.Default
	}
	return nil
}

// Width returns the element count of an input port.
func (c *ExecContext) Width(port PortID) int {
	return c.in.Width(port)
}

// Float returns a scalar input converted to float64.
func (c *ExecContext) Float(port PortID) float64 {
	return AsFloat(c.Input(port))
}

// FloatAt returns an array input element converted to float64.
func (c *ExecContext) FloatAt(port PortID, index int) float64 {
	return AsFloat(c.InputAt(port, index))
}

// Messages returns the messages delivered to a message input this tick.
func (c *ExecContext) Messages(port PortID) []any {
	return c.in.Messages(port)
}

// SetOutput writes a data output. v is shared with readers, so a kernel that
// reuses a slice or map must hand over a fresh one each tick.
func (c *ExecContext) SetOutput(port PortID, v any) {
	c.out.Set(port, v)
}

// Emit appends a message to a message output.
func (c *ExecContext) Emit(port PortID, msg any) {
	c.out.Emit(port, msg)
}

// InitContext is handed to Initializer.Init when a node is created.
type InitContext struct {
	Node       nodeid.Handle
	Descriptor *Descriptor
	Logger     *slog.Logger
}

// AsFloat converts common numeric types to float64. Anything else is 0.
func AsFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Cell is externally owned storage bound to a node port. An external store
// may swap the cell it hands out (for example after compacting its memory);
// the graph is patched between ticks without touching topology.
type Cell struct {
	mu    sync.RWMutex
	value any
	set   bool
}

// NewCell returns a cell holding v.
func NewCell(v any) *Cell {
	return &Cell{value: v, set: true}
}

// Load returns the cell's value and whether it was ever written.
func (c *Cell) Load() (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// Store replaces the cell's value.
func (c *Cell) Store(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.set = true
}
