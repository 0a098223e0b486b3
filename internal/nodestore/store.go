// Package nodestore defines the interface for the mutable per-node state of a
// running graph: port buffers, the previous-tick snapshot read by feedback
// edges, execution status, errors, flags and externally bound storage.
//
// # Why Node Store Exists
//
// Structure and state change at different rates and are touched by different
// actors. The topology store is edited between ticks by the graph facade; the
// node store is written continuously by executor goroutines during a tick.
// Keeping them apart means per-node writes never contend with topology reads,
// and either side can be backed by a different implementation.
//
// # Buffers
//
// Every node owns one current buffer per output port, written by its kernel,
// and one previous buffer per port, filled by Snapshot at the start of each
// tick. Same-tick edges read current buffers, feedback edges read previous
// ones. Message outputs are cleared by Snapshot so each tick starts empty.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. Different nodes are written
// from different goroutines, and state of one node may be read while the
// executor writes another node.
package nodestore

import (
	"context"
	"errors"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
)

// ErrNodeNotFound is returned for nodes without initialized state.
var ErrNodeNotFound = errors.New("node state not found")

// Store is the per-node state contract.
type Store interface {
	// Init allocates buffers for a node with the given number of output ports.
	// Status starts as StatusPending.
	Init(ctx context.Context, id nodeid.Handle, outputs int) error

	// Remove discards all state of a node.
	Remove(ctx context.Context, id nodeid.Handle) error

	// SetOutput writes the current value of a data output.
	SetOutput(ctx context.Context, id nodeid.Handle, port node.PortID, v any) error

	// Output returns the current value of an output and whether it was ever
	// written.
	Output(ctx context.Context, id nodeid.Handle, port node.PortID) (any, bool, error)

	// PreviousOutput returns the value the output held when the current tick
	// started.
	PreviousOutput(ctx context.Context, id nodeid.Handle, port node.PortID) (any, bool, error)

	// Emit appends a message to a message output for the current tick.
	Emit(ctx context.Context, id nodeid.Handle, port node.PortID, msg any) error

	// Messages returns the messages emitted on an output this tick.
	Messages(ctx context.Context, id nodeid.Handle, port node.PortID) ([]any, error)

	// PreviousMessages returns the messages emitted on an output last tick.
	PreviousMessages(ctx context.Context, id nodeid.Handle, port node.PortID) ([]any, error)

	// Snapshot copies current outputs into the previous buffers, clears
	// current messages and resets the status to pending. Slice and map
	// values are copied shallowly so later in-place writes do not reach the
	// previous buffer.
	Snapshot(ctx context.Context, id nodeid.Handle) error

	// SetStatus records the execution status of a node for the current tick.
	SetStatus(ctx context.Context, id nodeid.Handle, status node.Status) error

	// Status returns the execution status of a node.
	Status(ctx context.Context, id nodeid.Handle) (node.Status, error)

	// SetError records the error a node produced this tick (nil clears it).
	SetError(ctx context.Context, id nodeid.Handle, err error) error

	// Error returns the last recorded error of a node.
	Error(ctx context.Context, id nodeid.Handle) (error, error)

	// SetFlags publishes the execution flags computed for a node.
	SetFlags(ctx context.Context, id nodeid.Handle, flags node.ExecutionFlags) error

	// Flags returns the last published execution flags.
	Flags(ctx context.Context, id nodeid.Handle) (node.ExecutionFlags, error)

	// RecordRun counts one execution of the node and returns the new total.
	RecordRun(ctx context.Context, id nodeid.Handle) (uint64, error)

	// Runs returns the number of times the node executed.
	Runs(ctx context.Context, id nodeid.Handle) (uint64, error)

	// BindInput attaches external storage to one input element. A nil cell
	// removes the binding.
	BindInput(ctx context.Context, id nodeid.Handle, port node.PortID, index int, cell *node.Cell) error

	// InputCell returns the external storage bound to an input element.
	InputCell(ctx context.Context, id nodeid.Handle, port node.PortID, index int) (*node.Cell, bool)

	// BindOutput attaches external storage mirroring an output. A nil cell
	// removes the binding.
	BindOutput(ctx context.Context, id nodeid.Handle, port node.PortID, cell *node.Cell) error

	// OutputCell returns the external storage bound to an output.
	OutputCell(ctx context.Context, id nodeid.Handle, port node.PortID) (*node.Cell, bool)

	// HasOutputBinding reports whether any output of the node is bound to
	// external storage.
	HasOutputBinding(ctx context.Context, id nodeid.Handle) bool
}
