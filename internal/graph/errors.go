package graph

import (
	"errors"
	"fmt"

	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/scheduler"
)

var (
	// ErrTickInFlight is returned by edits attempted while a tick's fence is
	// still outstanding.
	ErrTickInFlight = errors.New("tick in flight")
	// ErrUnknownPort is returned for port ids a node's descriptor does not declare.
	ErrUnknownPort = errors.New("unknown port")
	// ErrPortIndexOutOfRange is returned for array indices at or beyond the
	// port's size, and for non-zero indices on scalar ports.
	ErrPortIndexOutOfRange = errors.New("port index out of range")
	// ErrNotArrayPort is returned when sizing a port that is not an array.
	ErrNotArrayPort = errors.New("not an array port")
	// ErrIncompatiblePorts is returned when the port categories of both ends
	// cannot be connected.
	ErrIncompatiblePorts = errors.New("incompatible ports")
	// ErrNotBound is returned when patching external storage that was never bound.
	ErrNotBound = errors.New("no external binding")
	// ErrTypeMismatch is returned by ResolveAs when the stored value has another type.
	ErrTypeMismatch = errors.New("value type mismatch")
	// ErrClosed is returned by every operation on a closed manager.
	ErrClosed = errors.New("graph closed")

	// ErrCycle is the scheduler's cycle error, re-exported for callers of Connect.
	ErrCycle = scheduler.ErrCycle
	// ErrInvalidHandle is returned for stale, foreign or unknown node and value handles.
	ErrInvalidHandle = nodeid.ErrInvalidHandle
)

// EditError provides structured information about a rejected graph edit.
type EditError struct {
	Op    string // "CreateNode", "Connect", ...
	Node  nodeid.Handle
	Port  string
	Cause error
}

// Error implements the error interface.
func (e *EditError) Error() string {
	switch {
	case e.Port != "":
		return fmt.Sprintf("%s %s port %q: %v", e.Op, e.Node, e.Port, e.Cause)
	case !e.Node.IsZero():
		return fmt.Sprintf("%s %s: %v", e.Op, e.Node, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *EditError) Unwrap() error {
	return e.Cause
}

func editError(op string, h nodeid.Handle, cause error) error {
	return &EditError{Op: op, Node: h, Cause: cause}
}

func portError(op string, h nodeid.Handle, port string, cause error) error {
	return &EditError{Op: op, Node: h, Port: port, Cause: cause}
}
