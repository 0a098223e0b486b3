package topologystore

import (
	"errors"
	"fmt"

	"github.com/vk/tickflow/internal/nodeid"
)

// Sentinel errors of the topology database.
var (
	ErrDuplicateConnection  = errors.New("connection already exists")
	ErrPortAlreadyConnected = errors.New("destination data port already has a writer")
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrVertexHasConnections = errors.New("vertex still has connections")
	ErrGroupInvalid         = errors.New("invalid group")
)

// Error provides structured information about a rejected topology operation.
type Error struct {
	Op    string // Operation that failed (e.g. "Connect")
	Node  nodeid.Handle
	Src   *Endpoint
	Dst   *Endpoint
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Src != nil && e.Dst != nil:
		return fmt.Sprintf("%s %s:%d[%d] -> %s:%d[%d]: %v", e.Op,
			e.Src.Node, e.Src.Port, e.Src.Index, e.Dst.Node, e.Dst.Port, e.Dst.Index, e.Cause)
	case !e.Node.IsZero():
		return fmt.Sprintf("%s vertex %s: %v", e.Op, e.Node, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

func edgeError(op string, src, dst Endpoint, cause error) error {
	return &Error{Op: op, Src: &src, Dst: &dst, Cause: cause}
}

func vertexError(op string, v nodeid.Handle, cause error) error {
	return &Error{Op: op, Node: v, Cause: cause}
}

// NewEdgeError builds a structured error for an edge operation. It is exported
// for implementations living in other packages.
func NewEdgeError(op string, src, dst Endpoint, cause error) error {
	return edgeError(op, src, dst, cause)
}

// NewVertexError builds a structured error for a vertex operation.
func NewVertexError(op string, v nodeid.Handle, cause error) error {
	return vertexError(op, v, cause)
}
