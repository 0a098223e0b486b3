package executor

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/vk/tickflow/internal/nodeid"
)

// Phase names the node lifecycle call that failed.
type Phase string

const (
	PhaseInit    Phase = "init"
	PhaseExecute Phase = "execute"
	PhaseDestroy Phase = "destroy"
)

// NodeError wraps a failure raised by node code. Err keeps the original
// error, so errors.Is and errors.As reach it.
type NodeError struct {
	Node  nodeid.Handle
	Type  string
	Phase Phase
	Err   error
}

func (e *NodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("node %s %s: %v", e.Node, e.Phase, e.Err)
	}
	return fmt.Sprintf("node %s (%s) %s: %v", e.Node, e.Type, e.Phase, e.Err)
}

// Unwrap returns the underlying cause for error chain support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError carries a recovered panic value and the stack it unwound.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Protect runs fn, converting a returned error or a panic into a *NodeError.
// An error that already is a *NodeError passes through untouched.
func Protect(h nodeid.Handle, typ string, phase Phase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &NodeError{Node: h, Type: typ, Phase: phase, Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	if ferr := fn(); ferr != nil {
		var nodeErr *NodeError
		if errors.As(ferr, &nodeErr) {
			return ferr
		}
		return &NodeError{Node: h, Type: typ, Phase: phase, Err: ferr}
	}
	return nil
}
