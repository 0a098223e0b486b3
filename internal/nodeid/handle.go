// internal/nodeid/handle.go
package nodeid

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInvalidHandle is returned when a handle's version no longer matches its slot.
	ErrInvalidHandle = errors.New("invalid or stale handle")
	// ErrForeignHandle is returned when a handle was minted by a different graph.
	ErrForeignHandle = errors.New("handle belongs to another graph")
)

// GraphID identifies the graph instance that minted a handle.
type GraphID uint32

var lastGraphID atomic.Uint32

// NextGraphID returns a process-unique graph identifier. Zero is never returned.
func NextGraphID() GraphID {
	return GraphID(lastGraphID.Add(1))
}

// Handle is a generational reference to a node slot.
//
// The zero Handle is never valid: versions start at 1.
type Handle struct {
	Index   uint32
	Version uint32
	Graph   GraphID
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String renders the handle as `index:version@graph`.
func (h Handle) String() string {
	if h.IsZero() {
		return "<nil>"
	}
	return fmt.Sprintf("%d:%d@%d", h.Index, h.Version, h.Graph)
}

// Less orders handles by graph, then slot index, then version. It is used to
// keep iteration deterministic.
func (h Handle) Less(other Handle) bool {
	if h.Graph != other.Graph {
		return h.Graph < other.Graph
	}
	if h.Index != other.Index {
		return h.Index < other.Index
	}
	return h.Version < other.Version
}
