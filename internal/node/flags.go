package node

import "strings"

// ExecutionFlags are derived per node, per tick. They are recomputed from
// topology and observer state each tick and never persisted beyond it.
type ExecutionFlags uint8

const (
	Enabled ExecutionFlags = 1 << iota
	WillRun
	Observable
	HasExternalObserver
	CausesSideEffects
	IsExternalSourceNode
)

// Has reports whether every bit of mask is set.
func (f ExecutionFlags) Has(mask ExecutionFlags) bool {
	return f&mask == mask
}

func (f ExecutionFlags) String() string {
	if f == 0 {
		return "none"
	}
	names := []struct {
		bit  ExecutionFlags
		name string
	}{
		{Enabled, "enabled"},
		{WillRun, "will-run"},
		{Observable, "observable"},
		{HasExternalObserver, "has-external-observer"},
		{CausesSideEffects, "causes-side-effects"},
		{IsExternalSourceNode, "external-source"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Status is the execution state of a node within the current tick.
type Status int32

const (
	// StatusPending means the node has not run this tick.
	StatusPending Status = iota
	// StatusRunning means a worker is executing the node.
	StatusRunning
	// StatusCompleted means the node ran successfully this tick.
	StatusCompleted
	// StatusFailed means the node's kernel returned an error or panicked.
	StatusFailed
	// StatusCulled means the node was skipped because nothing observes it.
	StatusCulled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCulled:
		return "culled"
	default:
		return "unknown"
	}
}
