// Package graphdiff records the structural changes made to a graph between
// two ticks so the scheduler can process them in one batch.
package graphdiff

import (
	"sync"

	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

// Deleted describes a destroyed node. The handle is already stale when the
// entry is drained; Type keeps the definition identity for cleanup.
type Deleted struct {
	Node nodeid.Handle
	Type string
}

// ObserverChange records a graph value being attached to or detached from an
// output port.
type ObserverChange struct {
	Endpoint topologystore.Endpoint
	Created  bool
}

// Changes is one drained batch, each list in recording order.
type Changes struct {
	Created   []nodeid.Handle
	Deleted   []Deleted
	Observers []ObserverChange
}

// Empty reports whether the batch carries no entries.
func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Deleted) == 0 && len(c.Observers) == 0
}

// Log accumulates changes until drained. It is safe for concurrent use.
//
// Drain must be called once per tick. Nothing caps an undrained log: entries
// pile up for as long as the owner skips draining.
type Log struct {
	mu      sync.Mutex
	pending Changes
}

// New returns an empty change log.
func New() *Log {
	return &Log{}
}

// RecordCreated notes a new node.
func (l *Log) RecordCreated(h nodeid.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending.Created = append(l.pending.Created, h)
}

// RecordDeleted notes a destroyed node together with its type name.
func (l *Log) RecordDeleted(h nodeid.Handle, definition string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending.Deleted = append(l.pending.Deleted, Deleted{Node: h, Type: definition})
}

// RecordObserverChanged notes an observer created on, or removed from, ep.
func (l *Log) RecordObserverChanged(ep topologystore.Endpoint, created bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending.Observers = append(l.pending.Observers, ObserverChange{Endpoint: ep, Created: created})
}

// Drain returns every pending change and resets the log.
func (l *Log) Drain() Changes {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = Changes{}
	return out
}

// Pending returns the number of undrained entries.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending.Created) + len(l.pending.Deleted) + len(l.pending.Observers)
}
