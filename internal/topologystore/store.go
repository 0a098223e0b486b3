// Package topologystore defines the contract of the topology database: the
// incrementally updated multigraph of nodes, ports and connections, plus the
// connected-component ("group" or "island") bookkeeping the scheduler relies
// on.
//
// # Division of Responsibility
//
// The store keeps connectivity exact at all times but keeps group membership
// only approximately: connecting two vertices merges their groups eagerly,
// while disconnecting never splits a group. Instead every mutation flags the
// affected group as changed, and the scheduler's reachability pass recomputes
// exact membership for flagged groups only. Per-edit cost stays low while
// recomputation stays incremental.
//
// # Failure Semantics
//
// Invalid handles, duplicate connections and missing connections are always
// reported as errors. Callers build invariants such as "at most one data writer
// per input" on top of these checks, so nothing is ever silently ignored.
package topologystore

import (
	"iter"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
)

// GroupID identifies a connected component. OrphanGroup holds every vertex
// without connections.
type GroupID uint32

// OrphanGroup is the reserved group of unconnected vertices.
const OrphanGroup GroupID = 0

// AnyPort disables port filtering in Inputs and Outputs.
const AnyPort = -1

// Endpoint names one end of a connection.
type Endpoint struct {
	Node  nodeid.Handle
	Port  node.PortID
	Index int
}

// Connection is one directed edge of the multigraph.
type Connection struct {
	Source Endpoint
	Dest   Endpoint
	Flags  node.TraversalFlags
	// Slot is the connection's storage slot inside the store.
	Slot uint32
}

// IsFeedback reports whether the connection is read with a one-tick delay.
func (c Connection) IsFeedback() bool {
	return c.Flags.IsFeedback()
}

// Store is the topology database contract.
//
// Implementations MUST be safe for concurrent use: the graph facade mutates
// the store between ticks while scheduler passes and introspection read it.
type Store interface {
	// CreateVertex allocates a vertex in the orphan group. O(1).
	CreateVertex() nodeid.Handle

	// VertexDeleted recycles the vertex slot. The vertex must have no
	// remaining connections; callers DisconnectAll first.
	VertexDeleted(v nodeid.Handle) error

	// VertexExists reports whether v is a live vertex.
	VertexExists(v nodeid.Handle) bool

	// VertexCount returns the number of live vertices.
	VertexCount() int

	// Vertices returns every live vertex in ascending slot order.
	Vertices() []nodeid.Handle

	// Connect inserts an edge. It rejects stale handles, an identical edge, and
	// a second edge into a destination whose flags mark it exclusive (data
	// ports), and merges the groups of both endpoints.
	Connect(src, dst Endpoint, flags node.TraversalFlags) (Connection, error)

	// Disconnect removes the edge between src and dst. A missing edge is an
	// error. The group is flagged changed, never split.
	Disconnect(src, dst Endpoint) (Connection, error)

	// DisconnectAll removes every edge touching v and returns them.
	DisconnectAll(v nodeid.Handle) ([]Connection, error)

	// FindConnection looks up the edge between src and dst.
	FindConnection(src, dst Endpoint) (Connection, bool)

	// ConnectionExists reports whether an edge between src and dst exists.
	ConnectionExists(src, dst Endpoint) bool

	// ConnectionCount returns the number of live edges.
	ConnectionCount() int

	// Inputs yields edges arriving at v, newest first, optionally restricted to
	// one destination port (AnyPort for all). The sequence is lazy and can be
	// ranged over repeatedly.
	Inputs(v nodeid.Handle, port int) iter.Seq[Connection]

	// Outputs yields edges leaving v, newest first, optionally restricted to
	// one source port.
	Outputs(v nodeid.Handle, port int) iter.Seq[Connection]

	// Group returns the current group of v.
	Group(v nodeid.Handle) (GroupID, error)

	// ChangedGroups returns the groups flagged changed, in ascending order.
	ChangedGroups() []GroupID

	// IsChanged reports whether g is flagged changed.
	IsChanged(g GroupID) bool

	// Members returns the vertices of g in ascending slot order.
	Members(g GroupID) []nodeid.Handle

	// Groups returns every non-orphan group in ascending order.
	Groups() []GroupID

	// AllocateGroup reserves a fresh group id.
	AllocateGroup() GroupID

	// AssignGroup moves v into g.
	AssignGroup(v nodeid.Handle, g GroupID) error

	// ClearChanged lowers the changed flag of g.
	ClearChanged(g GroupID)

	// Revision increases on every structural mutation. The scheduler uses it to
	// decide whether its cached plan is still valid.
	Revision() uint64
}
