// Package inmemorytopology provides a thread-safe, in-memory implementation
// of the topologystore.Store interface.
package inmemorytopology

import (
	"cmp"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

const nilSlot int32 = -1

type vertex struct {
	group    topologystore.GroupID
	firstIn  int32
	firstOut int32
	degree   int
}

// edge is one connection slot. Every vertex threads a doubly linked list of
// incoming and one of outgoing edges through these slots, newest first.
type edge struct {
	conn    topologystore.Connection
	live    bool
	prevIn  int32
	nextIn  int32
	prevOut int32
	nextOut int32
}

type edgeKey struct {
	src, dst topologystore.Endpoint
}

type group struct {
	members map[uint32]nodeid.Handle
	changed bool
}

// Store implements topologystore.Store with a slot arena for vertices, a slot
// table for edges and a member set per group, guarded by one RWMutex.
type Store struct {
	mu        sync.RWMutex
	vertices  *nodeid.Arena[vertex]
	edges     []edge
	freeEdges []int32
	liveEdges int
	index     map[edgeKey]int32
	writers   map[topologystore.Endpoint]int32 // exclusive destinations
	groups    map[topologystore.GroupID]*group
	nextGroup topologystore.GroupID
	revision  uint64
}

var _ topologystore.Store = (*Store)(nil)

// New creates an empty topology store whose handles are stamped with graph.
func New(graph nodeid.GraphID) *Store {
	return &Store{
		vertices:  nodeid.NewArena[vertex](graph),
		index:     make(map[edgeKey]int32),
		writers:   make(map[topologystore.Endpoint]int32),
		groups:    map[topologystore.GroupID]*group{topologystore.OrphanGroup: newGroup()},
		nextGroup: topologystore.OrphanGroup + 1,
	}
}

func newGroup() *group {
	return &group{members: make(map[uint32]nodeid.Handle)}
}

// CreateVertex allocates a vertex in the orphan group.
func (s *Store) CreateVertex() nodeid.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.vertices.Allocate(vertex{group: topologystore.OrphanGroup, firstIn: nilSlot, firstOut: nilSlot})
	s.groups[topologystore.OrphanGroup].members[h.Index] = h
	s.revision++
	return h
}

// VertexDeleted recycles the slot of a vertex that has no connections left.
func (s *Store) VertexDeleted(v nodeid.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vx, err := s.vertices.Get(v)
	if err != nil {
		return topologystore.NewVertexError("VertexDeleted", v, err)
	}
	if vx.degree > 0 {
		return topologystore.NewVertexError("VertexDeleted", v, topologystore.ErrVertexHasConnections)
	}
	s.removeMember(vx.group, v)
	if err := s.vertices.Release(v); err != nil {
		return topologystore.NewVertexError("VertexDeleted", v, err)
	}
	s.revision++
	return nil
}

// VertexExists reports whether v names a live vertex.
func (s *Store) VertexExists(v nodeid.Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vertices.Valid(v)
}

// VertexCount returns the number of live vertices.
func (s *Store) VertexCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vertices.Len()
}

// Vertices returns the live vertices in ascending slot order.
func (s *Store) Vertices() []nodeid.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vertices.Handles()
}

// Connect inserts a new edge at the head of both adjacency lists and merges
// the endpoint groups.
func (s *Store) Connect(src, dst topologystore.Endpoint, flags node.TraversalFlags) (topologystore.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sv, err := s.vertices.Get(src.Node)
	if err != nil {
		return topologystore.Connection{}, topologystore.NewEdgeError("Connect", src, dst, err)
	}
	dv, err := s.vertices.Get(dst.Node)
	if err != nil {
		return topologystore.Connection{}, topologystore.NewEdgeError("Connect", src, dst, err)
	}
	key := edgeKey{src: src, dst: dst}
	if _, dup := s.index[key]; dup {
		return topologystore.Connection{}, topologystore.NewEdgeError("Connect", src, dst, topologystore.ErrDuplicateConnection)
	}
	if flags.ExclusiveDestination() {
		if _, taken := s.writers[dst]; taken {
			return topologystore.Connection{}, topologystore.NewEdgeError("Connect", src, dst, topologystore.ErrPortAlreadyConnected)
		}
	}

	slot := s.allocEdge()
	conn := topologystore.Connection{Source: src, Dest: dst, Flags: flags, Slot: uint32(slot)}
	e := &s.edges[slot]
	*e = edge{conn: conn, live: true, prevIn: nilSlot, prevOut: nilSlot, nextIn: dv.firstIn, nextOut: sv.firstOut}
	if dv.firstIn != nilSlot {
		s.edges[dv.firstIn].prevIn = slot
	}
	dv.firstIn = slot
	if sv.firstOut != nilSlot {
		s.edges[sv.firstOut].prevOut = slot
	}
	sv.firstOut = slot
	sv.degree++
	dv.degree++

	s.index[key] = slot
	if flags.ExclusiveDestination() {
		s.writers[dst] = slot
	}
	s.liveEdges++
	s.merge(src.Node, sv, dst.Node, dv)
	s.revision++
	return conn, nil
}

// Disconnect removes the edge between src and dst.
func (s *Store) Disconnect(src, dst topologystore.Endpoint) (topologystore.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range []nodeid.Handle{src.Node, dst.Node} {
		if err := s.vertices.Validate(h); err != nil {
			return topologystore.Connection{}, topologystore.NewEdgeError("Disconnect", src, dst, err)
		}
	}
	slot, ok := s.index[edgeKey{src: src, dst: dst}]
	if !ok {
		return topologystore.Connection{}, topologystore.NewEdgeError("Disconnect", src, dst, topologystore.ErrConnectionNotFound)
	}
	conn := s.edges[slot].conn
	s.unlink(slot)
	s.revision++
	return conn, nil
}

// DisconnectAll removes every edge touching v, newest inputs first.
func (s *Store) DisconnectAll(v nodeid.Handle) ([]topologystore.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vx, err := s.vertices.Get(v)
	if err != nil {
		return nil, topologystore.NewVertexError("DisconnectAll", v, err)
	}
	var removed []topologystore.Connection
	for vx.firstIn != nilSlot {
		removed = append(removed, s.edges[vx.firstIn].conn)
		s.unlink(vx.firstIn)
	}
	for vx.firstOut != nilSlot {
		removed = append(removed, s.edges[vx.firstOut].conn)
		s.unlink(vx.firstOut)
	}
	if len(removed) > 0 {
		s.revision++
	}
	return removed, nil
}

// FindConnection looks up the edge between src and dst.
func (s *Store) FindConnection(src, dst topologystore.Endpoint) (topologystore.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.index[edgeKey{src: src, dst: dst}]
	if !ok {
		return topologystore.Connection{}, false
	}
	return s.edges[slot].conn, true
}

// ConnectionExists reports whether the edge between src and dst exists.
func (s *Store) ConnectionExists(src, dst topologystore.Endpoint) bool {
	_, ok := s.FindConnection(src, dst)
	return ok
}

// ConnectionCount returns the number of live edges.
func (s *Store) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveEdges
}

// Inputs yields the edges arriving at v, newest first. The lock is taken per
// step, so the loop body may mutate the store; iteration stops once it reaches
// an edge removed in the meantime.
func (s *Store) Inputs(v nodeid.Handle, port int) iter.Seq[topologystore.Connection] {
	return s.walk(v, port, true)
}

// Outputs yields the edges leaving v, newest first.
func (s *Store) Outputs(v nodeid.Handle, port int) iter.Seq[topologystore.Connection] {
	return s.walk(v, port, false)
}

func (s *Store) walk(v nodeid.Handle, port int, incoming bool) iter.Seq[topologystore.Connection] {
	return func(yield func(topologystore.Connection) bool) {
		s.mu.RLock()
		vx, err := s.vertices.Get(v)
		if err != nil {
			s.mu.RUnlock()
			return
		}
		cur := vx.firstOut
		if incoming {
			cur = vx.firstIn
		}
		s.mu.RUnlock()

		for cur != nilSlot {
			s.mu.RLock()
			if int(cur) >= len(s.edges) {
				s.mu.RUnlock()
				return
			}
			e := s.edges[cur]
			s.mu.RUnlock()

			end := e.conn.Source
			next := e.nextOut
			if incoming {
				end = e.conn.Dest
				next = e.nextIn
			}
			if !e.live || end.Node != v {
				return
			}
			if port == topologystore.AnyPort || int(end.Port) == port {
				if !yield(e.conn) {
					return
				}
			}
			cur = next
		}
	}
}

// Group returns the current group of v.
func (s *Store) Group(v nodeid.Handle) (topologystore.GroupID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vx, err := s.vertices.Get(v)
	if err != nil {
		return 0, topologystore.NewVertexError("Group", v, err)
	}
	return vx.group, nil
}

// ChangedGroups returns the groups flagged changed, ascending.
func (s *Store) ChangedGroups() []topologystore.GroupID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []topologystore.GroupID
	for id, g := range s.groups {
		if g.changed {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// IsChanged reports whether g is flagged changed.
func (s *Store) IsChanged(id topologystore.GroupID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	return ok && g.changed
}

// Members returns the vertices of a group in ascending slot order.
func (s *Store) Members(id topologystore.GroupID) []nodeid.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil
	}
	out := slices.Collect(maps.Values(g.members))
	slices.SortFunc(out, func(a, b nodeid.Handle) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}

// Groups returns every non-orphan group that has members, ascending.
func (s *Store) Groups() []topologystore.GroupID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []topologystore.GroupID
	for id, g := range s.groups {
		if id != topologystore.OrphanGroup && len(g.members) > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// AllocateGroup reserves a fresh, empty, unflagged group id.
func (s *Store) AllocateGroup() topologystore.GroupID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocGroup()
}

// AssignGroup moves v into an existing group.
func (s *Store) AssignGroup(v nodeid.Handle, id topologystore.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vx, err := s.vertices.Get(v)
	if err != nil {
		return topologystore.NewVertexError("AssignGroup", v, err)
	}
	if _, ok := s.groups[id]; !ok {
		return topologystore.NewVertexError("AssignGroup", v, topologystore.ErrGroupInvalid)
	}
	s.move(v, vx, id)
	return nil
}

// ClearChanged lowers the changed flag of a group. Unknown groups are ignored.
func (s *Store) ClearChanged(id topologystore.GroupID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[id]; ok {
		g.changed = false
	}
}

// Revision returns the structural mutation counter.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// --- internals, called with s.mu held ---

func (s *Store) allocEdge() int32 {
	if n := len(s.freeEdges); n > 0 {
		slot := s.freeEdges[n-1]
		s.freeEdges = s.freeEdges[:n-1]
		return slot
	}
	s.edges = append(s.edges, edge{})
	return int32(len(s.edges) - 1)
}

// unlink detaches an edge from both adjacency lists and flags the owning
// group changed. Groups are never split here.
func (s *Store) unlink(slot int32) {
	e := &s.edges[slot]
	sv, _ := s.vertices.Get(e.conn.Source.Node)
	dv, _ := s.vertices.Get(e.conn.Dest.Node)

	if e.prevIn != nilSlot {
		s.edges[e.prevIn].nextIn = e.nextIn
	} else {
		dv.firstIn = e.nextIn
	}
	if e.nextIn != nilSlot {
		s.edges[e.nextIn].prevIn = e.prevIn
	}
	if e.prevOut != nilSlot {
		s.edges[e.prevOut].nextOut = e.nextOut
	} else {
		sv.firstOut = e.nextOut
	}
	if e.nextOut != nilSlot {
		s.edges[e.nextOut].prevOut = e.prevOut
	}
	sv.degree--
	dv.degree--

	delete(s.index, edgeKey{src: e.conn.Source, dst: e.conn.Dest})
	if w, ok := s.writers[e.conn.Dest]; ok && w == slot {
		delete(s.writers, e.conn.Dest)
	}
	s.markChanged(sv.group)
	s.markChanged(dv.group)

	*e = edge{prevIn: nilSlot, nextIn: nilSlot, prevOut: nilSlot, nextOut: nilSlot}
	s.freeEdges = append(s.freeEdges, slot)
	s.liveEdges--
}

// merge puts both endpoints of a new edge into one group. Two orphans get a
// fresh group, an orphan joins the other side, and of two distinct groups the
// smaller is folded into the larger (the lower id wins a tie).
func (s *Store) merge(a nodeid.Handle, av *vertex, b nodeid.Handle, bv *vertex) {
	ga, gb := av.group, bv.group
	switch {
	case ga == topologystore.OrphanGroup && gb == topologystore.OrphanGroup:
		id := s.allocGroup()
		s.move(a, av, id)
		s.move(b, bv, id)
		s.markChanged(id)
	case ga == topologystore.OrphanGroup:
		s.move(a, av, gb)
		s.markChanged(gb)
	case gb == topologystore.OrphanGroup:
		s.move(b, bv, ga)
		s.markChanged(ga)
	case ga == gb:
		s.markChanged(ga)
	default:
		keep, drop := ga, gb
		if kl, dl := len(s.groups[keep].members), len(s.groups[drop].members); dl > kl || (dl == kl && drop < keep) {
			keep, drop = drop, keep
		}
		for idx, h := range s.groups[drop].members {
			vx, err := s.vertices.Get(h)
			if err != nil {
				delete(s.groups[drop].members, idx)
				continue
			}
			s.move(h, vx, keep)
		}
		delete(s.groups, drop)
		s.markChanged(keep)
	}
}

func (s *Store) allocGroup() topologystore.GroupID {
	id := s.nextGroup
	s.nextGroup++
	s.groups[id] = newGroup()
	return id
}

func (s *Store) move(h nodeid.Handle, vx *vertex, to topologystore.GroupID) {
	if vx.group == to {
		s.groups[to].members[h.Index] = h
		return
	}
	s.removeMember(vx.group, h)
	vx.group = to
	s.groups[to].members[h.Index] = h
}

// removeMember drops h from a group and forgets emptied non-orphan groups.
func (s *Store) removeMember(id topologystore.GroupID, h nodeid.Handle) {
	g, ok := s.groups[id]
	if !ok {
		return
	}
	delete(g.members, h.Index)
	if id == topologystore.OrphanGroup {
		return
	}
	if len(g.members) == 0 {
		delete(s.groups, id)
		return
	}
	g.changed = true
}

func (s *Store) markChanged(id topologystore.GroupID) {
	if id == topologystore.OrphanGroup {
		return
	}
	if g, ok := s.groups[id]; ok {
		g.changed = true
	}
}
