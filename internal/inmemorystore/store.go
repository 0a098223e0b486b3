// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Node state lives in a sync.Map keyed by handle, each entry guarded by its
// own mutex. The key space changes only between ticks while values change
// constantly during a tick, which is the access pattern sync.Map is built for,
// and writes to different nodes never contend.
package inmemorystore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/nodestore"
)

type slot struct {
	value any
	set   bool
}

type inputKey struct {
	port  node.PortID
	index int
}

type nodeState struct {
	mu       sync.RWMutex
	current  []slot
	previous []slot
	messages [][]any
	prevMsgs [][]any
	status   node.Status
	err      error
	flags    node.ExecutionFlags
	runs     uint64
	inCells  map[inputKey]*node.Cell
	outCells map[node.PortID]*node.Cell
}

// Store is an in-memory nodestore.Store.
type Store struct {
	states sync.Map // nodeid.Handle -> *nodeState
}

var _ nodestore.Store = (*Store)(nil)

// New creates a new, empty in-memory node state store.
func New() *Store {
	return &Store{}
}

func (s *Store) state(id nodeid.Handle) (*nodeState, error) {
	v, ok := s.states.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", nodestore.ErrNodeNotFound, id)
	}
	return v.(*nodeState), nil
}

func checkPort(st *nodeState, id nodeid.Handle, port node.PortID) error {
	if int(port) >= len(st.current) {
		return fmt.Errorf("node %s has no output port %d", id, port)
	}
	return nil
}

// Init allocates buffers for a node.
func (s *Store) Init(ctx context.Context, id nodeid.Handle, outputs int) error {
	st := &nodeState{
		current:  make([]slot, outputs),
		previous: make([]slot, outputs),
		messages: make([][]any, outputs),
		prevMsgs: make([][]any, outputs),
		status:   node.StatusPending,
		inCells:  make(map[inputKey]*node.Cell),
		outCells: make(map[node.PortID]*node.Cell),
	}
	if _, loaded := s.states.LoadOrStore(id, st); loaded {
		return fmt.Errorf("node %s already has state", id)
	}
	return nil
}

// Remove discards the state of a node.
func (s *Store) Remove(ctx context.Context, id nodeid.Handle) error {
	if _, loaded := s.states.LoadAndDelete(id); !loaded {
		return fmt.Errorf("%w: %s", nodestore.ErrNodeNotFound, id)
	}
	return nil
}

// SetOutput writes the current value of an output and mirrors it into a
// bound external cell.
func (s *Store) SetOutput(ctx context.Context, id nodeid.Handle, port node.PortID, v any) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if err := checkPort(st, id, port); err != nil {
		st.mu.Unlock()
		return err
	}
	st.current[port] = slot{value: v, set: true}
	cell := st.outCells[port]
	st.mu.Unlock()

	if cell != nil {
		cell.Store(v)
	}
	return nil
}

// Output returns the current value of an output.
func (s *Store) Output(ctx context.Context, id nodeid.Handle, port node.PortID) (any, bool, error) {
	return s.read(id, port, false)
}

// PreviousOutput returns the snapshotted value of an output.
func (s *Store) PreviousOutput(ctx context.Context, id nodeid.Handle, port node.PortID) (any, bool, error) {
	return s.read(id, port, true)
}

func (s *Store) read(id nodeid.Handle, port node.PortID, previous bool) (any, bool, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, false, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if err := checkPort(st, id, port); err != nil {
		return nil, false, err
	}
	sl := st.current[port]
	if previous {
		sl = st.previous[port]
	}
	return sl.value, sl.set, nil
}

// Emit appends a message to an output for the current tick.
func (s *Store) Emit(ctx context.Context, id nodeid.Handle, port node.PortID, msg any) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := checkPort(st, id, port); err != nil {
		return err
	}
	st.messages[port] = append(st.messages[port], msg)
	return nil
}

// Messages returns a copy of this tick's messages on an output.
func (s *Store) Messages(ctx context.Context, id nodeid.Handle, port node.PortID) ([]any, error) {
	return s.readMessages(id, port, false)
}

// PreviousMessages returns a copy of last tick's messages on an output.
func (s *Store) PreviousMessages(ctx context.Context, id nodeid.Handle, port node.PortID) ([]any, error) {
	return s.readMessages(id, port, true)
}

func (s *Store) readMessages(id nodeid.Handle, port node.PortID, previous bool) ([]any, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if err := checkPort(st, id, port); err != nil {
		return nil, err
	}
	if previous {
		return slices.Clone(st.prevMsgs[port]), nil
	}
	return slices.Clone(st.messages[port]), nil
}

// Snapshot rotates current buffers into the previous-tick buffers.
func (s *Store) Snapshot(ctx context.Context, id nodeid.Handle) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	for i, cur := range st.current {
		st.previous[i] = slot{value: cloneValue(cur.value), set: cur.set}
	}
	st.prevMsgs, st.messages = st.messages, st.prevMsgs
	for i := range st.messages {
		st.messages[i] = nil
	}
	st.status = node.StatusPending
	st.err = nil
	return nil
}

// SetStatus records the execution status of a node.
func (s *Store) SetStatus(ctx context.Context, id nodeid.Handle, status node.Status) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.status = status
	st.mu.Unlock()
	return nil
}

// Status returns the execution status of a node.
func (s *Store) Status(ctx context.Context, id nodeid.Handle) (node.Status, error) {
	st, err := s.state(id)
	if err != nil {
		return node.StatusPending, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.status, nil
}

// SetError records the error of a node.
func (s *Store) SetError(ctx context.Context, id nodeid.Handle, nodeErr error) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.err = nodeErr
	st.mu.Unlock()
	return nil
}

// Error returns the recorded error of a node.
func (s *Store) Error(ctx context.Context, id nodeid.Handle) (error, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.err, nil
}

// SetFlags publishes the execution flags of a node.
func (s *Store) SetFlags(ctx context.Context, id nodeid.Handle, flags node.ExecutionFlags) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.flags = flags
	st.mu.Unlock()
	return nil
}

// Flags returns the published execution flags of a node.
func (s *Store) Flags(ctx context.Context, id nodeid.Handle) (node.ExecutionFlags, error) {
	st, err := s.state(id)
	if err != nil {
		return 0, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.flags, nil
}

// RecordRun increments the execution counter of a node.
func (s *Store) RecordRun(ctx context.Context, id nodeid.Handle) (uint64, error) {
	st, err := s.state(id)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.runs++
	return st.runs, nil
}

// Runs returns the execution counter of a node.
func (s *Store) Runs(ctx context.Context, id nodeid.Handle) (uint64, error) {
	st, err := s.state(id)
	if err != nil {
		return 0, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.runs, nil
}

// BindInput attaches or detaches external input storage.
func (s *Store) BindInput(ctx context.Context, id nodeid.Handle, port node.PortID, index int, cell *node.Cell) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	key := inputKey{port: port, index: index}
	if cell == nil {
		delete(st.inCells, key)
		return nil
	}
	st.inCells[key] = cell
	return nil
}

// InputCell returns the external storage bound to an input element.
func (s *Store) InputCell(ctx context.Context, id nodeid.Handle, port node.PortID, index int) (*node.Cell, bool) {
	st, err := s.state(id)
	if err != nil {
		return nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	c, ok := st.inCells[inputKey{port: port, index: index}]
	return c, ok
}

// BindOutput attaches or detaches external output storage. A newly bound
// cell immediately receives the output's current value, if any.
func (s *Store) BindOutput(ctx context.Context, id nodeid.Handle, port node.PortID, cell *node.Cell) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if err := checkPort(st, id, port); err != nil {
		st.mu.Unlock()
		return err
	}
	if cell == nil {
		delete(st.outCells, port)
		st.mu.Unlock()
		return nil
	}
	st.outCells[port] = cell
	cur := st.current[port]
	st.mu.Unlock()

	if cur.set {
		cell.Store(cur.value)
	}
	return nil
}

// OutputCell returns the external storage bound to an output.
func (s *Store) OutputCell(ctx context.Context, id nodeid.Handle, port node.PortID) (*node.Cell, bool) {
	st, err := s.state(id)
	if err != nil {
		return nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	c, ok := st.outCells[port]
	return c, ok
}

// HasOutputBinding reports whether any output of the node is externally bound.
func (s *Store) HasOutputBinding(ctx context.Context, id nodeid.Handle) bool {
	st, err := s.state(id)
	if err != nil {
		return false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.outCells) > 0
}
