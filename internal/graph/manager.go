package graph

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/executor"
	"github.com/vk/tickflow/internal/graphdiff"
	"github.com/vk/tickflow/internal/inmemorystore"
	"github.com/vk/tickflow/internal/inmemorytopology"
	"github.com/vk/tickflow/internal/metrics"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/nodestore"
	"github.com/vk/tickflow/internal/registry"
	"github.com/vk/tickflow/internal/safety"
	"github.com/vk/tickflow/internal/scheduler"
	"github.com/vk/tickflow/internal/topologystore"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Validator decides whether a connection touching a domain-specific port is
// legal. A nil error accepts it.
type Validator func(src, dst node.Port) error

type inputKey struct {
	port  node.PortID
	index int
}

type nodeEntry struct {
	desc     *node.Descriptor
	kernel   node.Kernel
	arrays   map[node.PortID]int
	boundIn  map[inputKey]struct{}
	current  safety.Region
	previous safety.Region
}

func (e *nodeEntry) width(port node.PortID) int {
	p, ok := e.desc.Input(port)
	switch {
	case !ok:
		return 0
	case !p.Array:
		return 1
	default:
		return e.arrays[port]
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for edits and ticks.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStrategy selects the execution strategy (Synchronous by default).
func WithStrategy(s executor.Strategy) Option {
	return func(m *Manager) { m.strategy = s }
}

// WithWorkers bounds the goroutines used by the parallel strategies.
func WithWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// WithCulling turns culling on or off (on by default).
func WithCulling(on bool) Option {
	return func(m *Manager) { m.culling = on }
}

// WithValidator installs the domain-specific connection validator.
func WithValidator(v Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithMetrics records tick, node and safety metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithTracer records a span per tick and per executed node.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithNodeStore replaces the in-memory node state store.
func WithNodeStore(s nodestore.Store) Option {
	return func(m *Manager) { m.state = s }
}

// Manager is the editing and evaluation facade of one graph. It owns the
// topology database, the node state store, the change log and the safety
// manager, and drives the scheduler and executor once per tick.
//
// All methods are safe for concurrent use. Node code (constructors, Init,
// Execute, Destroy) must not call back into the Manager that runs it.
type Manager struct {
	mu sync.Mutex

	graph    nodeid.GraphID
	runID    uuid.UUID
	logger   *slog.Logger
	base     context.Context
	registry *registry.Registry
	topo     topologystore.Store
	state    nodestore.Store
	diff     *graphdiff.Log
	safety   *safety.Manager
	sched    *scheduler.Scheduler
	exec     *executor.Executor

	strategy  executor.Strategy
	workers   int
	culling   bool
	validator Validator
	metrics   *metrics.Registry
	tracer    trace.Tracer

	nodes     map[nodeid.Handle]*nodeEntry
	retired   map[nodeid.Handle]*nodeEntry
	values    *nodeid.Arena[topologystore.Endpoint]
	observers map[topologystore.Endpoint]int

	tick     uint64
	starting bool
	inFlight *Tick
	closed   bool
}

// New creates an empty graph whose node types are looked up in reg.
func New(reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:  reg,
		logger:    slog.New(slog.DiscardHandler),
		culling:   true,
		strategy:  executor.Synchronous,
		tracer:    noop.NewTracerProvider().Tracer(""),
		nodes:     make(map[nodeid.Handle]*nodeEntry),
		retired:   make(map[nodeid.Handle]*nodeEntry),
		observers: make(map[topologystore.Endpoint]int),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.graph = nodeid.NextGraphID()
	m.runID = uuid.New()
	m.logger = m.logger.With("graph", uint32(m.graph), "runID", m.runID.String())
	m.base = ctxlog.WithLogger(context.Background(), m.logger)
	m.topo = inmemorytopology.New(m.graph)
	if m.state == nil {
		m.state = inmemorystore.New()
	}
	m.diff = graphdiff.New()
	m.safety = safety.NewManager(m.logger, safety.WithViolationHook(m.onViolation))
	m.sched = scheduler.New(m.topo, m.release)
	m.values = nodeid.NewArena[topologystore.Endpoint](m.graph)
	m.exec = m.newExecutor()
	return m
}

func (m *Manager) newExecutor() *executor.Executor {
	return executor.New(m.strategy, executor.WithWorkers(m.workers), executor.WithTracer(m.tracer))
}

func (m *Manager) onViolation(err *safety.AccessError) {
	m.logger.Debug("Safety violation.", "op", err.Op, "region", err.Region.String(), "mode", err.Mode.String(), "error", err.Cause)
	if m.metrics != nil {
		m.metrics.RecordViolation(err.Cause.Error())
	}
}

func (m *Manager) recordNodeError(phase executor.Phase) {
	if m.metrics != nil {
		m.metrics.RecordNodeError(string(phase))
	}
}

// RunID identifies this graph instance in logs and published payloads.
func (m *Manager) RunID() string {
	return m.runID.String()
}

// checkEditable must be called with m.mu held.
func (m *Manager) checkEditable(op string) error {
	if m.closed {
		return editError(op, nodeid.Handle{}, ErrClosed)
	}
	if m.starting || (m.inFlight != nil && !m.inFlight.finished()) {
		return editError(op, nodeid.Handle{}, ErrTickInFlight)
	}
	m.inFlight = nil
	return nil
}

// entry must be called with m.mu held.
func (m *Manager) entry(op string, h nodeid.Handle) (*nodeEntry, error) {
	if h.Graph != m.graph {
		return nil, editError(op, h, fmt.Errorf("%w: %s", nodeid.ErrForeignHandle, h))
	}
	e, ok := m.nodes[h]
	if !ok {
		return nil, editError(op, h, fmt.Errorf("%w: %s", ErrInvalidHandle, h))
	}
	return e, nil
}

// CreateNode instantiates a node of a registered type. The kernel is built
// and initialized before the node becomes visible; a failing constructor or
// Init leaves the graph unchanged and returns an *executor.NodeError.
func (m *Manager) CreateNode(typ string, args node.Args) (nodeid.Handle, error) {
	desc, err := m.registry.Lookup(typ)
	if err != nil {
		return nodeid.Handle{}, editError("CreateNode", nodeid.Handle{}, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("CreateNode"); err != nil {
		return nodeid.Handle{}, err
	}

	h := m.topo.CreateVertex()
	logger := m.logger.With("nodeID", h.String(), "type", typ)

	var kernel node.Kernel
	err = executor.Protect(h, typ, executor.PhaseInit, func() error {
		k, err := desc.New(args)
		if err != nil {
			return err
		}
		kernel = k
		if in, ok := k.(node.Initializer); ok {
			return in.Init(&node.InitContext{Node: h, Descriptor: desc, Logger: logger})
		}
		return nil
	})
	if err == nil {
		err = m.state.Init(m.base, h, len(desc.Outputs))
	}
	if err != nil {
		if derr := m.topo.VertexDeleted(h); derr != nil {
			logger.Warn("Rolling back a failed node creation failed.", "error", derr)
		}
		logger.Error("Node initialization failed.", "error", err)
		m.recordNodeError(executor.PhaseInit)
		return nodeid.Handle{}, err
	}

	e := &nodeEntry{
		desc:     desc,
		kernel:   kernel,
		arrays:   make(map[node.PortID]int),
		boundIn:  make(map[inputKey]struct{}),
		current:  m.safety.Allocate(typ + " " + h.String()),
		previous: m.safety.Allocate(typ + " " + h.String() + " previous"),
	}
	if err := m.safety.MarkReadOnly(e.previous); err != nil {
		return nodeid.Handle{}, err
	}
	m.nodes[h] = e
	m.diff.RecordCreated(h)
	logger.Debug("Node created.")
	return h, nil
}

// DestroyNode removes a node with all of its connections. Its buffers and
// safety regions are released when the next tick ingests the deletion. A
// failing Destroy is reported as undefined behavior: the node is gone, but
// whatever it owned may not have been released.
func (m *Manager) DestroyNode(h nodeid.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("DestroyNode"); err != nil {
		return err
	}
	e, err := m.entry("DestroyNode", h)
	if err != nil {
		return err
	}

	conns, err := m.topo.DisconnectAll(h)
	if err != nil {
		return err
	}
	if err := m.topo.VertexDeleted(h); err != nil {
		return err
	}
	m.dropObservers(h)
	delete(m.nodes, h)
	m.retired[h] = e
	m.diff.RecordDeleted(h, e.desc.Type)

	logger := m.logger.With("nodeID", h.String(), "type", e.desc.Type)
	logger.Debug("Node destroyed.", "connections", len(conns))
	return m.destroyKernel(logger, h, e)
}

func (m *Manager) destroyKernel(logger *slog.Logger, h nodeid.Handle, e *nodeEntry) error {
	d, ok := e.kernel.(node.Destroyer)
	if !ok {
		return nil
	}
	if err := executor.Protect(h, e.desc.Type, executor.PhaseDestroy, d.Destroy); err != nil {
		logger.Warn("Node destroy failed; behavior of its resources is undefined.", "error", err)
		m.recordNodeError(executor.PhaseDestroy)
		return err
	}
	return nil
}

// dropObservers detaches every graph value observing h. The values stay
// allocated and fail to resolve until released.
func (m *Manager) dropObservers(h nodeid.Handle) {
	var eps []topologystore.Endpoint
	for ep := range m.observers {
		if ep.Node == h {
			eps = append(eps, ep)
		}
	}
	slices.SortFunc(eps, func(a, b topologystore.Endpoint) int {
		return cmp.Compare(a.Port, b.Port)
	})
	for _, ep := range eps {
		delete(m.observers, ep)
		m.diff.RecordObserverChanged(ep, false)
	}
}

// release frees the state of a node whose deletion was ingested.
func (m *Manager) release(ctx context.Context, d graphdiff.Deleted) error {
	e, ok := m.retired[d.Node]
	if !ok {
		return nil
	}
	delete(m.retired, d.Node)
	return m.free(ctx, d.Node, e)
}

func (m *Manager) free(ctx context.Context, h nodeid.Handle, e *nodeEntry) error {
	return errors.Join(
		m.state.Remove(ctx, h),
		m.safety.Free(e.current),
		m.safety.Free(e.previous),
	)
}

// Output returns the endpoint of a named output port.
func (m *Manager) Output(h nodeid.Handle, name string) (topologystore.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entry("Output", h)
	if err != nil {
		return topologystore.Endpoint{}, err
	}
	id, ok := e.desc.OutputPort(name)
	if !ok {
		return topologystore.Endpoint{}, portError("Output", h, name, ErrUnknownPort)
	}
	return topologystore.Endpoint{Node: h, Port: id}, nil
}

// Input returns the endpoint of element index of a named input port.
func (m *Manager) Input(h nodeid.Handle, name string, index int) (topologystore.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entry("Input", h)
	if err != nil {
		return topologystore.Endpoint{}, err
	}
	id, ok := e.desc.InputPort(name)
	if !ok {
		return topologystore.Endpoint{}, portError("Input", h, name, ErrUnknownPort)
	}
	return topologystore.Endpoint{Node: h, Port: id, Index: index}, nil
}

func (m *Manager) outputPort(op string, ep topologystore.Endpoint) (node.Port, error) {
	e, err := m.entry(op, ep.Node)
	if err != nil {
		return node.Port{}, err
	}
	p, ok := e.desc.Output(ep.Port)
	if !ok {
		return node.Port{}, portError(op, ep.Node, fmt.Sprintf("output %d", ep.Port), ErrUnknownPort)
	}
	if ep.Index != 0 {
		return node.Port{}, portError(op, ep.Node, p.Name, fmt.Errorf("%w: index %d on a scalar output", ErrPortIndexOutOfRange, ep.Index))
	}
	return p, nil
}

func (m *Manager) inputPort(op string, ep topologystore.Endpoint) (*nodeEntry, node.Port, error) {
	e, err := m.entry(op, ep.Node)
	if err != nil {
		return nil, node.Port{}, err
	}
	p, ok := e.desc.Input(ep.Port)
	if !ok {
		return nil, node.Port{}, portError(op, ep.Node, fmt.Sprintf("input %d", ep.Port), ErrUnknownPort)
	}
	if w := e.width(ep.Port); ep.Index < 0 || ep.Index >= w {
		return nil, node.Port{}, portError(op, ep.Node, p.Name, fmt.Errorf("%w: index %d, size %d", ErrPortIndexOutOfRange, ep.Index, w))
	}
	return e, p, nil
}

// Connect adds a same-tick edge. It is rejected if it would close a cycle
// of same-tick edges.
func (m *Manager) Connect(src, dst topologystore.Endpoint) (topologystore.Connection, error) {
	return m.connect("Connect", src, dst, false)
}

// ConnectFeedback adds a data edge whose destination reads the value the
// source held at the end of the previous tick. Feedback edges may form
// cycles, including a node feeding back into itself.
func (m *Manager) ConnectFeedback(src, dst topologystore.Endpoint) (topologystore.Connection, error) {
	return m.connect("ConnectFeedback", src, dst, true)
}

func (m *Manager) connect(op string, src, dst topologystore.Endpoint, feedback bool) (topologystore.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable(op); err != nil {
		return topologystore.Connection{}, err
	}
	sp, err := m.outputPort(op, src)
	if err != nil {
		return topologystore.Connection{}, err
	}
	_, dp, err := m.inputPort(op, dst)
	if err != nil {
		return topologystore.Connection{}, err
	}
	if err := m.compatible(sp, dp, feedback); err != nil {
		return topologystore.Connection{}, portError(op, dst.Node, dp.Name, err)
	}
	if !feedback && scheduler.WouldCycle(m.topo, src.Node, dst.Node) {
		return topologystore.Connection{}, portError(op, dst.Node, dp.Name, fmt.Errorf("%w: %s is reachable from %s", ErrCycle, src.Node, dst.Node))
	}

	c, err := m.topo.Connect(src, dst, node.EdgeFlags(sp.Category, dp.Category, feedback))
	if err != nil {
		return topologystore.Connection{}, err
	}
	m.logger.Debug("Connected.", "src", src.Node.String(), "srcPort", sp.Name, "dst", dst.Node.String(), "dstPort", dp.Name, "index", dst.Index, "feedback", feedback)
	return c, nil
}

func (m *Manager) compatible(src, dst node.Port, feedback bool) error {
	if feedback && (src.Category != node.Data || dst.Category != node.Data) {
		return fmt.Errorf("%w: feedback edges connect data ports only", ErrIncompatiblePorts)
	}
	if src.Category != node.DomainSpecific && dst.Category != node.DomainSpecific {
		return nil
	}
	if m.validator != nil {
		if err := m.validator(src, dst); err != nil {
			return fmt.Errorf("%w: %w", ErrIncompatiblePorts, err)
		}
		return nil
	}
	if src.Category != dst.Category {
		return fmt.Errorf("%w: %s output into %s input", ErrIncompatiblePorts, src.Category, dst.Category)
	}
	return nil
}

// Disconnect removes the edge between src and dst. A missing edge fails with
// topologystore.ErrConnectionNotFound.
func (m *Manager) Disconnect(src, dst topologystore.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("Disconnect"); err != nil {
		return err
	}
	if _, err := m.topo.Disconnect(src, dst); err != nil {
		return err
	}
	m.logger.Debug("Disconnected.", "src", src.Node.String(), "dst", dst.Node.String(), "index", dst.Index)
	return nil
}

// SetPortArraySize sets the element count of an array input. Shrinking fails
// while an element at or beyond the new size is still connected; external
// bindings beyond it are dropped.
func (m *Manager) SetPortArraySize(h nodeid.Handle, port node.PortID, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const op = "SetPortArraySize"
	if err := m.checkEditable(op); err != nil {
		return err
	}
	e, err := m.entry(op, h)
	if err != nil {
		return err
	}
	p, ok := e.desc.Input(port)
	if !ok {
		return portError(op, h, fmt.Sprintf("input %d", port), ErrUnknownPort)
	}
	if !p.Array {
		return portError(op, h, p.Name, ErrNotArrayPort)
	}
	if size < 0 {
		return portError(op, h, p.Name, fmt.Errorf("%w: negative size %d", ErrPortIndexOutOfRange, size))
	}
	for c := range m.topo.Inputs(h, int(port)) {
		if c.Dest.Index >= size {
			return portError(op, h, p.Name, fmt.Errorf("%w: element %d is still connected", ErrPortIndexOutOfRange, c.Dest.Index))
		}
	}
	for key := range e.boundIn {
		if key.port == port && key.index >= size {
			if err := m.state.BindInput(m.base, h, port, key.index, nil); err != nil {
				return err
			}
			delete(e.boundIn, key)
		}
	}
	e.arrays[port] = size
	return nil
}

// PortArraySize returns the element count of an input port (1 for scalars).
func (m *Manager) PortArraySize(h nodeid.Handle, port node.PortID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entry("PortArraySize", h)
	if err != nil {
		return 0, err
	}
	if _, ok := e.desc.Input(port); !ok {
		return 0, portError("PortArraySize", h, fmt.Sprintf("input %d", port), ErrUnknownPort)
	}
	return e.width(port), nil
}

// SetStrategy switches the execution strategy from the next tick on.
func (m *Manager) SetStrategy(s executor.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("SetStrategy"); err != nil {
		return err
	}
	m.strategy = s
	m.exec = m.newExecutor()
	return nil
}

// Strategy returns the active execution strategy.
func (m *Manager) Strategy() executor.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategy
}

// SetCulling turns culling on or off from the next tick on.
func (m *Manager) SetCulling(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable("SetCulling"); err != nil {
		return err
	}
	m.culling = on
	return nil
}

// Culling reports whether culling is enabled.
func (m *Manager) Culling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.culling
}

// Nodes returns every live node in ascending slot order.
func (m *Manager) Nodes() []nodeid.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := slices.Collect(maps.Keys(m.nodes))
	slices.SortFunc(hs, func(a, b nodeid.Handle) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return hs
}

// Type returns the node type of h.
func (m *Manager) Type(h nodeid.Handle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.entry("Type", h)
	if err != nil {
		return "", err
	}
	return e.desc.Type, nil
}

// Flags returns the execution flags published by the last completed tick.
func (m *Manager) Flags(h nodeid.Handle) (node.ExecutionFlags, error) {
	if err := m.live("Flags", h); err != nil {
		return 0, err
	}
	return m.state.Flags(m.base, h)
}

// Status returns the execution status of h in the current or last tick.
func (m *Manager) Status(h nodeid.Handle) (node.Status, error) {
	if err := m.live("Status", h); err != nil {
		return node.StatusPending, err
	}
	return m.state.Status(m.base, h)
}

// ExecutionCount returns how many times h has executed.
func (m *Manager) ExecutionCount(h nodeid.Handle) (uint64, error) {
	if err := m.live("ExecutionCount", h); err != nil {
		return 0, err
	}
	return m.state.Runs(m.base, h)
}

// NodeError returns the error h produced in the last tick, if any.
func (m *Manager) NodeError(h nodeid.Handle) error {
	if err := m.live("NodeError", h); err != nil {
		return err
	}
	nodeErr, err := m.state.Error(m.base, h)
	if err != nil {
		return err
	}
	return nodeErr
}

// Group returns the island h currently belongs to.
func (m *Manager) Group(h nodeid.Handle) (topologystore.GroupID, error) {
	if err := m.live("Group", h); err != nil {
		return 0, err
	}
	return m.topo.Group(h)
}

// ChangedGroups returns the islands edited since the last tick settled them.
func (m *Manager) ChangedGroups() []topologystore.GroupID {
	return m.topo.ChangedGroups()
}

// ConnectionCount returns the number of edges.
func (m *Manager) ConnectionCount() int {
	return m.topo.ConnectionCount()
}

// Stats returns the scheduler statistics of the last tick.
func (m *Manager) Stats() scheduler.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched.Stats()
}

// Tick returns the number of the last scheduled tick.
func (m *Manager) Tick() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

func (m *Manager) live(op string, h nodeid.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.entry(op, h)
	return err
}

// Leaks lists what was still alive when a graph was closed.
type Leaks struct {
	Nodes   []nodeid.Handle
	Values  int
	Tokens  int
	Regions []safety.Region
}

// Empty reports whether nothing leaked.
func (l Leaks) Empty() bool {
	return len(l.Nodes) == 0 && l.Values == 0 && l.Tokens == 0 && len(l.Regions) == 0
}

// Close destroys every remaining node, releases all state and reports what
// the caller left behind: live nodes, unreleased graph values and access
// tokens. Leaks are logged as a warning. Close fails while a tick is in
// flight; a second call reports nothing.
func (m *Manager) Close() (Leaks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Leaks{}, nil
	}
	if err := m.checkEditable("Close"); err != nil {
		return Leaks{}, err
	}
	m.closed = true

	leaks := Leaks{Values: m.values.Len(), Tokens: m.safety.Outstanding()}
	for h := range m.nodes {
		leaks.Nodes = append(leaks.Nodes, h)
	}
	slices.SortFunc(leaks.Nodes, func(a, b nodeid.Handle) int {
		return cmp.Compare(a.Index, b.Index)
	})

	var errs []error
	for _, h := range leaks.Nodes {
		e := m.nodes[h]
		if err := m.destroyKernel(m.logger.With("nodeID", h.String(), "type", e.desc.Type), h, e); err != nil {
			errs = append(errs, err)
		}
		m.retired[h] = e
	}
	clear(m.nodes)
	for h, e := range m.retired {
		if err := m.free(m.base, h, e); err != nil {
			errs = append(errs, err)
		}
	}
	clear(m.retired)

	sl := m.safety.Close()
	leaks.Tokens += sl.Tokens
	leaks.Regions = sl.Regions

	if !leaks.Empty() {
		ids := make([]string, len(leaks.Nodes))
		for i, h := range leaks.Nodes {
			ids[i] = h.String()
		}
		m.logger.Warn("Graph closed with leaked resources.", "nodes", ids, "values", leaks.Values, "tokens", leaks.Tokens, "regions", len(leaks.Regions))
	}
	return leaks, errors.Join(errs...)
}
