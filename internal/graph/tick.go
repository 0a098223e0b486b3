package graph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/executor"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/safety"
	"github.com/vk/tickflow/internal/scheduler"
	"github.com/vk/tickflow/internal/topologystore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tick is one dispatched evaluation of the graph.
type Tick struct {
	number  uint64
	started time.Time
	plan    *scheduler.Plan
	fence   *executor.Fence
	span    trace.Span
	logger  *slog.Logger
	m       *Manager
	done    chan struct{}
}

// Number returns the tick number, starting at 1.
func (t *Tick) Number() uint64 {
	return t.number
}

// Done returns a channel closed once every task finished and the tick's
// execution flags are published.
func (t *Tick) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the tick completed and returns the node errors it
// produced, joined in occurrence order.
func (t *Tick) Wait() error {
	<-t.done
	return t.fence.Wait()
}

func (t *Tick) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// watch publishes the tick's results once its fence completes.
func (t *Tick) watch() {
	if t.fence.Completed() {
		t.finalize()
		return
	}
	go func() {
		<-t.fence.Done()
		t.finalize()
	}()
}

func (t *Tick) finalize() {
	err := t.fence.Wait()
	for h, f := range t.plan.Flags {
		// Nodes cannot be destroyed while the tick is outstanding.
		_ = t.m.state.SetFlags(t.m.base, h, f)
	}
	elapsed := time.Since(t.started)
	if t.m.metrics != nil {
		t.m.metrics.RecordTick(elapsed, t.fence.Ran(), len(t.plan.Culled), len(t.plan.Islands))
	}
	t.span.SetAttributes(
		attribute.Int("tick.ran", t.fence.Ran()),
		attribute.Int("tick.skipped", t.fence.Skipped()),
	)
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}
	t.span.End()
	t.logger.Debug("Tick completed.", "ran", t.fence.Ran(), "culled", len(t.plan.Culled), "skipped", t.fence.Skipped(), "duration", elapsed)
	close(t.done)
}

// Update evaluates the graph once and waits for the result.
func (m *Manager) Update(ctx context.Context) error {
	t, err := m.Schedule(ctx)
	if err != nil {
		return err
	}
	return t.Wait()
}

// Schedule starts a tick and returns without waiting for it, except under
// the Synchronous strategy where the tick has already completed on return.
//
// A tick applies the pending graph diff, settles changed islands, culls and
// plans. Only then does it retire every access token, snapshot outputs for
// feedback reads and dispatch the plan. A failed plan leaves the tick
// number and the previous outputs untouched. Edits fail with
// ErrTickInFlight until the tick is done.
// Cancelling ctx keeps tasks that have not started from starting.
func (m *Manager) Schedule(ctx context.Context) (*Tick, error) {
	m.mu.Lock()
	if err := m.checkEditable("Schedule"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	t, ctx, err := m.prepare(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.starting = true
	exec := m.exec
	run := m.runner(t.number, maps.Clone(m.nodes))
	m.mu.Unlock()

	t.fence = exec.Dispatch(ctx, t.plan, run)
	t.watch()

	m.mu.Lock()
	m.starting = false
	m.inFlight = t
	m.mu.Unlock()
	return t, nil
}

// prepare runs the planning half of a tick. It must be called with m.mu held.
func (m *Manager) prepare(ctx context.Context) (*Tick, context.Context, error) {
	n := m.tick + 1
	ctx = ctxlog.Ensure(ctx, m.logger)
	logger := ctxlog.FromContext(ctx).With("tick", n)
	ctx = ctxlog.WithLogger(ctx, logger)
	ctx, span := m.tracer.Start(ctx, "graph.tick", trace.WithAttributes(
		attribute.Int64("tick", int64(n)),
		attribute.String("run.id", m.runID.String()),
		attribute.String("strategy", m.strategy.String()),
	))
	t := &Tick{number: n, started: time.Now(), span: span, logger: logger, m: m, done: make(chan struct{})}

	fail := func(err error) (*Tick, context.Context, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, nil, err
	}

	if err := m.sched.Ingest(ctx, m.diff.Drain()); err != nil {
		logger.Warn("Releasing deleted nodes failed.", "error", err)
	}

	// The tick boundary is crossed only once planning succeeded, so a failed
	// plan keeps the previous tick's outputs, messages and views intact.
	plan, err := m.sched.Prepare(ctx, m.nodeInfos(ctx), m.culling)
	if err != nil {
		return fail(err)
	}
	m.tick = n
	version := m.safety.BumpVersion()
	for h, e := range m.nodes {
		if err := m.snapshot(ctx, h, e); err != nil {
			return fail(err)
		}
	}
	for _, h := range plan.Culled {
		_ = m.state.SetStatus(ctx, h, node.StatusCulled)
	}
	t.plan = plan
	logger.Debug("Tick scheduled.", "version", version, "tasks", plan.Len(), "culled", len(plan.Culled), "islands", len(plan.Islands))
	return t, ctx, nil
}

// snapshot rotates the current outputs of a node into its previous buffer,
// which feedback readers see read-only for the rest of the tick.
func (m *Manager) snapshot(ctx context.Context, h nodeid.Handle, e *nodeEntry) error {
	if err := m.safety.MarkReadWrite(e.previous); err != nil {
		return err
	}
	tok, err := m.safety.Acquire(e.previous, safety.ModeReadWrite)
	if err != nil {
		return err
	}
	err = m.state.Snapshot(ctx, h)
	if rerr := m.safety.Release(tok); err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}
	return m.safety.MarkReadOnly(e.previous)
}

func (m *Manager) nodeInfos(ctx context.Context) []scheduler.NodeInfo {
	observed := make(map[nodeid.Handle]int, len(m.observers))
	for ep, n := range m.observers {
		observed[ep.Node] += n
	}
	infos := make([]scheduler.NodeInfo, 0, len(m.nodes))
	for h, e := range m.nodes {
		infos = append(infos, scheduler.NodeInfo{
			Node:           h,
			Observers:      observed[h],
			ExternalOutput: m.state.HasOutputBinding(ctx, h),
			ExternalInput:  len(e.boundIn) > 0,
			SideEffects:    e.desc.SideEffects,
		})
	}
	slices.SortFunc(infos, func(a, b scheduler.NodeInfo) int {
		switch {
		case a.Node.Less(b.Node):
			return -1
		case b.Node.Less(a.Node):
			return 1
		default:
			return 0
		}
	})
	return infos
}

// runner returns the task body of one tick. nodes is a copy of the node table
// taken when the tick was planned.
func (m *Manager) runner(tick uint64, nodes map[nodeid.Handle]*nodeEntry) executor.RunFunc {
	return func(ctx context.Context, task scheduler.Task) error {
		h := task.Node
		e, ok := nodes[h]
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
		}

		lease, err := m.safety.Acquire(e.current, safety.ModeReadWrite)
		if err != nil {
			return err
		}
		defer func() { _ = m.safety.Release(lease) }()

		_ = m.state.SetStatus(ctx, h, node.StatusRunning)
		ports := &portIO{m: m, ctx: ctx, node: h, entry: e, nodes: nodes}
		ec := node.NewExecContext(ctx, h, tick, e.desc, ports, ports)
		err = executor.Protect(h, e.desc.Type, executor.PhaseExecute, func() error {
			return e.kernel.Execute(ec)
		})
		_, _ = m.state.RecordRun(ctx, h)
		if err != nil {
			_ = m.state.SetError(ctx, h, err)
			_ = m.state.SetStatus(ctx, h, node.StatusFailed)
			m.recordNodeError(executor.PhaseExecute)
			return err
		}
		return m.state.SetStatus(ctx, h, node.StatusCompleted)
	}
}

// portIO resolves the inputs and receives the outputs of one executing node.
type portIO struct {
	m     *Manager
	ctx   context.Context
	node  nodeid.Handle
	entry *nodeEntry
	nodes map[nodeid.Handle]*nodeEntry
}

var (
	_ node.Inputs  = (*portIO)(nil)
	_ node.Outputs = (*portIO)(nil)
)

// Value implements node.Inputs. External bindings win over connections.
func (p *portIO) Value(port node.PortID, index int) (any, bool) {
	if cell, ok := p.m.state.InputCell(p.ctx, p.node, port, index); ok {
		return cell.Load()
	}
	for c := range p.m.topo.Inputs(p.node, int(port)) {
		if c.Dest.Index != index {
			continue
		}
		var v any
		var set bool
		p.withSource(c, func(sp node.Port) {
			if sp.Category == node.Message {
				if msgs := p.messagesOf(c); len(msgs) > 0 {
					v, set = msgs[len(msgs)-1], true
				}
				return
			}
			v, set = p.outputOf(c, sp)
		})
		return v, set
	}
	return nil, false
}

// Width implements node.Inputs.
func (p *portIO) Width(port node.PortID) int {
	return p.entry.width(port)
}

// Messages implements node.Inputs. Messages are delivered oldest connection
// first; a data source contributes its value as one message.
func (p *portIO) Messages(port node.PortID) []any {
	conns := slices.Collect(p.m.topo.Inputs(p.node, int(port)))
	slices.Reverse(conns)

	var out []any
	if cell, ok := p.m.state.InputCell(p.ctx, p.node, port, 0); ok {
		if v, set := cell.Load(); set {
			out = append(out, v)
		}
	}
	for _, c := range conns {
		p.withSource(c, func(sp node.Port) {
			if sp.Category == node.Message {
				out = append(out, p.messagesOf(c)...)
				return
			}
			if v, set := p.outputOf(c, sp); set {
				out = append(out, v)
			}
		})
	}
	return out
}

// withSource runs fn holding a Read token on the buffer c reads from: the
// source's current outputs, or its previous-tick snapshot for feedback edges.
func (p *portIO) withSource(c topologystore.Connection, fn func(sp node.Port)) {
	src, ok := p.nodes[c.Source.Node]
	if !ok {
		return
	}
	sp, ok := src.desc.Output(c.Source.Port)
	if !ok {
		return
	}
	region := src.current
	if c.IsFeedback() {
		region = src.previous
	}
	tok, err := p.m.safety.Acquire(region, safety.ModeRead)
	if err != nil {
		ctxlog.FromContext(p.ctx).Warn("Input read rejected.", "nodeID", p.node.String(), "src", c.Source.Node.String(), "error", err)
		return
	}
	defer func() { _ = p.m.safety.Release(tok) }()
	fn(sp)
}

func (p *portIO) outputOf(c topologystore.Connection, sp node.Port) (any, bool) {
	read := p.m.state.Output
	if c.IsFeedback() {
		read = p.m.state.PreviousOutput
	}
	v, set, err := read(p.ctx, c.Source.Node, c.Source.Port)
	if err != nil || !set {
		if sp.Default != nil {
			return sp.Default, true
		}
		return nil, false
	}
	return v, true
}

func (p *portIO) messagesOf(c topologystore.Connection) []any {
	read := p.m.state.Messages
	if c.IsFeedback() {
		read = p.m.state.PreviousMessages
	}
	msgs, err := read(p.ctx, c.Source.Node, c.Source.Port)
	if err != nil {
		return nil
	}
	return msgs
}

// Set implements node.Outputs.
func (p *portIO) Set(port node.PortID, v any) {
	if err := p.m.state.SetOutput(p.ctx, p.node, port, v); err != nil {
		ctxlog.FromContext(p.ctx).Warn("Output write rejected.", "nodeID", p.node.String(), "port", port, "error", err)
	}
}

// Emit implements node.Outputs.
func (p *portIO) Emit(port node.PortID, msg any) {
	if err := p.m.state.Emit(p.ctx, p.node, port, msg); err != nil {
		ctxlog.FromContext(p.ctx).Warn("Message emit rejected.", "nodeID", p.node.String(), "port", port, "error", err)
	}
}
