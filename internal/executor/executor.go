// Package executor runs a scheduler.Plan under one of several concurrency
// strategies and signals completion through a Fence.
//
// Every task body is run through Protect, so errors and panics raised by node
// code come back as *NodeError values instead of tearing down the process.
// A failing task never stops its dependents: they run and see whatever their
// upstream left in its output buffers.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/scheduler"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// Strategy selects how plan tasks are mapped onto goroutines.
type Strategy int

const (
	// Synchronous runs every task in plan order on the calling goroutine.
	Synchronous Strategy = iota
	// Islands runs one goroutine per island, each in island-internal plan order.
	Islands
	// MaximallyParallel feeds tasks to a worker pool as soon as their
	// dependencies complete.
	MaximallyParallel
)

func (s Strategy) String() string {
	switch s {
	case Synchronous:
		return "synchronous"
	case Islands:
		return "islands"
	case MaximallyParallel:
		return "parallel"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name to its value.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "synchronous", "sync":
		return Synchronous, nil
	case "islands":
		return Islands, nil
	case "parallel", "maximally-parallel":
		return MaximallyParallel, nil
	default:
		return 0, fmt.Errorf("unknown strategy '%s' (want synchronous, islands or parallel)", name)
	}
}

// RunFunc executes one task.
type RunFunc func(ctx context.Context, task scheduler.Task) error

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers bounds the number of goroutines the parallel strategies use.
// Zero or less uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Executor) { e.workers = n }
}

// WithTracer records one span per executed task.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Executor dispatches plans. It holds no per-tick state and may be reused.
type Executor struct {
	strategy Strategy
	workers  int
	tracer   trace.Tracer
}

// New creates an executor.
func New(strategy Strategy, opts ...Option) *Executor {
	e := &Executor{strategy: strategy, tracer: noop.NewTracerProvider().Tracer("")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the configured strategy.
func (e *Executor) Strategy() Strategy {
	return e.strategy
}

func (e *Executor) workerCount(tasks int) int {
	n := e.workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return max(1, min(n, tasks))
}

// Dispatch starts executing plan and returns its fence. With the Synchronous
// strategy the fence is already complete on return. A context that ends
// prevents tasks from starting, never interrupts one, and the fence still
// completes.
func (e *Executor) Dispatch(ctx context.Context, plan *scheduler.Plan, run RunFunc) *Fence {
	f := newFence()
	if plan.Len() == 0 {
		f.finish()
		return f
	}
	switch e.strategy {
	case Islands:
		e.dispatchIslands(ctx, plan, run, f)
	case MaximallyParallel:
		e.dispatchParallel(ctx, plan, run, f)
	default:
		for i := range plan.Tasks {
			e.runTask(ctx, plan.Tasks[i], run, f)
		}
		f.finish()
	}
	return f
}

func (e *Executor) dispatchIslands(ctx context.Context, plan *scheduler.Plan, run RunFunc, f *Fence) {
	var g errgroup.Group
	g.SetLimit(e.workerCount(len(plan.Islands)))
	go func() {
		for _, island := range plan.Islands {
			g.Go(func() error {
				for _, ti := range island {
					e.runTask(ctx, plan.Tasks[ti], run, f)
				}
				return nil
			})
		}
		_ = g.Wait()
		f.finish()
	}()
}

// runTask executes one task and records the outcome on the fence.
func (e *Executor) runTask(ctx context.Context, task scheduler.Task, run RunFunc, f *Fence) {
	if err := ctx.Err(); err != nil {
		f.skip(err)
		return
	}
	logger := ctxlog.FromContext(ctx).With("nodeID", task.Node.String())

	spanCtx, span := e.tracer.Start(ctx, "node.execute", trace.WithAttributes(
		attribute.String("node.id", task.Node.String()),
		attribute.Int64("node.group", int64(task.Group)),
	))
	err := Protect(task.Node, "", PhaseExecute, func() error {
		return run(spanCtx, task)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Node execution failed.", "error", err)
	}
	span.End()
	f.record(err)
}
