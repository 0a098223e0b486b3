package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/vk/tickflow/internal/builder"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/executor"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/publish"
	"golang.org/x/time/rate"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrNodeFailures is returned by Run when node code failed during at least
// one tick. The run itself continues past such ticks.
var ErrNodeFailures = errors.New("node failures")

// Run builds the graph and evaluates it for the configured number of ticks,
// or until ctx is cancelled for a paced run without a tick count. The graph is torn down
// before Run returns.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	s, err := a.settings()
	if err != nil {
		return err
	}

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.cfg.HealthcheckPort)
	}
	var tp *sdktrace.TracerProvider
	if a.cfg.Trace {
		if tp, err = newTracerProvider(a.traceW); err != nil {
			return err
		}
	}
	if a.publisher == nil && a.cfg.PublishURL != "" {
		p, err := publish.Dial(ctx, publish.Options{URL: a.cfg.PublishURL, Event: a.cfg.PublishEvent})
		if err != nil {
			return fmt.Errorf("failed to connect publisher: %w", err)
		}
		a.publisher = p
	}
	defer func() {
		err = errors.Join(err, a.shutdown(context.WithoutCancel(ctx), tp))
	}()

	opts := []graph.Option{
		graph.WithLogger(a.logger),
		graph.WithStrategy(s.strategy),
		graph.WithWorkers(s.workers),
		graph.WithCulling(s.culling),
		graph.WithMetrics(a.metrics),
	}
	if tp != nil {
		opts = append(opts, graph.WithTracer(tp.Tracer("tickflow")))
	}
	a.graph = graph.New(a.registry, opts...)

	a.logger.Debug("Building graph from config model...")
	g, err := builder.Build(ctx, a.graph, a.model)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to build graph: %w", err), a.teardown(nil))
	}
	defer func() {
		err = errors.Join(err, a.teardown(g))
	}()

	a.logger.Info("🚀 Starting tick loop.", "strategy", s.strategy.String(), "culling", s.culling, "ticks", s.ticks, "interval", s.interval)
	failed, err := a.loop(ctx, s, g)
	if err != nil {
		return err
	}
	a.logger.Info("🏁 Tick loop finished.", "ticks", a.graph.Tick(), "failed_ticks", failed)
	if failed > 0 {
		return fmt.Errorf("%w in %d of %d ticks", ErrNodeFailures, failed, a.graph.Tick())
	}
	return nil
}

func (a *App) loop(ctx context.Context, s runSettings, g *builder.Graph) (int, error) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.interval), 1)
	}
	if a.publisher == nil && slices.ContainsFunc(g.Values, func(o builder.Observed) bool { return o.Publish }) {
		a.logger.Warn("Observers request publishing but no publish URL is configured.")
	}

	failed := 0
	for n := 1; s.ticks == 0 || n <= s.ticks; n++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				a.logger.Info("Tick loop cancelled.", "reason", context.Cause(ctx))
				return failed, nil
			}
			return failed, err
		}

		err := a.graph.Update(ctx)
		var nerr *executor.NodeError
		switch {
		case err == nil:
		case errors.As(err, &nerr):
			failed++
			a.logger.Error("Tick completed with node failures.", "tick", a.graph.Tick(), "error", err)
		case ctx.Err() != nil:
			a.logger.Info("Tick loop cancelled.", "reason", context.Cause(ctx))
			return failed, nil
		default:
			return failed, fmt.Errorf("tick %d: %w", a.graph.Tick(), err)
		}

		if err := a.report(ctx, g); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

// report logs every observed value and publishes the ones marked for it.
func (a *App) report(ctx context.Context, g *builder.Graph) error {
	if len(g.Values) == 0 {
		return nil
	}
	tick := a.graph.Tick()
	attrs := make([]any, 0, len(g.Values)+1)
	attrs = append(attrs, slog.Uint64("tick", tick))
	published := make(map[string]any)
	for _, o := range g.Values {
		v, err := a.resolve(o.Value)
		if err != nil {
			a.logger.Warn("Observed value unavailable.", "port", o.Name, "error", err)
			continue
		}
		attrs = append(attrs, slog.Any(o.Name, v))
		if o.Publish {
			published[o.Name] = v
		}
	}
	a.logger.Info("Observed.", attrs...)

	if a.publisher == nil || len(published) == 0 {
		return nil
	}
	err := a.publisher.Publish(ctx, publish.Payload{RunID: a.graph.RunID(), Tick: tick, Values: published})
	if err != nil {
		a.logger.Error("Publishing observed values failed.", "tick", tick, "error", err)
	}
	return nil
}

func (a *App) resolve(v graph.Value) (any, error) {
	view, err := a.graph.Resolve(v)
	if err != nil {
		return nil, err
	}
	defer func() { _ = view.Release() }()
	return view.Value()
}

// teardown releases everything the build created and closes the graph.
func (a *App) teardown(g *builder.Graph) error {
	if a.graph == nil {
		return nil
	}
	var errs []error
	if g != nil {
		for _, o := range g.Values {
			if err := a.graph.ReleaseValue(o.Value); err != nil {
				errs = append(errs, err)
			}
		}
		names := slices.SortedFunc(maps.Keys(g.Nodes), cmp.Compare[string])
		for _, name := range names {
			if err := a.graph.DestroyNode(g.Nodes[name]); err != nil {
				errs = append(errs, fmt.Errorf("destroying node %q: %w", name, err))
			}
		}
	}
	leaks, err := a.graph.Close()
	if err != nil {
		errs = append(errs, err)
	}
	if leaks.Empty() {
		a.logger.Debug("Graph closed cleanly.")
	}
	return errors.Join(errs...)
}

func (a *App) shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	var errs []error
	if err := a.closeHealthcheckServer(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close: %w", err))
		}
	}
	if err := shutdownTracing(ctx, tp); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
