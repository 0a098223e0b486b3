package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/executor"
	"github.com/vk/tickflow/internal/metrics"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/safety"
	"github.com/vk/tickflow/internal/topologystore"
	"github.com/zclconf/go-cty/cty"
)

var strategies = []executor.Strategy{executor.Synchronous, executor.Islands, executor.MaximallyParallel}

func TestChain_UnobservedWorkIsCulled(t *testing.T) {
	m := newTestGraph(t)
	a := mustNode(t, m, "tick")
	b := mustNode(t, m, "inc")
	c := mustNode(t, m, "inc")
	link(t, m, a, b)
	link(t, m, b, c)

	update(t, m, 10)
	for _, h := range []nodeid.Handle{a, b, c} {
		assert.Zero(t, runs(t, m, h))
		status, err := m.Status(h)
		require.NoError(t, err)
		assert.Equal(t, node.StatusCulled, status)
	}

	v := observe(t, m, c)
	update(t, m, 10)
	for _, h := range []nodeid.Handle{a, b, c} {
		assert.Equal(t, uint64(10), runs(t, m, h))
	}
	assert.Equal(t, 22.0, resolveFloat(t, m, v))
}

func TestChain_CullingDisabledRunsEverything(t *testing.T) {
	m := newTestGraph(t, WithCulling(false))
	a := mustNode(t, m, "tick")
	b := mustNode(t, m, "inc")
	c := mustNode(t, m, "inc")
	link(t, m, a, b)
	link(t, m, b, c)

	update(t, m, 10)
	assert.Equal(t, uint64(10), runs(t, m, c))

	require.NoError(t, m.SetCulling(true))
	update(t, m, 1)
	assert.Equal(t, uint64(10), runs(t, m, c))
}

func TestDiamond_ReconnectOnlyTouchesItsIsland(t *testing.T) {
	m := newTestGraph(t)
	a := mustNode(t, m, "tick")
	b := mustNode(t, m, "inc")
	c := mustNode(t, m, "inc")
	d := mustNode(t, m, "add")
	e := mustNode(t, m, "tick")
	f := mustNode(t, m, "inc")

	require.NoError(t, m.SetPortArraySize(d, 0, 2))
	link(t, m, a, b)
	link(t, m, a, c)
	_, err := m.Connect(out(t, m, b), in(t, m, d, "terms", 0))
	require.NoError(t, err)
	_, err = m.Connect(out(t, m, c), in(t, m, d, "terms", 1))
	require.NoError(t, err)
	link(t, m, e, f)
	vd := observe(t, m, d)
	observe(t, m, f)

	update(t, m, 1)
	assert.Empty(t, m.ChangedGroups())
	assert.Equal(t, 4.0, resolveFloat(t, m, vd))

	group := func(h nodeid.Handle) topologystore.GroupID {
		g, err := m.Group(h)
		require.NoError(t, err)
		return g
	}
	flags := func(hs ...nodeid.Handle) []node.ExecutionFlags {
		out := make([]node.ExecutionFlags, len(hs))
		for i, h := range hs {
			f, err := m.Flags(h)
			require.NoError(t, err)
			out[i] = f
		}
		return out
	}
	gABCD, gEF := group(a), group(e)
	require.NotEqual(t, gABCD, gEF)
	before := flags(c, d, e, f)

	require.NoError(t, m.Disconnect(out(t, m, a), in(t, m, b, "in", 0)))
	link(t, m, a, b)
	assert.Equal(t, []topologystore.GroupID{gABCD}, m.ChangedGroups())
	assert.Equal(t, before, flags(c, d, e, f), "flags are only republished by a tick")

	update(t, m, 1)
	assert.Empty(t, m.ChangedGroups())
	for _, h := range []nodeid.Handle{a, b, c, d} {
		assert.Equal(t, gABCD, group(h))
	}
	assert.Equal(t, gEF, group(f))
	assert.Equal(t, before, flags(c, d, e, f))
	assert.Equal(t, 6.0, resolveFloat(t, m, vd))
}

func TestFeedback_ReadsPreviousTick(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			m := newTestGraph(t, WithStrategy(s), WithWorkers(3))
			a := mustNode(t, m, "inc")
			b := mustNode(t, m, "inc")
			link(t, m, a, b)
			_, err := m.ConnectFeedback(out(t, m, b), in(t, m, a, "in", 0))
			require.NoError(t, err)
			va, vb := observe(t, m, a), observe(t, m, b)

			prevB := 0.0
			for tick := 1; tick <= 120; tick++ {
				update(t, m, 1)
				gotA, gotB := resolveFloat(t, m, va), resolveFloat(t, m, vb)
				require.Equal(t, prevB+1, gotA, "tick %d", tick)
				require.Equal(t, gotA+1, gotB, "tick %d", tick)
				prevB = gotB
			}
		})
	}
}

func TestFeedback_SelfLoop(t *testing.T) {
	m := newTestGraph(t)
	s := mustNode(t, m, "inc")
	_, err := m.ConnectFeedback(out(t, m, s), in(t, m, s, "in", 0))
	require.NoError(t, err)
	v := observe(t, m, s)

	for tick := 1; tick <= 100; tick++ {
		update(t, m, 1)
		require.Equal(t, float64(tick), resolveFloat(t, m, v))
	}
}

func TestValues_TokensRetireAtNextTick(t *testing.T) {
	cases := []struct {
		typ  string
		want any
	}{
		{"tick", 1.0},
		{"vec", []float64{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			m := newTestGraph(t)
			v := observe(t, m, mustNode(t, m, tc.typ))
			update(t, m, 1)

			view, err := m.Resolve(v)
			require.NoError(t, err)
			got, err := view.Value()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, view.Written())
			assert.Equal(t, uint64(1), view.Tick())

			update(t, m, 1)
			_, err = view.Value()
			assert.ErrorIs(t, err, safety.ErrSuperseded)
			assert.False(t, view.Valid())
		})
	}
}

func TestValues_ReleasedView(t *testing.T) {
	m := newTestGraph(t)
	v := observe(t, m, mustNode(t, m, "tick"))
	update(t, m, 1)

	view, err := m.Resolve(v)
	require.NoError(t, err)
	require.NoError(t, view.Release())
	_, err = view.Value()
	assert.ErrorIs(t, err, safety.ErrReleased)
}

func TestValues_DestroyedNode(t *testing.T) {
	m := newTestGraph(t)
	h := mustNode(t, m, "tick")
	v := observe(t, m, h)
	update(t, m, 1)

	view, err := m.Resolve(v)
	require.NoError(t, err)
	require.NoError(t, m.DestroyNode(h))

	_, err = m.Resolve(v)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	update(t, m, 1)
	_, err = view.Value()
	assert.ErrorIs(t, err, safety.ErrDisposed)
	require.NoError(t, m.ReleaseValue(v))
	assert.ErrorIs(t, m.ReleaseValue(v), nodeid.ErrInvalidHandle)
}

func TestValues_DefaultsBeforeFirstRun(t *testing.T) {
	m := newTestGraph(t)
	c := observe(t, m, mustNode(t, m, "const", num("value", 7)))
	i := observe(t, m, mustNode(t, m, "inc"))

	view, err := m.Resolve(c)
	require.NoError(t, err)
	got, err := view.Value()
	require.NoError(t, err)
	assert.Equal(t, -1.0, got)
	assert.False(t, view.Written())
	require.NoError(t, view.Release())

	assert.Equal(t, 0.0, resolveFloat(t, m, i), "no default yields the zero value")

	update(t, m, 1)
	assert.Equal(t, 7.0, resolveFloat(t, m, c))
	assert.Equal(t, 1.0, resolveFloat(t, m, i))

	_, err = ResolveAs[string](m, c)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

// buildMesh wires two islands: one with an integrator and cross feedback,
// one plain chain. It returns the observed values in a fixed order.
func buildMesh(t *testing.T, m *Manager) []Value {
	t.Helper()
	clock := mustNode(t, m, "tick")
	k := mustNode(t, m, "const", num("value", 3))
	sum := mustNode(t, m, "add")
	integ := mustNode(t, m, "add")
	x := mustNode(t, m, "inc")
	y := mustNode(t, m, "add")

	for _, h := range []nodeid.Handle{sum, integ, y} {
		require.NoError(t, m.SetPortArraySize(h, 0, 2))
	}
	connect := func(src, dst nodeid.Handle, port string, idx int, feedback bool) {
		t.Helper()
		var err error
		if feedback {
			_, err = m.ConnectFeedback(out(t, m, src), in(t, m, dst, port, idx))
		} else {
			_, err = m.Connect(out(t, m, src), in(t, m, dst, port, idx))
		}
		require.NoError(t, err)
	}
	connect(clock, sum, "terms", 0, false)
	connect(k, sum, "terms", 1, false)
	connect(sum, integ, "terms", 0, false)
	connect(integ, integ, "terms", 1, true)
	connect(y, x, "in", 0, true)
	connect(x, y, "terms", 0, false)
	connect(integ, y, "terms", 1, false)

	c1 := mustNode(t, m, "tick")
	c2 := mustNode(t, m, "inc")
	c3 := mustNode(t, m, "inc")
	link(t, m, c1, c2)
	link(t, m, c2, c3)

	return []Value{observe(t, m, integ), observe(t, m, y), observe(t, m, c3)}
}

func TestDeterminism_AcrossStrategies(t *testing.T) {
	trace := func(s executor.Strategy) [][]float64 {
		m := newTestGraph(t, WithStrategy(s), WithWorkers(4))
		values := buildMesh(t, m)
		var rows [][]float64
		for range 30 {
			update(t, m, 1)
			row := make([]float64, len(values))
			for i, v := range values {
				row[i] = resolveFloat(t, m, v)
			}
			rows = append(rows, row)
		}
		return rows
	}

	want := trace(executor.Synchronous)
	require.Len(t, want, 30)
	assert.Equal(t, []float64{4, 5, 3}, want[0])
	for _, s := range strategies[1:] {
		if diff := cmp.Diff(want, trace(s)); diff != "" {
			t.Errorf("%s diverges from synchronous (-want +got):\n%s", s, diff)
		}
	}
}

func TestErrors_AggregatedInOccurrenceOrder(t *testing.T) {
	m := newTestGraph(t)
	src := mustNode(t, m, "tick")
	broken := mustNode(t, m, "fail")
	panicky := mustNode(t, m, "fail", node.Args{"mode": cty.StringVal("panic")})
	after := mustNode(t, m, "inc")
	sink := mustNode(t, m, "sink")
	link(t, m, src, broken)
	link(t, m, src, panicky)
	link(t, m, broken, after)
	link(t, m, panicky, sink)
	v := observe(t, m, after)

	err := m.Update(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	var panicErr *executor.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kernel exploded", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	errs := joined.Unwrap()
	require.Len(t, errs, 2)
	var first, second *executor.NodeError
	require.ErrorAs(t, errs[0], &first)
	require.ErrorAs(t, errs[1], &second)
	assert.Equal(t, broken, first.Node)
	assert.Equal(t, panicky, second.Node)
	assert.Equal(t, "fail", first.Type)

	assert.Equal(t, uint64(1), runs(t, m, after), "dependents of a failed node still run")
	assert.Equal(t, uint64(1), runs(t, m, sink))
	assert.Equal(t, 1.0, resolveFloat(t, m, v))

	status, err := m.Status(broken)
	require.NoError(t, err)
	assert.Equal(t, node.StatusFailed, status)
	assert.ErrorIs(t, m.NodeError(broken), errBoom)
	assert.NoError(t, m.NodeError(after))
}

func TestErrors_ParallelStrategiesJoinEveryFailure(t *testing.T) {
	for _, s := range strategies[1:] {
		t.Run(s.String(), func(t *testing.T) {
			m := newTestGraph(t, WithStrategy(s), WithWorkers(4))
			var failing []nodeid.Handle
			for range 5 {
				h := mustNode(t, m, "fail")
				observe(t, m, h)
				failing = append(failing, h)
			}

			err := m.Update(context.Background())
			require.Error(t, err)
			errs := err.(interface{ Unwrap() []error }).Unwrap()
			assert.Len(t, errs, len(failing))
			for _, e := range errs {
				assert.ErrorIs(t, e, errBoom)
			}
		})
	}
}

func TestSchedule_FailedPlanKeepsPreviousTick(t *testing.T) {
	m := newTestGraph(t)
	a := mustNode(t, m, "inc")
	b := mustNode(t, m, "inc")
	link(t, m, a, b)
	v := observe(t, m, b)
	update(t, m, 1)

	view, err := m.Resolve(v)
	require.NoError(t, err)

	// Connect refuses same-tick cycles, so close one behind its back.
	_, err = m.topo.Connect(out(t, m, b), in(t, m, a, "in", 0), node.EdgeFlags(node.Data, node.Data, false))
	require.NoError(t, err)

	err = m.Update(context.Background())
	require.ErrorIs(t, err, ErrCycle)
	assert.Equal(t, uint64(1), m.Tick(), "a failed plan does not take a tick number")

	got, err := view.Value()
	require.NoError(t, err, "views of the last tick stay valid")
	assert.Equal(t, 2.0, got)
	require.NoError(t, view.Release())

	_, err = m.topo.Disconnect(out(t, m, b), in(t, m, a, "in", 0))
	require.NoError(t, err)
	update(t, m, 1)
	assert.Equal(t, uint64(2), m.Tick())
	assert.Equal(t, 2.0, resolveFloat(t, m, v))
}

func TestTickInFlight_RejectsEdits(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gate := &node.Descriptor{
		Type:    "gate",
		Outputs: []node.Port{dataOut("out")},
		New: kernel(func(ec *node.ExecContext) error {
			close(entered)
			<-release
			ec.SetOutput(0, 1.0)
			return nil
		}),
	}
	m := New(testRegistry(gate), WithStrategy(executor.MaximallyParallel))
	g := mustNode(t, m, "gate")
	other := mustNode(t, m, "inc")
	v := observe(t, m, g)

	tick, err := m.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tick.Number())
	<-entered

	_, err = m.Connect(out(t, m, g), in(t, m, other, "in", 0))
	assert.ErrorIs(t, err, ErrTickInFlight)
	_, err = m.CreateNode("tick", nil)
	assert.ErrorIs(t, err, ErrTickInFlight)
	_, err = m.Schedule(context.Background())
	assert.ErrorIs(t, err, ErrTickInFlight)
	_, err = m.Resolve(v)
	assert.ErrorIs(t, err, ErrTickInFlight)
	_, err = m.Close()
	assert.ErrorIs(t, err, ErrTickInFlight)

	close(release)
	require.NoError(t, tick.Wait())
	<-tick.Done()

	assert.Equal(t, 1.0, resolveFloat(t, m, v))
	_, err = m.Connect(out(t, m, g), in(t, m, other, "in", 0))
	assert.NoError(t, err)
	_, err = m.Close()
	assert.NoError(t, err)
}

func TestSchedule_CancelledContextSkipsTasks(t *testing.T) {
	m := newTestGraph(t)
	h := mustNode(t, m, "tick")
	observe(t, m, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Update(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, runs(t, m, h))

	update(t, m, 1)
	assert.Equal(t, uint64(1), runs(t, m, h))
}

func TestMessages_FanInOrder(t *testing.T) {
	m := newTestGraph(t)
	e1 := mustNode(t, m, "emitter")
	e2 := mustNode(t, m, "emitter", num("offset", 100))
	g := mustNode(t, m, "gather")
	for _, e := range []nodeid.Handle{e1, e2} {
		src, err := m.Output(e, "msgs")
		require.NoError(t, err)
		_, err = m.Connect(src, in(t, m, g, "in", 0))
		require.NoError(t, err)
	}
	v := observe(t, m, g)

	update(t, m, 1)
	got, err := ResolveAs[[]any](m, v)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 10.0, 101.0, 110.0}, got)

	update(t, m, 1)
	got, err = ResolveAs[[]any](m, v)
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 20.0, 102.0, 120.0}, got, "messages live for one tick")
}

func TestFlags_Published(t *testing.T) {
	m := newTestGraph(t)
	a := mustNode(t, m, "tick")
	b := mustNode(t, m, "inc")
	idle := mustNode(t, m, "tick")
	d := mustNode(t, m, "tick")
	s := mustNode(t, m, "sink")
	link(t, m, a, b)
	link(t, m, d, s)
	observe(t, m, b)

	update(t, m, 1)
	flagsOf := func(h nodeid.Handle) node.ExecutionFlags {
		f, err := m.Flags(h)
		require.NoError(t, err)
		return f
	}

	assert.True(t, flagsOf(b).Has(node.Enabled|node.Observable|node.HasExternalObserver))
	assert.True(t, flagsOf(a).Has(node.Enabled))
	assert.False(t, flagsOf(a).Has(node.Observable))
	assert.True(t, flagsOf(s).Has(node.Enabled|node.CausesSideEffects|node.Observable))
	assert.False(t, flagsOf(s).Has(node.HasExternalObserver))
	assert.True(t, flagsOf(d).Has(node.Enabled))
	assert.Equal(t, node.ExecutionFlags(0), flagsOf(idle))

	status, err := m.Status(idle)
	require.NoError(t, err)
	assert.Equal(t, node.StatusCulled, status)

	stats := m.Stats()
	assert.Equal(t, 4, stats.Enabled)
	assert.Equal(t, 1, stats.Culled)
}

func TestMetrics_Recorded(t *testing.T) {
	reg := metrics.NewRegistry()
	m := newTestGraph(t, WithMetrics(reg))
	observe(t, m, mustNode(t, m, "tick"))
	observe(t, m, mustNode(t, m, "fail"))
	mustNode(t, m, "inc")

	for range 3 {
		_ = m.Update(context.Background())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.TicksTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(reg.NodesExecuted))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.NodesCulled))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.NodeErrors.WithLabelValues(string(executor.PhaseExecute))))
}

func TestStrategy_SwitchBetweenTicks(t *testing.T) {
	m := newTestGraph(t)
	v := buildMesh(t, m)[0]
	var got []float64
	for i, s := range []executor.Strategy{executor.Synchronous, executor.Islands, executor.MaximallyParallel, executor.Synchronous} {
		require.NoError(t, m.SetStrategy(s), fmt.Sprintf("switch %d", i))
		assert.Equal(t, s, m.Strategy())
		update(t, m, 1)
		got = append(got, resolveFloat(t, m, v))
	}
	// integ(t) = integ(t-1) + t + 3
	assert.Equal(t, []float64{4, 9, 15, 22}, got)
}

func TestUpdate_ProducesNoSafetyViolations(t *testing.T) {
	reg := metrics.NewRegistry()
	for _, s := range strategies {
		m := newTestGraph(t, WithStrategy(s), WithMetrics(reg))
		buildMesh(t, m)
		update(t, m, 20)
	}
	assert.Zero(t, testutil.CollectAndCount(reg.SafetyViolations))
}
