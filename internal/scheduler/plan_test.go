package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/graphdiff"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

func infos(hs []nodeid.Handle, observed ...nodeid.Handle) []NodeInfo {
	out := make([]NodeInfo, len(hs))
	for i, h := range hs {
		out[i] = NodeInfo{Node: h}
		for _, o := range observed {
			if o == h {
				out[i].Observers = 1
			}
		}
	}
	return out
}

func planNodes(p *Plan) []nodeid.Handle {
	out := make([]nodeid.Handle, len(p.Tasks))
	for i, t := range p.Tasks {
		out[i] = t.Node
	}
	return out
}

func TestCull_OnlyAncestorsOfObservedRun(t *testing.T) {
	// a -> b -> c, d -> b, e isolated; observe b.
	s, h := newTopo(5)
	a, b, c, d, e := h[0], h[1], h[2], h[3], h[4]
	connect(t, s, a, b, 0, dataEdge)
	connect(t, s, b, c, 0, dataEdge)
	connect(t, s, d, b, 1, dataEdge)

	flags := Cull(s, infos(h, b), true)

	for _, n := range []nodeid.Handle{a, b, d} {
		assert.True(t, flags[n].Has(node.Enabled|node.WillRun), "node %s should run", n)
	}
	assert.False(t, flags[c].Has(node.Enabled), "downstream of the observer is culled")
	assert.False(t, flags[e].Has(node.Enabled))
	assert.True(t, flags[b].Has(node.Observable|node.HasExternalObserver))
	assert.False(t, flags[a].Has(node.Observable))
}

func TestCull_DisabledEnablesEverything(t *testing.T) {
	s, h := newTopo(3)
	flags := Cull(s, infos(h), false)
	for _, n := range h {
		assert.True(t, flags[n].Has(node.Enabled))
	}
}

func TestCull_FeedbackEdgesKeepSourcesAlive(t *testing.T) {
	s, h := newTopo(2)
	connect(t, s, h[0], h[1], 0, feedbackEdge)

	flags := Cull(s, infos(h, h[1]), true)
	assert.True(t, flags[h[0]].Has(node.Enabled))
}

func TestCull_SideEffectsAndExternalBindings(t *testing.T) {
	s, h := newTopo(3)
	connect(t, s, h[0], h[1], 0, dataEdge)
	nodes := []NodeInfo{
		{Node: h[0], ExternalInput: true},
		{Node: h[1], SideEffects: true},
		{Node: h[2], ExternalOutput: true},
	}

	flags := Cull(s, nodes, true)
	assert.True(t, flags[h[0]].Has(node.Enabled|node.IsExternalSourceNode))
	assert.True(t, flags[h[1]].Has(node.Enabled|node.CausesSideEffects|node.Observable))
	assert.True(t, flags[h[2]].Has(node.Enabled|node.HasExternalObserver))
}

func TestBuildPlan_StableOrder(t *testing.T) {
	// Wired "backwards" so slot order and dependency order disagree.
	s, h := newTopo(4)
	connect(t, s, h[3], h[1], 0, dataEdge)
	connect(t, s, h[1], h[0], 0, dataEdge)
	connect(t, s, h[2], h[0], 1, dataEdge)

	flags := Cull(s, infos(h), false)
	p1, err := BuildPlan(s, flags)
	require.NoError(t, err)
	p2, err := BuildPlan(s, flags)
	require.NoError(t, err)

	assert.Equal(t, []nodeid.Handle{h[2], h[3], h[1], h[0]}, planNodes(p1))
	assert.Equal(t, planNodes(p1), planNodes(p2))

	for p, task := range p1.Tasks {
		for _, d := range task.Deps {
			assert.Less(t, d, p, "deps precede their dependents")
		}
	}
}

func TestBuildPlan_FeedbackEdgesAreNotDependencies(t *testing.T) {
	s, h := newTopo(2)
	connect(t, s, h[0], h[1], 0, dataEdge)
	connect(t, s, h[1], h[0], 0, feedbackEdge)

	p, err := BuildPlan(s, Cull(s, infos(h), false))
	require.NoError(t, err)
	assert.Equal(t, []nodeid.Handle{h[0], h[1]}, planNodes(p))
	assert.Empty(t, p.Tasks[0].Deps)
}

func TestBuildPlan_Cycle(t *testing.T) {
	s, h := newTopo(3)
	connect(t, s, h[0], h[1], 0, dataEdge)
	connect(t, s, h[1], h[0], 0, dataEdge)

	_, err := BuildPlan(s, Cull(s, infos(h), false))
	require.ErrorIs(t, err, ErrCycle)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []nodeid.Handle{h[0], h[1]}, cycleErr.Nodes)
}

func TestBuildPlan_IslandsPartitionTasks(t *testing.T) {
	s, h := newTopo(5)
	connect(t, s, h[0], h[1], 0, dataEdge)
	connect(t, s, h[2], h[3], 0, dataEdge)
	RecomputeIslands(s)

	p, err := BuildPlan(s, Cull(s, infos(h), false))
	require.NoError(t, err)
	require.Len(t, p.Islands, 3, "two connected islands plus one orphan")

	seen := 0
	for _, island := range p.Islands {
		g := p.Tasks[island[0]].Group
		for i, ti := range island {
			assert.Equal(t, g, p.Tasks[ti].Group)
			if i > 0 {
				assert.Less(t, island[i-1], ti, "island-internal plan order")
			}
			seen++
		}
	}
	assert.Equal(t, p.Len(), seen)
}

func TestBuildPlan_CulledNodesListed(t *testing.T) {
	s, h := newTopo(3)
	connect(t, s, h[0], h[1], 0, dataEdge)

	p, err := BuildPlan(s, Cull(s, infos(h, h[1]), true))
	require.NoError(t, err)
	assert.Equal(t, []nodeid.Handle{h[0], h[1]}, planNodes(p))
	assert.Equal(t, []nodeid.Handle{h[2]}, p.Culled)
}

func TestWouldCycle(t *testing.T) {
	s, h := newTopo(3)
	connect(t, s, h[0], h[1], 0, dataEdge)
	connect(t, s, h[1], h[2], 0, dataEdge)

	assert.True(t, WouldCycle(s, h[2], h[0]))
	assert.False(t, WouldCycle(s, h[0], h[2]))
	assert.True(t, WouldCycle(s, h[1], h[1]), "a same-tick self edge is a cycle")

	_, err := s.Disconnect(ep(h[1], 0), ep(h[2], 0))
	require.NoError(t, err)
	connect(t, s, h[1], h[2], 0, feedbackEdge)
	assert.False(t, WouldCycle(s, h[2], h[0]), "feedback edges do not count")
}

func TestScheduler_IngestReleasesDeletedNodes(t *testing.T) {
	var released []string
	s, _ := newTopo(0)
	sched := New(s, func(_ context.Context, d graphdiff.Deleted) error {
		released = append(released, d.Type)
		if d.Type == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	changes := graphdiff.Changes{Deleted: []graphdiff.Deleted{
		{Node: nodeid.Handle{Index: 0, Version: 1, Graph: 1}, Type: "bad"},
		{Node: nodeid.Handle{Index: 1, Version: 1, Graph: 1}, Type: "good"},
	}}
	err := sched.Ingest(context.Background(), changes)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"bad", "good"}, released)
	assert.Equal(t, 2, sched.Stats().Deleted)
}

func TestScheduler_Prepare(t *testing.T) {
	s, h := newTopo(3)
	connect(t, s, h[0], h[1], 0, dataEdge)
	sched := New(s, nil)

	plan, err := sched.Prepare(context.Background(), infos(h, h[1]), true)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Len())

	stats := sched.Stats()
	assert.Equal(t, 2, stats.Enabled)
	assert.Equal(t, 1, stats.Culled)
	assert.Equal(t, 1, stats.Islands)
	assert.Equal(t, 1, stats.Settled)
	assert.NotEqual(t, topologystore.OrphanGroup, plan.Tasks[0].Group)
}
