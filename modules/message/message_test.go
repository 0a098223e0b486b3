package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
	"github.com/vk/tickflow/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func newGraph(t *testing.T) *graph.Manager {
	return testutil.NewGraph(t, []registry.Module{&Module{}})
}

func TestCollect_CountsPerTickAndTotal(t *testing.T) {
	m := newGraph(t)
	every2 := testutil.Node(t, m, "ticker", node.Args{"every": cty.NumberIntVal(2), "burst": cty.NumberIntVal(3)})
	each := testutil.Node(t, m, "ticker", nil)
	col := testutil.Node(t, m, "collect", nil)
	testutil.Connect(t, m, every2, "events", col, "events", 0)
	testutil.Connect(t, m, each, "events", col, "events", 0)
	count := testutil.Observe(t, m, col, "count")
	total := testutil.Observe(t, m, col, "total")
	last := testutil.Observe(t, m, col, "last")

	testutil.Run(t, m, 1)
	assert.Equal(t, 1.0, testutil.Float(t, m, count))
	assert.Equal(t, 1.0, testutil.Float(t, m, total))
	assert.Equal(t, 1.0, testutil.Float(t, m, last))

	testutil.Run(t, m, 1)
	assert.Equal(t, 4.0, testutil.Float(t, m, count))
	assert.Equal(t, 5.0, testutil.Float(t, m, total))
	assert.Equal(t, 2.0, testutil.Float(t, m, last))

	testutil.Run(t, m, 1)
	assert.Equal(t, 1.0, testutil.Float(t, m, count))
	assert.Equal(t, 6.0, testutil.Float(t, m, total))
}

func TestCollect_NoMessagesIsZero(t *testing.T) {
	m := newGraph(t)
	col := testutil.Node(t, m, "collect", nil)
	count := testutil.Observe(t, m, col, "count")
	testutil.Run(t, m, 2)
	assert.Equal(t, 0.0, testutil.Float(t, m, count))
}

func TestTicker_RejectsNonPositivePeriod(t *testing.T) {
	m := newGraph(t)
	_, err := m.CreateNode("ticker", node.Args{"every": cty.NumberIntVal(0)})
	require.ErrorContains(t, err, "must be positive")
}
