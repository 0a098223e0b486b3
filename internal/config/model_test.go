package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/nodeid"
)

func TestModel_Merge(t *testing.T) {
	off := false
	m := &Model{
		Settings: Settings{Strategy: "islands", Ticks: 5},
		Nodes:    []*Node{{Type: "tick", Name: "a", Source: "a.hcl"}},
	}
	err := m.Merge(&Model{
		Settings:  Settings{Ticks: 9, Culling: &off, Interval: time.Second},
		Nodes:     []*Node{{Type: "inc", Name: "b", Source: "b.hcl"}},
		Observers: []*Observer{{Port: nodeid.PortRef{Node: "b", Port: "out", Index: -1}}},
	})
	require.NoError(t, err)

	assert.Len(t, m.Nodes, 2)
	assert.Len(t, m.Observers, 1)
	assert.Equal(t, "islands", m.Settings.Strategy, "unset fields keep the earlier value")
	assert.Equal(t, 9, m.Settings.Ticks)
	assert.Equal(t, &off, m.Settings.Culling)
	assert.Equal(t, time.Second, m.Settings.Interval)

	err = m.Merge(&Model{Nodes: []*Node{{Type: "tick", Name: "a", Source: "c.hcl"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.hcl and c.hcl")
}

func TestParseEndpoints(t *testing.T) {
	src, dst, err := ParseEndpoints("k.out", "sum.terms[2]")
	require.NoError(t, err)
	assert.Equal(t, nodeid.PortRef{Node: "k", Port: "out", Index: -1}, src)
	assert.Equal(t, nodeid.PortRef{Node: "sum", Port: "terms", Index: 2}, dst)

	for _, tc := range [][2]string{
		{"k", "sum.in"},
		{"k.out[1]", "sum.in"},
		{"k.out", "sum"},
	} {
		_, _, err := ParseEndpoints(tc[0], tc[1])
		assert.Error(t, err, "%s -> %s", tc[0], tc[1])
	}
}
