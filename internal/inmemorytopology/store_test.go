package inmemorytopology

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

var (
	dataFlags = node.EdgeFlags(node.Data, node.Data, false)
	msgFlags  = node.EdgeFlags(node.Message, node.Message, false)
)

func ep(h nodeid.Handle, port int) topologystore.Endpoint {
	return topologystore.Endpoint{Node: h, Port: node.PortID(port), Index: -1}
}

func newStore() *Store {
	return New(nodeid.NextGraphID())
}

func TestConnect_RejectsDuplicatesAndSecondWriter(t *testing.T) {
	s := newStore()
	a, b, c := s.CreateVertex(), s.CreateVertex(), s.CreateVertex()

	_, err := s.Connect(ep(a, 0), ep(c, 0), dataFlags)
	require.NoError(t, err)

	_, err = s.Connect(ep(a, 0), ep(c, 0), dataFlags)
	assert.ErrorIs(t, err, topologystore.ErrDuplicateConnection)

	_, err = s.Connect(ep(b, 0), ep(c, 0), dataFlags)
	assert.ErrorIs(t, err, topologystore.ErrPortAlreadyConnected)

	_, err = s.Connect(ep(b, 0), ep(c, 1), dataFlags)
	assert.NoError(t, err, "a different input port is free")
}

func TestConnect_MessagePortsAdmitFanIn(t *testing.T) {
	s := newStore()
	a, b, c := s.CreateVertex(), s.CreateVertex(), s.CreateVertex()

	_, err := s.Connect(ep(a, 0), ep(c, 0), msgFlags)
	require.NoError(t, err)
	_, err = s.Connect(ep(b, 0), ep(c, 0), msgFlags)
	require.NoError(t, err)

	assert.Equal(t, 2, s.ConnectionCount())
}

func TestConnect_StaleHandleRejected(t *testing.T) {
	s := newStore()
	a, b := s.CreateVertex(), s.CreateVertex()
	require.NoError(t, s.VertexDeleted(b))
	b2 := s.CreateVertex()
	assert.Equal(t, b.Index, b2.Index, "slot is recycled")

	_, err := s.Connect(ep(a, 0), ep(b, 0), dataFlags)
	assert.ErrorIs(t, err, nodeid.ErrInvalidHandle)

	_, err = s.Connect(ep(a, 0), ep(b2, 0), dataFlags)
	assert.NoError(t, err)
}

func TestConnect_ForeignHandleRejected(t *testing.T) {
	s1, s2 := newStore(), newStore()
	a := s1.CreateVertex()
	b := s2.CreateVertex()

	_, err := s1.Connect(ep(a, 0), ep(b, 0), dataFlags)
	assert.ErrorIs(t, err, nodeid.ErrForeignHandle)
}

func TestDisconnect_MissingEdgeIsError(t *testing.T) {
	s := newStore()
	a, b := s.CreateVertex(), s.CreateVertex()

	_, err := s.Disconnect(ep(a, 0), ep(b, 0))
	assert.ErrorIs(t, err, topologystore.ErrConnectionNotFound)

	var topoErr *topologystore.Error
	require.ErrorAs(t, err, &topoErr)
	assert.Equal(t, "Disconnect", topoErr.Op)
}

func TestDisconnect_FreesExclusiveDestination(t *testing.T) {
	s := newStore()
	a, b, c := s.CreateVertex(), s.CreateVertex(), s.CreateVertex()

	_, err := s.Connect(ep(a, 0), ep(c, 0), dataFlags)
	require.NoError(t, err)
	_, err = s.Disconnect(ep(a, 0), ep(c, 0))
	require.NoError(t, err)

	_, err = s.Connect(ep(b, 0), ep(c, 0), dataFlags)
	assert.NoError(t, err)
}

func TestInputs_NewestFirstAndPortFilter(t *testing.T) {
	s := newStore()
	a, b, c, d := s.CreateVertex(), s.CreateVertex(), s.CreateVertex(), s.CreateVertex()

	_, err := s.Connect(ep(a, 0), ep(d, 0), msgFlags)
	require.NoError(t, err)
	_, err = s.Connect(ep(b, 0), ep(d, 1), msgFlags)
	require.NoError(t, err)
	_, err = s.Connect(ep(c, 0), ep(d, 0), msgFlags)
	require.NoError(t, err)

	var sources []nodeid.Handle
	for conn := range s.Inputs(d, topologystore.AnyPort) {
		sources = append(sources, conn.Source.Node)
	}
	assert.Equal(t, []nodeid.Handle{c, b, a}, sources)

	sources = sources[:0]
	for conn := range s.Inputs(d, 0) {
		sources = append(sources, conn.Source.Node)
	}
	assert.Equal(t, []nodeid.Handle{c, a}, sources)

	outs := slices.Collect(s.Outputs(a, topologystore.AnyPort))
	require.Len(t, outs, 1)
	assert.Equal(t, d, outs[0].Dest.Node)
}

func TestInputs_EarlyBreakAndRemovalDuringIteration(t *testing.T) {
	s := newStore()
	a, b, c := s.CreateVertex(), s.CreateVertex(), s.CreateVertex()
	_, err := s.Connect(ep(a, 0), ep(c, 0), msgFlags)
	require.NoError(t, err)
	_, err = s.Connect(ep(b, 0), ep(c, 0), msgFlags)
	require.NoError(t, err)

	count := 0
	for range s.Inputs(c, topologystore.AnyPort) {
		count++
		break
	}
	assert.Equal(t, 1, count)

	// Removing the edge being visited must not derail iteration.
	var seen []nodeid.Handle
	for conn := range s.Inputs(c, topologystore.AnyPort) {
		seen = append(seen, conn.Source.Node)
		_, err := s.Disconnect(conn.Source, conn.Dest)
		require.NoError(t, err)
	}
	assert.Equal(t, []nodeid.Handle{b, a}, seen)
	assert.Zero(t, s.ConnectionCount())
}

func TestSelfLoop(t *testing.T) {
	s := newStore()
	a := s.CreateVertex()

	_, err := s.Connect(ep(a, 0), ep(a, 0), node.EdgeFlags(node.Data, node.Data, true))
	require.NoError(t, err)

	g, err := s.Group(a)
	require.NoError(t, err)
	assert.NotEqual(t, topologystore.OrphanGroup, g)
	assert.Len(t, slices.Collect(s.Inputs(a, topologystore.AnyPort)), 1)
	assert.Len(t, slices.Collect(s.Outputs(a, topologystore.AnyPort)), 1)

	removed, err := s.DisconnectAll(a)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	assert.NoError(t, s.VertexDeleted(a))
}

func TestGroups_MergeSmallerIntoLarger(t *testing.T) {
	s := newStore()
	a, b, c, d, e := s.CreateVertex(), s.CreateVertex(), s.CreateVertex(), s.CreateVertex(), s.CreateVertex()

	_, err := s.Connect(ep(a, 0), ep(b, 0), dataFlags)
	require.NoError(t, err)
	_, err = s.Connect(ep(b, 0), ep(c, 0), dataFlags)
	require.NoError(t, err)
	big, _ := s.Group(a)

	_, err = s.Connect(ep(d, 0), ep(e, 0), dataFlags)
	require.NoError(t, err)
	small, _ := s.Group(d)
	require.NotEqual(t, big, small)

	_, err = s.Connect(ep(c, 0), ep(d, 1), dataFlags)
	require.NoError(t, err)

	for _, v := range []nodeid.Handle{a, b, c, d, e} {
		g, err := s.Group(v)
		require.NoError(t, err)
		assert.Equal(t, big, g)
	}
	assert.Equal(t, []topologystore.GroupID{big}, s.Groups())
	assert.Equal(t, []nodeid.Handle{a, b, c, d, e}, s.Members(big))
	assert.True(t, s.IsChanged(big))
}

func TestDisconnect_FlagsWithoutSplitting(t *testing.T) {
	s := newStore()
	a, b := s.CreateVertex(), s.CreateVertex()
	_, err := s.Connect(ep(a, 0), ep(b, 0), dataFlags)
	require.NoError(t, err)
	g, _ := s.Group(a)
	s.ClearChanged(g)
	require.Empty(t, s.ChangedGroups())

	_, err = s.Disconnect(ep(a, 0), ep(b, 0))
	require.NoError(t, err)

	ga, _ := s.Group(a)
	gb, _ := s.Group(b)
	assert.Equal(t, g, ga, "groups are only split by the scheduler")
	assert.Equal(t, g, gb)
	assert.Equal(t, []topologystore.GroupID{g}, s.ChangedGroups())
}

func TestAssignGroup(t *testing.T) {
	s := newStore()
	a, b := s.CreateVertex(), s.CreateVertex()
	_, err := s.Connect(ep(a, 0), ep(b, 0), dataFlags)
	require.NoError(t, err)
	old, _ := s.Group(a)

	fresh := s.AllocateGroup()
	assert.False(t, s.IsChanged(fresh))
	require.NoError(t, s.AssignGroup(b, fresh))
	require.NoError(t, s.AssignGroup(a, topologystore.OrphanGroup))

	assert.Empty(t, s.Members(old), "emptied group is forgotten")
	assert.Equal(t, []nodeid.Handle{b}, s.Members(fresh))
	assert.ErrorIs(t, s.AssignGroup(a, 999), topologystore.ErrGroupInvalid)
}

func TestVertexDeleted_RequiresNoConnections(t *testing.T) {
	s := newStore()
	a, b := s.CreateVertex(), s.CreateVertex()
	_, err := s.Connect(ep(a, 0), ep(b, 0), dataFlags)
	require.NoError(t, err)

	assert.ErrorIs(t, s.VertexDeleted(a), topologystore.ErrVertexHasConnections)

	removed, err := s.DisconnectAll(a)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	require.NoError(t, s.VertexDeleted(a))
	assert.False(t, s.VertexExists(a))
	assert.Equal(t, 1, s.VertexCount())
}

func TestRevision_AdvancesOnMutation(t *testing.T) {
	s := newStore()
	r0 := s.Revision()
	a, b := s.CreateVertex(), s.CreateVertex()
	r1 := s.Revision()
	assert.Greater(t, r1, r0)

	_, err := s.Connect(ep(a, 0), ep(b, 0), dataFlags)
	require.NoError(t, err)
	assert.Greater(t, s.Revision(), r1)

	r2 := s.Revision()
	_ = s.ConnectionExists(ep(a, 0), ep(b, 0))
	assert.Equal(t, r2, s.Revision(), "reads do not bump the revision")
}

// TestConnectionExistsProperty checks that after any sequence of connect and
// disconnect calls the store agrees with a plain set model, and that connected
// vertices always share a group.
func TestConnectionExistsProperty(t *testing.T) {
	const vertices = 4

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	type modelKey struct{ src, dst, port int }

	properties.Property("connection_exists matches the net effect of edits", prop.ForAll(
		func(ops []int) bool {
			s := newStore()
			hs := make([]nodeid.Handle, vertices)
			for i := range hs {
				hs[i] = s.CreateVertex()
			}
			model := make(map[modelKey]bool)

			for _, op := range ops {
				connect := op%2 == 0
				op /= 2
				port := op % 2
				op /= 2
				dst := op % vertices
				src := (op / vertices) % vertices
				k := modelKey{src, dst, port}

				if connect {
					_, err := s.Connect(ep(hs[src], port), ep(hs[dst], port), msgFlags)
					if model[k] != (err != nil) {
						return false
					}
					model[k] = true
				} else {
					_, err := s.Disconnect(ep(hs[src], port), ep(hs[dst], port))
					if model[k] != (err == nil) {
						return false
					}
					delete(model, k)
				}
			}

			count := 0
			for src := range vertices {
				for dst := range vertices {
					for port := range 2 {
						k := modelKey{src, dst, port}
						if s.ConnectionExists(ep(hs[src], port), ep(hs[dst], port)) != model[k] {
							return false
						}
						if model[k] {
							count++
							gs, _ := s.Group(hs[src])
							gd, _ := s.Group(hs[dst])
							if gs != gd || gs == topologystore.OrphanGroup {
								return false
							}
						}
					}
				}
			}
			return count == s.ConnectionCount()
		},
		gen.SliceOf(gen.IntRange(0, vertices*vertices*4-1)),
	))

	properties.TestingRun(t)
}
