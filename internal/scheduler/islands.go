package scheduler

import (
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

// RecomputeIslands settles every changed group into exact connected
// components and returns the ids of the groups it settled, ascending.
//
// Within one changed group the component containing the lowest-index member
// with at least one edge keeps the group id; every other component with edges
// gets a fresh id, and edge-less members return to the orphan group. Groups
// that were not flagged are never touched.
func RecomputeIslands(topo topologystore.Store) []topologystore.GroupID {
	var settled []topologystore.GroupID
	for _, g := range topo.ChangedGroups() {
		settled = append(settled, splitGroup(topo, g)...)
		topo.ClearChanged(g)
	}
	return settled
}

func splitGroup(topo topologystore.Store, g topologystore.GroupID) []topologystore.GroupID {
	members := topo.Members(g)
	visited := make(map[nodeid.Handle]bool, len(members))
	settled := []topologystore.GroupID{g}
	kept := false

	for _, m := range members {
		if visited[m] {
			continue
		}
		component := collectComponent(topo, m, visited)
		if len(component) == 1 && !hasEdges(topo, m) {
			_ = topo.AssignGroup(m, topologystore.OrphanGroup)
			continue
		}
		if !kept {
			kept = true
			continue
		}
		fresh := topo.AllocateGroup()
		for _, v := range component {
			_ = topo.AssignGroup(v, fresh)
		}
		settled = append(settled, fresh)
	}
	return settled
}

// collectComponent walks edges of both directions breadth-first from start.
func collectComponent(topo topologystore.Store, start nodeid.Handle, visited map[nodeid.Handle]bool) []nodeid.Handle {
	visited[start] = true
	queue := []nodeid.Handle{start}
	var component []nodeid.Handle
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		component = append(component, v)

		visit := func(n nodeid.Handle) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
		for c := range topo.Outputs(v, topologystore.AnyPort) {
			visit(c.Dest.Node)
		}
		for c := range topo.Inputs(v, topologystore.AnyPort) {
			visit(c.Source.Node)
		}
	}
	return component
}

func hasEdges(topo topologystore.Store, v nodeid.Handle) bool {
	for range topo.Inputs(v, topologystore.AnyPort) {
		return true
	}
	for range topo.Outputs(v, topologystore.AnyPort) {
		return true
	}
	return false
}
