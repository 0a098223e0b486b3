package scheduler

import (
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

// NodeInfo is what culling needs to know about a node beyond topology.
type NodeInfo struct {
	Node nodeid.Handle
	// Observers counts graph values attached to the node's outputs.
	Observers int
	// ExternalOutput is set when an output is bound to external storage.
	ExternalOutput bool
	// ExternalInput is set when an input is bound to external storage.
	ExternalInput bool
	SideEffects   bool
}

func (n NodeInfo) observed() bool {
	return n.Observers > 0 || n.ExternalOutput || n.SideEffects
}

// Cull computes the execution flags of every node for this tick.
//
// With culling disabled every node is enabled. Otherwise a node is enabled
// when it is observed, or when any edge path, feedback edges included, leads
// from it to an observed node.
func Cull(topo topologystore.Store, nodes []NodeInfo, culling bool) map[nodeid.Handle]node.ExecutionFlags {
	flags := make(map[nodeid.Handle]node.ExecutionFlags, len(nodes))
	var queue []nodeid.Handle

	for _, n := range nodes {
		var f node.ExecutionFlags
		if n.Observers > 0 || n.ExternalOutput {
			f |= node.HasExternalObserver
		}
		if n.SideEffects {
			f |= node.CausesSideEffects
		}
		if n.ExternalInput {
			f |= node.IsExternalSourceNode
		}
		if n.observed() {
			f |= node.Observable
		}
		if !culling || n.observed() {
			f |= node.Enabled | node.WillRun
			if culling {
				queue = append(queue, n.Node)
			}
		}
		flags[n.Node] = f
	}
	if !culling {
		return flags
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for c := range topo.Inputs(v, topologystore.AnyPort) {
			src := c.Source.Node
			f, known := flags[src]
			if !known || f.Has(node.Enabled) {
				continue
			}
			flags[src] = f | node.Enabled | node.WillRun
			queue = append(queue, src)
		}
	}
	return flags
}
