package builder

import (
	"errors"

	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/nodeid"
)

// ErrUnknownNode is returned when a connection or observer names a node that
// was never declared.
var ErrUnknownNode = errors.New("unknown node")

// Observed is a graph value created for an `observe` entry.
type Observed struct {
	// Name is the canonical port reference, e.g. "sum.out".
	Name    string
	Value   graph.Value
	Publish bool
}

// Graph is the result of a build: declared names mapped to live handles.
type Graph struct {
	Nodes  map[string]nodeid.Handle
	Values []Observed
}

// Node returns the handle of a declared node.
func (g *Graph) Node(name string) (nodeid.Handle, bool) {
	h, ok := g.Nodes[name]
	return h, ok
}
