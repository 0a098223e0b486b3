package builder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/node"
)

// createNodes performs the first pass, creating every declared node in
// declaration order.
func createNodes(ctx context.Context, m *graph.Manager, model *config.Model, g *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, n := range model.Nodes {
		if _, dup := g.Nodes[n.Name]; dup {
			return fmt.Errorf("node %q (%s): declared twice", n.Name, n.Source)
		}
		h, err := m.CreateNode(n.Type, node.Args(n.Arguments))
		if err != nil {
			return fmt.Errorf("node %q (%s): %w", n.Name, n.Source, err)
		}
		logger.Debug("Created node.", "name", n.Name, "type", n.Type, "nodeID", h.String())
		g.Nodes[n.Name] = h
	}
	return nil
}

// sizeArrays performs the second pass. A port's size is the larger of its
// declared size and one past the highest connected index.
func sizeArrays(ctx context.Context, m *graph.Manager, model *config.Model, g *Graph) error {
	logger := ctxlog.FromContext(ctx)

	type portKey struct {
		node string
		port string
	}
	type want struct {
		size     int
		declared bool
	}
	sizes := make(map[portKey]want)
	for _, n := range model.Nodes {
		for port, size := range n.Arrays {
			sizes[portKey{n.Name, port}] = want{size: size, declared: true}
		}
	}
	for _, c := range model.Connections {
		if c.To.Index < 0 {
			continue
		}
		key := portKey{c.To.Node, c.To.Port}
		w := sizes[key]
		w.size = max(w.size, c.To.Index+1)
		sizes[key] = w
	}

	// Sorted for deterministic error reporting.
	keys := slices.SortedFunc(maps.Keys(sizes), func(a, b portKey) int {
		return cmp.Or(cmp.Compare(a.node, b.node), cmp.Compare(a.port, b.port))
	})
	for _, key := range keys {
		h, ok := g.Nodes[key.node]
		if !ok {
			return fmt.Errorf("%w %q in array size of port %q", ErrUnknownNode, key.node, key.port)
		}
		ep, err := m.Input(h, key.port, 0)
		if err != nil {
			return fmt.Errorf("node %q: %w", key.node, err)
		}
		w := sizes[key]
		err = m.SetPortArraySize(h, ep.Port, w.size)
		if errors.Is(err, graph.ErrNotArrayPort) && !w.declared {
			// Indexed reference to a scalar; Connect validates the index.
			continue
		}
		if err != nil {
			return fmt.Errorf("node %q: %w", key.node, err)
		}
		logger.Debug("Sized array port.", "node", key.node, "port", key.port, "size", w.size)
	}
	return nil
}
