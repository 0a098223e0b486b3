package builder

import (
	"context"

	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/nodeid"
)

// Build instantiates model on m.
func Build(ctx context.Context, m *graph.Manager, model *config.Model) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")
	g := &Graph{Nodes: make(map[string]nodeid.Handle, len(model.Nodes))}

	if err := createNodes(ctx, m, model, g); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(g.Nodes))

	if err := sizeArrays(ctx, m, model, g); err != nil {
		return nil, err
	}
	logger.Debug("Build: Array sizing complete.")

	if err := linkNodes(ctx, m, model, g); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node linking complete.", "connection_count", m.ConnectionCount())

	if err := observe(ctx, m, model, g); err != nil {
		return nil, err
	}
	logger.Info("Build: Graph construction successful.", "nodes", len(g.Nodes), "observers", len(g.Values))
	return g, nil
}
