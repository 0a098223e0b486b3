package builder

import (
	"context"
	"fmt"

	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/graph"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

// linkNodes performs the third pass, adding every declared connection.
func linkNodes(ctx context.Context, m *graph.Manager, model *config.Model, g *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, c := range model.Connections {
		src, err := g.output(m, c.From)
		if err != nil {
			return fmt.Errorf("connection %s -> %s: %w", c.From, c.To, err)
		}
		dst, err := g.input(m, c.To)
		if err != nil {
			return fmt.Errorf("connection %s -> %s: %w", c.From, c.To, err)
		}
		if c.Feedback {
			_, err = m.ConnectFeedback(src, dst)
		} else {
			_, err = m.Connect(src, dst)
		}
		if err != nil {
			return fmt.Errorf("connection %s -> %s: %w", c.From, c.To, err)
		}
		logger.Debug("Linked.", "from", c.From.String(), "to", c.To.String(), "feedback", c.Feedback)
	}
	return nil
}

// observe performs the last pass, creating a graph value per observer.
func observe(ctx context.Context, m *graph.Manager, model *config.Model, g *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, o := range model.Observers {
		src, err := g.output(m, o.Port)
		if err != nil {
			return fmt.Errorf("observer %s: %w", o.Port, err)
		}
		v, err := m.CreateValue(src)
		if err != nil {
			return fmt.Errorf("observer %s: %w", o.Port, err)
		}
		g.Values = append(g.Values, Observed{Name: o.Port.String(), Value: v, Publish: o.Publish})
		logger.Debug("Observing.", "port", o.Port.String(), "publish", o.Publish)
	}
	return nil
}

func (g *Graph) handle(name string) (nodeid.Handle, error) {
	h, ok := g.Nodes[name]
	if !ok {
		return nodeid.Handle{}, fmt.Errorf("%w %q", ErrUnknownNode, name)
	}
	return h, nil
}

func (g *Graph) output(m *graph.Manager, ref nodeid.PortRef) (topologystore.Endpoint, error) {
	if ref.HasIndex() {
		return topologystore.Endpoint{}, fmt.Errorf("output %s cannot be indexed", ref)
	}
	h, err := g.handle(ref.Node)
	if err != nil {
		return topologystore.Endpoint{}, err
	}
	return m.Output(h, ref.Port)
}

func (g *Graph) input(m *graph.Manager, ref nodeid.PortRef) (topologystore.Endpoint, error) {
	h, err := g.handle(ref.Node)
	if err != nil {
		return topologystore.Endpoint{}, err
	}
	return m.Input(h, ref.Port, max(ref.Index, 0))
}
