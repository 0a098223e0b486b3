package hcl

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// evalContext is available to node arguments.
var evalContext = &hcl.EvalContext{
	Functions: map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"max":    stdlib.MaxFunc,
		"min":    stdlib.MinFunc,
		"format": stdlib.FormatFunc,
		"lower":  stdlib.LowerFunc,
		"upper":  stdlib.UpperFunc,
	},
}

// translate converts the decoded blocks of one file into a model.
func translate(file string, root *fileRoot) (*config.Model, error) {
	m := &config.Model{}
	if g := root.Graph; g != nil {
		m.Settings = config.Settings{
			Strategy: g.Strategy,
			Culling:  g.Culling,
			Ticks:    g.Ticks,
			Workers:  g.Workers,
		}
		if g.Interval != "" {
			d, err := time.ParseDuration(g.Interval)
			if err != nil {
				return nil, fmt.Errorf("graph interval: %w", err)
			}
			m.Settings.Interval = d
		}
	}

	for _, n := range root.Nodes {
		args, err := arguments(n.Arguments)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		m.Nodes = append(m.Nodes, &config.Node{
			Type:      n.Type,
			Name:      n.Name,
			Arguments: args,
			Arrays:    n.Arrays,
			Source:    file,
		})
	}

	for _, c := range root.Connections {
		src, dst, err := config.ParseEndpoints(c.From, c.To)
		if err != nil {
			return nil, err
		}
		m.Connections = append(m.Connections, &config.Connection{From: src, To: dst, Feedback: c.Feedback})
	}

	for _, o := range root.Observers {
		ref, err := nodeid.ParsePortRef(o.Port)
		if err != nil {
			return nil, fmt.Errorf("observe: %w", err)
		}
		m.Observers = append(m.Observers, &config.Observer{Port: ref, Publish: o.Publish})
	}
	return m, nil
}

// arguments evaluates every attribute of an arguments block.
func arguments(block *argsBlock) (map[string]cty.Value, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalContext)
		if diags.HasErrors() {
			return nil, fmt.Errorf("argument %q: %w", name, diags)
		}
		out[name] = val
	}
	return out, nil
}
