package config

import (
	"fmt"
	"time"

	"github.com/vk/tickflow/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of one graph
// description, possibly merged from several files.
type Model struct {
	Settings    Settings
	Nodes       []*Node
	Connections []*Connection
	Observers   []*Observer
}

// Settings are file-level run defaults. Zero values mean "not set"; the
// command line may override any of them.
type Settings struct {
	Strategy string
	Culling  *bool
	Ticks    int
	Workers  int
	Interval time.Duration
}

// Node is one node instance of a registered type.
type Node struct {
	Type      string
	Name      string
	Arguments map[string]cty.Value
	// Arrays sets the element count of array input ports by name.
	Arrays map[string]int
	// Source is the file the node was declared in.
	Source string
}

// Connection links an output to an input element.
type Connection struct {
	From     nodeid.PortRef
	To       nodeid.PortRef
	Feedback bool
}

// Observer attaches a graph value to an output.
type Observer struct {
	Port nodeid.PortRef
	// Publish forwards the value to the configured publisher each tick.
	Publish bool
}

// Merge appends the contents of other into m. Settings set in other win.
// Node names must stay unique across the merged model.
func (m *Model) Merge(other *Model) error {
	seen := make(map[string]string, len(m.Nodes))
	for _, n := range m.Nodes {
		seen[n.Name] = n.Source
	}
	for _, n := range other.Nodes {
		if src, dup := seen[n.Name]; dup {
			return fmt.Errorf("node %q declared twice (%s and %s)", n.Name, src, n.Source)
		}
		seen[n.Name] = n.Source
	}
	m.Nodes = append(m.Nodes, other.Nodes...)
	m.Connections = append(m.Connections, other.Connections...)
	m.Observers = append(m.Observers, other.Observers...)
	m.Settings.Override(other.Settings)
	return nil
}

// Override copies every field set in o into s.
func (s *Settings) Override(o Settings) {
	if o.Strategy != "" {
		s.Strategy = o.Strategy
	}
	if o.Culling != nil {
		s.Culling = o.Culling
	}
	if o.Ticks != 0 {
		s.Ticks = o.Ticks
	}
	if o.Workers != 0 {
		s.Workers = o.Workers
	}
	if o.Interval != 0 {
		s.Interval = o.Interval
	}
}

// ParseEndpoints parses the textual endpoints of a connection.
func ParseEndpoints(from, to string) (nodeid.PortRef, nodeid.PortRef, error) {
	src, err := nodeid.ParsePortRef(from)
	if err != nil {
		return nodeid.PortRef{}, nodeid.PortRef{}, fmt.Errorf("invalid source: %w", err)
	}
	if src.HasIndex() {
		return nodeid.PortRef{}, nodeid.PortRef{}, fmt.Errorf("invalid source %q: outputs carry no index", from)
	}
	dst, err := nodeid.ParsePortRef(to)
	if err != nil {
		return nodeid.PortRef{}, nodeid.PortRef{}, fmt.Errorf("invalid destination: %w", err)
	}
	return src, dst, nil
}
