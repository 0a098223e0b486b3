// Package yamlconfig provides a YAML implementation of config.Loader, an
// alternative to the HCL format with the same model.
//
// Example:
//
//	graph:
//	  strategy: parallel
//	  ticks: 100
//	nodes:
//	  - {name: k, type: constant, arguments: {value: 3}}
//	  - {name: sum, type: add, arrays: {terms: 2}}
//	connections:
//	  - {from: k.out, to: "sum.terms[1]"}
//	observers:
//	  - port: sum.out
package yamlconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/fsutil"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

type document struct {
	Graph       *graphDoc       `yaml:"graph"`
	Nodes       []nodeDoc       `yaml:"nodes"`
	Connections []connectionDoc `yaml:"connections"`
	Observers   []observerDoc   `yaml:"observers"`
}

type graphDoc struct {
	Strategy string `yaml:"strategy"`
	Culling  *bool  `yaml:"culling"`
	Ticks    int    `yaml:"ticks"`
	Workers  int    `yaml:"workers"`
	Interval string `yaml:"interval"`
}

type nodeDoc struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	Arguments map[string]any `yaml:"arguments"`
	Arrays    map[string]int `yaml:"arrays"`
}

type connectionDoc struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Feedback bool   `yaml:"feedback"`
}

type observerDoc struct {
	Port    string `yaml:"port"`
	Publish bool   `yaml:"publish"`
}

// Loader reads .yaml and .yml graph descriptions.
type Loader struct{}

// NewLoader creates a new YAML graph description loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// Load implements config.Loader. Unknown keys are rejected.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := fsutil.FindFiles(paths, l.Extensions()...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %v", config.ErrNoFiles, paths)
	}
	logger.Debug("Discovered YAML files.", "count", len(files))

	model := &config.Model{}
	for _, file := range files {
		part, err := loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", file, err)
		}
		if err := model.Merge(part); err != nil {
			return nil, err
		}
	}
	logger.Debug("YAML loading complete.", "nodes", len(model.Nodes), "connections", len(model.Connections), "observers", len(model.Observers))
	return model, nil
}

func loadFile(path string) (*config.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc document
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return translate(path, &doc)
}

func translate(file string, doc *document) (*config.Model, error) {
	m := &config.Model{}
	if g := doc.Graph; g != nil {
		m.Settings = config.Settings{Strategy: g.Strategy, Culling: g.Culling, Ticks: g.Ticks, Workers: g.Workers}
		if g.Interval != "" {
			d, err := time.ParseDuration(g.Interval)
			if err != nil {
				return nil, fmt.Errorf("graph interval: %w", err)
			}
			m.Settings.Interval = d
		}
	}
	for _, n := range doc.Nodes {
		if n.Name == "" || n.Type == "" {
			return nil, fmt.Errorf("node entries need both name and type (got name %q, type %q)", n.Name, n.Type)
		}
		args, err := arguments(n.Arguments)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		m.Nodes = append(m.Nodes, &config.Node{Type: n.Type, Name: n.Name, Arguments: args, Arrays: n.Arrays, Source: file})
	}
	for _, c := range doc.Connections {
		src, dst, err := config.ParseEndpoints(c.From, c.To)
		if err != nil {
			return nil, err
		}
		m.Connections = append(m.Connections, &config.Connection{From: src, To: dst, Feedback: c.Feedback})
	}
	for _, o := range doc.Observers {
		ref, err := nodeid.ParsePortRef(o.Port)
		if err != nil {
			return nil, fmt.Errorf("observer: %w", err)
		}
		m.Observers = append(m.Observers, &config.Observer{Port: ref, Publish: o.Publish})
	}
	return m, nil
}

// arguments converts decoded YAML scalars, lists and maps into cty values
// by way of their JSON encoding.
func arguments(raw map[string]any) (map[string]cty.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]cty.Value, len(raw))
	for name, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		ty, err := ctyjson.ImpliedType(b)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		val, err := ctyjson.Unmarshal(b, ty)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}
