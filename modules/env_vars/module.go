// Package env_vars exposes process environment variables as graph sources.
package env_vars

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Lookup replaces os.LookupEnv, for tests.
	Lookup func(key string) (string, bool)
	// Environ replaces os.Environ, for tests.
	Environ func() []string
}

// Register registers the "env" and "env_vars" node types.
func (m *Module) Register(r *registry.Registry) {
	lookup, environ := m.Lookup, m.Environ
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if environ == nil {
		environ = os.Environ
	}

	r.Register(&node.Descriptor{
		Type:    "env",
		Outputs: []node.Port{{Name: "value", Category: node.Data}},
		New: func(args node.Args) (node.Kernel, error) {
			return newEnv(args, lookup)
		},
	})
	r.Register(&node.Descriptor{
		Type:    "env_vars",
		Outputs: []node.Port{{Name: "all", Category: node.Data}},
		New: func(node.Args) (node.Kernel, error) {
			return &envVars{environ: environ}, nil
		},
	})
}

// env reads one variable once, when the node is initialized.
type env struct {
	name   string
	def    string
	number bool
	lookup func(string) (string, bool)
	value  any
}

func newEnv(args node.Args, lookup func(string) (string, bool)) (*env, error) {
	name, err := args.String("name", "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("argument \"name\" is required")
	}
	def, err := args.String("default", "")
	if err != nil {
		return nil, err
	}
	number, err := args.Bool("number", false)
	if err != nil {
		return nil, err
	}
	return &env{name: name, def: def, number: number, lookup: lookup}, nil
}

// Init implements node.Initializer.
func (e *env) Init(ic *node.InitContext) error {
	raw, ok := e.lookup(e.name)
	if !ok {
		raw = e.def
		ic.Logger.Debug("Environment variable not set, using default.", "name", e.name)
	}
	if !e.number {
		e.value = raw
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", e.name, err)
	}
	e.value = f
	return nil
}

// Execute implements node.Kernel.
func (e *env) Execute(ec *node.ExecContext) error {
	ec.SetOutput(0, e.value)
	return nil
}

type envVars struct {
	environ func() []string
}

// Execute implements node.Kernel.
func (e *envVars) Execute(ec *node.ExecContext) error {
	all := make(map[string]any)
	for _, kv := range e.environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			all[k] = v
		}
	}
	ec.SetOutput(0, all)
	return nil
}
