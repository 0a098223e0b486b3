package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/node"
)

// ErrUnknownType is returned by Lookup for unregistered node types.
var ErrUnknownType = errors.New("unknown node type")

// Module is the interface that all built-in modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the node descriptors of a single application instance.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*node.Descriptor
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{types: make(map[string]*node.Descriptor)}
}

// Register adds a node type. It panics on an invalid or duplicate descriptor.
func (r *Registry) Register(desc *node.Descriptor) {
	if err := desc.Validate(); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[desc.Type]; exists {
		panic(fmt.Sprintf("node type '%s' already registered", desc.Type))
	}
	r.types[desc.Type] = desc
}

// RegisterModules lets every module add its node types.
func (r *Registry) RegisterModules(ctx context.Context, modules ...Module) {
	logger := ctxlog.FromContext(ctx)
	for _, m := range modules {
		before := r.Len()
		m.Register(r)
		logger.Debug("Registered module.", "module", fmt.Sprintf("%T", m), "types", r.Len()-before)
	}
}

// Lookup returns the descriptor registered under typ.
func (r *Registry) Lookup(typ string) (*node.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.types[typ]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownType, typ)
	}
	return desc, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
