package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/flowgrid/internal/board"
	"github.com/specialistvlad/flowgrid/internal/executor"
	"github.com/specialistvlad/flowgrid/internal/graph"
)

// Module is the interface that all catalog modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered node behaviors for a single application
// instance.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]executor.Behavior
	templates map[string]*board.Node
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		behaviors: make(map[string]executor.Behavior),
		templates: make(map[string]*board.Node),
	}
}

// Load registers every module.
func (r *Registry) Load(modules ...Module) *Registry {
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds a behavior under the type name of its declaration.
func (r *Registry) Register(b executor.Behavior) {
	decl := b.Declare()
	if decl == nil || decl.Type == "" {
		panic(fmt.Sprintf("behavior %T declares no node type", b))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.behaviors[decl.Type]; exists {
		panic(fmt.Sprintf("node type '%s' already registered", decl.Type))
	}
	slog.Debug("Registering node type.", "type", decl.Type)
	r.behaviors[decl.Type] = b
	r.templates[decl.Type] = decl
}

// Resolve implements graph.Resolver.
func (r *Registry) Resolve(typeName string) (graph.Behavior, bool) {
	b, ok := r.Behavior(typeName)
	if !ok {
		return nil, false
	}
	return b, true
}

// Behavior returns the behavior registered for typeName.
func (r *Registry) Behavior(typeName string) (executor.Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.behaviors[typeName]
	return b, ok
}

// NodeTemplate implements board.Catalog. The returned node is a copy.
func (r *Registry) NodeTemplate(typeName string) (*board.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[typeName]
	if !ok {
		return nil, false
	}
	return tmpl.Clone(), true
}

// Instantiate returns a new board node of the given type with fresh ids.
func (r *Registry) Instantiate(typeName string) (*board.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownNodeType, typeName)
	}
	return tmpl.Instantiate(), nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.behaviors))
	for name := range r.behaviors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
