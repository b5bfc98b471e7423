package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrDuplicateTool  = errors.New("duplicate tool name")
	ErrInvalidTool    = errors.New("invalid tool")
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// Handler performs a tool's work. A returned error is a domain failure and
// is reported to the client inside a successful result, never as a
// protocol error.
type Handler func(ctx context.Context, args *Arguments) (*Result, error)

// Entry is one registered tool.
type Entry struct {
	Tool    Tool
	Handler Handler
}

// Registry holds the tools a server exposes, in registration order.
//
// It is filled during startup and frozen when a Dispatcher is built from it.
// After that it is only read, so lookups take no lock.
type Registry struct {
	tools  *orderedmap.OrderedMap[string, *Entry]
	frozen atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: orderedmap.New[string, *Entry](),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool Tool, handler Handler) error {
	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, tool.Name)
	}
	if err := tool.validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrInvalidTool, tool.Name)
	}
	if _, ok := r.tools.Get(tool.Name); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	r.tools.Set(tool.Name, &Entry{Tool: tool, Handler: handler})
	return nil
}

// MustRegister is Register for static catalogs built at init time.
func (r *Registry) MustRegister(tool Tool, handler Handler) {
	if err := r.Register(tool, handler); err != nil {
		panic(err)
	}
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// List returns every tool in registration order.
func (r *Registry) List() []Tool {
	list := make([]Tool, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, pair.Value.Tool)
	}
	return list
}

// Resolve looks a tool up by name.
func (r *Registry) Resolve(name string) (*Entry, bool) {
	return r.tools.Get(name)
}

func (r *Registry) Len() int {
	return r.tools.Len()
}
