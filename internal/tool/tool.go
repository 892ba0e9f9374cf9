// Package tool holds the registry of callable tools exposed to handlers.
package tool

import (
	"context"
	"fmt"

	"github.com/nidhogg/noema/internal/provider"
)

// Handler executes a tool call and returns the result as a string.
type Handler func(ctx context.Context, args string) (string, error)

// Error wraps a tool failure with the tool's name so callers can count and
// report per-tool errors.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry holds available tools and their handlers.
type Registry struct {
	defs     []provider.Tool
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool definition and its handler. A repeated name replaces
// the previous handler.
func (r *Registry) Register(def provider.Tool, handler Handler) {
	if _, exists := r.handlers[def.Function.Name]; !exists {
		r.defs = append(r.defs, def)
	}
	r.handlers[def.Function.Name] = handler
}

// Definitions returns all tool definitions for the model request.
func (r *Registry) Definitions() []provider.Tool {
	return r.defs
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Invoke runs a tool by name with the given JSON arguments. Failures come
// back as *Error carrying the tool name.
func (r *Registry) Invoke(ctx context.Context, name, args string) (string, error) {
	h, ok := r.handlers[name]
	if !ok {
		return "", &Error{Name: name, Err: fmt.Errorf("not registered")}
	}
	result, err := h(ctx, args)
	if err != nil {
		return "", &Error{Name: name, Err: err}
	}
	return result, nil
}
