// Package tools adapts arbitrary request/response functions into the tool
// executor surface the session manager dispatches to. The registry owns
// no business logic; it resolves a tool by name and runs its Call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// Tool is one callable function exposed to the remote agent.
type Tool struct {
	Name        string
	Description string
	// Parameters describes the argument payload. Use ReflectParameters to
	// derive it from a struct type.
	Parameters *jsonschema.Schema
	// Call receives the raw JSON arguments and returns a textual outcome
	// the agent can speak about.
	Call func(ctx context.Context, arguments json.RawMessage) (string, error)
}

// ReflectParameters derives a JSON schema from an argument struct type.
func ReflectParameters(arguments any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(arguments)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	registry := &Registry{tools: map[string]Tool{}}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if tool.Call == nil {
		return fmt.Errorf("tool %q has no call function", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Tools returns the registered tools in unspecified order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// Execute resolves a tool by name and runs it. An unknown name is
// reported as an error so the agent can recover conversationally; it is
// never fatal to the session.
func (r *Registry) Execute(ctx context.Context, name string, arguments string) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return tool.Call(ctx, json.RawMessage(arguments))
}
