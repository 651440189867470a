// Package registry provides uniform dispatch to injected domain operations.
// Tools return typed results and never throw across the boundary: a panic
// inside a tool is recovered into an internal-error result. Input may be
// validated against a JSON Schema compiled at registration, so malformed
// parameters never reach tool code.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/solari-labs/concierge/pkg/fault"
)

// Call carries the execution context (actor, tenant, channel) and the tool
// input, both as plain maps at this boundary.
type Call struct {
	Context map[string]any
	Input   map[string]any
}

// Result is the only thing a tool returns. Exactly one of Data or Err is
// meaningful, keyed by OK.
type Result struct {
	OK   bool
	Data map[string]any
	Err  *fault.Fault
}

// Ok builds a success result.
func Ok(data map[string]any) Result {
	return Result{OK: true, Data: data}
}

// Fail builds a failure result.
func Fail(code fault.Code, message string) Result {
	return Result{Err: fault.New(code, message)}
}

// ToolFunc is one injected domain operation.
type ToolFunc func(ctx context.Context, call Call) Result

// Registry maps tool names to functions and optional input schemas.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]ToolFunc
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:   make(map[string]ToolFunc),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  slog.Default(),
	}
}

// Register adds a tool. A non-empty schemaJSON is compiled as JSON Schema
// 2020-12 and validated against every call's input before dispatch.
func (r *Registry) Register(name string, fn ToolFunc, schemaJSON string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("registry: tool %q has nil function", name)
	}
	if schemaJSON != "" {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://concierge.schemas.local/tools/%s.schema.json", name)
		if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
			return fmt.Errorf("registry: tool %q schema load: %w", name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return fmt.Errorf("registry: tool %q schema compile: %w", name, err)
		}
		r.schemas[name] = compiled
	}
	r.tools[name] = fn
	return nil
}

// Names returns registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Execute dispatches the call. Unknown tools and schema violations are typed
// failures; panics are recovered into internal-error results.
func (r *Registry) Execute(ctx context.Context, name string, call Call) (result Result) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return Fail(fault.CodeNotFound, fmt.Sprintf("tool %q is not registered", name))
	}

	if schema != nil {
		input := call.Input
		if input == nil {
			input = map[string]any{}
		}
		if err := schema.Validate(toJSONValue(input)); err != nil {
			return Result{Err: fault.Wrap(fault.CodeValidation,
				fmt.Sprintf("input for tool %q failed validation", name), err)}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			result = Fail(fault.CodeInternal, fmt.Sprintf("tool %q failed unexpectedly", name))
		}
	}()
	return fn(ctx, call)
}

// toJSONValue normalizes Go values into the shapes the schema validator
// expects (json-decoded trees use float64 for all numbers).
func toJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONValue(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return val
	}
}
