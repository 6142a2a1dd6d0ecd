// Package toolrunner implements the Tool Validator & Executor of spec §4.C:
// JSON-Schema argument validation with type coercion, and tool execution
// with partial-result relay and panic/error-to-terminal-result conversion.
//
// Schema validation is grounded on haasonsaas-nexus's
// pkg/pluginsdk/validation.go (compileSchema backed by a sync.Map cache,
// github.com/santhosh-tekuri/jsonschema/v5) — the same library and caching
// idiom, adapted from plugin-config validation to tool-argument validation.
package toolrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentcore/runtime/internal/agenterr"
	"github.com/agentcore/runtime/internal/llmtypes"
)

// Validator compiles and caches JSON-Schema documents, coercing and
// validating tool arguments against them.
type Validator struct {
	cache sync.Map // schema bytes (string) -> *jsonschema.Schema
}

// NewValidator returns a Validator with an empty schema cache.
func NewValidator() *Validator { return &Validator{} }

// Validate coerces and validates raw against schema, returning a cloned,
// coerced copy. raw is never mutated (§4.C). A nil schema means arguments
// are trusted verbatim — the "restricted execution environment" case.
func (v *Validator) Validate(toolName string, schema []byte, raw map[string]any) (map[string]any, error) {
	if len(schema) == 0 {
		return cloneArgs(raw), nil
	}

	compiled, err := v.compile(schema)
	if err != nil {
		return nil, &agenterr.ValidationError{ToolName: toolName, Err: fmt.Errorf("compile schema: %w", err)}
	}

	coerced := cloneArgs(raw)
	coerceNumericStrings(coerced, compiled)

	// round-trip through encoding/json so jsonschema validates the same
	// decoded shape (map[string]any with float64 numbers) it would see
	// over the wire.
	payload, err := json.Marshal(coerced)
	if err != nil {
		return nil, &agenterr.ValidationError{ToolName: toolName, Err: fmt.Errorf("encode arguments: %w", err)}
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &agenterr.ValidationError{ToolName: toolName, Err: fmt.Errorf("decode arguments: %w", err)}
	}

	if err := compiled.Validate(decoded); err != nil {
		return nil, &agenterr.ValidationError{ToolName: toolName, Paths: offendingPaths(err), Err: err}
	}
	return coerced, nil
}

func (v *Validator) compile(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := v.cache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	v.cache.Store(key, compiled)
	return compiled, nil
}

func cloneArgs(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneArgs(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return val
	}
}

// coerceNumericStrings walks top-level properties whose schema type is
// "number"/"integer" but whose supplied value is a numeric-looking string,
// or "boolean" with a "true"/"false" string, coercing in place (e.g.
// "42" -> 42, "true" -> true), per §4.C's permitted type coercion.
func coerceNumericStrings(args map[string]any, schema *jsonschema.Schema) {
	props := schemaProperties(schema)
	for name, propSchema := range props {
		sval, isStr := args[name].(string)
		if !isStr {
			continue
		}
		switch schemaTypeOf(propSchema) {
		case "number":
			if f, err := parseFloat(sval); err == nil {
				args[name] = f
			}
		case "integer":
			if f, err := parseFloat(sval); err == nil && f == float64(int64(f)) {
				args[name] = f
			}
		case "boolean":
			if sval == "true" {
				args[name] = true
			} else if sval == "false" {
				args[name] = false
			}
		}
	}
}

func schemaProperties(schema *jsonschema.Schema) map[string]*jsonschema.Schema {
	if schema == nil {
		return nil
	}
	return schema.Properties
}

func schemaTypeOf(s *jsonschema.Schema) string {
	if s == nil || len(s.Types) == 0 {
		return ""
	}
	return s.Types[0]
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}

func offendingPaths(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil
	}
	var paths []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if e.InstanceLocation != "" {
			paths = append(paths, e.InstanceLocation)
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	return paths
}

// Execute runs tool.Execute, relaying partial snapshots through onPartial
// and converting a thrown error or panic into a terminal error result
// rather than propagating it (§4.C). The cancel token is ctx itself; tools
// are expected to observe ctx.Done().
func Execute(ctx context.Context, tool llmtypes.Tool, toolCallID string, args map[string]any, onPartial llmtypes.PartialResultFunc) llmtypes.ToolResult {
	result, err := runCatchingPanic(ctx, tool, toolCallID, args, onPartial)
	if err != nil {
		return llmtypes.ErrorResult(err.Error())
	}
	return result
}

func runCatchingPanic(ctx context.Context, tool llmtypes.Tool, toolCallID string, args map[string]any, onPartial llmtypes.PartialResultFunc) (result llmtypes.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &agenterr.ToolError{ToolName: tool.Name, ToolCallID: toolCallID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = tool.Execute(ctx, toolCallID, args, onPartial)
	if err != nil {
		err = &agenterr.ToolError{ToolName: tool.Name, ToolCallID: toolCallID, Err: err}
	}
	return result, err
}
