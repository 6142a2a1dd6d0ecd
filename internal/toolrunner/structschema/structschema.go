// Package structschema reflects a Go struct into the JSON-Schema bytes a
// llmtypes.Tool wants for its ParameterSchema field, mirroring gar's
// NewToolSpecFromStruct (internal/llm/core/tool_schema.go) — the same
// reflector settings, the same normalize-to-a-plain-object-schema step —
// adapted so tool authors can hand this package a struct instead of
// hand-writing a schema literal.
package structschema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// normalized is the subset of a reflected schema that tool argument
// validation actually cares about: a flat object schema.
type normalized struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// Reflect reflects argsStruct (a struct or pointer to struct whose fields
// describe a tool's arguments) into the object-schema JSON bytes expected by
// llmtypes.Tool.ParameterSchema.
func Reflect(argsStruct any) ([]byte, error) {
	target, err := structPointer(argsStruct)
	if err != nil {
		return nil, err
	}

	schema := reflector.Reflect(target)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("structschema: marshal reflected schema: %w", err)
	}

	var n normalized
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("structschema: normalize reflected schema: %w", err)
	}
	if n.Type == "" {
		n.Type = "object"
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}

	out, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("structschema: marshal normalized schema: %w", err)
	}
	return out, nil
}

func structPointer(argsStruct any) (any, error) {
	t := reflect.TypeOf(argsStruct)
	if t == nil {
		return nil, fmt.Errorf("structschema: args struct is nil")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("structschema: args value must be a struct or pointer to struct")
	}
	return reflect.New(t).Interface(), nil
}
