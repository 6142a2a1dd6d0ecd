package structschema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required,description=text to echo back"`
}

func TestReflect_ObjectSchemaWithRequired(t *testing.T) {
	raw, err := Reflect(echoArgs{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "object", decoded["type"])
	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
	assert.Contains(t, decoded["required"], "text")
}

func TestReflect_PointerToStruct(t *testing.T) {
	raw, err := Reflect(&echoArgs{})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"text"`)
}

func TestReflect_RejectsNonStruct(t *testing.T) {
	_, err := Reflect(42)
	require.Error(t, err)
}
