package proxycodec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/runtime/internal/llmtypes"
)

func TestRoundTrip_TextMessage(t *testing.T) {
	partial0 := &llmtypes.Message{Role: llmtypes.RoleAssistant}
	partial1 := &llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		AssistantContent: []llmtypes.ContentBlock{llmtypes.NewTextBlock("")},
	}
	partialFull := &llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		AssistantContent: []llmtypes.ContentBlock{{Kind: llmtypes.ContentText, Text: &llmtypes.TextBlock{Text: "Hello!", Signature: "sig-1"}}},
	}
	final := &llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		StopReason:       llmtypes.StopReasonStop,
		AssistantContent: partialFull.AssistantContent,
		Usage:            llmtypes.Usage{TotalTokens: 42},
	}

	serverEvents := []struct {
		evt     llmtypes.AssistantMessageEvent
		partial *llmtypes.Message
	}{
		{llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtStart, Partial: partial0}, partial0},
		{llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtTextStart, ContentIndex: 0, Partial: partial1}, partial1},
		{llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtTextDelta, ContentIndex: 0, Delta: "Hello!"}, partialFull},
		{llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtTextEnd, ContentIndex: 0, Content: "Hello!"}, partialFull},
		{llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonStop, Final: final}, nil},
	}

	d := NewDecoder()
	var lastPartial *llmtypes.Message
	var lastFinal *llmtypes.Message
	for _, se := range serverEvents {
		wire := Encode(se.evt, se.partial)
		decoded := d.Decode(wire)
		lastPartial = decoded.Partial
		if decoded.Final != nil {
			lastFinal = decoded.Final
		}
	}

	require.NotNil(t, lastPartial)
	assert.Equal(t, "Hello!", lastPartial.Text())
	require.NotNil(t, lastFinal)
	assert.Equal(t, "Hello!", lastFinal.Text())
	assert.Equal(t, llmtypes.StopReasonStop, lastFinal.StopReason)
	assert.Equal(t, int64(42), lastFinal.Usage.TotalTokens)
	assert.Equal(t, "sig-1", lastPartial.AssistantContent[0].Text.Signature)
}

func TestRoundTrip_ToolCallReconstruction(t *testing.T) {
	call := llmtypes.ToolCallBlock{ID: "call-1", Name: "read_file", Arguments: map[string]any{"path": "."}}
	startPartial := &llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		AssistantContent: []llmtypes.ContentBlock{{Kind: llmtypes.ContentToolCall, ToolCall: &llmtypes.ToolCallBlock{ID: "call-1", Name: "read_file"}}},
	}

	d := NewDecoder()
	startEvt := Encode(llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtToolCallStart, ContentIndex: 0}, startPartial)
	assert.Equal(t, "call-1", startEvt.ToolCallID)
	assert.Equal(t, "read_file", startEvt.ToolCallName)
	d.Decode(startEvt)

	deltaEvt := Encode(llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtToolCallDelta, ContentIndex: 0, Delta: `{"pa`}, nil)
	d.Decode(deltaEvt)
	deltaEvt2 := Encode(llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtToolCallDelta, ContentIndex: 0, Delta: `th":"."}`}, nil)
	decoded := d.Decode(deltaEvt2)

	require.NotNil(t, decoded.Partial)
	block := decoded.Partial.AssistantContent[0]
	require.NotNil(t, block.ToolCall)
	assert.Equal(t, map[string]any{"path": "."}, block.ToolCall.Arguments)

	endEvt := Encode(llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtToolCallEnd, ContentIndex: 0, ToolCall: &call}, nil)
	final := d.Decode(endEvt)
	require.NotNil(t, final.ToolCall)
	assert.Equal(t, map[string]any{"path": "."}, final.ToolCall.Arguments)
}

func TestEncode_ErrorMessagePropagates(t *testing.T) {
	wire := Encode(llmtypes.AssistantMessageEvent{Kind: llmtypes.EvtError, ErrReason: llmtypes.ReasonError, Err: errors.New("boom")}, nil)
	assert.Equal(t, "boom", wire.ErrMessage)

	d := NewDecoder()
	decoded := d.Decode(wire)
	require.NotNil(t, decoded.Final)
	assert.Equal(t, llmtypes.StopReasonError, decoded.Final.StopReason)
	assert.Equal(t, "boom", decoded.Final.ErrorMessage)
}
