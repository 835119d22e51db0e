package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askforge/askforge/types"
)

func TestEncodeSSEFraming(t *testing.T) {
	frame, err := EncodeSSE(NewTokenEvent("hello "))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(frame, "data: {"))
	assert.True(t, strings.HasSuffix(frame, "\n\n"))
	assert.Contains(t, frame, `"type":"token"`)
	assert.Contains(t, frame, `"content":"hello "`)
}

func TestEncodeSSERejectsInvalidEvent(t *testing.T) {
	_, err := EncodeSSE(Event{Type: EventToken})
	assert.Error(t, err)
}

func TestSSERoundTrip(t *testing.T) {
	events := []Event{
		NewTokenEvent("partial "),
		NewReferencesEvent([]types.SourceItem{{SourceID: "s1", Title: "doc", Score: 0.9}}),
		NewErrorEvent(types.ErrTimeout, ""),
		NewDoneEvent(),
	}
	for _, original := range events {
		frame, err := EncodeSSE(original)
		require.NoError(t, err)
		decoded, err := DecodeSSE(frame)
		require.NoError(t, err)
		assert.Equal(t, original.Type, decoded.Type)
		assert.Equal(t, original.Content, decoded.Content)
		assert.Equal(t, original.Code, decoded.Code)
	}
}

func TestDecodeSSEBadFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"missing prefix", `{"type":"done"}`},
		{"broken json", "data: {not json}"},
		{"invalid event", `data: {"type":"token"}`},
		{"unknown type", `data: {"type":"ping"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSSE(tt.frame)
			assert.Error(t, err)
		})
	}
}
