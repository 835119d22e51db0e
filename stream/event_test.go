package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/askforge/askforge/types"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"valid token", NewTokenEvent("hello "), false},
		{"token end sentinel", NewTokenEndEvent(), false},
		{"token without status", Event{Type: EventToken, Content: "x"}, true},
		{"in-progress token without content", Event{Type: EventToken, Status: StatusInProgress}, true},
		{"token end with content", Event{Type: EventToken, Status: StatusEnd, Content: "x"}, true},
		{"token with sources", Event{Type: EventToken, Status: StatusInProgress, Content: "x", Sources: []types.SourceItem{{SourceID: "s1"}}}, true},
		{"valid references", NewReferencesEvent([]types.SourceItem{{SourceID: "s1"}}), false},
		{"empty references", NewReferencesEvent(nil), false},
		{"references without status", Event{Type: EventReferences}, true},
		{"valid error", NewErrorEvent(types.ErrTimeout, ""), false},
		{"error without code", Event{Type: EventError, Message: "boom"}, true},
		{"error with bad status", Event{Type: EventError, Status: StatusInProgress, Code: types.ErrTimeout}, true},
		{"valid done", NewDoneEvent(), false},
		{"done with payload", Event{Type: EventDone, Content: "x"}, true},
		{"done with status", Event{Type: EventDone, Status: StatusEnd}, true},
		{"unknown type", Event{Type: "telemetry"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorEventDefaultsMessage(t *testing.T) {
	e := NewErrorEvent(types.ErrRetrievalEmpty, "")
	assert.Equal(t, types.ErrRetrievalEmpty.UserMessage(), e.Message)

	e = NewErrorEvent(types.ErrRetrievalEmpty, "custom")
	assert.Equal(t, "custom", e.Message)
}

func TestValidateSequence(t *testing.T) {
	token := NewTokenEvent("hi ")
	tokenEnd := NewTokenEndEvent()
	refs := NewReferencesEvent([]types.SourceItem{{SourceID: "s1"}})
	fail := NewErrorEvent(types.ErrLLMFailed, "")
	done := NewDoneEvent()

	tests := []struct {
		name    string
		events  []Event
		wantErr bool
	}{
		{"done only", []Event{done}, false},
		{"tokens then done", []Event{token, token, tokenEnd, done}, false},
		{"full success", []Event{token, tokenEnd, refs, done}, false},
		{"failure stream", []Event{token, tokenEnd, fail, done}, false},
		{"empty stream completes", []Event{tokenEnd, NewReferencesEvent(nil), done}, false},
		{"cancel stream", StreamCancelled(), false},
		{"empty", nil, true},
		{"missing done", []Event{token, tokenEnd}, true},
		{"token after sentinel", []Event{token, tokenEnd, token, done}, true},
		{"double sentinel", []Event{tokenEnd, tokenEnd, done}, true},
		{"token after references", []Event{refs, token, done}, true},
		{"references after error", []Event{fail, refs, done}, true},
		{"double done", []Event{done, done}, true},
		{"double references", []Event{token, refs, refs, done}, true},
		{"events after done", []Event{done, token}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSequence(tt.events)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStreamAnswerReassembles(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		answer := rapid.StringMatching(`[ \t\n]{0,3}([a-z]{1,6}[ \t\n]{0,3}){0,10}`).Draw(t, "answer")
		events := StreamAnswer(answer)
		require.NotEmpty(t, events)
		var rebuilt string
		for _, e := range events {
			require.Equal(t, EventToken, e.Type)
			require.NoError(t, e.Validate())
			rebuilt += e.Content
		}
		// 首尾空白裁掉后正文被精确还原，序列以收尾哨兵结束。
		assert.Equal(t, strings.TrimSpace(answer), rebuilt)
		assert.Equal(t, StatusEnd, events[len(events)-1].Status)
	})
}

func TestStreamAnswerLeadingWhitespace(t *testing.T) {
	events := StreamAnswer("  two words ")
	require.Len(t, events, 3)
	assert.Equal(t, "two words", events[0].Content+events[1].Content)
	assert.Equal(t, StatusEnd, events[2].Status)
}

func TestStreamResultGrammar(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		state := &types.PipelineState{
			Answer: rapid.StringMatching(`[a-z ]{0,40}`).Draw(t, "answer"),
		}
		if rapid.Bool().Draw(t, "withSources") {
			state.Sources = []types.SourceItem{{SourceID: "s1", Score: 0.9}}
		}
		if rapid.Bool().Draw(t, "withError") {
			state.ErrorCode = types.ErrLLMFailed
		}
		events := StreamResult(state)
		assert.NoError(t, ValidateSequence(events))
		assert.Equal(t, EventDone, events[len(events)-1].Type)
		// 无论成败，引用事件恰好一次。
		refs := 0
		for _, e := range events {
			if e.Type == EventReferences {
				refs++
			}
		}
		assert.Equal(t, 1, refs)
	})
}

func TestStreamResultNilState(t *testing.T) {
	events := StreamResult(nil)
	require.Len(t, events, 3)
	assert.Equal(t, StatusEnd, events[0].Status)
	assert.Equal(t, EventReferences, events[1].Type)
	assert.Equal(t, EventDone, events[2].Type)
	assert.NoError(t, ValidateSequence(events))
}

func TestStreamCancelled(t *testing.T) {
	events := StreamCancelled()
	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, types.ErrCancelled, events[0].Code)
	assert.Equal(t, EventDone, events[1].Type)
	assert.NoError(t, ValidateSequence(events))
}
