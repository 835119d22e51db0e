package stream

import (
	"fmt"

	"github.com/askforge/askforge/types"
)

// EventType 流事件类型。
type EventType string

const (
	// EventToken 答案文本增量
	EventToken EventType = "token"
	// EventReferences 引用来源列表，至多一次、在全部 token 之后
	EventReferences EventType = "references"
	// EventError 结构化错误，至多一次、在 done 之前
	EventError EventType = "error"
	// EventDone 流结束标记，恰好一次且必为最后
	EventDone EventType = "done"
)

// EventStatus 事件内的阶段标记。
type EventStatus string

const (
	// StatusInProgress 增量中，仅 token 使用
	StatusInProgress EventStatus = "in_progress"
	// StatusEnd 该类型的收尾事件
	StatusEnd EventStatus = "end"
)

// Event 带类型标签的流事件。字段按 Type 取用：
// token 用 Status/Content，references 用 Sources，error 用 Code/Message。
type Event struct {
	Type    EventType          `json:"type"`
	Status  EventStatus        `json:"status,omitempty"`
	Seq     int64              `json:"seq,omitempty"`
	Content string             `json:"content,omitempty"`
	Sources []types.SourceItem `json:"sources,omitempty"`
	Code    types.ErrorCode    `json:"code,omitempty"`
	Message string             `json:"message,omitempty"`
}

// NewTokenEvent 构造文本增量事件。
func NewTokenEvent(content string) Event {
	return Event{Type: EventToken, Status: StatusInProgress, Content: content}
}

// NewTokenEndEvent 构造 token 阶段的收尾哨兵，内容恒为空。
func NewTokenEndEvent() Event {
	return Event{Type: EventToken, Status: StatusEnd}
}

// NewReferencesEvent 构造引用事件。sources 可为空：失败的流同样
// 发出空引用事件，客户端状态机总能走完。
func NewReferencesEvent(sources []types.SourceItem) Event {
	return Event{Type: EventReferences, Status: StatusEnd, Sources: sources}
}

// NewErrorEvent 构造错误事件。message 为空时用错误码的用户文案。
func NewErrorEvent(code types.ErrorCode, message string) Event {
	if message == "" {
		message = code.UserMessage()
	}
	return Event{Type: EventError, Code: code, Message: message}
}

// NewDoneEvent 构造结束事件。
func NewDoneEvent() Event {
	return Event{Type: EventDone}
}

// Validate 校验事件的类型与必填字段。
func (e Event) Validate() error {
	switch e.Type {
	case EventToken:
		if len(e.Sources) != 0 {
			return types.NewError(types.ErrValidation, "token event must not carry sources")
		}
		switch e.Status {
		case StatusInProgress:
			if e.Content == "" {
				return types.NewError(types.ErrValidation, "in-progress token requires content")
			}
		case StatusEnd:
			if e.Content != "" {
				return types.NewError(types.ErrValidation, "token end sentinel must carry no content")
			}
		default:
			return types.NewError(types.ErrValidation, "token event requires a status")
		}
	case EventReferences:
		if e.Status != StatusEnd {
			return types.NewError(types.ErrValidation, "references event requires status end")
		}
		if e.Content != "" {
			return types.NewError(types.ErrValidation, "references event must not carry content")
		}
	case EventError:
		if e.Code == "" {
			return types.NewError(types.ErrValidation, "error event requires code")
		}
		if e.Status != "" && e.Status != StatusEnd {
			return types.NewError(types.ErrValidation, "error event status must be end")
		}
	case EventDone:
		if e.Status != "" || e.Content != "" || len(e.Sources) != 0 || e.Code != "" {
			return types.NewError(types.ErrValidation, "done event must carry no payload")
		}
	default:
		return types.NewError(types.ErrValidation, fmt.Sprintf("unknown event type %q", e.Type))
	}
	return nil
}

// ValidateSequence 校验完整事件序列服从文法
// token{in_progress}* token{end} references error? done，
// 取消流（error done）同样合法。
func ValidateSequence(events []Event) error {
	if len(events) == 0 {
		return types.NewError(types.ErrStreamFailed, "empty event sequence")
	}
	// 0=tokens 1=references 2=error 3=done
	phase := 0
	sawTokenEnd := false
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
		var next int
		switch e.Type {
		case EventToken:
			next = 0
			if sawTokenEnd {
				return types.NewError(types.ErrStreamFailed,
					fmt.Sprintf("event %d: token after token end sentinel", i))
			}
			if e.Status == StatusEnd {
				sawTokenEnd = true
			}
		case EventReferences:
			next = 1
		case EventError:
			next = 2
		case EventDone:
			next = 3
		}
		if next < phase || (next == phase && next != 0) {
			return types.NewError(types.ErrStreamFailed,
				fmt.Sprintf("event %d (%s) out of order", i, e.Type))
		}
		phase = next
		if e.Type == EventDone && i != len(events)-1 {
			return types.NewError(types.ErrStreamFailed, "events after done")
		}
	}
	if events[len(events)-1].Type != EventDone {
		return types.NewError(types.ErrStreamFailed, "sequence must end with done")
	}
	return nil
}
