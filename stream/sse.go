package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askforge/askforge/types"
)

const ssePrefix = "data: "

// EncodeSSE 把事件编码为一帧 Server-Sent Events 文本。
// 事件在编码前校验，坏事件直接报错而不是写出坏帧。
func EncodeSSE(event Event) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return ssePrefix + string(payload) + "\n\n", nil
}

// DecodeSSE 解析一帧 SSE 文本并校验得到的事件。
func DecodeSSE(frame string) (Event, error) {
	frame = strings.TrimSpace(frame)
	if !strings.HasPrefix(frame, strings.TrimSpace(ssePrefix)) {
		return Event{}, types.NewError(types.ErrStreamFailed, "frame missing data prefix")
	}
	payload := strings.TrimSpace(strings.TrimPrefix(frame, strings.TrimSpace(ssePrefix)))
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}
