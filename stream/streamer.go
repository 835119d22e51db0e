package stream

import (
	"regexp"
	"strings"

	"github.com/askforge/askforge/types"
)

// 按词切分并保留其后空白。答案先去掉首尾空白，拼接所有增量 token
// 即可精确还原正文。
var tokenChunk = regexp.MustCompile(`\S+\s*`)

// StreamAnswer 把答案文本展开为增量 token 事件并以 token 收尾哨兵
// 结束。空答案只产生哨兵。
func StreamAnswer(answer string) []Event {
	chunks := tokenChunk.FindAllString(strings.TrimSpace(answer), -1)
	events := make([]Event, 0, len(chunks)+1)
	for _, chunk := range chunks {
		events = append(events, NewTokenEvent(chunk))
	}
	return append(events, NewTokenEndEvent())
}

// StreamResult 把管线终态展开为完整的合法事件序列：
//
//	token{in_progress}* token{end} references error? done
//
// 失败的流同样先发空的 token 收尾与空引用事件再发 done，客户端
// 状态机在任何结局下都能走完；任何路径都以且仅以一个 done 收尾。
func StreamResult(state *types.PipelineState) []Event {
	var events []Event
	if state != nil {
		events = StreamAnswer(state.Answer)
		events = append(events, NewReferencesEvent(state.Sources))
		if state.ErrorCode != "" {
			events = append(events, NewErrorEvent(state.ErrorCode, ""))
		}
	} else {
		events = append(events, NewTokenEndEvent(), NewReferencesEvent(nil))
	}
	return append(events, NewDoneEvent())
}

// StreamCancelled 返回取消流：恰好 error(cancelled) 加 done，不含 token。
func StreamCancelled() []Event {
	return []Event{
		NewErrorEvent(types.ErrCancelled, ""),
		NewDoneEvent(),
	}
}
