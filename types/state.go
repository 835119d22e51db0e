package types

// HistoryTurn 一条对话记录
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievalStats 一次请求的检索统计
type RetrievalStats struct {
	// Retrieved 进入生成节点前的候选文档数
	Retrieved int `json:"retrieved"`
	// Used 最终作为答案根据的文档数
	Used int `json:"used"`
}

// SourceItem 响应中对外暴露的根据条目
type SourceItem struct {
	SourceID string         `json:"source_id"`
	Title    string         `json:"title,omitempty"`
	Snippet  string         `json:"snippet,omitempty"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PipelineState 贯穿管线的单一可变状态。
// 任何阶段一旦写入 ErrorCode，生成节点必须短路到对应的回退答案，
// 不允许后续阶段悄悄清除它。
type PipelineState struct {
	Question string `json:"question"`
	// Language 请求方期望的内容语言，空值表示不限制
	Language string `json:"language,omitempty"`

	History   []HistoryTurn `json:"history"`
	Summary   string        `json:"summary,omitempty"`
	TurnCount int           `json:"turn_count"`

	Contexts []Document `json:"contexts"`
	Answer   string     `json:"answer,omitempty"`

	SafeguardLabel SafeguardLabel `json:"safeguard_label,omitempty"`
	ErrorCode      ErrorCode      `json:"error_code,omitempty"`
	Route          string         `json:"route,omitempty"`

	Sources        []SourceItem    `json:"sources"`
	RetrievalStats *RetrievalStats `json:"retrieval_stats,omitempty"`

	TraceID   string `json:"trace_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// EnsureDefaults 填充零值集合字段，保证下游阶段不用反复判空。
func (s *PipelineState) EnsureDefaults() {
	if s.History == nil {
		s.History = []HistoryTurn{}
	}
	if s.Contexts == nil {
		s.Contexts = []Document{}
	}
	if s.Sources == nil {
		s.Sources = []SourceItem{}
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
}

// AppendTurn 追加一轮 user/assistant 对话并推进轮数。
func (s *PipelineState) AppendTurn(question, answer string) {
	s.History = append(s.History,
		HistoryTurn{Role: "user", Content: question},
		HistoryTurn{Role: "assistant", Content: answer},
	)
	s.TurnCount++
}
