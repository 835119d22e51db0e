package jobs

import (
	"time"

	"github.com/askforge/askforge/types"
)

// JobStatus 作业状态。
type JobStatus string

const (
	// StatusQueued 已入队等待
	StatusQueued JobStatus = "queued"
	// StatusRunning 正在执行
	StatusRunning JobStatus = "running"
	// StatusCompleted 正常完成（含回退答案路径）
	StatusCompleted JobStatus = "completed"
	// StatusFailed 执行外壳失败（panic 或基础设施错误）
	StatusFailed JobStatus = "failed"
	// StatusCancelled 被取消
	StatusCancelled JobStatus = "cancelled"
)

// Terminal 判断状态是否为吸收终态。
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job 一次问答请求的作业载荷。History / Summary / TurnCount 携带
// 会话上下文，worker 以此重建管线状态。
type Job struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Language string `json:"language,omitempty"`

	TraceID   string `json:"trace_id"`
	ThreadID  string `json:"thread_id"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	History   []types.HistoryTurn `json:"history,omitempty"`
	Summary   string              `json:"summary,omitempty"`
	TurnCount int                 `json:"turn_count,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// State 把作业载荷展开为管线初始状态。
func (j *Job) State() *types.PipelineState {
	trace := j.TraceID
	if trace == "" {
		trace = j.ID
	}
	state := &types.PipelineState{
		Question:  j.Question,
		Language:  j.Language,
		History:   j.History,
		Summary:   j.Summary,
		TurnCount: j.TurnCount,
		TraceID:   trace,
		ThreadID:  j.ThreadID,
		SessionID: j.SessionID,
		UserID:    j.UserID,
	}
	state.EnsureDefaults()
	return state
}
