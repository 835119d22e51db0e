package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askforge/askforge/stream"
	"github.com/askforge/askforge/types"
)

// AskRequest 提交问答作业的请求。
type AskRequest struct {
	Question  string              `json:"question"`
	Language  string              `json:"language,omitempty"`
	ThreadID  string              `json:"thread_id,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	UserID    string              `json:"user_id,omitempty"`
	History   []types.HistoryTurn `json:"history,omitempty"`
	Summary   string              `json:"summary,omitempty"`
	TurnCount int                 `json:"turn_count,omitempty"`
}

// Service 面向调用方的作业 API：提交、取消、查询状态、消费事件流。
type Service struct {
	queue  JobQueue
	events EventQueue
	store  StatusStore
	logger *zap.Logger

	// pollInterval 消费事件流时的轮询间隔。
	pollInterval time.Duration
}

// NewService 创建作业服务。
func NewService(queue JobQueue, events EventQueue, store StatusStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		queue:        queue,
		events:       events,
		store:        store,
		logger:       logger.With(zap.String("component", "job_service")),
		pollInterval: 50 * time.Millisecond,
	}
}

// Enqueue 校验请求、登记作业并入队，返回新作业。
func (s *Service) Enqueue(ctx context.Context, req AskRequest) (*Job, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, types.NewError(types.ErrValidation, "question must not be empty")
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	job := &Job{
		ID:         uuid.NewString(),
		TraceID:    uuid.NewString(),
		Question:   req.Question,
		Language:   req.Language,
		ThreadID:   threadID,
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		History:    req.History,
		Summary:    req.Summary,
		TurnCount:  req.TurnCount,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, job.ID); err != nil {
		return nil, err
	}
	if err := s.queue.Push(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job enqueued", zap.String("job_id", job.ID))
	return job, nil
}

// Cancel 请求取消作业。已终态的作业上是无操作。
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if err := s.store.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job cancel requested", zap.String("job_id", jobID))
	return nil
}

// Status 返回作业当前状态与事件流最新 seq。
func (s *Service) Status(ctx context.Context, jobID string) (JobStatus, int64, error) {
	status, err := s.store.Status(ctx, jobID)
	if err != nil {
		return status, 0, err
	}
	lastSeq, err := s.events.LastSeq(ctx, jobID)
	if err != nil {
		return status, 0, err
	}
	return status, lastSeq, nil
}

// Events 返回 seq 大于 afterSeq 的事件与最新 seq，供调用方断点续读。
func (s *Service) Events(ctx context.Context, jobID string, afterSeq int64) ([]stream.Event, int64, error) {
	events, err := s.events.Since(ctx, jobID, afterSeq)
	if err != nil {
		return nil, afterSeq, err
	}
	last := afterSeq
	if n := len(events); n > 0 {
		last = events[n-1].Seq
	}
	return events, last, nil
}

// Consume 以通道形式消费作业事件流，读到 done 或 ctx 取消时关闭。
// 事件按 seq 顺序恰好投递一次。
func (s *Service) Consume(ctx context.Context, jobID string) <-chan stream.Event {
	out := make(chan stream.Event)
	go func() {
		defer close(out)
		var after int64
		for {
			events, last, err := s.Events(ctx, jobID, after)
			if err != nil {
				s.logger.Warn("event poll failed",
					zap.String("job_id", jobID),
					zap.Error(err))
				return
			}
			after = last
			for _, event := range events {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
				if event.Type == stream.EventDone {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pollInterval):
			}
		}
	}()
	return out
}
