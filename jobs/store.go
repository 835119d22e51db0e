package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/askforge/askforge/types"
)

// ErrJobNotFound 查询了不存在的作业。
var ErrJobNotFound = types.NewError(types.ErrValidation, "job not found")

// StatusStore 作业状态与取消标志的存储。
// 终态是吸收态：SetStatus 对已终态的作业是无操作。
type StatusStore interface {
	// Create 登记新作业，初始状态 queued
	Create(ctx context.Context, jobID string) error
	// SetStatus 推进作业状态；当前已是终态时静默忽略
	SetStatus(ctx context.Context, jobID string, status JobStatus) error
	// Status 返回作业当前状态
	Status(ctx context.Context, jobID string) (JobStatus, error)
	// RequestCancel 置取消标志；已终态时无效果
	RequestCancel(ctx context.Context, jobID string) error
	// CancelRequested 查询取消标志
	CancelRequested(ctx context.Context, jobID string) (bool, error)
}

type memoryJobRecord struct {
	status JobStatus
	cancel bool
}

// MemoryStatusStore 进程内状态存储。
type MemoryStatusStore struct {
	mu   sync.Mutex
	jobs map[string]*memoryJobRecord
}

// NewMemoryStatusStore 创建内存状态存储。
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{jobs: make(map[string]*memoryJobRecord)}
}

func (s *MemoryStatusStore) Create(ctx context.Context, jobID string) error {
	if jobID == "" {
		return types.NewError(types.ErrValidation, "job requires an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[jobID]; exists {
		return types.NewError(types.ErrValidation, "job already exists")
	}
	s.jobs[jobID] = &memoryJobRecord{status: StatusQueued}
	return nil
}

func (s *MemoryStatusStore) SetStatus(ctx context.Context, jobID string, status JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if rec.status.Terminal() {
		return nil
	}
	rec.status = status
	return nil
}

func (s *MemoryStatusStore) Status(ctx context.Context, jobID string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return "", ErrJobNotFound
	}
	return rec.status, nil
}

func (s *MemoryStatusStore) RequestCancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if rec.status.Terminal() {
		return nil
	}
	rec.cancel = true
	return nil
}

func (s *MemoryStatusStore) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return false, ErrJobNotFound
	}
	return rec.cancel, nil
}

// RedisStatusStore 基于 Redis hash 的状态存储。
// 状态推进只有持有该作业的单个 worker 执行，读改写无需加锁。
type RedisStatusStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStatusStore 创建 Redis 状态存储。
func NewRedisStatusStore(client redis.UniversalClient, keyPrefix string) *RedisStatusStore {
	if keyPrefix == "" {
		keyPrefix = "askforge"
	}
	return &RedisStatusStore{client: client, prefix: keyPrefix}
}

func (s *RedisStatusStore) key(jobID string) string {
	return s.prefix + ":job:" + jobID
}

func (s *RedisStatusStore) Create(ctx context.Context, jobID string) error {
	if jobID == "" {
		return types.NewError(types.ErrValidation, "job requires an id")
	}
	created, err := s.client.HSetNX(ctx, s.key(jobID), "status", string(StatusQueued)).Result()
	if err != nil {
		return types.NewError(types.ErrRedisFailed, "create job record").WithCause(err)
	}
	if !created {
		return types.NewError(types.ErrValidation, "job already exists")
	}
	return nil
}

func (s *RedisStatusStore) SetStatus(ctx context.Context, jobID string, status JobStatus) error {
	current, err := s.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if current.Terminal() {
		return nil
	}
	if err := s.client.HSet(ctx, s.key(jobID), "status", string(status)).Err(); err != nil {
		return types.NewError(types.ErrRedisFailed, "set job status").WithCause(err)
	}
	return nil
}

func (s *RedisStatusStore) Status(ctx context.Context, jobID string) (JobStatus, error) {
	raw, err := s.client.HGet(ctx, s.key(jobID), "status").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", types.NewError(types.ErrRedisFailed, "read job status").WithCause(err)
	}
	return JobStatus(raw), nil
}

func (s *RedisStatusStore) RequestCancel(ctx context.Context, jobID string) error {
	current, err := s.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if current.Terminal() {
		return nil
	}
	if err := s.client.HSet(ctx, s.key(jobID), "cancel", "1").Err(); err != nil {
		return types.NewError(types.ErrRedisFailed, "request cancel").WithCause(err)
	}
	return nil
}

func (s *RedisStatusStore) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	raw, err := s.client.HGet(ctx, s.key(jobID), "cancel").Result()
	if errors.Is(err, redis.Nil) {
		// 标志未置位；作业本身不存在时也走这里，由 Status 负责报错。
		return false, nil
	}
	if err != nil {
		return false, types.NewError(types.ErrRedisFailed, "read cancel flag").WithCause(err)
	}
	return raw == "1", nil
}
