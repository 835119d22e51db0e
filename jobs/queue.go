package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/askforge/askforge/types"
)

// JobQueue 作业 FIFO 队列。Pop 是破坏性取出：同一作业只会被
// 一个消费者拿到，这也是 worker 间唯一需要的互斥。
type JobQueue interface {
	// Push 入队
	Push(ctx context.Context, job *Job) error
	// Pop 取出队首作业；队列为空时返回 (nil, false, nil)
	Pop(ctx context.Context) (*Job, bool, error)
}

// MemoryJobQueue 进程内作业队列。
type MemoryJobQueue struct {
	mu   sync.Mutex
	jobs []*Job
}

// NewMemoryJobQueue 创建内存作业队列。
func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{}
}

// validateJob 校验作业的必填字段。
func validateJob(job *Job) error {
	switch {
	case job == nil:
		return types.NewError(types.ErrValidation, "job must not be nil")
	case job.ID == "":
		return types.NewError(types.ErrValidation, "job requires an id")
	case job.TraceID == "":
		return types.NewError(types.ErrValidation, "job requires a trace id")
	case job.ThreadID == "":
		return types.NewError(types.ErrValidation, "job requires a thread id")
	case job.Question == "":
		return types.NewError(types.ErrValidation, "job requires a question")
	}
	return nil
}

func (q *MemoryJobQueue) Push(ctx context.Context, job *Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *MemoryJobQueue) Pop(ctx context.Context) (*Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true, nil
}

// Len 返回当前队列长度。
func (q *MemoryJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// RedisJobQueue 基于 Redis list 的作业队列：RPUSH 入队、LPOP 出队。
type RedisJobQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisJobQueue 创建 Redis 作业队列。keyPrefix 为空时用 "askforge"。
func NewRedisJobQueue(client redis.UniversalClient, keyPrefix string) *RedisJobQueue {
	if keyPrefix == "" {
		keyPrefix = "askforge"
	}
	return &RedisJobQueue{
		client: client,
		key:    keyPrefix + ":jobs",
	}
}

func (q *RedisJobQueue) Push(ctx context.Context, job *Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return types.NewError(types.ErrQueueFailed, "push job").WithCause(err)
	}
	return nil
}

func (q *RedisJobQueue) Pop(ctx context.Context) (*Job, bool, error) {
	payload, err := q.client.LPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, types.NewError(types.ErrQueueFailed, "pop job").WithCause(err)
	}
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, false, types.NewError(types.ErrQueueFailed, "decode job").WithCause(err)
	}
	return &job, true, nil
}
