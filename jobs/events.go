package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/askforge/askforge/internal/metrics"
	"github.com/askforge/askforge/stream"
	"github.com/askforge/askforge/types"
)

// DefaultEventTTL done 之后事件流的保留时长。
const DefaultEventTTL = time.Hour

// EventQueue 按作业分片的流事件队列。Push 为事件分配递增 seq 并在
// 入队前校验；done 入队后整条流带 TTL 过期。
type EventQueue interface {
	// Push 校验并追加事件，返回分配的 seq（从 1 起）
	Push(ctx context.Context, jobID string, event stream.Event) (int64, error)
	// Since 返回 seq 大于 afterSeq 的全部事件
	Since(ctx context.Context, jobID string, afterSeq int64) ([]stream.Event, error)
	// LastSeq 返回最后分配的 seq，流不存在时为 0
	LastSeq(ctx context.Context, jobID string) (int64, error)
}

type memoryEventStream struct {
	events    []stream.Event
	expiresAt time.Time
}

// MemoryEventQueue 进程内事件队列，done 之后按 TTL 惰性清除。
type MemoryEventQueue struct {
	mu       sync.Mutex
	streams  map[string]*memoryEventStream
	ttl      time.Duration
	recorder metrics.Recorder
	now      func() time.Time
}

// NewMemoryEventQueue 创建内存事件队列。ttl ≤0 时用 DefaultEventTTL。
func NewMemoryEventQueue(ttl time.Duration, recorder metrics.Recorder) *MemoryEventQueue {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &MemoryEventQueue{
		streams:  make(map[string]*memoryEventStream),
		ttl:      ttl,
		recorder: recorder,
		now:      time.Now,
	}
}

func (q *MemoryEventQueue) Push(ctx context.Context, jobID string, event stream.Event) (int64, error) {
	if jobID == "" {
		return 0, types.NewError(types.ErrValidation, "event push requires a job id")
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	s := q.streams[jobID]
	if s == nil {
		s = &memoryEventStream{}
		q.streams[jobID] = s
	}
	event.Seq = int64(len(s.events)) + 1
	s.events = append(s.events, event)
	if event.Type == stream.EventDone {
		s.expiresAt = q.now().Add(q.ttl)
	}
	q.recorder.EventPushed(string(event.Type))
	return event.Seq, nil
}

func (q *MemoryEventQueue) Since(ctx context.Context, jobID string, afterSeq int64) ([]stream.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	s := q.streams[jobID]
	if s == nil || afterSeq >= int64(len(s.events)) {
		return nil, nil
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	out := make([]stream.Event, len(s.events[afterSeq:]))
	copy(out, s.events[afterSeq:])
	return out, nil
}

func (q *MemoryEventQueue) LastSeq(ctx context.Context, jobID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	s := q.streams[jobID]
	if s == nil {
		return 0, nil
	}
	return int64(len(s.events)), nil
}

func (q *MemoryEventQueue) purgeLocked() {
	now := q.now()
	for id, s := range q.streams {
		if !s.expiresAt.IsZero() && now.After(s.expiresAt) {
			delete(q.streams, id)
		}
	}
}

// RedisEventQueue 基于 Redis list 的事件队列。
// seq 就是事件在 list 中的 1 基位置，由 RPUSH 的返回值分配。
type RedisEventQueue struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	recorder metrics.Recorder
}

// NewRedisEventQueue 创建 Redis 事件队列。
func NewRedisEventQueue(client redis.UniversalClient, keyPrefix string, ttl time.Duration, recorder metrics.Recorder) *RedisEventQueue {
	if keyPrefix == "" {
		keyPrefix = "askforge"
	}
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &RedisEventQueue{
		client:   client,
		prefix:   keyPrefix,
		ttl:      ttl,
		recorder: recorder,
	}
}

func (q *RedisEventQueue) key(jobID string) string {
	return q.prefix + ":events:" + jobID
}

func (q *RedisEventQueue) Push(ctx context.Context, jobID string, event stream.Event) (int64, error) {
	if jobID == "" {
		return 0, types.NewError(types.ErrValidation, "event push requires a job id")
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	key := q.key(jobID)
	// seq 在编码前无法得知，入队后由 list 位置决定；读取侧按位置补回。
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	seq, err := q.client.RPush(ctx, key, payload).Result()
	if err != nil {
		return 0, types.NewError(types.ErrRedisFailed, "push event").WithCause(err)
	}
	if event.Type == stream.EventDone {
		if err := q.client.Expire(ctx, key, q.ttl).Err(); err != nil {
			return seq, types.NewError(types.ErrRedisFailed, "expire event stream").WithCause(err)
		}
	}
	q.recorder.EventPushed(string(event.Type))
	return seq, nil
}

func (q *RedisEventQueue) Since(ctx context.Context, jobID string, afterSeq int64) ([]stream.Event, error) {
	if afterSeq < 0 {
		afterSeq = 0
	}
	raw, err := q.client.LRange(ctx, q.key(jobID), afterSeq, -1).Result()
	if err != nil {
		return nil, types.NewError(types.ErrRedisFailed, "read events").WithCause(err)
	}
	events := make([]stream.Event, 0, len(raw))
	for i, item := range raw {
		var event stream.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, types.NewError(types.ErrRedisFailed, "decode event").WithCause(err)
		}
		event.Seq = afterSeq + int64(i) + 1
		events = append(events, event)
	}
	return events, nil
}

func (q *RedisEventQueue) LastSeq(ctx context.Context, jobID string) (int64, error) {
	n, err := q.client.LLen(ctx, q.key(jobID)).Result()
	if err != nil {
		return 0, types.NewError(types.ErrRedisFailed, "event stream length").WithCause(err)
	}
	return n, nil
}
