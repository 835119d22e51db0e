package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/askforge/askforge/types"
)

// DefaultKeepLast 每个线程保留的快照数。
const DefaultKeepLast = 5

// ErrNotFound 线程或版本不存在。
var ErrNotFound = types.NewError(types.ErrValidation, "checkpoint not found")

// Snapshot 一个版本化的状态快照。
type Snapshot struct {
	Version int64                `json:"version"`
	State   *types.PipelineState `json:"state"`
}

// Store 按线程存取管线状态快照。
type Store interface {
	// Save 保存快照并返回分配的版本号（从 1 起）
	Save(ctx context.Context, threadID string, state *types.PipelineState) (int64, error)
	// Latest 返回最新快照
	Latest(ctx context.Context, threadID string) (*Snapshot, error)
	// Load 按版本号取快照
	Load(ctx context.Context, threadID string, version int64) (*Snapshot, error)
	// Versions 返回现存的版本号，升序
	Versions(ctx context.Context, threadID string) ([]int64, error)
}

// trim 保留末尾 keep 个快照。keep ≤0 时原样返回。
func trim(snapshots []Snapshot, keep int) []Snapshot {
	if keep <= 0 || len(snapshots) <= keep {
		return snapshots
	}
	return snapshots[len(snapshots)-keep:]
}

// MemoryStore 进程内快照存储。
type MemoryStore struct {
	mu       sync.Mutex
	keep     int
	threads  map[string][]Snapshot
	versions map[string]int64
}

// NewMemoryStore 创建内存快照存储。keepLast ≤0 时用 DefaultKeepLast。
func NewMemoryStore(keepLast int) *MemoryStore {
	if keepLast <= 0 {
		keepLast = DefaultKeepLast
	}
	return &MemoryStore{
		keep:     keepLast,
		threads:  make(map[string][]Snapshot),
		versions: make(map[string]int64),
	}
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, state *types.PipelineState) (int64, error) {
	if threadID == "" || state == nil {
		return 0, types.NewError(types.ErrValidation, "checkpoint requires thread id and state")
	}
	// 深拷贝，调用方之后的修改不影响已存快照。
	payload, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("marshal state: %w", err)
	}
	var copied types.PipelineState
	if err := json.Unmarshal(payload, &copied); err != nil {
		return 0, fmt.Errorf("copy state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[threadID]++
	version := s.versions[threadID]
	s.threads[threadID] = trim(append(s.threads[threadID], Snapshot{Version: version, State: &copied}), s.keep)
	return version, nil
}

func (s *MemoryStore) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.threads[threadID]
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	snap := snaps[len(snaps)-1]
	return &snap, nil
}

func (s *MemoryStore) Load(ctx context.Context, threadID string, version int64) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.threads[threadID] {
		if snap.Version == version {
			return &snap, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Versions(ctx context.Context, threadID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.threads[threadID]
	versions := make([]int64, 0, len(snaps))
	for _, snap := range snaps {
		versions = append(versions, snap.Version)
	}
	return versions, nil
}

// RedisStore 基于 Redis list 的快照存储：RPUSH 追加、LTRIM 裁旧。
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	keep   int
}

// NewRedisStore 创建 Redis 快照存储。
func NewRedisStore(client redis.UniversalClient, keyPrefix string, keepLast int) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "askforge"
	}
	if keepLast <= 0 {
		keepLast = DefaultKeepLast
	}
	return &RedisStore{client: client, prefix: keyPrefix, keep: keepLast}
}

func (s *RedisStore) listKey(threadID string) string {
	return s.prefix + ":checkpoint:" + threadID
}

func (s *RedisStore) counterKey(threadID string) string {
	return s.prefix + ":checkpoint:" + threadID + ":version"
}

func (s *RedisStore) Save(ctx context.Context, threadID string, state *types.PipelineState) (int64, error) {
	if threadID == "" || state == nil {
		return 0, types.NewError(types.ErrValidation, "checkpoint requires thread id and state")
	}
	version, err := s.client.Incr(ctx, s.counterKey(threadID)).Result()
	if err != nil {
		return 0, types.NewError(types.ErrRedisFailed, "allocate version").WithCause(err)
	}
	payload, err := json.Marshal(Snapshot{Version: version, State: state})
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	key := s.listKey(threadID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.keep), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, types.NewError(types.ErrRedisFailed, "save snapshot").WithCause(err)
	}
	return version, nil
}

func (s *RedisStore) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	snaps, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	return &snaps[len(snaps)-1], nil
}

func (s *RedisStore) Load(ctx context.Context, threadID string, version int64) (*Snapshot, error) {
	snaps, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if snap.Version == version {
			return &snap, nil
		}
	}
	return nil, ErrNotFound
}

func (s *RedisStore) Versions(ctx context.Context, threadID string) ([]int64, error) {
	snaps, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(snaps))
	for _, snap := range snaps {
		versions = append(versions, snap.Version)
	}
	return versions, nil
}

func (s *RedisStore) load(ctx context.Context, threadID string) ([]Snapshot, error) {
	raw, err := s.client.LRange(ctx, s.listKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, types.NewError(types.ErrRedisFailed, "read snapshots").WithCause(err)
	}
	snaps := make([]Snapshot, 0, len(raw))
	for _, item := range raw {
		var snap Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			return nil, types.NewError(types.ErrRedisFailed, "decode snapshot").WithCause(err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
