package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askforge/askforge/stream"
	"github.com/askforge/askforge/types"
)

func testEventQueue(t *testing.T, q EventQueue) {
	ctx := context.Background()

	last, err := q.LastSeq(ctx, "job-1")
	require.NoError(t, err)
	assert.Zero(t, last)

	seq, err := q.Push(ctx, "job-1", stream.NewTokenEvent("hello "))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = q.Push(ctx, "job-1", stream.NewTokenEvent("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	// 另一个作业的流 seq 独立。
	seq, err = q.Push(ctx, "job-2", stream.NewDoneEvent())
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	events, err := q.Since(ctx, "job-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "hello ", events[0].Content)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)

	events, err = q.Since(ctx, "job-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "world", events[0].Content)

	events, err = q.Since(ctx, "job-1", 2)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryEventQueue(t *testing.T) {
	testEventQueue(t, NewMemoryEventQueue(0, nil))
}

func TestRedisEventQueue(t *testing.T) {
	testEventQueue(t, NewRedisEventQueue(newTestRedis(t), "", 0, nil))
}

func TestEventQueueRejectsInvalidEvents(t *testing.T) {
	for name, q := range map[string]EventQueue{
		"memory": NewMemoryEventQueue(0, nil),
		"redis":  NewRedisEventQueue(newTestRedis(t), "", 0, nil),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := q.Push(ctx, "", stream.NewDoneEvent())
			assert.Error(t, err)
			_, err = q.Push(ctx, "job-1", stream.Event{Type: stream.EventToken})
			assert.Error(t, err)
			_, err = q.Push(ctx, "job-1", stream.Event{Type: "bogus"})
			assert.Error(t, err)
		})
	}
}

func TestMemoryEventQueueExpiresAfterDone(t *testing.T) {
	q := NewMemoryEventQueue(time.Minute, nil)
	now := time.Now()
	q.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := q.Push(ctx, "job-1", stream.NewTokenEvent("x"))
	require.NoError(t, err)
	_, err = q.Push(ctx, "job-1", stream.NewDoneEvent())
	require.NoError(t, err)

	events, err := q.Since(ctx, "job-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	now = now.Add(2 * time.Minute)
	events, err = q.Since(ctx, "job-1", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRedisEventQueueSetsTTLOnDone(t *testing.T) {
	client := newTestRedis(t)
	q := NewRedisEventQueue(client, "", time.Hour, nil)
	ctx := context.Background()

	_, err := q.Push(ctx, "job-1", stream.NewTokenEvent("x"))
	require.NoError(t, err)
	ttl, err := client.TTL(ctx, "askforge:events:job-1").Result()
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0)) // 未 done 时无 TTL

	_, err = q.Push(ctx, "job-1", stream.NewDoneEvent())
	require.NoError(t, err)
	ttl, err = client.TTL(ctx, "askforge:events:job-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisEventQueueRoundTripsReferences(t *testing.T) {
	q := NewRedisEventQueue(newTestRedis(t), "", 0, nil)
	ctx := context.Background()

	sources := []types.SourceItem{{SourceID: "s1", Title: "doc", Score: 0.9}}
	_, err := q.Push(ctx, "job-1", stream.NewReferencesEvent(sources))
	require.NoError(t, err)

	events, err := q.Since(ctx, "job-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, events[0].Sources, 1)
	assert.Equal(t, "s1", events[0].Sources[0].SourceID)
	assert.InDelta(t, 0.9, events[0].Sources[0].Score, 1e-9)
}
