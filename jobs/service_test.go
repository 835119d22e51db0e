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

func newServiceFixture(runner Runner) (*Service, *Worker) {
	queue := NewMemoryJobQueue()
	events := NewMemoryEventQueue(0, nil)
	store := NewMemoryStatusStore()
	svc := NewService(queue, events, store, nil)
	worker := NewWorker(DefaultWorkerConfig(), queue, events, store, runner, nil, nil)
	return svc, worker
}

func TestEnqueueValidation(t *testing.T) {
	svc, _ := newServiceFixture(nil)

	_, err := svc.Enqueue(context.Background(), AskRequest{Question: "   "})
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrValidation, typed.Code)
}

func TestEnqueueAndStatus(t *testing.T) {
	svc, _ := newServiceFixture(nil)

	job, err := svc.Enqueue(context.Background(), AskRequest{Question: "what is the petrov"})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.NotEmpty(t, job.TraceID)
	assert.NotEmpty(t, job.ThreadID)
	assert.False(t, job.EnqueuedAt.IsZero())

	status, lastSeq, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, status)
	assert.Zero(t, lastSeq)
}

func TestStatusUnknownJob(t *testing.T) {
	svc, _ := newServiceFixture(nil)
	_, _, err := svc.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestEventsIncrementalRead(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		state.Answer = "two words"
		return state, nil
	})
	svc, worker := newServiceFixture(runner)

	job, err := svc.Enqueue(context.Background(), AskRequest{Question: "q"})
	require.NoError(t, err)
	require.NoError(t, worker.RunOnce(context.Background()))

	first, last, err := svc.Events(context.Background(), job.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// 从断点续读不重复、不遗漏。
	rest, _, err := svc.Events(context.Background(), job.ID, last)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestConsumeDrainsUntilDone(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		state.Answer = "streamed grounded answer"
		state.Sources = []types.SourceItem{{SourceID: "s1", Score: 0.5}}
		return state, nil
	})
	svc, worker := newServiceFixture(runner)

	job, err := svc.Enqueue(context.Background(), AskRequest{Question: "q"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		// 消费端先行，worker 稍后处理，验证轮询续读。
		time.Sleep(100 * time.Millisecond)
		_ = worker.RunOnce(context.Background())
	}()

	var events []stream.Event
	for event := range svc.Consume(ctx, job.ID) {
		events = append(events, event)
	}
	require.NoError(t, stream.ValidateSequence(events))
	assert.Equal(t, stream.EventDone, events[len(events)-1].Type)

	var rebuilt string
	for _, e := range events {
		if e.Type == stream.EventToken {
			rebuilt += e.Content
		}
	}
	assert.Equal(t, "streamed grounded answer", rebuilt)
}

func TestCancelQueuedJob(t *testing.T) {
	svc, worker := newServiceFixture(runnerFunc(func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		t.Error("cancelled job must not run")
		return state, nil
	}))

	job, err := svc.Enqueue(context.Background(), AskRequest{Question: "q"})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), job.ID))
	require.NoError(t, worker.RunOnce(context.Background()))

	status, lastSeq, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)
	assert.EqualValues(t, 2, lastSeq)

	events, _, err := svc.Events(context.Background(), job.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.ErrCancelled, events[0].Code)
}

func TestCancelUnknownJob(t *testing.T) {
	svc, _ := newServiceFixture(nil)
	assert.ErrorIs(t, svc.Cancel(context.Background(), "nope"), ErrJobNotFound)
}
