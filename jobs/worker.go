package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/askforge/askforge/internal/metrics"
	"github.com/askforge/askforge/stream"
	"github.com/askforge/askforge/types"
)

// Runner 是 worker 驱动的管线面。rag.Pipeline 满足该接口。
type Runner interface {
	Run(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error)
}

// StateSaver 按线程持久化管线终态快照。checkpoint.Store 满足该接口。
type StateSaver interface {
	Save(ctx context.Context, threadID string, state *types.PipelineState) (int64, error)
}

// WorkerConfig worker 配置。
type WorkerConfig struct {
	// PollInterval 队列为空时的轮询间隔。
	PollInterval time.Duration
	// JobTimeout 单个作业的执行上限，≤0 表示不限。
	JobTimeout time.Duration
}

// DefaultWorkerConfig 返回默认 worker 配置。
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 200 * time.Millisecond,
		JobTimeout:   2 * time.Minute,
	}
}

// Worker 轮询作业队列并驱动管线执行。
// 取消在两处检查：取出作业后与管线返回后；任一命中都让作业以
// cancelled 收场并且只产出 error(cancelled) + done。管线 panic 被
// 吸收为 failed 作业，事件流仍以 done 收尾。
type Worker struct {
	config      WorkerConfig
	queue       JobQueue
	events      EventQueue
	store       StatusStore
	runner      Runner
	checkpoints StateSaver
	recorder    metrics.Recorder
	logger      *zap.Logger
}

// NewWorker 创建 worker。
func NewWorker(config WorkerConfig, queue JobQueue, events EventQueue, store StatusStore, runner Runner, recorder metrics.Recorder, logger *zap.Logger) *Worker {
	def := DefaultWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		config:   config,
		queue:    queue,
		events:   events,
		store:    store,
		runner:   runner,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "worker")),
	}
}

// WithCheckpoints 让 worker 在作业完成后按线程保存终态快照。
func (w *Worker) WithCheckpoints(saver StateSaver) *Worker {
	w.checkpoints = saver
	return w
}

// Run 阻塞轮询直到 ctx 取消。
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.Duration("poll_interval", w.config.PollInterval))
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.logger.Error("job processing failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce 取出并处理至多一个作业。队列为空时无操作。
func (w *Worker) RunOnce(ctx context.Context) error {
	job, ok, err := w.queue.Pop(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	w.process(ctx, job)
	return nil
}

func (w *Worker) process(ctx context.Context, job *Job) {
	logger := w.logger.With(zap.String("job_id", job.ID))

	if cancelled, _ := w.store.CancelRequested(ctx, job.ID); cancelled {
		logger.Info("job cancelled before start")
		w.finishCancelled(ctx, job.ID)
		return
	}
	if err := w.store.SetStatus(ctx, job.ID, StatusRunning); err != nil {
		logger.Warn("failed to mark job running", zap.Error(err))
	}

	runCtx := ctx
	if w.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.config.JobTimeout)
		defer cancel()
	}

	state, err := w.runPipeline(runCtx, job)

	// 管线返回后再查一次：运行期间到达的取消优先于任何结果。
	if cancelled, _ := w.store.CancelRequested(ctx, job.ID); cancelled {
		logger.Info("job cancelled during run")
		w.finishCancelled(ctx, job.ID)
		return
	}

	if err != nil {
		logger.Error("pipeline run failed", zap.Error(err))
		// 失败流同样带空的 token 收尾与空引用，客户端状态机走完整遍。
		w.pushEvents(ctx, job.ID, []stream.Event{
			stream.NewTokenEndEvent(),
			stream.NewReferencesEvent(nil),
			stream.NewErrorEvent(types.CodeFromError(err), ""),
			stream.NewDoneEvent(),
		})
		w.finish(ctx, job.ID, StatusFailed)
		return
	}

	w.pushEvents(ctx, job.ID, stream.StreamResult(state))
	w.finish(ctx, job.ID, StatusCompleted)
	if w.checkpoints != nil && state.ThreadID != "" {
		if _, err := w.checkpoints.Save(ctx, state.ThreadID, state); err != nil {
			logger.Warn("failed to checkpoint state", zap.Error(err))
		}
	}
	logger.Info("job completed",
		zap.String("route", state.Route),
		zap.String("error_code", string(state.ErrorCode)))
}

// runPipeline 执行管线并把 panic 折叠为错误。
func (w *Worker) runPipeline(ctx context.Context, job *Job) (state *types.PipelineState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewError(types.ErrUnknown, fmt.Sprintf("pipeline panic: %v", r))
		}
	}()
	return w.runner.Run(ctx, job.State())
}

func (w *Worker) finishCancelled(ctx context.Context, jobID string) {
	w.pushEvents(ctx, jobID, stream.StreamCancelled())
	w.finish(ctx, jobID, StatusCancelled)
}

func (w *Worker) finish(ctx context.Context, jobID string, status JobStatus) {
	if err := w.store.SetStatus(ctx, jobID, status); err != nil {
		w.logger.Warn("failed to set terminal status",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
	w.recorder.JobFinished(string(status))
}

func (w *Worker) pushEvents(ctx context.Context, jobID string, events []stream.Event) {
	for _, event := range events {
		if _, err := w.events.Push(ctx, jobID, event); err != nil {
			w.logger.Error("failed to push event",
				zap.String("job_id", jobID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}
