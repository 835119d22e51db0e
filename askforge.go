// Package askforge provides a top-level convenience entry point for running
// the question answering stack in a single process.
//
// Usage:
//
//	import "github.com/askforge/askforge"
//
//	engine := askforge.New(
//		askforge.WithGenerator(gen),
//		askforge.WithSearcher(searcher),
//	)
//	go engine.Run(ctx)
//
//	events, _ := engine.Ask(ctx, "what is the petrov defence")
//	for event := range events {
//		...
//	}
//
// This wires the rag pipeline, an in-memory job queue, event queue and
// status store together. Production deployments that need Redis-backed
// queues should assemble the pieces from [jobs] directly, the way
// cmd/askforge does.
package askforge

import (
	"context"

	"go.uber.org/zap"

	"github.com/askforge/askforge/checkpoint"
	"github.com/askforge/askforge/internal/metrics"
	"github.com/askforge/askforge/jobs"
	"github.com/askforge/askforge/rag"
	"github.com/askforge/askforge/stream"
)

// Option configures the engine created by [New].
type Option func(*settings)

type settings struct {
	pipeline rag.PipelineConfig
	caps     rag.Capabilities
	worker   jobs.WorkerConfig
	recorder metrics.Recorder
	logger   *zap.Logger
}

// WithGenerator sets the text generation capability.
func WithGenerator(g rag.TextGenerator) Option {
	return func(s *settings) { s.caps.Generator = g }
}

// WithSearcher sets the document retrieval capability.
func WithSearcher(sr rag.Searcher) Option {
	return func(s *settings) { s.caps.Searcher = sr }
}

// WithEmbedder sets the embedding capability, paired with [WithVectorIndex].
func WithEmbedder(e rag.Embedder) Option {
	return func(s *settings) { s.caps.Embedder = e }
}

// WithVectorIndex sets the vector index searched via the embedder.
func WithVectorIndex(idx rag.VectorIndex) Option {
	return func(s *settings) { s.caps.Index = idx }
}

// WithPipelineConfig overrides the pipeline configuration.
func WithPipelineConfig(cfg rag.PipelineConfig) Option {
	return func(s *settings) { s.pipeline = cfg }
}

// WithWorkerConfig overrides the worker configuration.
func WithWorkerConfig(cfg jobs.WorkerConfig) Option {
	return func(s *settings) { s.worker = cfg }
}

// WithRecorder sets a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Engine bundles the pipeline, worker and job service over in-memory
// backends.
type Engine struct {
	// Service exposes enqueue / cancel / status / event consumption.
	Service *jobs.Service
	worker  *jobs.Worker
}

// New assembles an engine. All options are optional; with no generator
// or searcher the pipeline runs in its deterministic fallback mode.
func New(opts ...Option) *Engine {
	s := settings{
		pipeline: rag.DefaultPipelineConfig(),
		worker:   jobs.DefaultWorkerConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	pipeline := rag.NewPipeline(s.pipeline, s.caps, s.recorder, s.logger)
	queue := jobs.NewMemoryJobQueue()
	events := jobs.NewMemoryEventQueue(0, s.recorder)
	store := jobs.NewMemoryStatusStore()

	worker := jobs.NewWorker(s.worker, queue, events, store, pipeline, s.recorder, s.logger).
		WithCheckpoints(checkpoint.NewMemoryStore(0))

	return &Engine{
		Service: jobs.NewService(queue, events, store, s.logger),
		worker:  worker,
	}
}

// Run drives the worker loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	return e.worker.Run(ctx)
}

// Ask enqueues a question and returns the event stream for its job.
func (e *Engine) Ask(ctx context.Context, question string) (<-chan stream.Event, error) {
	job, err := e.Service.Enqueue(ctx, jobs.AskRequest{Question: question})
	if err != nil {
		return nil, err
	}
	return e.Service.Consume(ctx, job.ID), nil
}
