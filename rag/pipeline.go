package rag

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askforge/askforge/internal/metrics"
	"github.com/askforge/askforge/types"
)

// Stage 管线阶段。
type Stage int

const (
	StageSafeguard Stage = iota
	StageRetrieve
	StagePolicyFilter
	StageNormalize
	StageMerge
	StagePostprocess
	StageGenerate
	StageSummary
	StageEnd
)

var stageNames = map[Stage]string{
	StageSafeguard:    "safeguard",
	StageRetrieve:     "retrieve",
	StagePolicyFilter: "policy_filter",
	StageNormalize:    "normalize",
	StageMerge:        "merge",
	StagePostprocess:  "postprocess",
	StageGenerate:     "generate",
	StageSummary:      "summary",
	StageEnd:          "end",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// 检索路由标记。
const (
	RouteDecomposeAdaptive = "decompose+adaptive"
	RouteRetrieveFailed    = "retrieve_failed"
)

// SnippetChars 来源条目的摘录字符上限。
const SnippetChars = 300

// PipelineConfig 聚合各阶段配置。
type PipelineConfig struct {
	Safeguard     SafeguardConfig
	Decomposer    DecomposerConfig
	Retriever     ParallelRetrieverConfig
	Adaptive      AdaptiveConfig
	Merger        MergerConfig
	PostProcessor PostProcessorConfig
	Answer        AnswerConfig
	Summary       SummaryConfig
	// SearchK 单个子查询的检索数。
	SearchK int
}

// DefaultPipelineConfig 返回全部阶段的默认配置。
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Safeguard:     DefaultSafeguardConfig(),
		Decomposer:    DefaultDecomposerConfig(),
		Retriever:     DefaultParallelRetrieverConfig(),
		Adaptive:      DefaultAdaptiveConfig(),
		Merger:        DefaultMergerConfig(),
		PostProcessor: DefaultPostProcessorConfig(),
		Answer:        DefaultAnswerConfig(),
		Summary:       DefaultSummaryConfig(),
		SearchK:       5,
	}
}

// Capabilities 管线依赖的外部能力。全部可缺省：
// Searcher 为 nil 且提供了 Embedder + Index 时会自动组装向量检索；
// Generator 为 nil 时所有生成阶段走确定性回退。
type Capabilities struct {
	Generator TextGenerator
	Embedder  Embedder
	Index     VectorIndex
	Searcher  Searcher
}

type stageFunc func(ctx context.Context, state *types.PipelineState)

// Pipeline 固定阶段的问答状态机。
// 阶段处理器只写 state、不返回错误；失败折叠为 route / errorCode，
// 由生成阶段转换为用户可见的回退答案。一旦 errorCode 被置位，
// 生成阶段必然短路为对应的回退答案。
type Pipeline struct {
	classifier *SafetyClassifier
	retriever  *DecomposeRetriever
	adaptive   *AdaptiveRetriever
	merger     *Merger
	post       *PostProcessor
	answerer   *AnswerGenerator
	summarizer *Summarizer

	handlers map[Stage]stageFunc
	recorder metrics.Recorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewPipeline 组装全部阶段组件并编译阶段转移表。
func NewPipeline(config PipelineConfig, caps Capabilities, recorder metrics.Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	searcher := caps.Searcher
	if searcher == nil && caps.Embedder != nil && caps.Index != nil {
		searcher = NewVectorSearcher(caps.Embedder, caps.Index)
	}

	merger := NewMerger(config.Merger)
	p := &Pipeline{
		classifier: NewSafetyClassifier(config.Safeguard, caps.Generator, logger),
		retriever: NewDecomposeRetriever(
			NewQueryDecomposer(config.Decomposer, caps.Generator, logger),
			NewParallelRetriever(config.Retriever, searcher, logger),
			config.SearchK,
			logger,
		),
		adaptive:   NewAdaptiveRetriever(config.Adaptive, searcher, caps.Generator, merger, logger),
		merger:     merger,
		post:       NewPostProcessor(config.PostProcessor),
		answerer:   NewAnswerGenerator(config.Answer, caps.Generator, logger),
		summarizer: NewSummarizer(config.Summary, caps.Generator, logger),
		recorder:   recorder,
		tracer:     otel.Tracer("github.com/askforge/askforge/rag"),
		logger:     logger.With(zap.String("component", "pipeline")),
	}
	p.handlers = map[Stage]stageFunc{
		StageSafeguard:    p.runSafeguard,
		StageRetrieve:     p.runRetrieve,
		StagePolicyFilter: p.runPolicyFilter,
		StageNormalize:    p.runNormalize,
		StageMerge:        p.runMerge,
		StagePostprocess:  p.runPostprocess,
		StageGenerate:     p.runGenerate,
		StageSummary:      p.runSummary,
	}
	return p
}

// Run 驱动状态机从安全分类跑到终态，原地修改并返回 state。
// 返回 error 仅表示调用方错误（state 为 nil）。
func (p *Pipeline) Run(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	if state == nil {
		return nil, types.NewError(types.ErrValidation, "pipeline state must not be nil")
	}
	state.EnsureDefaults()

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("trace_id", state.TraceID)))
	defer span.End()

	start := time.Now()
	for stage := StageSafeguard; stage != StageEnd; stage = p.next(stage, state) {
		p.runStage(ctx, stage, state)
	}
	p.recorder.PipelineRun(state.Route, string(state.ErrorCode), time.Since(start))

	p.logger.Info("pipeline finished",
		zap.String("trace_id", state.TraceID),
		zap.String("route", state.Route),
		zap.String("error_code", string(state.ErrorCode)),
		zap.Int("contexts", len(state.Contexts)),
		zap.Duration("elapsed", time.Since(start)))
	return state, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, state *types.PipelineState) {
	ctx, span := p.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage", stage.String())))
	defer span.End()

	start := time.Now()
	p.handlers[stage](ctx, state)
	p.recorder.StageDuration(stage.String(), time.Since(start))
}

// next 是编译进状态机的转移表。唯一的条件边在 generate 之后。
func (p *Pipeline) next(stage Stage, state *types.PipelineState) Stage {
	switch stage {
	case StageSafeguard:
		return StageRetrieve
	case StageRetrieve:
		return StagePolicyFilter
	case StagePolicyFilter:
		return StageNormalize
	case StageNormalize:
		return StageMerge
	case StageMerge:
		return StagePostprocess
	case StagePostprocess:
		return StageGenerate
	case StageGenerate:
		if p.summarizer.ShouldRun(state.TurnCount) {
			return StageSummary
		}
		return StageEnd
	default:
		return StageEnd
	}
}

func (p *Pipeline) runSafeguard(ctx context.Context, state *types.PipelineState) {
	state.SafeguardLabel = p.classifier.Classify(ctx, state.Question)
}

// runRetrieve 并发跑两路检索并拼接结果。任一路的调度错误
// 使整个阶段失败：上下文清空、route 记为检索失败。
func (p *Pipeline) runRetrieve(ctx context.Context, state *types.PipelineState) {
	var decomposed, adaptive []types.Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := p.retriever.Retrieve(gctx, state.Question)
		decomposed = docs
		return err
	})
	g.Go(func() error {
		adaptive = p.adaptive.Retrieve(gctx, state.Question)
		return nil
	})
	if err := g.Wait(); err != nil {
		p.logger.Warn("retrieval failed", zap.Error(err))
		state.Contexts = nil
		state.Route = RouteRetrieveFailed
		if state.ErrorCode == "" {
			state.ErrorCode = types.CodeFromError(err)
		}
		return
	}

	p.recorder.DocsRetrieved("decompose", len(decomposed))
	p.recorder.DocsRetrieved("adaptive", len(adaptive))
	state.Contexts = append(decomposed, adaptive...)
	state.Route = RouteDecomposeAdaptive
}

func (p *Pipeline) runPolicyFilter(ctx context.Context, state *types.PipelineState) {
	state.Contexts = p.post.FilterPolicy(state.Contexts, state.Language)
}

func (p *Pipeline) runNormalize(ctx context.Context, state *types.PipelineState) {
	for i := range state.Contexts {
		state.Contexts[i] = types.NormalizeScore(types.Normalize(state.Contexts[i]))
	}
}

func (p *Pipeline) runMerge(ctx context.Context, state *types.PipelineState) {
	state.Contexts = p.merger.Merge(state.Contexts)
}

func (p *Pipeline) runPostprocess(ctx context.Context, state *types.PipelineState) {
	state.Contexts = p.post.Process(state.Contexts)
}

// runGenerate 收敛全部失败路径：被拦截的问题、空上下文、此前置位的
// errorCode 都在这里变成确定性的回退答案；只有干净路径调用 LLM。
func (p *Pipeline) runGenerate(ctx context.Context, state *types.PipelineState) {
	retrieved := len(state.Contexts)

	fallback := func(code types.ErrorCode) {
		state.Answer = code.UserMessage()
		state.Sources = nil
		state.ErrorCode = code
		state.RetrievalStats = &types.RetrievalStats{Retrieved: retrieved}
	}

	switch {
	case state.SafeguardLabel.Blocked():
		fallback(state.SafeguardLabel.BlockCode())
	case state.ErrorCode != "":
		fallback(state.ErrorCode)
	case retrieved == 0:
		fallback(types.ErrRetrievalEmpty)
	default:
		answer, fromLLM := p.answerer.Generate(ctx, state.Question, state.Contexts)
		if strings.TrimSpace(answer) == "" {
			fallback(types.ErrLLMFailed)
			break
		}
		state.Answer = answer
		state.Sources = toSourceItems(state.Contexts)
		state.RetrievalStats = &types.RetrievalStats{Retrieved: retrieved, Used: len(state.Sources)}
		if !fromLLM {
			state.ErrorCode = types.ErrLLMFailed
		}
	}
	state.AppendTurn(state.Question, state.Answer)
}

func (p *Pipeline) runSummary(ctx context.Context, state *types.PipelineState) {
	state.Summary = p.summarizer.Summarize(ctx, state.History, state.Summary)
}

// toSourceItems 把最终上下文映射为对外的来源条目。
func toSourceItems(contexts []types.Document) []types.SourceItem {
	items := make([]types.SourceItem, 0, len(contexts))
	for _, doc := range contexts {
		snippet := doc.Snippet
		if snippet == "" {
			runes := []rune(doc.Content)
			if len(runes) > SnippetChars {
				runes = runes[:SnippetChars]
			}
			snippet = string(runes)
		}
		items = append(items, types.SourceItem{
			SourceID: doc.SourceID,
			Title:    doc.Title,
			Snippet:  snippet,
			Score:    doc.Score,
			Metadata: doc.Metadata,
		})
	}
	return items
}
