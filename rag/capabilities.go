package rag

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/askforge/askforge/types"
)

// TextGenerator 是管线消费的文本生成能力。
// 实现方（OpenAI、本地模型等）负责自己的重试与超时策略；
// 管线只看结果：返回错误或空串都会触发对应阶段的回退路径。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder 将文本编码为向量，供向量索引检索使用。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Searcher 按查询文本返回候选文档。
// 返回的文档允许缺字段、允许 distance 分数；归一化由管线负责。
type Searcher interface {
	Search(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error)
}

// VectorIndex 是底层向量存储的检索面，由 Embedder 适配为 Searcher。
type VectorIndex interface {
	Search(ctx context.Context, vector []float64, k int, filter map[string]any) ([]types.Document, error)
}

// vectorSearcher 把 Embedder + VectorIndex 组合为 Searcher。
type vectorSearcher struct {
	embedder Embedder
	index    VectorIndex
}

// NewVectorSearcher 返回先嵌入查询、再按向量检索的 Searcher。
func NewVectorSearcher(embedder Embedder, index VectorIndex) Searcher {
	return &vectorSearcher{embedder: embedder, index: index}
}

func (s *vectorSearcher) Search(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.index.Search(ctx, vec, k, filter)
}

// RateLimitedGenerator 用令牌桶限制对底层生成器的调用速率。
// Generate 在获得令牌前阻塞，ctx 取消时立即返回。
type RateLimitedGenerator struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator 包装 inner，限制为每秒 rps 次调用、突发 burst 次。
func NewRateLimitedGenerator(inner TextGenerator, rps float64, burst int) *RateLimitedGenerator {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return g.inner.Generate(ctx, prompt)
}
