package rag

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/askforge/askforge/types"
)

// ParallelRetrieverConfig 并发检索配置。
type ParallelRetrieverConfig struct {
	// MaxConcurrency 同时在途的检索上限。
	MaxConcurrency int
	// Timeout 单个查询的检索超时。
	Timeout time.Duration
	// VerifyRelevance 是否按词元重合做相关性复核。
	VerifyRelevance bool
	// VerifyTopK 复核后每组保留的文档上限。
	VerifyTopK int
}

// DefaultParallelRetrieverConfig 返回默认并发检索配置。
func DefaultParallelRetrieverConfig() ParallelRetrieverConfig {
	return ParallelRetrieverConfig{
		MaxConcurrency:  4,
		Timeout:         10 * time.Second,
		VerifyRelevance: true,
		VerifyTopK:      10,
	}
}

// ParallelRetriever 对多个查询做有界并发检索。
// 单查询失败或超时只产生空结果组，不影响其余查询；
// 结果组与输入查询按位置一一对应。
type ParallelRetriever struct {
	config   ParallelRetrieverConfig
	searcher Searcher
	logger   *zap.Logger
}

// NewParallelRetriever 创建并发检索器。searcher 可为 nil（所有组为空）。
func NewParallelRetriever(config ParallelRetrieverConfig, searcher Searcher, logger *zap.Logger) *ParallelRetriever {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = DefaultParallelRetrieverConfig().MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultParallelRetrieverConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParallelRetriever{
		config:   config,
		searcher: searcher,
		logger:   logger.With(zap.String("component", "parallel_retriever")),
	}
}

// Search 并发执行全部查询，返回与 queries 等长、按位对应的结果组。
// 仅当 ctx 在调度阶段已取消时返回错误。
func (r *ParallelRetriever) Search(ctx context.Context, queries []string, k int) ([][]types.Document, error) {
	groups := make([][]types.Document, len(queries))
	if r.searcher == nil || len(queries) == 0 {
		return groups, nil
	}

	sem := semaphore.NewWeighted(int64(r.config.MaxConcurrency))
	var wg sync.WaitGroup
	for i, query := range queries {
		if strings.TrimSpace(query) == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return groups, err
		}
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			defer sem.Release(1)
			groups[i] = r.searchOne(ctx, query, k)
		}(i, query)
	}
	wg.Wait()
	return groups, nil
}

func (r *ParallelRetriever) searchOne(ctx context.Context, query string, k int) []types.Document {
	qctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	docs, err := r.searcher.Search(qctx, query, k, nil)
	if err != nil {
		r.logger.Warn("search failed for query",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		doc.RetrievalQuery = query
		out = append(out, types.Normalize(doc))
	}
	return out
}

var wordToken = regexp.MustCompile(`[\p{L}\p{N}]+`)

// questionTokens 提取长度 ≥2 的小写词元。
func questionTokens(question string) []string {
	var tokens []string
	for _, tok := range wordToken.FindAllString(strings.ToLower(question), -1) {
		if len([]rune(tok)) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// containsAnyToken 判断文档内容是否命中任一词元。
func containsAnyToken(content string, tokens []string) bool {
	lowered := strings.ToLower(content)
	for _, tok := range tokens {
		if strings.Contains(lowered, tok) {
			return true
		}
	}
	return false
}

// VerifyGroups 用原始问题的词元重合过滤每个结果组。
// 过滤把某组清空时恢复该组原样，避免复核误杀掉唯一的候选。
func (r *ParallelRetriever) VerifyGroups(question string, groups [][]types.Document) [][]types.Document {
	if !r.config.VerifyRelevance {
		return groups
	}
	tokens := questionTokens(question)
	if len(tokens) == 0 {
		return groups
	}

	verified := make([][]types.Document, len(groups))
	for i, group := range groups {
		var kept []types.Document
		for _, doc := range group {
			if containsAnyToken(doc.Content, tokens) {
				kept = append(kept, doc)
			}
		}
		if len(kept) == 0 {
			kept = group
		}
		if r.config.VerifyTopK > 0 && len(kept) > r.config.VerifyTopK {
			kept = kept[:r.config.VerifyTopK]
		}
		verified[i] = kept
	}
	return verified
}
