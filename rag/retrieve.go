package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/askforge/askforge/types"
)

// DecomposeRetriever 串联查询分解与有界并发检索：
// 分解出的每个子查询独立检索，各组先做相关性复核再平铺为一份列表。
type DecomposeRetriever struct {
	decomposer *QueryDecomposer
	retriever  *ParallelRetriever
	k          int
	logger     *zap.Logger
}

// NewDecomposeRetriever 创建分解检索器。k 是单个子查询的检索数。
func NewDecomposeRetriever(decomposer *QueryDecomposer, retriever *ParallelRetriever, k int, logger *zap.Logger) *DecomposeRetriever {
	if k < 1 {
		k = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecomposeRetriever{
		decomposer: decomposer,
		retriever:  retriever,
		k:          k,
		logger:     logger.With(zap.String("component", "decompose_retriever")),
	}
}

// Retrieve 返回全部子查询的检索结果（平铺、未合并）。
// 仅当 ctx 在调度阶段已取消时返回错误。
func (r *DecomposeRetriever) Retrieve(ctx context.Context, question string) ([]types.Document, error) {
	queries := r.decomposer.Decompose(ctx, question)
	r.logger.Debug("decomposed question", zap.Int("queries", len(queries)))

	groups, err := r.retriever.Search(ctx, queries, r.k)
	if err != nil {
		return nil, err
	}
	groups = r.retriever.VerifyGroups(question, groups)

	var docs []types.Document
	for _, group := range groups {
		docs = append(docs, group...)
	}
	return docs, nil
}
