package rag

import (
	"context"

	"github.com/askforge/askforge/types"
)

// generatorFunc 让测试用闭包充当 TextGenerator。
type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// searcherFunc 让测试用闭包充当 Searcher。
type searcherFunc func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error)

func (f searcherFunc) Search(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
	return f(ctx, query, k, filter)
}

func doc(sourceID, content string, score float64) types.Document {
	return types.Document{SourceID: sourceID, Content: content, Score: score, ScoreType: types.ScoreSimilarity}
}
