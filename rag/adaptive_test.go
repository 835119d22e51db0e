package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askforge/askforge/types"
)

func TestAdaptiveSufficientSkipsHyde(t *testing.T) {
	var queries []string
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		queries = append(queries, query)
		return []types.Document{
			doc("s1", "the petrov defence is solid", 0.9),
			doc("s2", "petrov main line with nf6", 0.8),
		}, nil
	})
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), searcher, nil, nil, nil)

	out := r.Retrieve(context.Background(), "petrov defence")
	require.Len(t, queries, 1)
	assert.Len(t, out, 2)
}

func TestAdaptiveZeroHitsTriggersHyde(t *testing.T) {
	var queries []string
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		queries = append(queries, query)
		if len(queries) == 1 {
			return nil, nil
		}
		return []types.Document{doc("hyde-hit", "petrov defence passage", 0.7)}, nil
	})
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "The Petrov defence arises after 1.e4 e5 2.Nf3 Nf6.", nil
	})
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), searcher, gen, nil, nil)

	out := r.Retrieve(context.Background(), "petrov defence")
	require.Len(t, queries, 2)
	assert.Contains(t, queries[1], "Petrov defence arises")
	require.Len(t, out, 1)
	assert.Equal(t, "hyde-hit", out[0].SourceID)
}

func TestAdaptiveLowOverlapTriggersHyde(t *testing.T) {
	var queries []string
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		queries = append(queries, query)
		if len(queries) == 1 {
			// 四篇里只有一篇命中问题词元：少于 max(1, 4/2)。
			return []types.Document{
				doc("s1", "petrov defence overview", 0.9),
				doc("s2", "cooking pasta", 0.8),
				doc("s3", "garden tools", 0.7),
				doc("s4", "tax forms", 0.6),
			}, nil
		}
		return nil, nil
	})
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), searcher, nil, nil, nil)

	r.Retrieve(context.Background(), "petrov defence")
	require.Len(t, queries, 2)
	// 无 LLM 时回退查询是问题加文体提示。
	assert.Contains(t, queries[1], "petrov defence")
	assert.Contains(t, queries[1], DefaultAdaptiveConfig().StyleHint)
}

func TestAdaptiveHydeGenerationFailureUsesStyleHint(t *testing.T) {
	var queries []string
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		queries = append(queries, query)
		return nil, nil
	})
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("provider down")
	})
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), searcher, gen, nil, nil)

	out := r.Retrieve(context.Background(), "obscure topic")
	require.Len(t, queries, 2)
	assert.Contains(t, queries[1], "obscure topic")
	// 基线为空时文体提示用配置默认值。
	assert.Contains(t, queries[1], DefaultAdaptiveConfig().StyleHint)
	assert.Empty(t, out)
}

func TestAdaptiveStyleHintFromBaselineDoc(t *testing.T) {
	var queries []string
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		queries = append(queries, query)
		if len(queries) == 1 {
			return []types.Document{doc("base", "an  opening\tmanual   with uneven whitespace", 0.4)}, nil
		}
		return nil, nil
	})
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("provider down")
	})
	cfg := DefaultAdaptiveConfig()
	cfg.StyleHintChars = 20
	r := NewAdaptiveRetriever(cfg, searcher, gen, nil, nil)

	r.Retrieve(context.Background(), "obscure topic")
	require.Len(t, queries, 2)
	// 文体提示取自基线首文档：空白压缩后截断到上限。
	assert.Contains(t, queries[1], "an opening manual wi")
	assert.NotContains(t, queries[1], cfg.StyleHint)
}

func TestAdaptiveTruncatesHypothetical(t *testing.T) {
	var queries []string
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		queries = append(queries, query)
		return nil, nil
	})
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return strings.Repeat("petrov ", 400), nil
	})
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), searcher, gen, nil, nil)

	r.Retrieve(context.Background(), "petrov defence")
	require.Len(t, queries, 2)
	assert.LessOrEqual(t, len([]rune(queries[1])), DefaultAdaptiveConfig().MaxHypotheticalChars)
}

func TestAdaptiveNilSearcher(t *testing.T) {
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), nil, nil, nil, nil)
	assert.Empty(t, r.Retrieve(context.Background(), "anything"))
}

func TestAdaptiveMergesBaseAndHyde(t *testing.T) {
	call := 0
	searcher := searcherFunc(func(ctx context.Context, query string, k int, filter map[string]any) ([]types.Document, error) {
		call++
		if call == 1 {
			return []types.Document{doc("base", "unrelated text entirely", 0.6)}, nil
		}
		return []types.Document{doc("hyde", "another unrelated passage", 0.9)}, nil
	})
	r := NewAdaptiveRetriever(DefaultAdaptiveConfig(), searcher, nil, nil, nil)

	out := r.Retrieve(context.Background(), "petrov defence")
	require.Len(t, out, 2)
	// 合并后按分数降序。
	assert.Equal(t, "hyde", out[0].SourceID)
	assert.Equal(t, "base", out[1].SourceID)
}
