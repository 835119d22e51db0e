package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askforge/askforge/types"
)

func TestAnswerEmptyContexts(t *testing.T) {
	g := NewAnswerGenerator(DefaultAnswerConfig(), nil, nil)

	answer, fromLLM := g.Generate(context.Background(), "question", nil)
	assert.Empty(t, answer)
	assert.False(t, fromLLM)

	// 只有空白内容的上下文等同于空。
	answer, fromLLM = g.Generate(context.Background(), "question", []types.Document{doc("s1", "   ", 0.9)})
	assert.Empty(t, answer)
	assert.False(t, fromLLM)
}

func TestAnswerFromLLM(t *testing.T) {
	var prompt string
	gen := generatorFunc(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "The Petrov defence [src-1] is\n a symmetric  opening.", nil
	})
	g := NewAnswerGenerator(DefaultAnswerConfig(), gen, nil)

	contexts := []types.Document{doc("src-1", "the petrov defence is a chess opening", 0.9)}
	answer, fromLLM := g.Generate(context.Background(), "what is the petrov defence", contexts)

	assert.True(t, fromLLM)
	// 答案空白被折叠成单个空格。
	assert.Equal(t, "The Petrov defence [src-1] is a symmetric opening.", answer)
	assert.Contains(t, prompt, "[src-1] the petrov defence is a chess opening")
	assert.Contains(t, prompt, "what is the petrov defence")
}

func TestAnswerExtractiveFallback(t *testing.T) {
	tests := []struct {
		name string
		gen  TextGenerator
	}{
		{"nil generator", nil},
		{"generator error", generatorFunc(func(ctx context.Context, p string) (string, error) {
			return "", errors.New("provider down")
		})},
		{"blank output", generatorFunc(func(ctx context.Context, p string) (string, error) {
			return "   \n ", nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewAnswerGenerator(DefaultAnswerConfig(), tt.gen, nil)
			contexts := []types.Document{
				doc("s1", "first evidence passage", 0.9),
				doc("s2", "second evidence passage", 0.8),
				doc("s3", "third evidence passage", 0.7),
				doc("s4", "fourth evidence passage", 0.6),
			}
			answer, fromLLM := g.Generate(context.Background(), "question", contexts)
			assert.False(t, fromLLM)
			assert.Contains(t, answer, "- [s1] first evidence passage")
			assert.Contains(t, answer, "- [s3]")
			// 回退要点数受上限约束。
			assert.NotContains(t, answer, "[s4]")
		})
	}
}

func TestAnswerFallbackExcerptTruncated(t *testing.T) {
	g := NewAnswerGenerator(DefaultAnswerConfig(), nil, nil)
	long := strings.Repeat("evidence ", 50)
	answer, _ := g.Generate(context.Background(), "q", []types.Document{doc("s1", long, 0.9)})
	assert.Contains(t, answer, "…")
}

func TestAnswerTokenBudgetKeepsFirstLine(t *testing.T) {
	var prompt string
	gen := generatorFunc(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "grounded answer", nil
	})
	cfg := DefaultAnswerConfig()
	cfg.ContextTokenBudget = 1
	g := NewAnswerGenerator(cfg, gen, nil)

	contexts := []types.Document{
		doc("s1", strings.Repeat("alpha ", 100), 0.9),
		doc("s2", "short second passage", 0.8),
	}
	answer, fromLLM := g.Generate(context.Background(), "question", contexts)
	assert.True(t, fromLLM)
	assert.Equal(t, "grounded answer", answer)
	// 预算再小也保留首行证据，后续行被裁掉。
	assert.Contains(t, prompt, "[s1]")
	assert.NotContains(t, prompt, "[s2]")
}
