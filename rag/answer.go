package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/askforge/askforge/types"
)

// AnswerConfig 有据生成配置。
type AnswerConfig struct {
	// ContextTokenBudget 进入提示词的证据 token 预算。
	ContextTokenBudget int
	// Encoding tiktoken 编码名。
	Encoding string
	// FallbackBullets 无 LLM 回退答案的要点条数上限。
	FallbackBullets int
	// FallbackExcerptChars 单条要点的摘录字符上限。
	FallbackExcerptChars int
}

// DefaultAnswerConfig 返回默认生成配置。
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		ContextTokenBudget:   3000,
		Encoding:             "cl100k_base",
		FallbackBullets:      3,
		FallbackExcerptChars: 140,
	}
}

// AnswerGenerator 基于检索上下文生成有据答案。
// 证据按分数顺序填充，直到耗尽 token 预算；无 LLM 或生成失败时
// 退化为逐条摘录的提取式答案。
type AnswerGenerator struct {
	config    AnswerConfig
	generator TextGenerator
	encoder   *tiktoken.Tiktoken
	logger    *zap.Logger
}

// NewAnswerGenerator 创建生成器。generator 可为 nil（纯提取模式）。
func NewAnswerGenerator(config AnswerConfig, generator TextGenerator, logger *zap.Logger) *AnswerGenerator {
	def := DefaultAnswerConfig()
	if config.ContextTokenBudget < 1 {
		config.ContextTokenBudget = def.ContextTokenBudget
	}
	if config.Encoding == "" {
		config.Encoding = def.Encoding
	}
	if config.FallbackBullets < 1 {
		config.FallbackBullets = def.FallbackBullets
	}
	if config.FallbackExcerptChars < 1 {
		config.FallbackExcerptChars = def.FallbackExcerptChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "answer_generator"))

	encoder, err := tiktoken.GetEncoding(config.Encoding)
	if err != nil {
		// 编码表加载失败时用字符近似估算，生成仍可用。
		logger.Warn("tiktoken encoding unavailable, using char approximation",
			zap.String("encoding", config.Encoding),
			zap.Error(err))
		encoder = nil
	}
	return &AnswerGenerator{
		config:    config,
		generator: generator,
		encoder:   encoder,
		logger:    logger,
	}
}

// Generate 返回答案文本与是否出自 LLM。上下文为空时返回空答案。
func (g *AnswerGenerator) Generate(ctx context.Context, question string, contexts []types.Document) (string, bool) {
	evidence := g.formatEvidence(contexts)
	if evidence == "" {
		return "", false
	}
	if g.generator == nil {
		return g.extractiveAnswer(question, contexts), false
	}

	out, err := g.generator.Generate(ctx, fmt.Sprintf(answerPrompt, evidence, question))
	if err != nil {
		g.logger.Warn("answer generation failed, using extractive fallback", zap.Error(err))
		return g.extractiveAnswer(question, contexts), false
	}
	answer := strings.Join(strings.Fields(out), " ")
	if answer == "" {
		return g.extractiveAnswer(question, contexts), false
	}
	return answer, true
}

// formatEvidence 按顺序拼接 "[sourceID] content" 行，受 token 预算约束。
// 预算内放不下任何一行时仍保留首行，保证非空上下文产出非空证据。
func (g *AnswerGenerator) formatEvidence(contexts []types.Document) string {
	var lines []string
	spent := 0
	for _, doc := range contexts {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		line := fmt.Sprintf("[%s] %s", doc.SourceID, content)
		cost := g.countTokens(line)
		if len(lines) > 0 && spent+cost > g.config.ContextTokenBudget {
			break
		}
		lines = append(lines, line)
		spent += cost
	}
	return strings.Join(lines, "\n")
}

func (g *AnswerGenerator) countTokens(text string) int {
	if g.encoder != nil {
		return len(g.encoder.Encode(text, nil, nil))
	}
	return len([]rune(text))/4 + 1
}

// extractiveAnswer 在无法调用 LLM 时给出逐条摘录的答案。
func (g *AnswerGenerator) extractiveAnswer(question string, contexts []types.Document) string {
	var bullets []string
	for _, doc := range contexts {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		runes := []rune(content)
		if len(runes) > g.config.FallbackExcerptChars {
			content = string(runes[:g.config.FallbackExcerptChars]) + "…"
		}
		bullets = append(bullets, fmt.Sprintf("- [%s] %s", doc.SourceID, content))
		if len(bullets) == g.config.FallbackBullets {
			break
		}
	}
	if len(bullets) == 0 {
		return ""
	}
	return fmt.Sprintf("Question: %s\nEvidence excerpts:\n%s", question, strings.Join(bullets, "\n"))
}
