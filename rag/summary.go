package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askforge/askforge/types"
)

// SummaryConfig 对话摘要配置。
type SummaryConfig struct {
	// TurnThreshold 超过该轮数后每轮触发摘要。
	TurnThreshold int
	// MaxHistoryItems 进入摘要的最近历史条目数。
	MaxHistoryItems int
	// MaxOutputChars 摘要输出的字符上限。
	MaxOutputChars int
	// FallbackLines 无 LLM 回退摘要保留的行数。
	FallbackLines int
}

// DefaultSummaryConfig 返回默认摘要配置。
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		TurnThreshold:   5,
		MaxHistoryItems: 12,
		MaxOutputChars:  600,
		FallbackLines:   5,
	}
}

// Summarizer 维护跨轮对话的滚动摘要。
// 有 LLM 时把旧摘要与最近历史压缩为新摘要；否则拼接最近若干条
// 问答行作为粗摘要。生成失败时保留旧摘要不变。
type Summarizer struct {
	config    SummaryConfig
	generator TextGenerator
	logger    *zap.Logger
}

// NewSummarizer 创建摘要器。generator 可为 nil。
func NewSummarizer(config SummaryConfig, generator TextGenerator, logger *zap.Logger) *Summarizer {
	def := DefaultSummaryConfig()
	if config.TurnThreshold < 1 {
		config.TurnThreshold = def.TurnThreshold
	}
	if config.MaxHistoryItems < 1 {
		config.MaxHistoryItems = def.MaxHistoryItems
	}
	if config.MaxOutputChars < 1 {
		config.MaxOutputChars = def.MaxOutputChars
	}
	if config.FallbackLines < 1 {
		config.FallbackLines = def.FallbackLines
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		config:    config,
		generator: generator,
		logger:    logger.With(zap.String("component", "summarizer")),
	}
}

// ShouldRun 判断当前轮数是否触发摘要。
func (s *Summarizer) ShouldRun(turnCount int) bool {
	return turnCount > s.config.TurnThreshold
}

// Summarize 返回更新后的摘要。历史为空时返回旧摘要。
func (s *Summarizer) Summarize(ctx context.Context, history []types.HistoryTurn, previous string) string {
	recent := history
	if len(recent) > s.config.MaxHistoryItems {
		recent = recent[len(recent)-s.config.MaxHistoryItems:]
	}
	if len(recent) == 0 {
		return previous
	}

	var lines []string
	for _, turn := range recent {
		content := strings.Join(strings.Fields(turn.Content), " ")
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, content))
	}
	if len(lines) == 0 {
		return previous
	}

	if s.generator != nil {
		prompt := fmt.Sprintf(summaryPrompt, previous, strings.Join(lines, "\n"), s.config.MaxOutputChars)
		out, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			s.logger.Warn("summary generation failed, using rule fallback", zap.Error(err))
			return s.ruleSummary(lines)
		}
		if summary := strings.TrimSpace(out); summary != "" {
			return s.truncate(summary)
		}
		return s.ruleSummary(lines)
	}

	return s.ruleSummary(lines)
}

// ruleSummary 由最后 FallbackLines 条渲染后的历史行生成规则摘要。
func (s *Summarizer) ruleSummary(lines []string) string {
	if len(lines) > s.config.FallbackLines {
		lines = lines[len(lines)-s.config.FallbackLines:]
	}
	return s.truncate(strings.Join(lines, "\n"))
}

func (s *Summarizer) truncate(summary string) string {
	runes := []rune(summary)
	if len(runes) > s.config.MaxOutputChars {
		return string(runes[:s.config.MaxOutputChars])
	}
	return summary
}
