package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// DecomposerConfig 查询分解配置。
type DecomposerConfig struct {
	// MaxSubQueries 子查询上限。
	MaxSubQueries int
}

// DefaultDecomposerConfig 返回默认分解配置。
func DefaultDecomposerConfig() DecomposerConfig {
	return DecomposerConfig{MaxSubQueries: 4}
}

// 剥离 LLM 输出行首的编号与项目符号。
var bulletPrefix = regexp.MustCompile(`^[\s\-\*•>]*(?:\d+[.)]\s*)?`)

// 规则回退：按并列连接词切分复合问题。
var conjunctionSplit = regexp.MustCompile(`(?i)\s*(?:\band\b|\bor\b|\bvs\.?\b|\bversus\b|\bcompared? (?:to|with)\b|\bdifference between\b|,|/|;)\s*`)

// QueryDecomposer 把复合问题拆成独立可检索的子查询。
// 有 LLM 时走提示词，失败或输出退化时回退到连接词切分；
// 任何路径都保证返回 1..MaxSubQueries 条非空查询。
type QueryDecomposer struct {
	config    DecomposerConfig
	generator TextGenerator
	logger    *zap.Logger
}

// NewQueryDecomposer 创建查询分解器。generator 可为 nil。
func NewQueryDecomposer(config DecomposerConfig, generator TextGenerator, logger *zap.Logger) *QueryDecomposer {
	if config.MaxSubQueries < 1 {
		config.MaxSubQueries = DefaultDecomposerConfig().MaxSubQueries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryDecomposer{
		config:    config,
		generator: generator,
		logger:    logger.With(zap.String("component", "query_decomposer")),
	}
}

// Decompose 返回去重后的子查询列表。分解失败时返回原问题本身。
func (d *QueryDecomposer) Decompose(ctx context.Context, question string) []string {
	question = strings.TrimSpace(question)
	if question == "" {
		return []string{""}
	}

	if d.generator != nil {
		if queries := d.decomposeByLLM(ctx, question); len(queries) > 1 {
			return queries
		}
	}
	if queries := d.decomposeByRules(question); len(queries) > 1 {
		return queries
	}
	return []string{question}
}

func (d *QueryDecomposer) decomposeByLLM(ctx context.Context, question string) []string {
	out, err := d.generator.Generate(ctx, fmt.Sprintf(decomposePrompt, d.config.MaxSubQueries, question))
	if err != nil {
		d.logger.Debug("llm decompose failed, falling back to rules", zap.Error(err))
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return d.normalize(lines)
}

func (d *QueryDecomposer) decomposeByRules(question string) []string {
	return d.normalize(conjunctionSplit.Split(question, -1))
}

// normalize 折叠空白、去重并截断到 MaxSubQueries。
func (d *QueryDecomposer) normalize(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	var queries []string
	for _, q := range candidates {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
		if len(queries) == d.config.MaxSubQueries {
			break
		}
	}
	return queries
}
