package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askforge/askforge/types"
)

// AdaptiveConfig 自适应回退检索配置。
type AdaptiveConfig struct {
	// BaseK 初次检索的文档数。
	BaseK int
	// HydeK HyDE 回退检索的文档数。
	HydeK int
	// MaxHypotheticalChars 假设性文档的字符上限。
	MaxHypotheticalChars int
	// StyleHint 基线检索为空时使用的默认文体提示。
	StyleHint string
	// StyleHintChars 从基线首文档提取文体提示的字符上限。
	StyleHintChars int
}

// DefaultAdaptiveConfig 返回默认自适应检索配置。
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		BaseK:                3,
		HydeK:                3,
		MaxHypotheticalChars: 1200,
		StyleHint:            "general reference document",
		StyleHintChars:       300,
	}
}

// AdaptiveRetriever 先按原问题检索，结果不足时走 HyDE 回退：
// 生成一段假设性答案文档，再以该文档为查询补检，最后合并两路结果。
// 不足的判定：零命中，或包含问题词元（≥2 字符）的文档少于
// max(1, 文档数/2)。检索器自身绝不报错，失败折叠为空结果。
type AdaptiveRetriever struct {
	config    AdaptiveConfig
	searcher  Searcher
	generator TextGenerator
	merger    *Merger
	logger    *zap.Logger
}

// NewAdaptiveRetriever 创建自适应检索器。generator 可为 nil，此时
// 回退只是在问题后附加文体提示重查。
func NewAdaptiveRetriever(config AdaptiveConfig, searcher Searcher, generator TextGenerator, merger *Merger, logger *zap.Logger) *AdaptiveRetriever {
	def := DefaultAdaptiveConfig()
	if config.BaseK < 1 {
		config.BaseK = def.BaseK
	}
	if config.HydeK < 1 {
		config.HydeK = def.HydeK
	}
	if config.MaxHypotheticalChars < 1 {
		config.MaxHypotheticalChars = def.MaxHypotheticalChars
	}
	if config.StyleHint == "" {
		config.StyleHint = def.StyleHint
	}
	if config.StyleHintChars < 1 {
		config.StyleHintChars = def.StyleHintChars
	}
	if merger == nil {
		merger = NewMerger(DefaultMergerConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptiveRetriever{
		config:    config,
		searcher:  searcher,
		generator: generator,
		merger:    merger,
		logger:    logger.With(zap.String("component", "adaptive_retriever")),
	}
}

// Retrieve 执行 search → judge → hyde → merge，返回合并后的文档。
func (r *AdaptiveRetriever) Retrieve(ctx context.Context, question string) []types.Document {
	question = strings.TrimSpace(question)
	if question == "" || r.searcher == nil {
		return nil
	}

	base := r.search(ctx, question, r.config.BaseK)
	if !r.insufficient(question, base) {
		return r.merger.Merge(base)
	}

	r.logger.Debug("base retrieval insufficient, running hyde fallback",
		zap.Int("base_docs", len(base)))
	hyde := r.search(ctx, r.hydeQuery(ctx, question, base), r.config.HydeK)
	return r.merger.Merge(base, hyde)
}

func (r *AdaptiveRetriever) search(ctx context.Context, query string, k int) []types.Document {
	docs, err := r.searcher.Search(ctx, query, k, nil)
	if err != nil {
		r.logger.Warn("adaptive search failed", zap.Error(err))
		return nil
	}
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		doc.RetrievalQuery = query
		out = append(out, types.Normalize(doc))
	}
	return out
}

// insufficient 判断初次检索结果是否值得触发 HyDE。
func (r *AdaptiveRetriever) insufficient(question string, docs []types.Document) bool {
	if len(docs) == 0 {
		return true
	}
	tokens := questionTokens(question)
	if len(tokens) == 0 {
		return false
	}
	hits := 0
	for _, doc := range docs {
		if containsAnyToken(doc.Content, tokens) {
			hits++
		}
	}
	need := len(docs) / 2
	if need < 1 {
		need = 1
	}
	return hits < need
}

// hydeQuery 生成补检查询：优先用 LLM 假设性文档，失败时退回
// 问题加文体提示。文体提示取自基线首文档的前若干字符，基线为空时
// 用配置的默认提示。
func (r *AdaptiveRetriever) hydeQuery(ctx context.Context, question string, base []types.Document) string {
	hint := r.styleHint(base)
	fallback := question + "\n" + hint
	if r.generator == nil {
		return fallback
	}
	out, err := r.generator.Generate(ctx, fmt.Sprintf(hydePrompt, hint, question))
	if err != nil {
		r.logger.Debug("hyde generation failed, re-querying with style hint", zap.Error(err))
		return fallback
	}
	hypothetical := strings.TrimSpace(out)
	if hypothetical == "" {
		return fallback
	}
	runes := []rune(hypothetical)
	if len(runes) > r.config.MaxHypotheticalChars {
		hypothetical = string(runes[:r.config.MaxHypotheticalChars])
	}
	return hypothetical
}

// styleHint 从基线首文档提取压缩后的前 StyleHintChars 个字符。
func (r *AdaptiveRetriever) styleHint(base []types.Document) string {
	if len(base) == 0 {
		return r.config.StyleHint
	}
	compact := strings.Join(strings.Fields(base[0].Content), " ")
	if compact == "" {
		return r.config.StyleHint
	}
	runes := []rune(compact)
	if len(runes) > r.config.StyleHintChars {
		compact = string(runes[:r.config.StyleHintChars])
	}
	return compact
}
