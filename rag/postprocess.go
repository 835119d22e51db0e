package rag

import (
	"strings"

	"github.com/askforge/askforge/types"
)

// PostProcessorConfig 后处理配置。
type PostProcessorConfig struct {
	// TopK 最终保留的文档上限。
	TopK int
	// MaxPerSource 单一来源的文档上限。
	MaxPerSource int
	// MaxCharsPerDoc 单篇文档压缩后的字符上限。
	MaxCharsPerDoc int
}

// DefaultPostProcessorConfig 返回默认后处理配置。
func DefaultPostProcessorConfig() PostProcessorConfig {
	return PostProcessorConfig{
		TopK:           5,
		MaxPerSource:   2,
		MaxCharsPerDoc: 500,
	}
}

// PostProcessor 对合并后的上下文做最终整形：去重、来源多样化、
// 按分重排、压缩截断、topK。另提供进入合并前的策略过滤。
type PostProcessor struct {
	config PostProcessorConfig
}

// NewPostProcessor 创建后处理器。
func NewPostProcessor(config PostProcessorConfig) *PostProcessor {
	def := DefaultPostProcessorConfig()
	if config.TopK < 1 {
		config.TopK = def.TopK
	}
	if config.MaxPerSource < 1 {
		config.MaxPerSource = def.MaxPerSource
	}
	if config.MaxCharsPerDoc < 1 {
		config.MaxCharsPerDoc = def.MaxCharsPerDoc
	}
	return &PostProcessor{config: config}
}

// Process 返回整形后的最终上下文。输入为空时返回空。
func (p *PostProcessor) Process(docs []types.Document) []types.Document {
	if len(docs) == 0 {
		return nil
	}
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, types.NormalizeScore(types.Normalize(doc)))
	}
	out = dedupe(out)
	out = diversify(out, p.config.MaxPerSource)
	sortByScore(out)
	for i := range out {
		out[i].Content = compress(out[i].Content, p.config.MaxCharsPerDoc)
	}
	if len(out) > p.config.TopK {
		out = out[:p.config.TopK]
	}
	return out
}

// FilterPolicy 按访问级别与语言过滤文档。
// access_level 缺失或 "public" 放行；language 缺失或与请求语言一致放行。
// requested 为空时不做语言过滤。
func (p *PostProcessor) FilterPolicy(docs []types.Document, requested string) []types.Document {
	requested = strings.ToLower(strings.TrimSpace(requested))
	out := docs[:0:0]
	for _, doc := range docs {
		if level, ok := metaString(doc.Metadata, "access_level"); ok && level != "public" {
			continue
		}
		if requested != "" {
			if lang, ok := metaString(doc.Metadata, "language"); ok && strings.ToLower(lang) != requested {
				continue
			}
		}
		out = append(out, doc)
	}
	return out
}

func metaString(meta map[string]any, key string) (string, bool) {
	if meta == nil {
		return "", false
	}
	raw, ok := meta[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// compress 折叠空白并按 rune 截断。
func compress(content string, maxChars int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) > maxChars {
		content = string(runes[:maxChars])
	}
	return content
}
