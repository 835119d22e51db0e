package rag

import (
	"sort"

	"github.com/askforge/askforge/types"
)

// MergerConfig 合并配置。
type MergerConfig struct {
	// TopK 合并后保留的文档上限。
	TopK int
	// MaxPerSource 单一来源允许进入结果的文档上限。
	MaxPerSource int
}

// DefaultMergerConfig 返回默认合并配置。
func DefaultMergerConfig() MergerConfig {
	return MergerConfig{TopK: 5, MaxPerSource: 2}
}

// Merger 把多组检索结果合并为一份去重、来源多样、按分排序的文档列表。
// 流程固定：归一化 → 去重（保首见）→ 来源多样化 → 稳定降序 → 截断。
// 对已合并结果再次 Merge 得到相同输出。
type Merger struct {
	config MergerConfig
}

// NewMerger 创建合并器。
func NewMerger(config MergerConfig) *Merger {
	if config.TopK < 1 {
		config.TopK = DefaultMergerConfig().TopK
	}
	if config.MaxPerSource < 1 {
		config.MaxPerSource = DefaultMergerConfig().MaxPerSource
	}
	return &Merger{config: config}
}

// Merge 合并任意多组文档。
func (m *Merger) Merge(groups ...[]types.Document) []types.Document {
	var all []types.Document
	for _, group := range groups {
		for _, doc := range group {
			all = append(all, types.NormalizeScore(types.Normalize(doc)))
		}
	}
	all = dedupe(all)
	all = diversify(all, m.config.MaxPerSource)
	sortByScore(all)
	if len(all) > m.config.TopK {
		all = all[:m.config.TopK]
	}
	return all
}

// dedupe 按 DedupeKey 去重，保留首见文档。
func dedupe(docs []types.Document) []types.Document {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0:0]
	for _, doc := range docs {
		key := doc.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, doc)
	}
	return out
}

// diversify 按分数降序遍历，限制单一来源最多 maxPerSource 篇。
func diversify(docs []types.Document, maxPerSource int) []types.Document {
	ordered := make([]types.Document, len(docs))
	copy(ordered, docs)
	sortByScore(ordered)

	counts := make(map[string]int, len(ordered))
	out := ordered[:0:0]
	for _, doc := range ordered {
		key := doc.SourceKey()
		if counts[key] >= maxPerSource {
			continue
		}
		counts[key]++
		out = append(out, doc)
	}
	return out
}

func sortByScore(docs []types.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
}
