package types

// ScoreType 分数空间类型
type ScoreType string

const (
	// ScoreSimilarity 相似度空间：越大越相关
	ScoreSimilarity ScoreType = "similarity"
	// ScoreDistance 距离空间：越小越相关
	ScoreDistance ScoreType = "distance"
)

// Document 规范化检索文档
// 检索边界之后的所有组件只接受这一种文档形态。
type Document struct {
	SourceID string         `json:"source_id"`
	DocID    string         `json:"doc_id,omitempty"`
	Title    string         `json:"title,omitempty"`
	Content  string         `json:"content"`
	Snippet  string         `json:"snippet,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
	ScoreType ScoreType     `json:"score_type"`
	// RetrievalQuery 产生该文档的子查询，用于调试与统计
	RetrievalQuery string `json:"retrieval_query,omitempty"`
}

// Normalize 将一个可能不完整的检索结果收敛为规范形态。
// source_id 缺失时优先取 metadata 中的 source_id，再回退 doc_id 与
// metadata 中的 id；元数据里的来源标识先于文档标识，否则同源文档会
// 各得一个唯一 source_id，按来源去重与多样性约束随之失效。
// score_type 缺失时默认 similarity；metadata 恒为非 nil。
func Normalize(doc Document) Document {
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	if doc.SourceID == "" {
		if v, ok := doc.Metadata["source_id"].(string); ok && v != "" {
			doc.SourceID = v
		} else if doc.DocID != "" {
			doc.SourceID = doc.DocID
		} else if v, ok := doc.Metadata["id"].(string); ok && v != "" {
			doc.SourceID = v
		}
	}
	if doc.ScoreType != ScoreSimilarity && doc.ScoreType != ScoreDistance {
		doc.ScoreType = ScoreSimilarity
	}
	return doc
}

// SimilarityFromDistance 把距离分数单调映射到相似度空间。
// 对任意 d1 < d2 有 similarity(d1) > similarity(d2)。
func SimilarityFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / (1.0 + distance)
}

// NormalizeScore 返回分数统一到相似度空间后的文档副本。
// 相似度分数原样通过，距离分数经 SimilarityFromDistance 变换。
func NormalizeScore(doc Document) Document {
	doc = Normalize(doc)
	if doc.ScoreType == ScoreDistance {
		doc.Score = SimilarityFromDistance(doc.Score)
	}
	doc.ScoreType = ScoreSimilarity
	return doc
}

// DedupeKey 返回去重身份键：source_id → doc_id → 原文内容。
func (d Document) DedupeKey() string {
	if d.SourceID != "" {
		return "source:" + d.SourceID
	}
	if d.DocID != "" {
		return "doc:" + d.DocID
	}
	return "content:" + d.Content
}

// SourceKey 返回多样性约束使用的来源键，缺失时归入 unknown 桶。
func (d Document) SourceKey() string {
	if d.SourceID != "" {
		return d.SourceID
	}
	return "unknown"
}
