package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		doc      Document
		wantSrc  string
		wantType ScoreType
	}{
		{
			name:     "complete document passes through",
			doc:      Document{SourceID: "a", Content: "x", ScoreType: ScoreSimilarity},
			wantSrc:  "a",
			wantType: ScoreSimilarity,
		},
		{
			name:     "source id falls back to doc id",
			doc:      Document{DocID: "d1", Content: "x"},
			wantSrc:  "d1",
			wantType: ScoreSimilarity,
		},
		{
			name:     "source id falls back to metadata",
			doc:      Document{Content: "x", Metadata: map[string]any{"source_id": "m1"}},
			wantSrc:  "m1",
			wantType: ScoreSimilarity,
		},
		{
			name:     "metadata source id wins over doc id",
			doc:      Document{DocID: "d1", Content: "x", Metadata: map[string]any{"source_id": "m1"}},
			wantSrc:  "m1",
			wantType: ScoreSimilarity,
		},
		{
			name:     "distance type is preserved",
			doc:      Document{SourceID: "a", ScoreType: ScoreDistance},
			wantSrc:  "a",
			wantType: ScoreDistance,
		},
		{
			name:     "unknown score type defaults to similarity",
			doc:      Document{SourceID: "a", ScoreType: "weird"},
			wantSrc:  "a",
			wantType: ScoreSimilarity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.doc)
			assert.Equal(t, tt.wantSrc, got.SourceID)
			assert.Equal(t, tt.wantType, got.ScoreType)
			assert.NotNil(t, got.Metadata)
		})
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.Equal(t, 1.0, SimilarityFromDistance(0))
	assert.Equal(t, 0.5, SimilarityFromDistance(1))
	// Negative distances are clamped to zero.
	assert.Equal(t, 1.0, SimilarityFromDistance(-3))
}

func TestNormalizeScore(t *testing.T) {
	distance := Document{SourceID: "a", Score: 1, ScoreType: ScoreDistance}
	got := NormalizeScore(distance)
	assert.Equal(t, 0.5, got.Score)
	assert.Equal(t, ScoreSimilarity, got.ScoreType)

	similarity := Document{SourceID: "a", Score: 0.7, ScoreType: ScoreSimilarity}
	got = NormalizeScore(similarity)
	assert.Equal(t, 0.7, got.Score)
}

func TestDocumentDedupeKey(t *testing.T) {
	assert.Equal(t, "source:s1", Document{SourceID: "s1", DocID: "d1"}.DedupeKey())
	assert.Equal(t, "doc:d1", Document{DocID: "d1", Content: "c"}.DedupeKey())
	assert.Equal(t, "content:c", Document{Content: "c"}.DedupeKey())
}
