package rulestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemRuleStoreSearch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	rs := NewMemRuleStore()
	rs.Add("cpsc", MemRule{Text: "magnets rule", Severity: "high", Vector: []float32{1, 0, 0}})
	rs.Add("cpsc", MemRule{Text: "cord rule", Severity: "medium", Vector: []float32{0, 1, 0}})
	rs.Add("cpsc", MemRule{Text: "battery rule", Severity: "high", Vector: []float32{0.9, 0.1, 0}})
	rs.Add("fda-food", MemRule{Text: "allergen rule", Severity: "critical", Vector: []float32{1, 0, 0}})

	matches, err := rs.Search(ctx, "cpsc", []float32{1, 0, 0}, 2)
	assert.NoError(err)
	assert.Len(matches, 2)
	assert.Equal("magnets rule", matches[0].RuleText)
	assert.Equal("battery rule", matches[1].RuleText)
	assert.InDelta(1.0, matches[0].Similarity, 0.0001)
	// descending similarity
	assert.GreaterOrEqual(matches[0].Similarity, matches[1].Similarity)

	// domain scoping: no cross-corpus leakage
	matches, err = rs.Search(ctx, "fda-food", []float32{1, 0, 0}, 5)
	assert.NoError(err)
	assert.Len(matches, 1)
	assert.Equal("allergen rule", matches[0].RuleText)

	// unknown domain retrieves nothing
	matches, err = rs.Search(ctx, "nope", []float32{1, 0, 0}, 5)
	assert.NoError(err)
	assert.Empty(matches)
}

func TestCosineSimilarity(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 0.0001)
	assert.InDelta(0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 0.0001)
	assert.Equal(0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
