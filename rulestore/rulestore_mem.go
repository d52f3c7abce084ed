package rulestore

import (
	"context"
	"math"
	"sort"
)

// Rule as held by the in-memory store. Vectors are expected to all have the
// same dimension as query vectors.
type MemRule struct {
	Text     string
	Severity string
	Vector   []float32
}

// In-memory rule corpus with brute-force cosine search. Used in tests and
// small local deployments.
type MemRuleStore struct {
	Rules map[string][]MemRule
}

func NewMemRuleStore() *MemRuleStore {
	return &MemRuleStore{
		Rules: make(map[string][]MemRule),
	}
}

func (s *MemRuleStore) Add(domain string, rule MemRule) {
	s.Rules[domain] = append(s.Rules[domain], rule)
}

func (s *MemRuleStore) Search(ctx context.Context, domain string, vec []float32, k int) ([]RuleMatch, error) {
	rules := s.Rules[domain]
	out := make([]RuleMatch, 0, len(rules))
	for _, r := range rules {
		out = append(out, RuleMatch{
			RuleText:   r.Text,
			Severity:   r.Severity,
			Similarity: cosineSimilarity(vec, r.Vector),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
