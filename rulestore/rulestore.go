package rulestore

import (
	"context"
)

// A single compliance rule retrieved for a listing, with retrieval similarity.
type RuleMatch struct {
	RuleText   string
	Severity   string
	Similarity float64
}

// RuleStore retrieves the rules most similar to a query vector, scoped to one
// regulatory domain's corpus. Results are ordered descending by similarity.
//
// The rule corpus itself is externally populated (bulk ETL loaders are out of
// scope); this interface is read-only.
type RuleStore interface {
	Search(ctx context.Context, domain string, vec []float32, k int) ([]RuleMatch, error)
}
