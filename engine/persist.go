package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/oakmarket/vigil/store"
)

// persistOutcome writes the compliance result, applies any escalation, and
// advances the scan watermark, in that order. Failures before the watermark
// update leave the listing stale so the next scheduler sweep retries it.
func (eng *Engine) persistOutcome(ctx context.Context, listing *store.Listing, domains []string, verdict *UnifiedVerdict, disposition Disposition) error {
	rec := &store.ComplianceResult{
		ListingID:      listing.ID,
		Route:          strings.Join(domains, ","),
		Compliant:      verdict.Compliant,
		Severity:       verdict.Severity,
		Confidence:     verdict.Confidence,
		UsesContext:    verdict.UsesContext,
		Score:          verdict.Score(),
		Violations:     jsonColumn(verdict.Violations),
		Suggestions:    jsonColumn(verdict.Suggestions),
		TopRules:       jsonColumn(verdict.TopRules),
		AgentSummaries: jsonColumn(verdict.AgentSummaries),
	}
	if err := eng.Store.SaveComplianceResult(ctx, rec); err != nil {
		return err
	}

	if disposition.FlagListing {
		if err := eng.Store.FlagListing(ctx, listing.ID, verdict.Severity, disposition.FlagReason); err != nil {
			return err
		}
	}

	return eng.Store.TouchLastChecked(ctx, listing.ID, time.Now().UTC())
}

// jsonColumn serializes a verdict field for its JSON text column. Inputs are
// plain slices of strings/structs, so marshaling cannot realistically fail;
// a nil slice is stored as an empty array rather than JSON null.
func jsonColumn(v any) string {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return "[]"
	}
	return string(raw)
}
