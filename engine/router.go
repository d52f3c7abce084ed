package engine

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RouteInput is everything the router may consider when selecting domains:
// free-form listing text (title + description), the listing category, and any
// image-derived tags.
type RouteInput struct {
	Text     string
	Category string
	Tags     []string
}

// Router selects which regulatory domains apply to a listing. Pluggable so the
// keyword table can later be swapped for a learned classifier without touching
// the coordinator.
type Router interface {
	Route(input RouteInput) []string
}

// TagExtractor derives routing tags from a listing image. The default
// implementation is a stub; real image classification is handled elsewhere.
type TagExtractor interface {
	Extract(ctx context.Context, imageURL string) []string
}

type NoopTagExtractor struct{}

func (NoopTagExtractor) Extract(ctx context.Context, imageURL string) []string { return nil }

type DomainKeywords struct {
	Domain   string
	Keywords []string
}

// KeywordRouter matches a fixed per-domain keyword table against the
// normalized listing text. A domain is selected when any of its keywords
// appears as a substring; when nothing matches, every domain in the table is
// selected so that no listing ever skips review entirely.
type KeywordRouter struct {
	Table []DomainKeywords
}

func DefaultKeywordRouter() *KeywordRouter {
	return &KeywordRouter{
		Table: []DomainKeywords{
			{Domain: "fda-drug", Keywords: []string{"sunscreen", "spf", "serum", "cosmetic", "cream", "ointment", "supplement", "vitamin", "otc", "medicine", "drug"}},
			{Domain: "fda-food", Keywords: []string{"snack", "beverage", "drink", "juice", "bar", "granola", "allergen", "peanut", "gluten"}},
			{Domain: "fda-device", Keywords: []string{"thermometer", "glucose", "bp monitor", "cpap", "pulse oximeter", "device", "charger", "battery", "lithium", "power bank"}},
			{Domain: "cpsc", Keywords: []string{"toy", "toddler", "children", "magnet", "choking", "ride-on", "stroller", "crib"}},
		},
	}
}

func (r *KeywordRouter) Route(input RouteInput) []string {
	hay := normalizeText(input.Text) + " " + normalizeText(input.Category)
	if len(input.Tags) > 0 {
		hay += " " + normalizeText(strings.Join(input.Tags, " "))
	}

	var hits []string
	for _, row := range r.Table {
		for _, kw := range row.Keywords {
			if strings.Contains(hay, kw) {
				hits = append(hits, row.Domain)
				break
			}
		}
	}
	if len(hits) > 0 {
		return hits
	}
	// fallback: run the full domain set, never zero agents
	all := make([]string, 0, len(r.Table))
	for _, row := range r.Table {
		all = append(all, row.Domain)
	}
	return all
}

// Lower-cases and strips diacritics so keyword matching behaves like a crude
// search-engine normalizer. Malformed input degrades to the lower-cased form.
func normalizeText(text string) string {
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(text)
	out, _, err := transform.String(normFunc, lower)
	if err != nil {
		return lower
	}
	return out
}
