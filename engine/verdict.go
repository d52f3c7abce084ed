package engine

// Severity tiers used across findings, verdicts, rules, and escalation.
// Ordering: critical > high > medium > low.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Minimum retrieval similarity for an agent to be considered grounded in its
// rule corpus. Findings below this proceed without context and their rule
// citations are not propagated into the merged verdict.
const SimilarityThreshold = 0.25

// AgentFinding is the immutable result of one DomainAgent evaluation within a
// single scan. TopRules holds the rule texts actually retrieved from the
// agent's corpus, in retrieval order; it never contains model-invented text.
type AgentFinding struct {
	AgentName     string   `json:"name"`
	Domain        string   `json:"domain"`
	Compliant     bool     `json:"compliant"`
	Severity      string   `json:"severity"`
	Confidence    float64  `json:"confidence"`
	MaxSimilarity float64  `json:"score"`
	UsesContext   bool     `json:"uses_context"`
	TopRules      []string `json:"top_rules"`
	Violations    []string `json:"violations"`
	Suggestions   []string `json:"suggestions,omitempty"`
}

// Per-agent provenance attached to a verdict for audit and debugging.
type AgentSummary struct {
	Name        string  `json:"name"`
	Domain      string  `json:"domain"`
	Score       float64 `json:"score"`
	Compliant   bool    `json:"compliant"`
	Severity    string  `json:"severity"`
	UsesContext bool    `json:"uses_context"`
}

// UnifiedVerdict is the single merged decision for one scan. TopRules is
// always the verified grounded union of agent citations, never the judge's own
// citation list.
type UnifiedVerdict struct {
	Compliant      bool           `json:"compliant"`
	Violations     []string       `json:"violations"`
	Severity       string         `json:"severity"`
	Suggestions    []string       `json:"suggestions"`
	Confidence     float64        `json:"confidence"`
	UsesContext    bool           `json:"uses_context"`
	TopRules       []string       `json:"top_rules"`
	AgentSummaries []AgentSummary `json:"agent_summaries"`
}

// Score maps the verdict onto the original 0-100 compliance score persisted
// with each result. Compliant listings always score 100.
func (v *UnifiedVerdict) Score() int {
	if v.Compliant {
		return 100
	}
	switch v.Severity {
	case SeverityCritical:
		return 45
	case SeverityHigh:
		return 60
	case SeverityMedium:
		return 75
	default:
		return 90
	}
}

func severityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// SeverityAtLeast reports whether severity a is at or above b. Unknown
// severity strings rank below "low".
func SeverityAtLeast(a, b string) bool {
	return severityRank(a) >= severityRank(b)
}
