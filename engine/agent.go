package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oakmarket/vigil/rulestore"
)

// Embedder turns listing text into a fixed-size vector for rule retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Judge answers a structured prompt with a JSON document. Implementations
// extract the outermost JSON object from the model response; a response with
// no parsable JSON yields an error.
type Judge interface {
	Ask(ctx context.Context, system, user, schema string) (json.RawMessage, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, system, user, schema string) (json.RawMessage, error)

func (f JudgeFunc) Ask(ctx context.Context, system, user, schema string) (json.RawMessage, error) {
	return f(ctx, system, user, schema)
}

const retrievalK = 5

const agentVerdictSchema = `{
    "compliant": true/false,
    "violations": ["specific violation 1", "specific violation 2"],
    "severity": "critical/high/medium/low",
    "suggestions": ["how to fix violation 1", "how to fix violation 2"],
    "confidence": 0.0-1.0
}`

// DomainAgent produces one grounded finding for its regulatory domain. It only
// ever sees rules retrieved from its own corpus; no cross-domain knowledge
// leaks into its prompt.
type DomainAgent struct {
	Name     string
	Domain   string
	Embedder Embedder
	Rules    rulestore.RuleStore
	Judge    Judge
	Logger   *slog.Logger
}

// DefaultAgents returns the standard specialist set, one agent per rule
// corpus, matching the domains of the default keyword router.
func DefaultAgents(embedder Embedder, rules rulestore.RuleStore, judge Judge, logger *slog.Logger) []*DomainAgent {
	specs := []struct {
		name   string
		domain string
	}{
		{"cpsc-safety", "cpsc"},
		{"fda-drug", "fda-drug"},
		{"fda-food", "fda-food"},
		{"fda-device", "fda-device"},
	}
	out := make([]*DomainAgent, 0, len(specs))
	for _, s := range specs {
		out = append(out, &DomainAgent{
			Name:     s.name,
			Domain:   s.domain,
			Embedder: embedder,
			Rules:    rules,
			Judge:    judge,
			Logger:   logger.With("agent", s.name),
		})
	}
	return out
}

// Evaluate runs retrieval plus grounded judgment for this agent's domain. It
// never fails a scan: retrieval errors degrade to an ungrounded finding and
// judge failures degrade to a low-confidence parse-failure finding.
func (a *DomainAgent) Evaluate(ctx context.Context, text, checkType string) AgentFinding {
	matches := a.retrieve(ctx, text)

	maxSim := 0.0
	topRules := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > maxSim {
			maxSim = m.Similarity
		}
		topRules = append(topRules, m.RuleText)
	}
	usesContext := maxSim >= SimilarityThreshold

	finding := AgentFinding{
		AgentName:     a.Name,
		Domain:        a.Domain,
		MaxSimilarity: maxSim,
		UsesContext:   usesContext,
		TopRules:      topRules,
	}

	raw, err := a.Judge.Ask(ctx, a.systemPrompt(), a.userPrompt(text, matches, checkType), agentVerdictSchema)
	if err != nil {
		a.Logger.Warn("agent judge call failed, substituting default finding", "err", err)
		judgeFallbackCount.WithLabelValues("agent").Inc()
		return a.parseFailureFinding(finding)
	}
	var verdict struct {
		Compliant   bool     `json:"compliant"`
		Violations  []string `json:"violations"`
		Severity    string   `json:"severity"`
		Suggestions []string `json:"suggestions"`
		Confidence  float64  `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &verdict); err != nil {
		a.Logger.Warn("agent judge output unparsable, substituting default finding", "err", err)
		judgeFallbackCount.WithLabelValues("agent").Inc()
		return a.parseFailureFinding(finding)
	}

	finding.Compliant = verdict.Compliant
	finding.Violations = verdict.Violations
	finding.Severity = normalizeSeverity(verdict.Severity)
	finding.Suggestions = verdict.Suggestions
	finding.Confidence = verdict.Confidence
	return finding
}

// retrieve embeds the text and searches this agent's corpus. Any failure
// degrades to an empty rule set.
func (a *DomainAgent) retrieve(ctx context.Context, text string) []rulestore.RuleMatch {
	vec, err := a.Embedder.Embed(ctx, text)
	if err != nil {
		a.Logger.Warn("embedding failed, proceeding without rule context", "err", err)
		retrievalErrorCount.WithLabelValues(a.Name).Inc()
		return nil
	}
	matches, err := a.Rules.Search(ctx, a.Domain, vec, retrievalK)
	if err != nil {
		a.Logger.Warn("rule retrieval failed, proceeding without rule context", "err", err)
		retrievalErrorCount.WithLabelValues(a.Name).Inc()
		return nil
	}
	return matches
}

func (a *DomainAgent) parseFailureFinding(base AgentFinding) AgentFinding {
	base.Compliant = true
	base.Violations = []string{"could not parse model response"}
	base.Severity = SeverityLow
	base.Confidence = 0.5
	return base
}

func (a *DomainAgent) systemPrompt() string {
	return fmt.Sprintf(
		"You are the %s compliance specialist for an online marketplace. "+
			"You review product listings against the %s rule corpus. "+
			"Base your analysis ONLY on the rules provided; do not invent rules.",
		a.Name, a.Domain)
}

func (a *DomainAgent) userPrompt(text string, matches []rulestore.RuleMatch, checkType string) string {
	var b strings.Builder
	b.WriteString("RELEVANT COMPLIANCE RULES:\n")
	if len(matches) == 0 {
		b.WriteString("(no rules retrieved)\n")
	}
	for _, m := range matches {
		fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(m.Severity), m.RuleText)
	}
	b.WriteString("\nPRODUCT LISTING TO CHECK:\n")
	fmt.Fprintf(&b, "%q\n", text)
	if checkType != "" {
		fmt.Fprintf(&b, "\nCheck type: %s\n", checkType)
	}
	b.WriteString("\nAnalyze for compliance violations based on the rules above.")
	return b.String()
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
