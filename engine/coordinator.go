package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const coordinatorSystemPrompt = "You are the coordinator for a marketplace compliance review. " +
	"You receive findings from domain specialist agents. " +
	"Combine them into a single decision with fields: compliant, violations, severity, suggestions, confidence. " +
	"Ground every claim in the agent findings provided. If agents disagree, lower your confidence. " +
	"IMPORTANT: Do NOT invent or rephrase rules. Use ONLY what the agents reported."

const coordinatorVerdictSchema = `{
    "compliant": true/false,
    "violations": ["violation1", "violation2"],
    "severity": "critical/high/medium/low",
    "suggestions": ["suggestion1", "suggestion2"],
    "confidence": 0.0-1.0
}`

// maximum rules surfaced by the round-robin fallback when no agent grounded
const fallbackRuleLimit = 4

// RunCoordinator fans out to the given agents concurrently, waits for all of
// them, and merges their findings into one verdict. Agents that panic or fail
// contribute no finding but never abort the scan.
//
// The returned verdict's TopRules is always the verified grounded union of
// agent citations (see groundedRuleUnion); the judge's own citation proposals
// are discarded.
func (eng *Engine) RunCoordinator(ctx context.Context, text string, agents []*DomainAgent) *UnifiedVerdict {
	findings := eng.gatherFindings(ctx, text, agents)

	grounded := groundedRuleUnion(findings)

	verdict := eng.mergeFindings(ctx, text, findings)
	verdict.TopRules = grounded
	verdict.UsesContext = anyUsesContext(findings)
	verdict.AgentSummaries = summarize(findings)
	return verdict
}

func (eng *Engine) gatherFindings(ctx context.Context, text string, agents []*DomainAgent) []AgentFinding {
	results := make([]*AgentFinding, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent *DomainAgent) {
			defer wg.Done()
			// a panicking agent contributes no finding; the scan continues
			defer func() {
				if r := recover(); r != nil {
					eng.Logger.Error("domain agent panic", "agent", agent.Name, "err", r)
				}
			}()
			f := agent.Evaluate(ctx, text, "")
			results[i] = &f
			agentFindingCount.WithLabelValues(agent.Name, boolLabel(f.UsesContext)).Inc()
		}(i, agent)
	}
	wg.Wait()

	out := make([]AgentFinding, 0, len(results))
	for _, f := range results {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}

// groundedRuleUnion merges rule citations from agents that actually grounded
// their judgment in retrieval (usesContext, or similarity at threshold). When
// no agent grounded, it falls back to up to four rules taken round-robin from
// whatever agents retrieved anything, so the verdict never presents an empty
// evidentiary basis while rules exist.
func groundedRuleUnion(findings []AgentFinding) []string {
	var merged []string
	seen := make(map[string]bool)

	for _, f := range findings {
		if !f.UsesContext && f.MaxSimilarity < SimilarityThreshold {
			continue
		}
		for _, rule := range f.TopRules {
			key := strings.TrimSpace(rule)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, key)
		}
	}
	if len(merged) > 0 {
		return merged
	}

	for depth := 0; len(merged) < fallbackRuleLimit; depth++ {
		advanced := false
		for _, f := range findings {
			if depth >= len(f.TopRules) {
				continue
			}
			advanced = true
			key := strings.TrimSpace(f.TopRules[depth])
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, key)
			if len(merged) >= fallbackRuleLimit {
				break
			}
		}
		if !advanced {
			break
		}
	}
	return merged
}

// mergeFindings asks the judge for the single unifying decision. On judge
// failure or unparsable output it synthesizes a conservative default verdict
// instead of propagating the error.
func (eng *Engine) mergeFindings(ctx context.Context, text string, findings []AgentFinding) *UnifiedVerdict {
	payload, err := json.Marshal(findings)
	if err != nil {
		// findings are plain structs; this should not happen
		eng.Logger.Error("marshaling agent findings", "err", err)
		return eng.fallbackVerdict(findings)
	}

	user := fmt.Sprintf("User text:\n%s\n\nAgent findings (JSON):\n%s\n\nUnify into ONE decision.", text, payload)
	raw, err := eng.Judge.Ask(ctx, coordinatorSystemPrompt, user, coordinatorVerdictSchema)
	if err != nil {
		eng.Logger.Warn("coordinator judge call failed, using conservative default", "err", err)
		judgeFallbackCount.WithLabelValues("coordinator").Inc()
		return eng.fallbackVerdict(findings)
	}

	var verdict UnifiedVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		eng.Logger.Warn("coordinator judge output unparsable, using conservative default", "err", err)
		judgeFallbackCount.WithLabelValues("coordinator").Inc()
		return eng.fallbackVerdict(findings)
	}
	verdict.Severity = normalizeSeverity(verdict.Severity)
	return &verdict
}

// fallbackVerdict derives a conservative non-compliant verdict from agent
// findings alone: score = 100 - 15 per violation, with low confidence.
func (eng *Engine) fallbackVerdict(findings []AgentFinding) *UnifiedVerdict {
	var violations []string
	for _, f := range findings {
		violations = append(violations, f.Violations...)
	}
	score := 100 - 15*len(violations)

	severity := SeverityLow
	if score < 30 {
		severity = SeverityCritical
	} else if score < 80 {
		severity = SeverityMedium
	}
	return &UnifiedVerdict{
		Compliant:  false,
		Violations: violations,
		Severity:   severity,
		Confidence: 0.2,
	}
}

func anyUsesContext(findings []AgentFinding) bool {
	for _, f := range findings {
		if f.UsesContext {
			return true
		}
	}
	return false
}

func summarize(findings []AgentFinding) []AgentSummary {
	out := make([]AgentSummary, 0, len(findings))
	for _, f := range findings {
		out = append(out, AgentSummary{
			Name:        f.AgentName,
			Domain:      f.Domain,
			Score:       f.MaxSimilarity,
			Compliant:   f.Compliant,
			Severity:    f.Severity,
			UsesContext: f.UsesContext,
		})
	}
	return out
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
