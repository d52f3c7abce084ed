package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/oakmarket/vigil/countstore"
	"github.com/oakmarket/vigil/rulestore"
	"github.com/oakmarket/vigil/store"
)

// CaptureNotifier records alerts instead of delivering them.
type CaptureNotifier struct {
	mu    sync.Mutex
	Sends []CapturedAlert
}

type CapturedAlert struct {
	Tier    string
	Summary string
}

func (n *CaptureNotifier) Send(ctx context.Context, tier string, summary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sends = append(n.Sends, CapturedAlert{Tier: tier, Summary: summary})
	return nil
}

func (n *CaptureNotifier) Captured() []CapturedAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]CapturedAlert, len(n.Sends))
	copy(out, n.Sends)
	return out
}

// FixtureEmbedder maps keyword hits to fixed vectors so retrieval similarity
// is deterministic in tests. Texts with no keyword hit embed to Default.
type FixtureEmbedder struct {
	Keywords map[string][]float32
	Default  []float32
}

func (e *FixtureEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hay := normalizeText(text)
	for kw, vec := range e.Keywords {
		if strings.Contains(hay, kw) {
			return vec, nil
		}
	}
	return e.Default, nil
}

// MustJSON marshals a judge response for scripted JudgeFuncs.
func MustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// EngineTestFixture builds a fully in-memory engine: sqlite :memory: store, a
// small cpsc/fda rule corpus, a keyword-keyed embedder, and a judge that
// answers "compliant, low" unless a test swaps it out.
func EngineTestFixture() *Engine {
	db, err := store.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		panic(err)
	}
	st, err := store.NewStore(db)
	if err != nil {
		panic(err)
	}

	rules := rulestore.NewMemRuleStore()
	rules.Add("cpsc", rulestore.MemRule{
		Text:     "Magnet sets marketed to children under 14 must not contain loose high-powered magnets.",
		Severity: SeverityHigh,
		Vector:   []float32{1, 0, 0},
	})
	rules.Add("cpsc", rulestore.MemRule{
		Text:     "Toys for children under 3 must not contain small parts that pose a choking hazard.",
		Severity: SeverityHigh,
		Vector:   []float32{0.9, 0.1, 0},
	})
	rules.Add("fda-food", rulestore.MemRule{
		Text:     "Food products must declare all major allergens on the label.",
		Severity: SeverityCritical,
		Vector:   []float32{0, 1, 0},
	})
	rules.Add("fda-drug", rulestore.MemRule{
		Text:     "Products making disease treatment claims are regulated as drugs.",
		Severity: SeverityHigh,
		Vector:   []float32{0, 1, 0},
	})
	rules.Add("fda-device", rulestore.MemRule{
		Text:     "Medical devices require premarket notification before sale.",
		Severity: SeverityMedium,
		Vector:   []float32{0, 1, 0},
	})

	embedder := &FixtureEmbedder{
		Keywords: map[string][]float32{
			"magnet":  {1, 0, 0},
			"toddler": {1, 0, 0},
			"toy":     {1, 0, 0},
			"peanut":  {0, 1, 0},
		},
		Default: []float32{0, 0, 1},
	}

	judge := JudgeFunc(func(ctx context.Context, system, user, schema string) (json.RawMessage, error) {
		return MustJSON(map[string]any{
			"compliant":   true,
			"violations":  []string{},
			"severity":    SeverityLow,
			"suggestions": []string{},
			"confidence":  0.9,
		}), nil
	})

	logger := slog.Default()
	eng := &Engine{
		Logger:   logger,
		Store:    st,
		Judge:    judge,
		Router:   DefaultKeywordRouter(),
		Tags:     NoopTagExtractor{},
		Counters: countstore.NewMemCountStore(),
	}
	eng.Agents = DefaultAgents(embedder, rules, judge, logger)
	return eng
}

// SetJudge swaps the judge for the engine and all its agents.
func (eng *Engine) SetJudge(j Judge) {
	eng.Judge = j
	for _, a := range eng.Agents {
		a.Judge = j
	}
}
