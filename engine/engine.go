package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oakmarket/vigil/countstore"
	"github.com/oakmarket/vigil/store"
)

// Engine is the runtime for scanning one listing: routing to domain agents,
// merging their findings into a grounded verdict, escalating, and persisting
// the outcome.
//
// Construct with every field set except Tags and Notifiers, which may be
// empty.
type Engine struct {
	Logger    *slog.Logger
	Store     *store.Store
	Judge     Judge
	Router    Router
	Tags      TagExtractor
	Agents    []*DomainAgent
	Counters  countstore.CountStore
	Notifiers []Notifier
}

// ProcessListing executes the full scan pipeline for one listing. An error
// return means the scan outcome was not persisted and the listing stays stale
// for the next scheduler sweep; the caller logs and moves on.
func (eng *Engine) ProcessListing(ctx context.Context, listingID string) (err error) {
	// similar to an HTTP server, we want to recover any panics from scan execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("scan execution exception", "err", r, "listing", listingID)
			err = fmt.Errorf("scan panic: %v", r)
		}
	}()
	start := time.Now()
	defer func() {
		scanDuration.Observe(time.Since(start).Seconds())
	}()

	listing, err := eng.Store.GetListing(ctx, listingID)
	if err != nil {
		scanProcessedCount.WithLabelValues("error").Inc()
		return fmt.Errorf("loading listing: %w", err)
	}

	text := strings.TrimSpace(listing.Title + "\n" + listing.Description)
	var tags []string
	if eng.Tags != nil && listing.ImageURL != "" {
		tags = eng.Tags.Extract(ctx, listing.ImageURL)
	}
	domains := eng.Router.Route(RouteInput{Text: text, Category: listing.Category, Tags: tags})
	agents := eng.agentsForDomains(domains)
	eng.Logger.Debug("scanning listing", "listing", listingID, "domains", domains)

	verdict := eng.RunCoordinator(ctx, text, agents)
	disposition := Escalate(verdict)

	if err := eng.persistOutcome(ctx, listing, domains, verdict, disposition); err != nil {
		scanProcessedCount.WithLabelValues("error").Inc()
		return fmt.Errorf("persisting scan outcome: %w", err)
	}

	if disposition.AlertTier != AlertTierNone {
		eng.sendAlerts(ctx, listingID, verdict, disposition.AlertTier)
	}

	outcome := "clean"
	if disposition.FlagListing {
		outcome = "flagged"
		listingFlaggedCount.WithLabelValues(verdict.Severity).Inc()
	}
	scanProcessedCount.WithLabelValues(outcome).Inc()
	eng.Logger.Info("scan complete",
		"listing", listingID,
		"compliant", verdict.Compliant,
		"severity", verdict.Severity,
		"grounded", verdict.UsesContext,
		"outcome", outcome,
	)
	return nil
}

func (eng *Engine) agentsForDomains(domains []string) []*DomainAgent {
	var out []*DomainAgent
	for _, d := range domains {
		for _, a := range eng.Agents {
			if a.Domain == d {
				out = append(out, a)
				break
			}
		}
	}
	if len(out) == 0 {
		// never run zero agents
		return eng.Agents
	}
	return out
}
