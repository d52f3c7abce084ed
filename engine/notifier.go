package engine

import (
	"context"
	"fmt"

	"github.com/oakmarket/vigil/countstore"
)

// Notifier delivers a moderation alert. Implementations are best-effort:
// errors are logged by the engine and never fail a scan.
type Notifier interface {
	Send(ctx context.Context, tier string, summary string) error
}

var (
	// number of alerts the engine may dispatch per day, all tiers combined
	// (circuit breaker)
	QuotaAlertDay = 100
)

// AlertSummary renders the one-line alert body sent over SMS and spoken on
// voice calls.
func AlertSummary(v *UnifiedVerdict) string {
	comp := "NON-COMPLIANT"
	if v.Compliant {
		comp = "COMPLIANT"
	}
	top := "none"
	if len(v.Violations) > 0 && v.Violations[0] != "" {
		top = v.Violations[0]
	}
	return fmt.Sprintf("[%s] %s (confidence %.2f). Top: %s.", v.Severity, comp, v.Confidence, top)
}

// sendAlerts dispatches the verdict to all configured notifiers, subject to a
// per-listing daily dedupe and a global daily quota. Nothing here ever
// returns an error to the scan pipeline.
func (eng *Engine) sendAlerts(ctx context.Context, listingID string, v *UnifiedVerdict, tier string) {
	if tier == AlertTierNone || len(eng.Notifiers) == 0 {
		return
	}

	already, err := eng.Counters.GetCount(ctx, "alert-sent", listingID, countstore.PeriodDay)
	if err != nil {
		eng.Logger.Error("alert dedupe counter read failed", "err", err)
	} else if already > 0 {
		eng.Logger.Debug("skipping alert, already sent today", "listing", listingID)
		alertSuppressedCount.WithLabelValues("dedupe").Inc()
		return
	}

	quota, err := eng.Counters.GetCount(ctx, "alert-quota", "all", countstore.PeriodDay)
	if err != nil {
		eng.Logger.Error("alert quota counter read failed", "err", err)
	} else if quota >= QuotaAlertDay {
		eng.Logger.Warn("CIRCUIT BREAKER: daily alert quota reached, dropping alert", "listing", listingID)
		alertSuppressedCount.WithLabelValues("quota").Inc()
		return
	}

	summary := AlertSummary(v)
	sent := 0
	for _, n := range eng.Notifiers {
		if err := n.Send(ctx, tier, summary); err != nil {
			eng.Logger.Warn("alert send failed", "err", err, "tier", tier, "listing", listingID)
			continue
		}
		alertSentCount.WithLabelValues(tier).Inc()
		sent++
	}
	if sent == 0 {
		// nothing was delivered: leave the counters alone so the next scan
		// retries the alert instead of treating it as sent
		return
	}

	if err := eng.Counters.Increment(ctx, "alert-sent", listingID); err != nil {
		eng.Logger.Error("alert dedupe counter increment failed", "err", err)
	}
	if err := eng.Counters.Increment(ctx, "alert-quota", "all"); err != nil {
		eng.Logger.Error("alert quota counter increment failed", "err", err)
	}
}
