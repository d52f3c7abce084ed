package engine

// Alert tiers, from the escalation table. Critical verdicts page by voice and
// SMS, high severity sends SMS only, everything else stays quiet.
const (
	AlertTierNone     = ""
	AlertTierSMS      = "sms"
	AlertTierVoiceSMS = "voice+sms"
)

// Disposition is the pure outcome of escalation: the status the listing
// should move to (empty string means no change), whether to record a Flag,
// and which alert tier to fire.
type Disposition struct {
	FlagListing bool
	FlagReason  string
	AlertTier   string
}

// Escalate maps a verdict to its moderation disposition. Deterministic and
// side-effect free. Automatic escalation only ever flags; banning a listing is
// always an explicit moderator action.
func Escalate(v *UnifiedVerdict) Disposition {
	if !SeverityAtLeast(v.Severity, SeverityHigh) {
		return Disposition{}
	}
	d := Disposition{
		FlagListing: true,
		FlagReason:  firstViolation(v),
		AlertTier:   AlertTierSMS,
	}
	if v.Severity == SeverityCritical {
		d.AlertTier = AlertTierVoiceSMS
	}
	return d
}

func firstViolation(v *UnifiedVerdict) string {
	if len(v.Violations) > 0 && v.Violations[0] != "" {
		return v.Violations[0]
	}
	return "Policy violation"
}
