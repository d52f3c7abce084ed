package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreateAndGetListing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	l := &Listing{SellerID: "seller-1", Title: "Granola bar 12-pack"}
	assert.NoError(s.CreateListing(ctx, l))
	assert.NotEmpty(l.ID)
	assert.Equal(StatusActive, l.Status)

	got, err := s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal("Granola bar 12-pack", got.Title)
	assert.Nil(got.LastCheckedAt)

	_, err = s.GetListing(ctx, "missing")
	assert.ErrorIs(err, ErrNotFound)
}

func TestStaleListings(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	now := time.Now().UTC()
	old := now.Add(-25 * time.Hour)
	fresh := now.Add(-1 * time.Hour)

	never := &Listing{Title: "never scanned"}
	stale := &Listing{Title: "scanned 25h ago", LastCheckedAt: &old}
	recent := &Listing{Title: "scanned 1h ago", LastCheckedAt: &fresh}
	for _, l := range []*Listing{recent, stale, never} {
		assert.NoError(s.CreateListing(ctx, l))
	}

	cutoff := now.Add(-24 * time.Hour)
	got, err := s.StaleListings(ctx, cutoff, 100)
	assert.NoError(err)
	assert.Len(got, 2)
	// never-scanned first, then oldest scan
	assert.Equal(never.ID, got[0].ID)
	assert.Equal(stale.ID, got[1].ID)

	// selection is read-only: a second sweep with no scans in between sees
	// the same set
	again, err := s.StaleListings(ctx, cutoff, 100)
	assert.NoError(err)
	assert.Equal(got, again)

	limited, err := s.StaleListings(ctx, cutoff, 1)
	assert.NoError(err)
	assert.Len(limited, 1)
	assert.Equal(never.ID, limited[0].ID)
}

func TestTouchLastChecked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	l := &Listing{Title: "anything"}
	assert.NoError(s.CreateListing(ctx, l))

	mark := time.Now().UTC().Truncate(time.Second)
	assert.NoError(s.TouchLastChecked(ctx, l.ID, mark))

	got, err := s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.NotNil(got.LastCheckedAt)
	assert.WithinDuration(mark, *got.LastCheckedAt, time.Second)
}

func TestFlagListingMonotonic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	l := &Listing{Title: "magnet set"}
	assert.NoError(s.CreateListing(ctx, l))

	assert.NoError(s.FlagListing(ctx, l.ID, "high", "loose magnets"))
	got, err := s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusFlagged, got.Status)

	// flagging again records new evidence but never changes status downward
	assert.NoError(s.FlagListing(ctx, l.ID, "medium", "packaging"))
	got, err = s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusFlagged, got.Status)

	flags, err := s.OpenFlags(ctx)
	assert.NoError(err)
	assert.Len(flags, 2)

	// a banned listing is never resurrected by a rescan flag
	assert.NoError(s.BanListing(ctx, l.ID, "takedown", nil))
	assert.NoError(s.FlagListing(ctx, l.ID, "high", "rescan"))
	got, err = s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusBanned, got.Status)
}

func TestBanAndReinstate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	l := &Listing{Title: "magnet set"}
	assert.NoError(s.CreateListing(ctx, l))

	// bans only apply to flagged listings
	err := s.BanListing(ctx, l.ID, "takedown", nil)
	assert.ErrorIs(err, ErrNotFlagged)

	assert.NoError(s.FlagListing(ctx, l.ID, "critical", "loose magnets"))
	assert.NoError(s.BanListing(ctx, l.ID, "repeat offender", []string{"rule one", "rule two"}))

	got, err := s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusBanned, got.Status)

	var ban Ban
	assert.NoError(s.db.First(&ban, "listing_id = ?", l.ID).Error)
	var evidence []string
	assert.NoError(json.Unmarshal([]byte(ban.EvidenceTopRules), &evidence))
	assert.Equal([]string{"rule one", "rule two"}, evidence)
	assert.Nil(ban.LiftedAt)

	// banning resolves the open flags
	flags, err := s.OpenFlags(ctx)
	assert.NoError(err)
	assert.Empty(flags)

	assert.NoError(s.ReinstateListing(ctx, l.ID))
	got, err = s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusActive, got.Status)

	assert.NoError(s.db.First(&ban, "listing_id = ?", l.ID).Error)
	assert.NotNil(ban.LiftedAt)
}

func TestAppealLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	_, err := s.CreateAppeal(ctx, "missing", "seller-1", "please")
	assert.ErrorIs(err, ErrNotFound)

	l := &Listing{SellerID: "seller-1", Title: "magnet set"}
	assert.NoError(s.CreateListing(ctx, l))
	assert.NoError(s.FlagListing(ctx, l.ID, "high", "loose magnets"))
	assert.NoError(s.BanListing(ctx, l.ID, "takedown", nil))

	appeal, err := s.CreateAppeal(ctx, l.ID, "seller-1", "the magnets are encased")
	assert.NoError(err)
	assert.Equal(AppealOpen, appeal.Status)

	// rejection keeps the ban in place
	assert.NoError(s.ResolveAppeal(ctx, appeal.ID, "evidence stands", false))
	got, err := s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusBanned, got.Status)

	second, err := s.CreateAppeal(ctx, l.ID, "seller-1", "independent lab report attached")
	assert.NoError(err)

	// approval reinstates
	assert.NoError(s.ResolveAppeal(ctx, second.ID, "lab report checks out", true))
	got, err = s.GetListing(ctx, l.ID)
	assert.NoError(err)
	assert.Equal(StatusActive, got.Status)

	var resolved Appeal
	assert.NoError(s.db.First(&resolved, second.ID).Error)
	assert.Equal(AppealResolved, resolved.Status)
	assert.Equal("lab report checks out", resolved.ResolutionNote)
	assert.NotNil(resolved.ResolvedAt)

	assert.ErrorIs(s.ResolveAppeal(ctx, 9999, "", false), ErrNotFound)
}

func TestComplianceResultHistory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	l := &Listing{Title: "magnet set"}
	assert.NoError(s.CreateListing(ctx, l))

	_, err := s.LatestComplianceResult(ctx, l.ID)
	assert.ErrorIs(err, ErrNotFound)

	first := &ComplianceResult{ListingID: l.ID, Route: "cpsc", Compliant: true, Severity: "low", Score: 100, Violations: "[]", Suggestions: "[]", TopRules: "[]", AgentSummaries: "[]"}
	assert.NoError(s.SaveComplianceResult(ctx, first))

	second := &ComplianceResult{ListingID: l.ID, Route: "cpsc", Compliant: false, Severity: "high", Score: 60, Violations: `["loose magnets"]`, Suggestions: "[]", TopRules: `["rule one"]`, AgentSummaries: "[]"}
	assert.NoError(s.SaveComplianceResult(ctx, second))

	latest, err := s.LatestComplianceResult(ctx, l.ID)
	assert.NoError(err)
	assert.False(latest.Compliant)
	assert.Equal(60, latest.Score)
}
