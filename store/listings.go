package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle and migrates the moderation schema.
func NewStore(db *gorm.DB) (*Store, error) {
	for _, model := range []any{&Listing{}, &Flag{}, &Ban{}, &Appeal{}, &ComplianceResult{}} {
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("migrating schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateListing(ctx context.Context, l *Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = StatusActive
	}
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *Store) GetListing(ctx context.Context, id string) (*Listing, error) {
	var l Listing
	err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) SaveListing(ctx context.Context, l *Listing) error {
	return s.db.WithContext(ctx).Save(l).Error
}

// StaleListings returns listings that were never scanned or whose last scan
// predates the cutoff: never-scanned first, then oldest scan first, capped at
// limit. Selection is read-only, so running it twice with no scans completed
// in between yields the same set.
func (s *Store) StaleListings(ctx context.Context, cutoff time.Time, limit int) ([]Listing, error) {
	var out []Listing
	err := s.db.WithContext(ctx).
		Where("last_checked_at IS NULL OR last_checked_at < ?", cutoff).
		Order("(last_checked_at IS NULL) DESC").
		Order("last_checked_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TouchLastChecked advances the scan watermark. A scan that fails before this
// point leaves the listing stale, so the next scheduler sweep recaptures it.
func (s *Store) TouchLastChecked(ctx context.Context, listingID string, t time.Time) error {
	return s.db.WithContext(ctx).Model(&Listing{}).
		Where("id = ?", listingID).
		Update("last_checked_at", t).Error
}

// FlagListing records a Flag and moves the listing to Flagged. The status
// update is guarded so only Active listings transition: a Flagged listing
// stays Flagged (the new Flag still records the fresh evidence) and a Banned
// listing is never resurrected by a rescan.
func (s *Store) FlagListing(ctx context.Context, listingID, severity, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Flag{ListingID: listingID, Severity: severity, Reason: reason}).Error; err != nil {
			return err
		}
		return tx.Model(&Listing{}).
			Where("id = ? AND status = ?", listingID, StatusActive).
			Update("status", StatusFlagged).Error
	})
}

func (s *Store) SaveComplianceResult(ctx context.Context, r *ComplianceResult) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) LatestComplianceResult(ctx context.Context, listingID string) (*ComplianceResult, error) {
	var r ComplianceResult
	err := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("id DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("compliance result for %s: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) OpenFlags(ctx context.Context) ([]Flag, error) {
	var out []Flag
	err := s.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
