package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrNotFlagged = errors.New("listing is not flagged")

// BanListing is the explicit moderator takedown: Flagged -> Banned, recording
// the grounded evidence and resolving open flags. Bans are never automatic.
func (s *Store) BanListing(ctx context.Context, listingID, reason string, evidenceTopRules []string) error {
	evidence, err := json.Marshal(evidenceTopRules)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Listing{}).
			Where("id = ? AND status = ?", listingID, StatusFlagged).
			Update("status", StatusBanned)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("banning listing %s: %w", listingID, ErrNotFlagged)
		}
		if err := tx.Create(&Ban{ListingID: listingID, Reason: reason, EvidenceTopRules: string(evidence)}).Error; err != nil {
			return err
		}
		return tx.Model(&Flag{}).
			Where("listing_id = ? AND resolved_at IS NULL", listingID).
			Update("resolved_at", now).Error
	})
}

// ReinstateListing moves a flagged or banned listing back to Active, lifting
// open bans and resolving open flags.
func (s *Store) ReinstateListing(ctx context.Context, listingID string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Listing{}).
			Where("id = ?", listingID).
			Update("status", StatusActive).Error; err != nil {
			return err
		}
		if err := tx.Model(&Ban{}).
			Where("listing_id = ? AND lifted_at IS NULL", listingID).
			Update("lifted_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&Flag{}).
			Where("listing_id = ? AND resolved_at IS NULL", listingID).
			Update("resolved_at", now).Error
	})
}

func (s *Store) CreateAppeal(ctx context.Context, listingID, sellerID, message string) (*Appeal, error) {
	if _, err := s.GetListing(ctx, listingID); err != nil {
		return nil, err
	}
	appeal := Appeal{
		ListingID: listingID,
		SellerID:  sellerID,
		Message:   message,
		Status:    AppealOpen,
	}
	if err := s.db.WithContext(ctx).Create(&appeal).Error; err != nil {
		return nil, err
	}
	return &appeal, nil
}

// ResolveAppeal closes an appeal; approval reinstates the listing.
func (s *Store) ResolveAppeal(ctx context.Context, appealID uint, note string, approve bool) error {
	var appeal Appeal
	err := s.db.WithContext(ctx).First(&appeal, appealID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("appeal %d: %w", appealID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&appeal).Updates(map[string]any{
		"status":          AppealResolved,
		"resolution_note": note,
		"resolved_at":     now,
	}).Error; err != nil {
		return err
	}
	if approve {
		return s.ReinstateListing(ctx, appeal.ListingID)
	}
	return nil
}
