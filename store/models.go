package store

import (
	"time"
)

// Listing statuses. Transitions: Active->Flagged (automatic escalation),
// Flagged->Banned (moderator ban), Banned/Flagged->Active (moderator
// reinstate or approved appeal).
const (
	StatusActive  = "Active"
	StatusFlagged = "Flagged"
	StatusBanned  = "Banned"
)

type Listing struct {
	ID            string `gorm:"primaryKey"`
	SellerID      string `gorm:"index"`
	Title         string
	Description   string
	Category      string
	Price         float64
	Inventory     int
	ImageURL      string
	Status        string     `gorm:"index;default:Active"`
	LastCheckedAt *time.Time `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Flag records an escalation against a listing. Open until resolved by a
// moderator ban or reinstate.
type Flag struct {
	ID         uint   `gorm:"primaryKey"`
	ListingID  string `gorm:"index"`
	Severity   string
	Reason     string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Ban records an explicit moderator takedown, with the grounded rule texts
// that justified it.
type Ban struct {
	ID               uint   `gorm:"primaryKey"`
	ListingID        string `gorm:"index"`
	Reason           string
	EvidenceTopRules string // JSON array of rule texts
	CreatedAt        time.Time
	LiftedAt         *time.Time
}

const (
	AppealOpen     = "Open"
	AppealResolved = "Resolved"
)

type Appeal struct {
	ID             uint   `gorm:"primaryKey"`
	ListingID      string `gorm:"index"`
	SellerID       string
	Message        string
	Status         string `gorm:"default:Open"`
	ResolutionNote string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// ComplianceResult is the persisted form of one scan's unified verdict.
// The slice-valued verdict fields are stored as JSON text.
type ComplianceResult struct {
	ID             uint   `gorm:"primaryKey"`
	ListingID      string `gorm:"index"`
	Route          string
	Compliant      bool
	Severity       string
	Confidence     float64
	UsesContext    bool
	Score          int
	Violations     string
	Suggestions    string
	TopRules       string
	AgentSummaries string
	CreatedAt      time.Time
}
