// Package domain provides core business rules for the leads bounded context:
// the Lead, Draft, Reply and Conversion entities and the lead status machine.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier is the coarse qualification bucket derived from the score.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Lead is a discovered business and its pipeline position.
type Lead struct {
	ID                  uuid.UUID
	BusinessName        string
	OwnerName           string
	Email               string
	Phone               string
	Category            string
	Metro               string
	Rating              float64
	ReviewCount         int
	HasWebsite          bool
	WebsiteURL          string
	ExternalProfileLink string
	Source              string
	QualificationScore  int
	ROIEstimateMonthly  int
	ReviewThemes        []string
	LastReviewDate      string
	ReviewExcerpt       string
	ReviewExcerptAuthor string
	ReviewExcerptDate   string
	Tier                Tier
	PreviewURL          string
	PreviewPath         string
	Status              LeadStatus
	ManualOverride      bool
	HumanNotes          string
	DisqualifyReason    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewLead returns a lead in status new with a fresh identity.
func NewLead(businessName, category, metro string, now time.Time) Lead {
	return Lead{
		ID:           uuid.New(),
		BusinessName: strings.TrimSpace(businessName),
		Category:     category,
		Metro:        metro,
		Status:       StatusNew,
		ReviewThemes: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// GreetingName is the name used to open a message: the owner when known,
// otherwise the first word of the business name.
func (l Lead) GreetingName() string {
	if name := strings.TrimSpace(l.OwnerName); name != "" {
		return name
	}
	if fields := strings.Fields(l.BusinessName); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}

// HasArtifact reports whether a preview has been produced for the lead.
func (l Lead) HasArtifact() bool {
	return strings.TrimSpace(l.PreviewURL) != ""
}

// Paused reports whether the lead is excluded from automated processing.
func (l Lead) Paused() bool {
	return l.ManualOverride || l.Status == StatusPaused
}

// EligibleForDrafting reports whether the drafting stage may consider the lead.
// Approved is included so a lead whose send failed can be drafted again.
func (l Lead) EligibleForDrafting() bool {
	if l.Paused() || !l.HasArtifact() {
		return false
	}
	switch l.Status {
	case StatusQualified, StatusDraftReady, StatusApproved, StatusSent:
		return true
	default:
		return false
	}
}
