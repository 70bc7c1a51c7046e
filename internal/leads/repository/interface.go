package repository

import (
	"context"
	"errors"

	"outreach_backend/internal/leads/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert would break a uniqueness rule.
	ErrDuplicate = errors.New("duplicate record")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	// ListLeadsByStatus returns leads not under manual override, ordered by
	// qualification score descending then insertion order. limit <= 0 means all.
	ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error)
	LeadExists(ctx context.Context, businessName, metro, email string) (bool, error)
	FindLeadIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
}

// LeadWriter provides write operations for leads.
type LeadWriter interface {
	// InsertLead stores a new lead. It reports false when the lead collides
	// with an existing business_name+metro or email.
	InsertLead(ctx context.Context, lead domain.Lead) (bool, error)
	// LockLead reads a lead and holds it for the rest of the transaction.
	LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	UpdateLead(ctx context.Context, lead domain.Lead) error
}

// DraftReader provides read-only access to outreach drafts.
type DraftReader interface {
	GetDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error)
	ListDraftsByStatus(ctx context.Context, status domain.DraftStatus, limit int) ([]domain.DraftWithLead, error)
	ListDraftsForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Draft, error)
	// CountDraftsForLead counts every draft ever created for the lead, all statuses.
	CountDraftsForLead(ctx context.Context, leadID uuid.UUID) (int, error)
	OpenDraftExists(ctx context.Context, leadID uuid.UUID, followup int) (bool, error)
	FindSentDraftByMessageID(ctx context.Context, messageID string) (domain.Draft, error)
}

// DraftWriter provides write operations for outreach drafts.
type DraftWriter interface {
	// InsertDraft returns ErrDuplicate when an open draft already holds the follow-up slot.
	InsertDraft(ctx context.Context, draft domain.Draft) error
	LockDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error)
	UpdateDraft(ctx context.Context, draft domain.Draft) error
	// CancelPendingDrafts cancels every draft/approved draft of the lead.
	CancelPendingDrafts(ctx context.Context, leadID uuid.UUID) (int, error)
}

// ReplyStore stores and lists inbound replies.
type ReplyStore interface {
	InsertReply(ctx context.Context, reply domain.Reply) error
	ListReplies(ctx context.Context, limit int) ([]domain.ReplyWithLead, error)
}

// ConversionWriter stores outcome records.
type ConversionWriter interface {
	InsertConversion(ctx context.Context, conv domain.Conversion) error
}

// MetricsReader provides the aggregate counts behind the funnel report.
type MetricsReader interface {
	CountLeadsByStatus(ctx context.Context) (map[domain.LeadStatus]int, error)
	CountDraftsByStatus(ctx context.Context) (map[domain.DraftStatus]int, error)
	CountReplies(ctx context.Context) (ReplyCounts, error)
	SumPipelineROI(ctx context.Context) (int, error)
	ConversionStats(ctx context.Context) (ConversionStats, error)
}

// ReplyCounts summarizes stored replies.
type ReplyCounts struct {
	Total    int
	Positive int
}

// ConversionStats summarizes outcome records.
type ConversionStats struct {
	Won           int
	Lost          int
	ClosedRevenue float64
}

// Queries is every operation the engines run against the record store.
type Queries interface {
	LeadReader
	LeadWriter
	DraftReader
	DraftWriter
	ReplyStore
	ConversionWriter
	MetricsReader
}

// Store is the record store: Queries plus atomic multi-step operations.
// fn sees a Queries bound to one transaction; a returned error rolls it back.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
