package domain

import (
	"fmt"
	"time"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// MaxDrafts is the length of a lead's follow-up sequence.
const MaxDrafts = 3

// DraftStatus is the lifecycle state of a Draft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusApproved  DraftStatus = "approved"
	DraftStatusSent      DraftStatus = "sent"
	DraftStatusFailed    DraftStatus = "failed"
	DraftStatusCancelled DraftStatus = "cancelled"
)

// AllDraftStatuses lists every draft status.
var AllDraftStatuses = []DraftStatus{
	DraftStatusDraft, DraftStatusApproved, DraftStatusSent, DraftStatusFailed, DraftStatusCancelled,
}

// IsOpen reports whether a draft still occupies its follow-up slot.
func (s DraftStatus) IsOpen() bool {
	return s != DraftStatusCancelled && s != DraftStatusFailed
}

// Pending reports whether the draft has not been sent yet and can still be cancelled.
func (s DraftStatus) Pending() bool {
	return s == DraftStatusDraft || s == DraftStatusApproved
}

// Draft is one candidate outreach message for a lead.
type Draft struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	Subject        string
	Body           string
	FollowupNumber int
	Status         DraftStatus
	ScheduledFor   *time.Time
	SentAt         *time.Time
	MessageID      string
	Error          string
	CreatedAt      time.Time
}

// NewDraft returns a draft in status draft for the given follow-up index.
func NewDraft(leadID uuid.UUID, followup int, subject, body string, now time.Time) (Draft, error) {
	if followup < 0 || followup >= MaxDrafts {
		return Draft{}, apperr.Validation(fmt.Sprintf("followup number %d out of range", followup))
	}
	return Draft{
		ID:             uuid.New(),
		LeadID:         leadID,
		Subject:        subject,
		Body:           body,
		FollowupNumber: followup,
		Status:         DraftStatusDraft,
		CreatedAt:      now,
	}, nil
}

// Approve moves a draft from draft to approved.
func (d *Draft) Approve() error {
	if d.Status != DraftStatusDraft {
		return apperr.Conflict(fmt.Sprintf("draft %s is %s, only drafts in status draft can be approved", d.ID, d.Status))
	}
	d.Status = DraftStatusApproved
	return nil
}

// EnsureSendable refuses anything that is not approved.
func (d *Draft) EnsureSendable() error {
	if d.Status != DraftStatusApproved {
		return apperr.Conflict(fmt.Sprintf("draft %s is %s, only approved drafts can be sent", d.ID, d.Status))
	}
	return nil
}

// MarkSent records delivery. The message id is set exactly once.
func (d *Draft) MarkSent(messageID string, at time.Time) error {
	if err := d.EnsureSendable(); err != nil {
		return err
	}
	if d.MessageID != "" {
		return apperr.Conflict(fmt.Sprintf("draft %s already has message id %s", d.ID, d.MessageID))
	}
	if messageID == "" {
		return apperr.Validation("message id is required")
	}
	d.Status = DraftStatusSent
	d.MessageID = messageID
	d.SentAt = &at
	d.Error = ""
	return nil
}

// MarkFailed records a delivery failure.
func (d *Draft) MarkFailed(reason string) {
	d.Status = DraftStatusFailed
	d.Error = reason
}

// Cancel retires a pending draft. It reports whether anything changed.
func (d *Draft) Cancel() bool {
	if !d.Status.Pending() {
		return false
	}
	d.Status = DraftStatusCancelled
	return true
}
