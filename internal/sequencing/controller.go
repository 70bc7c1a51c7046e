// Package sequencing gates draft creation: at most three drafts per lead,
// follow-up numbers assigned in order, and exactly one open draft per slot.
package sequencing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Refusal explains why no draft was created. Refusals are expected outcomes
// of a re-run, not errors.
type Refusal string

const (
	RefuseNone       Refusal = ""
	RefusePaused     Refusal = "lead is paused"
	RefuseExhausted  Refusal = "follow-up sequence exhausted"
	RefuseOpenDraft  Refusal = "open draft already exists for follow-up"
	RefusePending    Refusal = "previous follow-up has not been sent"
	RefuseNoArtifact Refusal = "lead has no preview"
	RefuseIneligible Refusal = "lead status is not eligible for drafting"
)

// Decision is the pure outcome of Plan.
type Decision struct {
	Followup int
	Refusal  Refusal
}

// Allowed reports whether a draft may be created.
func (d Decision) Allowed() bool {
	return d.Refusal == RefuseNone
}

// Slots describes a lead's existing drafts.
type Slots struct {
	// Existing counts every draft ever created for the lead, all statuses.
	Existing int
	// OpenAtNext reports whether an open draft already holds slot Existing.
	OpenAtNext bool
	// Pending counts drafts still in draft or approved.
	Pending int
}

// Plan decides whether a lead gets a new draft.
func Plan(l domain.Lead, slots Slots) Decision {
	existing := slots.Existing
	switch {
	case l.Paused():
		return Decision{Refusal: RefusePaused}
	case existing >= domain.MaxDrafts:
		return Decision{Refusal: RefuseExhausted}
	case slots.OpenAtNext:
		return Decision{Followup: existing, Refusal: RefuseOpenDraft}
	case slots.Pending > 0:
		return Decision{Followup: existing, Refusal: RefusePending}
	case !l.HasArtifact():
		return Decision{Refusal: RefuseNoArtifact}
	case !l.EligibleForDrafting():
		return Decision{Refusal: RefuseIneligible}
	}
	return Decision{Followup: existing}
}

// Composer writes the subject and body for a lead's follow-up.
type Composer interface {
	Compose(l domain.Lead, followup int) (subject, body string, err error)
}

// Result reports what CreateNext did.
type Result struct {
	Draft   *domain.Draft
	Refusal Refusal
}

// Created reports whether a draft was inserted.
func (r Result) Created() bool {
	return r.Draft != nil
}

// Controller creates drafts under the sequencing rules.
type Controller struct {
	store    repository.Store
	composer Composer
	now      func() time.Time
}

// NewController creates a controller.
func NewController(store repository.Store, composer Composer) *Controller {
	return &Controller{store: store, composer: composer, now: time.Now}
}

// CreateNext locks the lead, applies Plan, inserts the draft and advances
// the lead to draft_ready, all in one transaction. Safe to call repeatedly.
func (c *Controller) CreateNext(ctx context.Context, leadID uuid.UUID) (Result, error) {
	var res Result
	err := c.store.WithTx(ctx, func(q repository.Queries) error {
		lead, err := q.LockLead(ctx, leadID)
		if err != nil {
			return err
		}

		slots, err := loadSlots(ctx, q, lead.ID)
		if err != nil {
			return err
		}

		decision := Plan(lead, slots)
		if !decision.Allowed() {
			res.Refusal = decision.Refusal
			return nil
		}

		subject, body, err := c.composer.Compose(lead, decision.Followup)
		if err != nil {
			return fmt.Errorf("compose follow-up %d: %w", decision.Followup, err)
		}

		now := c.now()
		draft, err := domain.NewDraft(lead.ID, decision.Followup, subject, body, now)
		if err != nil {
			return err
		}
		if err := q.InsertDraft(ctx, draft); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				res.Refusal = RefuseOpenDraft
				return nil
			}
			return err
		}

		if _, err := lead.Transition(domain.StatusDraftReady, domain.TriggerAutomated, now); err != nil {
			return err
		}
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}

		res.Draft = &draft
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func loadSlots(ctx context.Context, q repository.Queries, leadID uuid.UUID) (Slots, error) {
	existing, err := q.CountDraftsForLead(ctx, leadID)
	if err != nil {
		return Slots{}, err
	}
	slots := Slots{Existing: existing}
	if existing >= domain.MaxDrafts {
		return slots, nil
	}

	if slots.OpenAtNext, err = q.OpenDraftExists(ctx, leadID, existing); err != nil {
		return Slots{}, err
	}
	drafts, err := q.ListDraftsForLead(ctx, leadID)
	if err != nil {
		return Slots{}, err
	}
	for _, d := range drafts {
		if d.Status.Pending() {
			slots.Pending++
		}
	}
	return slots, nil
}
