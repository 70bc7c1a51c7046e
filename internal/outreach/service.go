// Package outreach covers what happens to drafts after the sequencing
// controller creates them: operator approval, delivery through the
// transport sender, and the operator pause controls.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"outreach_backend/internal/email"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/sequencing"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ReasonNoEmail is recorded on drafts whose lead has no address on file.
const ReasonNoEmail = "No email address"

// DefaultDailyLimit caps a send batch when no limit is configured.
const DefaultDailyLimit = 25

// Options tunes the sending loop.
type Options struct {
	// DailyLimit caps one SendApproved batch.
	DailyLimit int
	// SendInterval is the minimum gap between two deliveries.
	SendInterval time.Duration
	// Ready reports whether the transport is configured. A non-nil error
	// refuses the whole batch before anything is sent.
	Ready func() error
}

// SendCounts summarizes one SendApproved batch.
type SendCounts struct {
	Sent    int
	Failed  int
	Skipped int
}

// Service implements approval, sending and pause controls.
type Service struct {
	store      repository.Store
	sender     email.Sender
	sequencer  *sequencing.Controller
	limiter    *rate.Limiter
	dailyLimit int
	ready      func() error
	log        *logger.Logger
	now        func() time.Time
}

// NewService creates an outreach service.
func NewService(store repository.Store, sender email.Sender, sequencer *sequencing.Controller, opts Options, log *logger.Logger) *Service {
	limit := opts.DailyLimit
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	every := rate.Inf
	if opts.SendInterval > 0 {
		every = rate.Every(opts.SendInterval)
	}
	ready := opts.Ready
	if ready == nil {
		ready = func() error { return nil }
	}
	return &Service{
		store:      store,
		sender:     sender,
		sequencer:  sequencer,
		limiter:    rate.NewLimiter(every, 1),
		dailyLimit: limit,
		ready:      ready,
		log:        log,
		now:        time.Now,
	}
}

// Queue lists drafts waiting for operator approval, best leads first.
func (s *Service) Queue(ctx context.Context, limit int) ([]domain.DraftWithLead, error) {
	return s.store.ListDraftsByStatus(ctx, domain.DraftStatusDraft, limit)
}

// Approve moves a draft from draft to approved and mirrors it on the lead.
func (s *Service) Approve(ctx context.Context, draftID uuid.UUID) (domain.Draft, error) {
	var out domain.Draft
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		d, err := q.LockDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if err := d.Approve(); err != nil {
			return err
		}

		lead, err := q.LockLead(ctx, d.LeadID)
		if err != nil {
			return err
		}
		if lead.Paused() {
			return apperr.Conflict(fmt.Sprintf("lead %s is paused, unpause it before approving drafts", lead.ID))
		}
		if _, err := lead.Transition(domain.StatusApproved, domain.TriggerOperator, s.now()); err != nil {
			return err
		}

		if err := q.UpdateDraft(ctx, d); err != nil {
			return err
		}
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return domain.Draft{}, err
	}
	return out, nil
}

// SendApproved delivers up to limit approved drafts, one at a time, spaced
// by the send interval. A limit <= 0 or above the daily limit uses the
// daily limit. Per-draft failures are recorded on the draft and counted;
// only a configuration error or cancellation stops the batch.
func (s *Service) SendApproved(ctx context.Context, limit int) (SendCounts, error) {
	var counts SendCounts
	if err := s.ready(); err != nil {
		return counts, err
	}
	if limit <= 0 || limit > s.dailyLimit {
		limit = s.dailyLimit
	}

	queue, err := s.store.ListDraftsByStatus(ctx, domain.DraftStatusApproved, limit)
	if err != nil {
		return counts, err
	}

	for _, item := range queue {
		if item.ManualOverride {
			counts.Skipped++
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return counts, err
		}

		outcome, err := s.sendOne(ctx, item)
		switch {
		case err != nil:
			counts.Failed++
			s.log.ItemError("send", item.ID.String(), err)
		case outcome == outcomeSent:
			counts.Sent++
		case outcome == outcomeFailed:
			counts.Failed++
		default:
			counts.Skipped++
		}
	}
	return counts, nil
}

type sendOutcome int

const (
	outcomeSkipped sendOutcome = iota
	outcomeSent
	outcomeFailed
)

// sendOne delivers one draft inside a transaction holding both the draft and
// its lead, so a concurrent reply cannot cancel the draft mid-send.
func (s *Service) sendOne(ctx context.Context, item domain.DraftWithLead) (sendOutcome, error) {
	outcome := outcomeSkipped
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		d, err := q.LockDraft(ctx, item.ID)
		if err != nil {
			return err
		}
		if d.EnsureSendable() != nil {
			return nil
		}
		lead, err := q.LockLead(ctx, d.LeadID)
		if err != nil {
			return err
		}
		if lead.Paused() || !domain.CanTransition(lead.Status, domain.StatusSent, domain.TriggerAutomated) {
			return nil
		}

		if lead.Email == "" {
			d.MarkFailed(ReasonNoEmail)
			outcome = outcomeFailed
			return q.UpdateDraft(ctx, d)
		}

		messageID, sendErr := s.sender.Send(ctx, email.Message{
			To:      lead.Email,
			Subject: d.Subject,
			Body:    d.Body,
		})
		if sendErr != nil {
			d.MarkFailed(sendErr.Error())
			outcome = outcomeFailed
			s.log.ItemError("send", d.ID.String(), sendErr)
			return q.UpdateDraft(ctx, d)
		}

		now := s.now()
		if err := d.MarkSent(messageID, now); err != nil {
			return err
		}
		if _, err := lead.Transition(domain.StatusSent, domain.TriggerAutomated, now); err != nil {
			return err
		}
		if err := q.UpdateDraft(ctx, d); err != nil {
			return err
		}
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}

		outcome = outcomeSent
		s.log.Info("draft_sent",
			slog.String("draft_id", d.ID.String()),
			slog.String("lead_id", lead.ID.String()),
			slog.Int("followup", d.FollowupNumber),
			slog.String("message_id", messageID),
		)
		return nil
	})
	if err != nil {
		return outcomeFailed, err
	}
	return outcome, nil
}

// Boost creates the next follow-up draft for one lead right away.
func (s *Service) Boost(ctx context.Context, leadID uuid.UUID) (sequencing.Result, error) {
	return s.sequencer.CreateNext(ctx, leadID)
}

// Pause sets manual override on a lead. Pending drafts are kept; the sender
// skips them while the lead is paused.
func (s *Service) Pause(ctx context.Context, leadID uuid.UUID, note string) (domain.Lead, error) {
	return s.operatorTransition(ctx, leadID, domain.StatusPaused, note)
}

// Unpause clears manual override. The lead always resumes at qualified and
// its pending drafts are cancelled, since their approval may be stale.
func (s *Service) Unpause(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	return s.operatorTransition(ctx, leadID, domain.StatusQualified, "")
}

func (s *Service) operatorTransition(ctx context.Context, leadID uuid.UUID, to domain.LeadStatus, note string) (domain.Lead, error) {
	var out domain.Lead
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		lead, err := q.LockLead(ctx, leadID)
		if err != nil {
			return err
		}
		if to == domain.StatusQualified && lead.Status != domain.StatusPaused {
			return apperr.Conflict(fmt.Sprintf("lead %s is not paused", lead.ID))
		}
		if _, err := lead.Transition(to, domain.TriggerOperator, s.now()); err != nil {
			return err
		}
		if note != "" {
			lead.HumanNotes = note
		}
		if to == domain.StatusQualified {
			n, err := q.CancelPendingDrafts(ctx, lead.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				s.log.Info("stale drafts cancelled", slog.String("lead_id", lead.ID.String()), slog.Int("cancelled", n))
			}
		}
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}
		out = lead
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound(fmt.Sprintf("lead %s not found", leadID))
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return out, nil
}
