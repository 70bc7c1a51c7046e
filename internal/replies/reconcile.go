package replies

import (
	"context"
	"errors"
	"strings"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Inbound is one message returned by the poller. Malformed is set when the
// message could not be parsed; such messages are skipped.
type Inbound struct {
	From       string
	Subject    string
	Body       string
	InReplyTo  string
	References []string
	Malformed  error
}

// MatchMethod records how a message was attributed.
type MatchMethod string

const (
	MatchNone       MatchMethod = ""
	MatchInReplyTo  MatchMethod = "in_reply_to"
	MatchReferences MatchMethod = "references"
	MatchSender     MatchMethod = "sender"
)

// Counts summarizes one reconciliation batch.
type Counts struct {
	Found   int
	Skipped int
	Errors  int
}

var errUnmatched = errors.New("message matches no lead")

// Engine reconciles inbound messages against the record store.
type Engine struct {
	store repository.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(store repository.Store, log *logger.Logger) *Engine {
	return &Engine{store: store, log: log, now: time.Now}
}

// NormalizeMessageID strips whitespace and angle brackets from a message id.
func NormalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// Match finds the lead a message belongs to: In-Reply-To first, then each
// References entry in order, then the sender address.
func Match(ctx context.Context, q repository.Queries, msg Inbound) (uuid.UUID, MatchMethod, error) {
	if id := NormalizeMessageID(msg.InReplyTo); id != "" {
		d, err := q.FindSentDraftByMessageID(ctx, id)
		if err == nil {
			return d.LeadID, MatchInReplyTo, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, MatchNone, err
		}
	}

	for _, ref := range msg.References {
		id := NormalizeMessageID(ref)
		if id == "" {
			continue
		}
		d, err := q.FindSentDraftByMessageID(ctx, id)
		if err == nil {
			return d.LeadID, MatchReferences, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, MatchNone, err
		}
	}

	if from := strings.TrimSpace(msg.From); from != "" {
		leadID, err := q.FindLeadIDByEmail(ctx, from)
		if err == nil {
			return leadID, MatchSender, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, MatchNone, err
		}
	}

	return uuid.Nil, MatchNone, nil
}

// Reconcile processes a batch. One bad message never stops the batch:
// malformed and unattributable messages are skipped, store failures counted
// as errors.
func (e *Engine) Reconcile(ctx context.Context, msgs []Inbound) Counts {
	var counts Counts
	for _, msg := range msgs {
		if msg.Malformed != nil {
			e.log.Warn("skipping malformed message", "error", msg.Malformed)
			counts.Skipped++
			continue
		}

		kind, err := e.reconcileOne(ctx, msg)
		switch {
		case errors.Is(err, errUnmatched):
			counts.Skipped++
		case err != nil:
			e.log.ItemError("replies", msg.From, err)
			counts.Errors++
		default:
			counts.Found++
			e.log.Info("reply attributed", "from", msg.From, "type", string(kind))
		}
	}
	return counts
}

// reconcileOne stores the reply, moves the lead to replied and cancels its
// pending drafts in one transaction.
func (e *Engine) reconcileOne(ctx context.Context, msg Inbound) (domain.ReplyType, error) {
	kind := Classify(msg.Subject, msg.Body)

	err := e.store.WithTx(ctx, func(q repository.Queries) error {
		leadID, method, err := Match(ctx, q, msg)
		if err != nil {
			return err
		}
		if method == MatchNone {
			return errUnmatched
		}

		lead, err := q.LockLead(ctx, leadID)
		if err != nil {
			return err
		}

		now := e.now()
		reply := domain.NewReply(lead.ID, msg.From, msg.Subject, NormalizeMessageID(msg.InReplyTo), msg.Body, kind, now)
		if err := q.InsertReply(ctx, reply); err != nil {
			return err
		}

		// paused and closed leads keep their status; the reply is still recorded
		if !lead.ManualOverride && domain.CanTransition(lead.Status, domain.StatusReplied, domain.TriggerAutomated) {
			changed, err := lead.Transition(domain.StatusReplied, domain.TriggerAutomated, now)
			if err != nil {
				return err
			}
			if changed {
				if err := q.UpdateLead(ctx, lead); err != nil {
					return err
				}
			}
		}

		_, err = q.CancelPendingDrafts(ctx, lead.ID)
		return err
	})
	return kind, err
}
