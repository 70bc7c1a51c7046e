// Package pipeline runs the lead stages in order and reports one Result per
// stage. A stage never panics out and never lets one bad lead stop the rest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"outreach_backend/internal/discovery"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/qualify"
	"outreach_backend/internal/replies"
	"outreach_backend/internal/sequencing"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Stage names, as reported in Result.Stage and the logs.
const (
	StageDiscover = "discover"
	StageQualify  = "qualify"
	StageBuild    = "build"
	StageDraft    = "draft"
	StageReplies  = "replies"
)

// Result is the outcome of one stage run.
type Result struct {
	Stage  string         `json:"stage"`
	OK     bool           `json:"ok"`
	Counts map[string]int `json:"counts,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Discoverer finds new leads.
type Discoverer interface {
	Discover(ctx context.Context, category, metro string) (discovery.Counts, error)
}

// Qualifier scores a lead. It must not write.
type Qualifier interface {
	Evaluate(ctx context.Context, l domain.Lead, now time.Time) qualify.Outcome
}

// ArtifactBuilder renders a lead's preview and records its location on the lead.
type ArtifactBuilder interface {
	Build(ctx context.Context, l *domain.Lead) error
}

// Drafter creates the next follow-up draft for a lead.
type Drafter interface {
	CreateNext(ctx context.Context, leadID uuid.UUID) (sequencing.Result, error)
}

// Poller fetches unseen inbound mail.
type Poller interface {
	Poll(ctx context.Context) ([]replies.Inbound, error)
}

// Reconciler matches inbound mail to leads.
type Reconciler interface {
	Reconcile(ctx context.Context, msgs []replies.Inbound) replies.Counts
}

// Deps are the stage collaborators. Discoverer and Poller may be nil when
// the matching credentials are not configured; their stages then fail with
// a config error.
type Deps struct {
	Store      repository.Store
	Discoverer Discoverer
	Qualifier  Qualifier
	Builder    ArtifactBuilder
	Drafter    Drafter
	Poller     Poller
	Reconciler Reconciler
}

// Orchestrator runs pipeline stages.
type Orchestrator struct {
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, log *logger.Logger) *Orchestrator {
	return &Orchestrator{deps: deps, log: log, now: time.Now}
}

// Discover runs the discovery stage for one category and metro.
func (o *Orchestrator) Discover(ctx context.Context, category, metro string) Result {
	return o.run(ctx, StageDiscover, func(ctx context.Context) (map[string]int, error) {
		if o.deps.Discoverer == nil {
			return nil, apperr.Config("discovery provider is not configured")
		}
		counts, err := o.deps.Discoverer.Discover(ctx, category, metro)
		return counts.Map(), err
	})
}

// Qualify evaluates every new lead.
func (o *Orchestrator) Qualify(ctx context.Context) Result {
	return o.run(ctx, StageQualify, func(ctx context.Context) (map[string]int, error) {
		leads, err := o.deps.Store.ListLeadsByStatus(ctx, domain.StatusNew, 0)
		if err != nil {
			return nil, err
		}
		return o.qualifyAll(ctx, leads), nil
	})
}

// QualifyLead evaluates a single lead if it is still new.
func (o *Orchestrator) QualifyLead(ctx context.Context, id uuid.UUID) Result {
	return o.run(ctx, StageQualify, func(ctx context.Context) (map[string]int, error) {
		lead, err := o.getLead(ctx, id)
		if err != nil {
			return nil, err
		}
		return o.qualifyAll(ctx, []domain.Lead{lead}), nil
	})
}

func (o *Orchestrator) qualifyAll(ctx context.Context, leads []domain.Lead) map[string]int {
	counts := map[string]int{"processed": 0, "qualified": 0, "disqualified": 0, "skipped": 0, "errors": 0}
	for _, l := range leads {
		if ctx.Err() != nil {
			break
		}
		counts["processed"]++
		var status domain.LeadStatus
		err := safely(func() error {
			var err error
			status, err = o.qualifyOne(ctx, l)
			return err
		})
		switch {
		case err != nil:
			counts["errors"]++
			o.log.ItemError(StageQualify, l.ID.String(), err)
		case status == domain.StatusQualified:
			counts["qualified"]++
		case status == domain.StatusLost:
			counts["disqualified"]++
		default:
			counts["skipped"]++
		}
	}
	return counts
}

// qualifyOne evaluates outside the transaction, since the website check
// goes over the network, then re-checks the lead under lock before writing.
func (o *Orchestrator) qualifyOne(ctx context.Context, l domain.Lead) (domain.LeadStatus, error) {
	if l.Status != domain.StatusNew || l.ManualOverride {
		return "", nil
	}
	now := o.now()
	outcome := o.deps.Qualifier.Evaluate(ctx, l, now)

	var result domain.LeadStatus
	err := o.deps.Store.WithTx(ctx, func(q repository.Queries) error {
		lead, err := q.LockLead(ctx, l.ID)
		if err != nil {
			return err
		}
		if lead.Status != domain.StatusNew || lead.ManualOverride {
			return nil
		}
		changed, err := qualify.Apply(&lead, outcome, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}
		result = lead.Status
		return nil
	})
	return result, err
}

// Build renders previews for qualified leads that have none.
func (o *Orchestrator) Build(ctx context.Context) Result {
	return o.run(ctx, StageBuild, func(ctx context.Context) (map[string]int, error) {
		leads, err := o.deps.Store.ListLeadsByStatus(ctx, domain.StatusQualified, 0)
		if err != nil {
			return nil, err
		}
		pending := leads[:0]
		for _, l := range leads {
			if !l.HasArtifact() {
				pending = append(pending, l)
			}
		}
		return o.buildAll(ctx, pending), nil
	})
}

// BuildLead renders one lead's preview, replacing any earlier one.
func (o *Orchestrator) BuildLead(ctx context.Context, id uuid.UUID) Result {
	return o.run(ctx, StageBuild, func(ctx context.Context) (map[string]int, error) {
		lead, err := o.getLead(ctx, id)
		if err != nil {
			return nil, err
		}
		return o.buildAll(ctx, []domain.Lead{lead}), nil
	})
}

func (o *Orchestrator) buildAll(ctx context.Context, leads []domain.Lead) map[string]int {
	counts := map[string]int{"built": 0, "skipped": 0, "errors": 0}
	for _, l := range leads {
		if ctx.Err() != nil {
			break
		}
		var built bool
		err := safely(func() error {
			var err error
			built, err = o.buildOne(ctx, l)
			return err
		})
		switch {
		case err != nil:
			counts["errors"]++
			o.log.ItemError(StageBuild, l.ID.String(), err)
		case built:
			counts["built"]++
		default:
			counts["skipped"]++
		}
	}
	return counts
}

func (o *Orchestrator) buildOne(ctx context.Context, l domain.Lead) (bool, error) {
	if l.Status != domain.StatusQualified || l.ManualOverride {
		return false, nil
	}
	rendered := l
	if err := o.deps.Builder.Build(ctx, &rendered); err != nil {
		return false, err
	}

	built := false
	err := o.deps.Store.WithTx(ctx, func(q repository.Queries) error {
		lead, err := q.LockLead(ctx, l.ID)
		if err != nil {
			return err
		}
		if lead.Status != domain.StatusQualified || lead.ManualOverride {
			return nil
		}
		lead.PreviewURL = rendered.PreviewURL
		lead.PreviewPath = rendered.PreviewPath
		lead.UpdatedAt = o.now()
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}
		built = true
		return nil
	})
	return built, err
}

// Draft creates the first follow-up for qualified leads with a preview.
func (o *Orchestrator) Draft(ctx context.Context) Result {
	return o.run(ctx, StageDraft, func(ctx context.Context) (map[string]int, error) {
		leads, err := o.deps.Store.ListLeadsByStatus(ctx, domain.StatusQualified, 0)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(leads))
		for _, l := range leads {
			if l.HasArtifact() {
				ids = append(ids, l.ID)
			}
		}
		return o.draftAll(ctx, ids), nil
	})
}

// DraftLead creates the next follow-up for one lead, whatever its stage.
func (o *Orchestrator) DraftLead(ctx context.Context, id uuid.UUID) Result {
	return o.run(ctx, StageDraft, func(ctx context.Context) (map[string]int, error) {
		return o.draftAll(ctx, []uuid.UUID{id}), nil
	})
}

func (o *Orchestrator) draftAll(ctx context.Context, ids []uuid.UUID) map[string]int {
	counts := map[string]int{"drafted": 0, "skipped": 0, "errors": 0}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		var res sequencing.Result
		err := safely(func() error {
			var err error
			res, err = o.deps.Drafter.CreateNext(ctx, id)
			return err
		})
		switch {
		case err != nil:
			counts["errors"]++
			o.log.ItemError(StageDraft, id.String(), err)
		case res.Created():
			counts["drafted"]++
		default:
			counts["skipped"]++
			o.log.Debug("draft refused", "lead_id", id.String(), "reason", string(res.Refusal))
		}
	}
	return counts
}

// CheckReplies polls the mailbox and reconciles what it finds. Messages
// fetched before a poll failure are still reconciled.
func (o *Orchestrator) CheckReplies(ctx context.Context) Result {
	return o.run(ctx, StageReplies, func(ctx context.Context) (map[string]int, error) {
		if o.deps.Poller == nil {
			return nil, apperr.Config("IMAP is not configured")
		}
		msgs, pollErr := o.deps.Poller.Poll(ctx)
		counts := o.deps.Reconciler.Reconcile(ctx, msgs)
		return map[string]int{
			"fetched": len(msgs),
			"found":   counts.Found,
			"skipped": counts.Skipped,
			"errors":  counts.Errors,
		}, pollErr
	})
}

// RunDaily runs discover, qualify, build and draft in order. A failed stage
// does not stop the later ones.
func (o *Orchestrator) RunDaily(ctx context.Context, category, metro string) []Result {
	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	o.log.WithContext(ctx).Info("daily run started", "category", category, "metro", metro)

	results := []Result{
		o.Discover(ctx, category, metro),
		o.Qualify(ctx),
		o.Build(ctx),
		o.Draft(ctx),
	}

	ok := true
	for _, r := range results {
		ok = ok && r.OK
	}
	o.log.WithContext(ctx).Info("daily run finished", "ok", ok)
	return results
}

// ProcessLead takes one lead through qualify, build and draft.
func (o *Orchestrator) ProcessLead(ctx context.Context, id uuid.UUID) []Result {
	results := []Result{o.QualifyLead(ctx, id)}
	results = append(results, o.BuildLead(ctx, id))
	return append(results, o.DraftLead(ctx, id))
}

func (o *Orchestrator) getLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := o.deps.Store.GetLead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return lead, apperr.NotFound(fmt.Sprintf("lead %s not found", id))
	}
	return lead, err
}

func (o *Orchestrator) run(ctx context.Context, stage string, fn func(ctx context.Context) (map[string]int, error)) Result {
	log := o.log.WithContext(ctx).WithStage(stage)
	res := Result{Stage: stage}

	var counts map[string]int
	err := safely(func() error {
		var err error
		counts, err = fn(ctx)
		return err
	})
	res.Counts = counts
	if err != nil {
		res.Error = err.Error()
	} else {
		res.OK = true
	}
	log.StageResult(stage, res.OK, counts, err)
	return res
}

// safely runs fn and turns a panic into an internal error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Internal(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	return fn()
}
