package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/discovery"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/repository/repositorytest"
	"outreach_backend/internal/qualify"
	"outreach_backend/internal/replies"
	"outreach_backend/internal/sequencing"
	"outreach_backend/platform/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeQualifier struct{}

func (fakeQualifier) Evaluate(_ context.Context, l domain.Lead, _ time.Time) qualify.Outcome {
	if l.Rating < 4 {
		return qualify.Outcome{Reason: "Rating below 4.0"}
	}
	if strings.Contains(l.BusinessName, "Panic") {
		panic("scoring exploded")
	}
	return qualify.Outcome{Score: 80, Tier: domain.TierA, ROI: 1200, Themes: []string{"Fast response times"}}
}

type fakeBuilder struct {
	fail string
}

func (b fakeBuilder) Build(_ context.Context, l *domain.Lead) error {
	if l.BusinessName == b.fail {
		return errors.New("disk full")
	}
	l.PreviewURL = "http://localhost/preview/" + strings.ToLower(strings.Fields(l.BusinessName)[0]) + "/"
	l.PreviewPath = "/tmp/preview/index.html"
	return nil
}

type fakeComposer struct{}

func (fakeComposer) Compose(l domain.Lead, followup int) (string, string, error) {
	return "Preview for " + l.BusinessName, "Hi " + l.GreetingName(), nil
}

type fakeDiscoverer struct {
	store repository.Store
	err   error
}

func (d fakeDiscoverer) Discover(ctx context.Context, category, metro string) (discovery.Counts, error) {
	if d.err != nil {
		return discovery.Counts{}, d.err
	}
	var counts discovery.Counts
	for _, name := range []string{"Acme Plumbing", "Budget Drains"} {
		l := domain.NewLead(name, category, metro, testNow)
		l.Rating = 4.6
		if name == "Budget Drains" {
			l.Rating = 3.1
		}
		created, err := d.store.InsertLead(ctx, l)
		if err != nil {
			return counts, err
		}
		counts.Raw++
		if created {
			counts.Created++
		} else {
			counts.Skipped++
		}
	}
	return counts, nil
}

type fakePoller struct {
	msgs []replies.Inbound
	err  error
}

func (p fakePoller) Poll(context.Context) ([]replies.Inbound, error) {
	return p.msgs, p.err
}

func newOrchestrator(store *repositorytest.Memory, deps Deps) *Orchestrator {
	deps.Store = store
	if deps.Qualifier == nil {
		deps.Qualifier = fakeQualifier{}
	}
	if deps.Builder == nil {
		deps.Builder = fakeBuilder{}
	}
	if deps.Drafter == nil {
		deps.Drafter = sequencing.NewController(store, fakeComposer{})
	}
	if deps.Reconciler == nil {
		deps.Reconciler = replies.NewEngine(store, logger.Discard())
	}
	o := New(deps, logger.Discard())
	o.now = func() time.Time { return testNow }
	return o
}

func insert(t *testing.T, store *repositorytest.Memory, name string, rating float64) domain.Lead {
	t.Helper()
	l := domain.NewLead(name, "plumbing", "Austin", testNow)
	l.Rating = rating
	if ok, err := store.InsertLead(context.Background(), l); err != nil || !ok {
		t.Fatalf("insert %s: ok=%v err=%v", name, ok, err)
	}
	return l
}

func TestRunDaily(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.NewMemory()
	o := newOrchestrator(store, Deps{})
	o.deps.Discoverer = fakeDiscoverer{store: store}

	results := o.RunDaily(ctx, "plumbing", "Austin")
	if len(results) != 4 {
		t.Fatalf("expected four stage results, got %d", len(results))
	}
	wantStages := []string{StageDiscover, StageQualify, StageBuild, StageDraft}
	for i, r := range results {
		if r.Stage != wantStages[i] || !r.OK {
			t.Fatalf("stage %d: unexpected result %+v", i, r)
		}
	}
	if results[1].Counts["qualified"] != 1 || results[1].Counts["disqualified"] != 1 {
		t.Fatalf("unexpected qualify counts %v", results[1].Counts)
	}
	if results[3].Counts["drafted"] != 1 {
		t.Fatalf("unexpected draft counts %v", results[3].Counts)
	}

	ready, _ := store.ListLeadsByStatus(ctx, domain.StatusDraftReady, 0)
	if len(ready) != 1 || ready[0].BusinessName != "Acme Plumbing" {
		t.Fatalf("expected Acme draft ready, got %+v", ready)
	}
	lost, _ := store.ListLeadsByStatus(ctx, domain.StatusLost, 0)
	if len(lost) != 1 || lost[0].DisqualifyReason == "" {
		t.Fatalf("expected a disqualified lead with reason, got %+v", lost)
	}

	// a second run finds only duplicates and creates nothing new
	again := o.RunDaily(ctx, "plumbing", "Austin")
	if again[0].Counts["created"] != 0 || again[3].Counts["drafted"] != 0 {
		t.Fatalf("expected idempotent rerun, got %+v", again)
	}
	drafts, _ := store.ListDraftsByStatus(ctx, domain.DraftStatusDraft, 0)
	if len(drafts) != 1 {
		t.Fatalf("expected one draft after rerun, got %d", len(drafts))
	}
}

func TestStageFailureDoesNotStopLaterStages(t *testing.T) {
	store := repositorytest.NewMemory()
	o := newOrchestrator(store, Deps{})
	insert(t, store, "Acme Plumbing", 4.8)

	results := o.RunDaily(context.Background(), "plumbing", "Austin")
	if results[0].OK || !strings.Contains(results[0].Error, "not configured") {
		t.Fatalf("expected discover config failure, got %+v", results[0])
	}
	for _, r := range results[1:] {
		if !r.OK {
			t.Fatalf("expected later stages to run, got %+v", r)
		}
	}
	if results[3].Counts["drafted"] != 1 {
		t.Fatalf("expected pre-existing lead to be drafted, got %v", results[3].Counts)
	}
}

func TestPerItemFailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.NewMemory()
	o := newOrchestrator(store, Deps{Builder: fakeBuilder{fail: "Broken Pipes"}})
	insert(t, store, "Acme Plumbing", 4.8)
	insert(t, store, "Panic Plumbing", 4.8)
	insert(t, store, "Broken Pipes", 4.8)

	q := o.Qualify(ctx)
	if !q.OK || q.Counts["errors"] != 1 || q.Counts["qualified"] != 2 {
		t.Fatalf("expected panic counted as one error, got %+v", q)
	}
	b := o.Build(ctx)
	if !b.OK || b.Counts["errors"] != 1 || b.Counts["built"] != 1 {
		t.Fatalf("expected one build error, got %+v", b)
	}
	d := o.Draft(ctx)
	if d.Counts["drafted"] != 1 {
		t.Fatalf("expected only the built lead drafted, got %+v", d)
	}
}

func TestProcessLeadSkipsPausedLead(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.NewMemory()
	o := newOrchestrator(store, Deps{})
	l := insert(t, store, "Acme Plumbing", 4.8)

	paused, _ := store.GetLead(ctx, l.ID)
	paused.ManualOverride = true
	if err := store.UpdateLead(ctx, paused); err != nil {
		t.Fatalf("update: %v", err)
	}

	for _, r := range o.ProcessLead(ctx, l.ID) {
		if !r.OK || r.Counts["errors"] != 0 {
			t.Fatalf("unexpected result %+v", r)
		}
	}
	got, _ := store.GetLead(ctx, l.ID)
	if got.Status != domain.StatusNew || got.HasArtifact() {
		t.Fatalf("paused lead must not move, got %s preview=%q", got.Status, got.PreviewURL)
	}
}

func TestProcessLeadUnknownID(t *testing.T) {
	o := newOrchestrator(repositorytest.NewMemory(), Deps{})
	results := o.ProcessLead(context.Background(), domain.NewLead("x", "plumbing", "Austin", testNow).ID)
	if results[0].OK || !strings.Contains(results[0].Error, "not found") {
		t.Fatalf("expected not found, got %+v", results[0])
	}
}

func TestCheckReplies(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.NewMemory()

	if r := newOrchestrator(store, Deps{}).CheckReplies(ctx); r.OK {
		t.Fatalf("expected config failure without a poller")
	}

	poller := fakePoller{
		msgs: []replies.Inbound{{From: "nobody@unknown.test", Subject: "hi", Body: "hello"}},
		err:  errors.New("connection reset"),
	}
	r := newOrchestrator(store, Deps{Poller: poller}).CheckReplies(ctx)
	if r.OK || r.Counts["fetched"] != 1 || r.Counts["skipped"] != 1 {
		t.Fatalf("expected partial batch reconciled and poll error reported, got %+v", r)
	}
}
