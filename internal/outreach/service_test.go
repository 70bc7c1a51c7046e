package outreach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/email"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository/repositorytest"
	"outreach_backend/internal/sequencing"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	sent []email.Message
	err  error
	n    int
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.n++
	f.sent = append(f.sent, msg)
	return email.NewMessageID("me@outreach.test"), nil
}

type fixture struct {
	store  *repositorytest.Memory
	sender *fakeSender
	svc    *Service
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	store := repositorytest.NewMemory()
	composer, err := NewComposer("Sam Seller", "")
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	sender := &fakeSender{}
	svc := NewService(store, sender, sequencing.NewController(store, composer), opts, logger.Discard())
	svc.now = func() time.Time { return testNow }
	return fixture{store: store, sender: sender, svc: svc}
}

func (f fixture) qualifiedLead(t *testing.T, name, addr string) domain.Lead {
	t.Helper()
	l := domain.NewLead(name, "plumbing", "Austin", testNow)
	l.Status = domain.StatusQualified
	l.Email = addr
	l.PreviewURL = "https://previews.test/preview/x/"
	if ok, err := f.store.InsertLead(context.Background(), l); err != nil || !ok {
		t.Fatalf("insert lead: ok=%v err=%v", ok, err)
	}
	return l
}

func (f fixture) approvedDraft(t *testing.T, l domain.Lead) domain.Draft {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.Boost(ctx, l.ID)
	if err != nil || !res.Created() {
		t.Fatalf("boost: res=%+v err=%v", res, err)
	}
	d, err := f.svc.Approve(ctx, res.Draft.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return d
}

func TestApproveMirrorsOnLead(t *testing.T) {
	f := newFixture(t, Options{})
	l := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	d := f.approvedDraft(t, l)

	if d.Status != domain.DraftStatusApproved {
		t.Fatalf("expected approved draft, got %s", d.Status)
	}
	got, _ := f.store.GetLead(context.Background(), l.ID)
	if got.Status != domain.StatusApproved {
		t.Fatalf("expected lead approved, got %s", got.Status)
	}

	if _, err := f.svc.Approve(context.Background(), d.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict approving twice, got %v", err)
	}
}

func TestSendApprovedDeliversAndRecordsMessageID(t *testing.T) {
	f := newFixture(t, Options{})
	l := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	d := f.approvedDraft(t, l)

	counts, err := f.svc.SendApproved(context.Background(), 0)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if counts.Sent != 1 || counts.Failed != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if f.sender.sent[0].To != "owner@acme.test" || !strings.Contains(f.sender.sent[0].Subject, "Acme Plumbing") {
		t.Fatalf("unexpected message %+v", f.sender.sent[0])
	}

	got, _ := f.store.GetDraft(context.Background(), d.ID)
	if got.Status != domain.DraftStatusSent || got.MessageID == "" || got.SentAt == nil {
		t.Fatalf("expected sent draft with message id, got %+v", got)
	}
	lead, _ := f.store.GetLead(context.Background(), l.ID)
	if lead.Status != domain.StatusSent {
		t.Fatalf("expected lead sent, got %s", lead.Status)
	}

	again, err := f.svc.SendApproved(context.Background(), 0)
	if err != nil || again.Sent != 0 || f.sender.n != 1 {
		t.Fatalf("expected nothing resent, counts=%+v sends=%d err=%v", again, f.sender.n, err)
	}
}

func TestSendApprovedFailures(t *testing.T) {
	f := newFixture(t, Options{})
	noEmail := f.qualifiedLead(t, "No Mail Roofing", "")
	d := f.approvedDraft(t, noEmail)

	counts, err := f.svc.SendApproved(context.Background(), 0)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if counts.Failed != 1 || f.sender.n != 0 {
		t.Fatalf("expected one failure and no delivery, counts=%+v", counts)
	}
	got, _ := f.store.GetDraft(context.Background(), d.ID)
	if got.Status != domain.DraftStatusFailed || got.Error != ReasonNoEmail {
		t.Fatalf("expected failed draft with reason, got %+v", got)
	}

	f.sender.err = apperr.Transient("smtp send", errors.New("535 auth failed"))
	other := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	d2 := f.approvedDraft(t, other)
	if counts, _ := f.svc.SendApproved(context.Background(), 0); counts.Failed != 1 {
		t.Fatalf("expected transport failure counted, got %+v", counts)
	}
	got2, _ := f.store.GetDraft(context.Background(), d2.ID)
	if got2.Status != domain.DraftStatusFailed || !strings.Contains(got2.Error, "535") || got2.MessageID != "" {
		t.Fatalf("expected failed draft without message id, got %+v", got2)
	}
}

func TestSendApprovedRefusesBatchWithoutConfig(t *testing.T) {
	f := newFixture(t, Options{Ready: func() error { return apperr.Config("SMTP is not configured") }})
	l := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	f.approvedDraft(t, l)

	_, err := f.svc.SendApproved(context.Background(), 0)
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if f.sender.n != 0 {
		t.Fatalf("expected no deliveries")
	}
}

func TestSendApprovedHonorsLimit(t *testing.T) {
	f := newFixture(t, Options{DailyLimit: 1})
	for _, name := range []string{"Alpha Plumbing", "Bravo Plumbing"} {
		f.approvedDraft(t, f.qualifiedLead(t, name, strings.ToLower(strings.Fields(name)[0])+"@x.test"))
	}
	counts, err := f.svc.SendApproved(context.Background(), 10)
	if err != nil || counts.Sent != 1 {
		t.Fatalf("expected one send under daily limit, counts=%+v err=%v", counts, err)
	}
}

func TestPauseAndUnpause(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	f.approvedDraft(t, l)

	paused, err := f.svc.Pause(ctx, l.ID, "asked to hold")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != domain.StatusPaused || !paused.ManualOverride {
		t.Fatalf("expected paused lead, got %+v", paused)
	}

	counts, err := f.svc.SendApproved(ctx, 0)
	if err != nil || counts.Sent != 0 || counts.Skipped != 1 {
		t.Fatalf("expected paused lead skipped, counts=%+v err=%v", counts, err)
	}
	if res, _ := f.svc.Boost(ctx, l.ID); res.Refusal != sequencing.RefusePaused {
		t.Fatalf("expected paused refusal, got %+v", res)
	}

	resumed, err := f.svc.Unpause(ctx, l.ID)
	if err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if resumed.Status != domain.StatusQualified || resumed.ManualOverride {
		t.Fatalf("expected qualified without override, got %+v", resumed)
	}
	if _, err := f.svc.Unpause(ctx, l.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict unpausing an active lead, got %v", err)
	}
}

func TestUnpauseDropsStaleApproval(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	old := f.approvedDraft(t, l)

	if _, err := f.svc.Pause(ctx, l.ID, ""); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.svc.Unpause(ctx, l.ID); err != nil {
		t.Fatalf("unpause: %v", err)
	}

	got, _ := f.store.GetDraft(ctx, old.ID)
	if got.Status != domain.DraftStatusCancelled {
		t.Fatalf("expected approved draft cancelled on resume, got %s", got.Status)
	}
	if counts, _ := f.svc.SendApproved(ctx, 0); counts.Sent != 0 || f.sender.n != 0 {
		t.Fatalf("expected nothing sent after resume, counts=%+v", counts)
	}

	res, err := f.svc.Boost(ctx, l.ID)
	if err != nil || !res.Created() {
		t.Fatalf("expected a fresh draft after resume, res=%+v err=%v", res, err)
	}
	if res.Draft.FollowupNumber != 1 {
		t.Fatalf("expected next slot, got follow-up %d", res.Draft.FollowupNumber)
	}
	lead, _ := f.store.GetLead(ctx, l.ID)
	if lead.Status != domain.StatusDraftReady {
		t.Fatalf("expected draft_ready, got %s", lead.Status)
	}
}

func TestFailedSendCanBeRedrafted(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.qualifiedLead(t, "Acme Plumbing", "owner@acme.test")
	f.approvedDraft(t, l)

	f.sender.err = apperr.Transient("smtp send", errors.New("421 try later"))
	if counts, _ := f.svc.SendApproved(ctx, 0); counts.Failed != 1 {
		t.Fatalf("expected failed send, got %+v", counts)
	}

	res, err := f.svc.Boost(ctx, l.ID)
	if err != nil || !res.Created() {
		t.Fatalf("expected redraft after failed send, res=%+v err=%v", res, err)
	}
	lead, _ := f.store.GetLead(ctx, l.ID)
	if lead.Status != domain.StatusDraftReady {
		t.Fatalf("expected draft_ready, got %s", lead.Status)
	}

	f.sender.err = nil
	if _, err := f.svc.Approve(ctx, res.Draft.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if counts, _ := f.svc.SendApproved(ctx, 0); counts.Sent != 1 {
		t.Fatalf("expected redraft delivered, got %+v", counts)
	}
}
