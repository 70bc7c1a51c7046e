package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedLead(t *testing.T, m *Memory, name, email string, score int, status domain.LeadStatus) domain.Lead {
	t.Helper()
	l := domain.NewLead(name, "plumbing", "Austin", testNow)
	l.Email = email
	l.QualificationScore = score
	l.Status = status
	ok, err := m.InsertLead(context.Background(), l)
	if err != nil || !ok {
		t.Fatalf("seed %s: ok=%v err=%v", name, ok, err)
	}
	return l
}

func TestInsertLeadDeduplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedLead(t, m, "Acme Plumbing", "owner@acme.test", 0, domain.StatusNew)

	sameName := domain.NewLead("Acme Plumbing", "plumbing", "Austin", testNow)
	if ok, _ := m.InsertLead(ctx, sameName); ok {
		t.Fatalf("expected name+metro duplicate to be refused")
	}

	sameEmail := domain.NewLead("Other Name", "plumbing", "Dallas", testNow)
	sameEmail.Email = "OWNER@acme.test"
	if ok, _ := m.InsertLead(ctx, sameEmail); ok {
		t.Fatalf("expected email duplicate to be refused")
	}

	otherMetro := domain.NewLead("Acme Plumbing", "plumbing", "Dallas", testNow)
	if ok, _ := m.InsertLead(ctx, otherMetro); !ok {
		t.Fatalf("expected same name in another metro to be accepted")
	}
}

func TestListLeadsByStatusOrderAndOverride(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	low := seedLead(t, m, "Low", "", 30, domain.StatusQualified)
	high := seedLead(t, m, "High", "", 90, domain.StatusQualified)
	tie := seedLead(t, m, "Tie", "", 30, domain.StatusQualified)
	paused := seedLead(t, m, "Paused", "", 99, domain.StatusQualified)
	paused.ManualOverride = true
	if err := m.UpdateLead(ctx, paused); err != nil {
		t.Fatalf("update: %v", err)
	}

	leads, err := m.ListLeadsByStatus(ctx, domain.StatusQualified, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(leads))
	}
	if leads[0].ID != high.ID || leads[1].ID != low.ID || leads[2].ID != tie.ID {
		t.Fatalf("unexpected order: %s, %s, %s", leads[0].BusinessName, leads[1].BusinessName, leads[2].BusinessName)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lead := seedLead(t, m, "Acme Plumbing", "", 0, domain.StatusQualified)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(q repository.Queries) error {
		l, err := q.LockLead(ctx, lead.ID)
		if err != nil {
			return err
		}
		l.Status = domain.StatusDraftReady
		if err := q.UpdateLead(ctx, l); err != nil {
			return err
		}
		d, _ := domain.NewDraft(lead.ID, 0, "s", "b", testNow)
		if err := q.InsertDraft(ctx, d); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := m.GetLead(ctx, lead.ID)
	if got.Status != domain.StatusQualified {
		t.Fatalf("expected status rolled back, got %s", got.Status)
	}
	if n, _ := m.CountDraftsForLead(ctx, lead.ID); n != 0 {
		t.Fatalf("expected draft insert rolled back, got %d drafts", n)
	}
}

func TestInsertDraftOpenSlotIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lead := seedLead(t, m, "Acme Plumbing", "", 0, domain.StatusQualified)

	first, _ := domain.NewDraft(lead.ID, 0, "s", "b", testNow)
	if err := m.InsertDraft(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, _ := domain.NewDraft(lead.ID, 0, "s", "b", testNow)
	if err := m.InsertDraft(ctx, second); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected repository.ErrDuplicate, got %v", err)
	}

	first.Cancel()
	if err := m.UpdateDraft(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := m.InsertDraft(ctx, second); err != nil {
		t.Fatalf("expected slot to free after cancel, got %v", err)
	}
}

func TestCancelPendingDraftsLeavesSentAlone(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lead := seedLead(t, m, "Acme Plumbing", "", 0, domain.StatusSent)

	sent, _ := domain.NewDraft(lead.ID, 0, "s", "b", testNow)
	_ = sent.Approve()
	_ = sent.MarkSent("id-1@example.test", testNow)
	pending, _ := domain.NewDraft(lead.ID, 1, "s", "b", testNow)
	for _, d := range []domain.Draft{sent, pending} {
		if err := m.InsertDraft(ctx, d); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := m.CancelPendingDrafts(ctx, lead.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 cancelled, got %d err=%v", n, err)
	}
	got, _ := m.FindSentDraftByMessageID(ctx, "id-1@example.test")
	if got.ID != sent.ID || got.Status != domain.DraftStatusSent {
		t.Fatalf("expected sent draft untouched")
	}
}
