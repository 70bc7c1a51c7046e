package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/repository/repositorytest"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	candidates []Candidate
	err        error
	gotTerm    string
	gotRegion  string
}

func (f *fakeProvider) Search(_ context.Context, term, region string, _ int) ([]Candidate, error) {
	f.gotTerm, f.gotRegion = term, region
	return f.candidates, f.err
}

func newService(p Provider, store repository.Store) *Service {
	s := NewService(p, store, catalog.Default(), validator.New(), "US", 50, logger.Discard())
	s.now = func() time.Time { return testNow }
	return s
}

func TestDiscoverCreatesAndDedups(t *testing.T) {
	ctx := context.Background()
	store := repositorytest.NewMemory()
	p := &fakeProvider{candidates: []Candidate{
		{Name: "  Acme Plumbing ", Phone: "(650) 253-0000", Rating: 4.8, ReviewCount: 52},
		{Name: "Roto-Rooter Austin", Rating: 4.9, ReviewCount: 300},
		{Name: "", Rating: 4.5, ReviewCount: 20},
		{Name: "Acme Plumbing", Rating: 4.8, ReviewCount: 52},
		{Name: "Broken Rating Co", Rating: 7, ReviewCount: 20},
	}}
	s := newService(p, store)

	counts, err := s.Discover(ctx, "plumbing", "Austin, TX")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if p.gotTerm != "plumber" || p.gotRegion != "Austin, TX" {
		t.Fatalf("unexpected query %q in %q", p.gotTerm, p.gotRegion)
	}
	want := Counts{Raw: 5, Created: 1, Skipped: 4}
	if counts != want {
		t.Fatalf("expected %+v, got %+v", want, counts)
	}

	leads, _ := store.ListLeadsByStatus(ctx, domain.StatusNew, 0)
	if len(leads) != 1 || leads[0].BusinessName != "Acme Plumbing" || leads[0].Phone != "+16502530000" {
		t.Fatalf("unexpected leads %+v", leads)
	}

	again, err := s.Discover(ctx, "plumbing", "Austin, TX")
	if err != nil || again.Created != 0 {
		t.Fatalf("expected re-run to create nothing, counts=%+v err=%v", again, err)
	}
}

func TestDiscoverRejectsBadInput(t *testing.T) {
	s := newService(&fakeProvider{}, repositorytest.NewMemory())
	if _, err := s.Discover(context.Background(), "pool_cleaning", "Austin"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}
	if _, err := s.Discover(context.Background(), "plumbing", " "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty metro, got %v", err)
	}
}

func TestDiscoverProviderFailure(t *testing.T) {
	s := newService(&fakeProvider{err: apperr.Transient("places request failed", errors.New("timeout"))}, repositorytest.NewMemory())
	if _, err := s.Discover(context.Background(), "plumbing", "Austin"); !apperr.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestBuildLeadKeepsSingleShortExcerpt(t *testing.T) {
	long := strings.Repeat("great work ", 30)
	c := Candidate{
		Name:    "Acme Plumbing",
		Website: "https://acme.test",
		Reviews: []Review{
			{Text: long + "\nthanks", Author: "Jane Q Public", Time: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC).Unix()},
			{Text: "second review", Author: "Other Person"},
		},
	}

	l, ok := BuildLead(c, "plumbing", "Austin", "US", testNow)
	if !ok {
		t.Fatalf("expected lead")
	}
	if !l.HasWebsite || l.Source != Source || l.Status != domain.StatusNew {
		t.Fatalf("unexpected lead %+v", l)
	}
	if len([]rune(l.ReviewExcerpt)) > 200 || !strings.HasSuffix(l.ReviewExcerpt, "...") || strings.Contains(l.ReviewExcerpt, "\n") {
		t.Fatalf("unexpected excerpt %q", l.ReviewExcerpt)
	}
	if l.ReviewExcerptAuthor != "Jane P." {
		t.Fatalf("expected Jane P., got %q", l.ReviewExcerptAuthor)
	}
	if l.ReviewExcerptDate != "2025-11" || l.LastReviewDate != "2025-11" {
		t.Fatalf("unexpected dates %q %q", l.ReviewExcerptDate, l.LastReviewDate)
	}
}

func TestShortAuthor(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Cher":            "Cher",
		"maria gonzález":  "maria g.",
		"  Bob   Van Dyk": "Bob D.",
	}
	for in, want := range cases {
		if got := ShortAuthor(in); got != want {
			t.Fatalf("ShortAuthor(%q) = %q, want %q", in, got, want)
		}
	}
}
