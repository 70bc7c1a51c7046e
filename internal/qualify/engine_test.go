package qualify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/platform/logger"
)

type stubChecker struct {
	quality WebsiteQuality
	err     error
	calls   int
}

func (s *stubChecker) Check(context.Context, string) (WebsiteQuality, error) {
	s.calls++
	return s.quality, s.err
}

func TestEvaluateCheckerFailureCountsAsWeak(t *testing.T) {
	l := lead(4.7, 42)
	l.HasWebsite = true
	l.WebsiteURL = "https://acme.test"

	failing := NewEngine(catalog.Default(), &stubChecker{err: errors.New("timeout")}, logger.Discard())
	weak := NewEngine(catalog.Default(), &stubChecker{quality: WebsiteWeak}, logger.Discard())

	a := failing.Evaluate(context.Background(), l, testNow)
	b := weak.Evaluate(context.Background(), l, testNow)
	if a.Disqualified() || a.Score != b.Score || a.Tier != b.Tier || a.ROI != b.ROI {
		t.Fatalf("expected failing check to match weak outcome: %+v vs %+v", a, b)
	}
	if a.Score != 55 {
		t.Fatalf("expected 20+20+15 = 55, got %d", a.Score)
	}
}

func TestEvaluateSkipsCheckWithoutURL(t *testing.T) {
	checker := &stubChecker{quality: WebsiteModern}
	e := NewEngine(catalog.Default(), checker, logger.Discard())

	l := lead(4.7, 42)
	l.HasWebsite = true
	e.Evaluate(context.Background(), l, testNow)

	if checker.calls != 0 {
		t.Fatalf("expected no website check without a URL")
	}
}

func TestApplyTransitions(t *testing.T) {
	e := NewEngine(catalog.Default(), nil, logger.Discard())

	good := lead(4.7, 42)
	if _, err := Apply(&good, e.Evaluate(context.Background(), good, testNow), testNow); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if good.Status != domain.StatusQualified || good.Tier == "" || len(good.ReviewThemes) != 3 {
		t.Fatalf("unexpected qualified lead: %+v", good)
	}

	bad := lead(4.0, 42)
	if _, err := Apply(&bad, e.Evaluate(context.Background(), bad, testNow), testNow); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if bad.Status != domain.StatusLost || !strings.HasPrefix(bad.HumanNotes, "Disqualified: rating") {
		t.Fatalf("unexpected disqualified lead: status=%s notes=%q", bad.Status, bad.HumanNotes)
	}
}

func TestHTTPChecker(t *testing.T) {
	modern := "<html><head><meta name=\"viewport\" content=\"width=device-width\"></head><body><form></form>" +
		strings.Repeat("<p>filler</p>", 4000) + "</body></html>"
	small := "<html><head><meta name=\"viewport\"></head><body><form></form></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Mozilla/5.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/modern":
			_, _ = w.Write([]byte(modern))
		case "/small":
			_, _ = w.Write([]byte(small))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPChecker(2 * time.Second)
	cases := map[string]WebsiteQuality{"/modern": WebsiteModern, "/small": WebsiteWeak, "/missing": WebsiteWeak}
	for path, want := range cases {
		got, err := c.Check(context.Background(), srv.URL+path)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", path, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", path, want, got)
		}
	}
}
