package outreach

import (
	"strings"
	"testing"

	"outreach_backend/internal/leads/domain"
)

func TestComposeFollowups(t *testing.T) {
	c, err := NewComposer("", "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	l := domain.NewLead("Acme Plumbing", "plumbing", "Austin", testNow)
	l.PreviewURL = "https://previews.test/preview/acme-plumbing/"

	cases := []struct {
		followup    int
		subject     string
		bodyContain string
	}{
		{0, "Quick website preview for Acme Plumbing", "based on your services in Austin"},
		{1, "Following up — Acme Plumbing", "preview I put together for Acme Plumbing"},
		{2, "Closing the loop", "timing isn't right"},
	}
	for _, tc := range cases {
		subject, body, err := c.Compose(l, tc.followup)
		if err != nil {
			t.Fatalf("followup %d: %v", tc.followup, err)
		}
		if subject != tc.subject {
			t.Fatalf("followup %d: expected subject %q, got %q", tc.followup, tc.subject, subject)
		}
		for _, want := range []string{"Hi Acme,", tc.bodyContain, l.PreviewURL, "-- " + DefaultSender} {
			if !strings.Contains(body, want) {
				t.Fatalf("followup %d: body missing %q:\n%s", tc.followup, want, body)
			}
		}
	}

	if _, _, err := c.Compose(l, 3); err == nil {
		t.Fatalf("expected error for follow-up 3")
	}
}

func TestComposeUsesOwnerAndCalendar(t *testing.T) {
	c, err := NewComposer("Sam Seller", "https://cal.test/sam")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	l := domain.NewLead("Acme Plumbing", "plumbing", "Austin", testNow)
	l.OwnerName = "Maria"

	_, body, err := c.Compose(l, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, want := range []string{"Hi Maria,", "https://cal.test/sam", "-- Sam Seller"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}
