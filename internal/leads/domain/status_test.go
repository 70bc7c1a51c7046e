package domain

import (
	"testing"
	"time"

	"outreach_backend/platform/apperr"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTransitionSameStatusIsNoop(t *testing.T) {
	lead := NewLead("Acme Plumbing", "plumbing", "Austin", testNow)
	lead.Status = StatusQualified

	changed, err := lead.Transition(StatusQualified, TriggerAutomated, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if changed {
		t.Fatalf("expected changed=false")
	}
	if !lead.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected UpdatedAt untouched on a no-op")
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from LeadStatus
		to   LeadStatus
		by   Trigger
		ok   bool
	}{
		{StatusNew, StatusQualified, TriggerAutomated, true},
		{StatusNew, StatusLost, TriggerAutomated, true},
		{StatusNew, StatusDraftReady, TriggerAutomated, false},
		{StatusQualified, StatusDraftReady, TriggerAutomated, true},
		{StatusSent, StatusDraftReady, TriggerAutomated, true},
		{StatusApproved, StatusDraftReady, TriggerAutomated, true},
		{StatusDraftReady, StatusApproved, TriggerOperator, true},
		{StatusDraftReady, StatusApproved, TriggerAutomated, false},
		{StatusApproved, StatusSent, TriggerAutomated, true},
		{StatusQualified, StatusSent, TriggerAutomated, false},
		{StatusSent, StatusReplied, TriggerAutomated, true},
		{StatusPaused, StatusReplied, TriggerAutomated, false},
		{StatusReplied, StatusWon, TriggerOperator, true},
		{StatusReplied, StatusWon, TriggerAutomated, false},
		{StatusWon, StatusLost, TriggerOperator, false},
		{StatusLost, StatusQualified, TriggerOperator, false},
		{StatusApproved, StatusPaused, TriggerOperator, true},
		{StatusApproved, StatusPaused, TriggerAutomated, false},
		{StatusPaused, StatusQualified, TriggerOperator, true},
		{StatusPaused, StatusSent, TriggerOperator, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to, tc.by); got != tc.ok {
			t.Fatalf("CanTransition(%s, %s, %d) = %v, want %v", tc.from, tc.to, tc.by, got, tc.ok)
		}
	}
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	lead := NewLead("Acme Plumbing", "plumbing", "Austin", testNow)

	_, err := lead.Transition(StatusSent, TriggerAutomated, testNow)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if lead.Status != StatusNew {
		t.Fatalf("expected status unchanged, got %s", lead.Status)
	}
}

func TestPauseAndUnpause(t *testing.T) {
	lead := NewLead("Acme Plumbing", "plumbing", "Austin", testNow)
	lead.Status = StatusSent

	if _, err := lead.Transition(StatusPaused, TriggerOperator, testNow); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !lead.ManualOverride {
		t.Fatalf("expected manual override after pause")
	}

	if _, err := lead.Transition(StatusDraftReady, TriggerAutomated, testNow); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected automated transition on paused lead to be refused, got %v", err)
	}

	if _, err := lead.Transition(StatusQualified, TriggerOperator, testNow); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if lead.ManualOverride || lead.Status != StatusQualified {
		t.Fatalf("expected qualified without override, got %s override=%v", lead.Status, lead.ManualOverride)
	}
}

func TestEligibleForDrafting(t *testing.T) {
	lead := NewLead("Acme Plumbing", "plumbing", "Austin", testNow)
	lead.Status = StatusQualified
	if lead.EligibleForDrafting() {
		t.Fatalf("expected lead without preview to be ineligible")
	}

	lead.PreviewURL = "https://example.test/preview/acme-plumbing/"
	if !lead.EligibleForDrafting() {
		t.Fatalf("expected qualified lead with preview to be eligible")
	}

	lead.Status = StatusApproved
	if !lead.EligibleForDrafting() {
		t.Fatalf("expected approved lead with preview to be eligible")
	}

	lead.ManualOverride = true
	if lead.EligibleForDrafting() {
		t.Fatalf("expected overridden lead to be ineligible")
	}
}

func TestGreetingName(t *testing.T) {
	lead := NewLead("  Acme Plumbing Co ", "plumbing", "Austin", testNow)
	if got := lead.GreetingName(); got != "Acme" {
		t.Fatalf("expected first word of business name, got %q", got)
	}
	lead.OwnerName = "Dana"
	if got := lead.GreetingName(); got != "Dana" {
		t.Fatalf("expected owner name, got %q", got)
	}
}
