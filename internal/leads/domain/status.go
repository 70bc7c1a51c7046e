package domain

import (
	"fmt"
	"time"

	"outreach_backend/platform/apperr"
)

// LeadStatus is a lead's position in the outreach funnel.
type LeadStatus string

const (
	StatusNew        LeadStatus = "new"
	StatusQualified  LeadStatus = "qualified"
	StatusDraftReady LeadStatus = "draft_ready"
	StatusApproved   LeadStatus = "approved"
	StatusSent       LeadStatus = "sent"
	StatusReplied    LeadStatus = "replied"
	StatusWon        LeadStatus = "won"
	StatusLost       LeadStatus = "lost"
	StatusPaused     LeadStatus = "paused"
)

// AllStatuses lists every lead status in funnel order.
var AllStatuses = []LeadStatus{
	StatusNew, StatusQualified, StatusDraftReady, StatusApproved, StatusSent,
	StatusReplied, StatusWon, StatusLost, StatusPaused,
}

// PipelineStatuses are the statuses whose ROI estimate counts as open pipeline.
var PipelineStatuses = []LeadStatus{StatusQualified, StatusDraftReady, StatusApproved, StatusSent}

// ParseStatus validates a status name.
func ParseStatus(s string) (LeadStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperr.Validation(fmt.Sprintf("unknown lead status %q", s))
}

// IsTerminal reports whether no further transitions are possible.
func (s LeadStatus) IsTerminal() bool {
	return s == StatusWon || s == StatusLost
}

// acceptsReply reports whether an attributed reply moves the lead to replied.
func (s LeadStatus) acceptsReply() bool {
	switch s {
	case StatusNew, StatusQualified, StatusDraftReady, StatusApproved, StatusSent:
		return true
	default:
		return false
	}
}

// Trigger identifies who is asking for a transition. Automated transitions
// are refused on leads under manual override; operator ones are not.
type Trigger int

const (
	TriggerAutomated Trigger = iota
	TriggerOperator
)

type edge struct {
	from, to LeadStatus
}

// edges maps each allowed transition to the trigger that may perform it.
var edges = map[edge]Trigger{
	{StatusNew, StatusQualified}: TriggerAutomated,
	{StatusNew, StatusLost}:      TriggerAutomated,

	{StatusQualified, StatusDraftReady}: TriggerAutomated,
	{StatusSent, StatusDraftReady}:      TriggerAutomated,
	{StatusApproved, StatusDraftReady}:  TriggerAutomated,

	{StatusQualified, StatusApproved}:  TriggerOperator,
	{StatusDraftReady, StatusApproved}: TriggerOperator,
	{StatusSent, StatusApproved}:       TriggerOperator,

	{StatusApproved, StatusSent}:   TriggerAutomated,
	{StatusDraftReady, StatusSent}: TriggerAutomated,

	{StatusPaused, StatusQualified}: TriggerOperator,
}

// CanTransition reports whether from -> to is a legal move for the trigger.
func CanTransition(from, to LeadStatus, by Trigger) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusReplied:
		return from.acceptsReply()
	case StatusPaused:
		return by == TriggerOperator
	case StatusWon, StatusLost:
		if by == TriggerOperator {
			return true
		}
	}
	need, ok := edges[edge{from, to}]
	if !ok {
		return false
	}
	return need == TriggerAutomated || by == TriggerOperator
}

// Transition moves the lead to status to. Moving to the current status is a
// no-op that reports changed=false and no error, so replayed pipeline runs
// are harmless.
func (l *Lead) Transition(to LeadStatus, by Trigger, now time.Time) (bool, error) {
	if l.Status == to {
		return false, nil
	}
	if by == TriggerAutomated && l.ManualOverride {
		return false, apperr.Conflict(fmt.Sprintf("lead %s is under manual override", l.ID))
	}
	if !CanTransition(l.Status, to, by) {
		return false, apperr.Conflict(fmt.Sprintf("invalid lead transition: %s -> %s", l.Status, to))
	}

	switch {
	case to == StatusPaused:
		l.ManualOverride = true
	case l.Status == StatusPaused && to == StatusQualified:
		l.ManualOverride = false
	}

	l.Status = to
	l.UpdatedAt = now
	return true, nil
}
