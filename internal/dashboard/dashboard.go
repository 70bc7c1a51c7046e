// Package dashboard records deal outcomes and reports the funnel.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/platform/validator"

	"github.com/google/uuid"
)

// Report is a snapshot of the funnel.
type Report struct {
	Leads         map[domain.LeadStatus]int
	Drafts        map[domain.DraftStatus]int
	TotalLeads    int
	Replies       int
	Positive      int
	PipelineROI   int
	ClosedRevenue float64
	Won           int
	Lost          int
}

// ReplyRate is replies per sent draft. ok is false when nothing was sent.
func (r Report) ReplyRate() (rate float64, ok bool) {
	sent := r.Drafts[domain.DraftStatusSent]
	if sent == 0 {
		return 0, false
	}
	return float64(r.Replies) / float64(sent), true
}

// PositiveRate is positive replies per reply. ok is false without replies.
func (r Report) PositiveRate() (rate float64, ok bool) {
	if r.Replies == 0 {
		return 0, false
	}
	return float64(r.Positive) / float64(r.Replies), true
}

// Service reads funnel metrics and writes conversions.
type Service struct {
	store     repository.Store
	validator *validator.Validator
	now       func() time.Time
}

// NewService creates a dashboard service.
func NewService(store repository.Store, val *validator.Validator) *Service {
	return &Service{store: store, validator: val, now: time.Now}
}

// Report collects the funnel counts.
func (s *Service) Report(ctx context.Context) (Report, error) {
	var (
		r   Report
		err error
	)
	if r.Leads, err = s.store.CountLeadsByStatus(ctx); err != nil {
		return Report{}, err
	}
	if r.Drafts, err = s.store.CountDraftsByStatus(ctx); err != nil {
		return Report{}, err
	}
	replies, err := s.store.CountReplies(ctx)
	if err != nil {
		return Report{}, err
	}
	r.Replies, r.Positive = replies.Total, replies.Positive
	if r.PipelineROI, err = s.store.SumPipelineROI(ctx); err != nil {
		return Report{}, err
	}
	conv, err := s.store.ConversionStats(ctx)
	if err != nil {
		return Report{}, err
	}
	r.Won, r.Lost, r.ClosedRevenue = conv.Won, conv.Lost, conv.ClosedRevenue

	for _, n := range r.Leads {
		r.TotalLeads += n
	}
	return r, nil
}

// RecordConversion stores the outcome of a lead and closes it as won or
// lost. Pending drafts of the lead are cancelled.
func (s *Service) RecordConversion(ctx context.Context, leadID uuid.UUID, dealValue float64, status domain.ConversionStatus) (domain.Conversion, error) {
	conv := domain.Conversion{
		ID:        uuid.New(),
		LeadID:    leadID,
		DealValue: dealValue,
		Status:    status,
		CreatedAt: s.now(),
	}
	if err := s.validator.Struct(conv); err != nil {
		return domain.Conversion{}, err
	}

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		lead, err := q.LockLead(ctx, leadID)
		if err != nil {
			return err
		}
		if _, err := lead.Transition(conv.LeadStatus(), domain.TriggerOperator, conv.CreatedAt); err != nil {
			return err
		}
		if err := q.InsertConversion(ctx, conv); err != nil {
			return err
		}
		if err := q.UpdateLead(ctx, lead); err != nil {
			return err
		}
		_, err = q.CancelPendingDrafts(ctx, lead.ID)
		return err
	})
	if err != nil {
		return domain.Conversion{}, err
	}
	return conv, nil
}

// Write prints the report as an aligned table.
func (r Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	line := strings.Repeat("=", 52)

	fmt.Fprintf(tw, "%s\n  PIPELINE DASHBOARD\n%s\n\n", line, line)
	fmt.Fprintln(tw, "  LEADS\t\t")
	fmt.Fprintf(tw, "  Total\t%d\t\n", r.TotalLeads)
	for _, st := range domain.AllStatuses {
		fmt.Fprintf(tw, "  %s\t%d\t\n", label(string(st)), r.Leads[st])
	}

	fmt.Fprintln(tw, "\t\t\n  RATES\t\t")
	sent := r.Drafts[domain.DraftStatusSent]
	fmt.Fprintf(tw, "  Reply rate\t%s\t  (%d replies / %d sent)\n", percent(r.ReplyRate()), r.Replies, sent)
	fmt.Fprintf(tw, "  Positive rate\t%s\t  (%d positive / %d replies)\n", percent(r.PositiveRate()), r.Positive, r.Replies)

	fmt.Fprintln(tw, "\t\t\n  ECONOMICS\t\t")
	fmt.Fprintf(tw, "  Est pipeline ROI\t$%d/mo\t  (qualified+draft_ready+approved+sent)\n", r.PipelineROI)
	fmt.Fprintf(tw, "  Closed revenue\t$%.0f\t  (%d won / %d lost)\n", r.ClosedRevenue, r.Won, r.Lost)

	fmt.Fprintln(tw, "\t\t\n  DRAFT QUEUE\t\t")
	for _, st := range domain.AllDraftStatuses {
		name := label(string(st))
		if st == domain.DraftStatusDraft {
			name = "Pending approval"
		}
		fmt.Fprintf(tw, "  %s\t%d\t\n", name, r.Drafts[st])
	}
	fmt.Fprintf(tw, "\n%s\n", line)
	return tw.Flush()
}

func label(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func percent(rate float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", rate*100)
}
