package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/pipeline"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const smokeEmail = "test@example.com"

func smokeLead(now time.Time) domain.Lead {
	l := domain.NewLead("Ace Plumbing & Drain", "plumbing", "Denver CO", now)
	l.OwnerName = "Mike Johnson"
	l.Email = smokeEmail
	l.Phone = "+13035551234"
	l.Rating = 4.7
	l.ReviewCount = 42
	l.ExternalProfileLink = "https://maps.google.com/?cid=fake"
	l.Source = "smoke_test"
	return l
}

func (c *cli) smokeTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke-test",
		Short: "Take a fake lead through qualify, build and draft, then check mail settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return c.smokeTest(ctx, cmd.OutOrStdout(), a)
			})
		},
	}
}

func (c *cli) smokeTest(ctx context.Context, out io.Writer, a *app) error {
	banner := strings.Repeat("=", 52)
	fmt.Fprintf(out, "\n%s\n  SMOKE TEST\n%s\n\n", banner, banner)

	fmt.Fprintln(out, "[1/6] Creating test lead...")
	lead := smokeLead(time.Now().UTC())
	created, err := a.store.InsertLead(ctx, lead)
	if err != nil {
		return err
	}
	if !created {
		id, err := a.store.FindLeadIDByEmail(ctx, smokeEmail)
		if err != nil {
			return err
		}
		lead.ID = id
		fmt.Fprintln(out, "  Test lead already exists; reusing it.")
	}
	fmt.Fprintf(out, "  Lead ID: %s\n", lead.ID)
	fmt.Fprintf(out, "  Business: %s\n", lead.BusinessName)
	fmt.Fprintf(out, "  Metro: %s | Rating: %.1f | Reviews: %d | No website\n", lead.Metro, lead.Rating, lead.ReviewCount)

	o, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}

	steps := []struct {
		label  string
		run    func(context.Context, uuid.UUID) pipeline.Result
		report func(domain.Lead)
	}{
		{"[2/6] Qualifying...", o.QualifyLead, func(l domain.Lead) {
			fmt.Fprintf(out, "  Score: %d | Tier: %s | ROI: $%d/mo\n", l.QualificationScore, l.Tier, l.ROIEstimateMonthly)
		}},
		{"[3/6] Building preview...", o.BuildLead, func(l domain.Lead) {
			fmt.Fprintf(out, "  Preview URL:  %s\n", l.PreviewURL)
			fmt.Fprintf(out, "  Preview file: %s\n", l.PreviewPath)
		}},
		{"[4/6] Generating outreach draft...", o.DraftLead, nil},
	}
	for _, step := range steps {
		fmt.Fprintln(out, step.label)
		r := step.run(ctx, lead.ID)
		if !r.OK {
			fmt.Fprintf(out, "  ERROR: %s\n", r.Error)
			return stageError(r)
		}
		if step.report != nil {
			l, err := a.store.GetLead(ctx, lead.ID)
			if err != nil {
				return err
			}
			step.report(l)
		}
	}

	drafts, err := a.store.ListDraftsForLead(ctx, lead.ID)
	if err != nil {
		return err
	}
	var pending *domain.Draft
	for i := range drafts {
		if drafts[i].Status == domain.DraftStatusDraft {
			pending = &drafts[i]
		}
	}
	if pending == nil {
		fmt.Fprintln(out, "  No open draft for the test lead (already sent or exhausted).")
	} else {
		fmt.Fprintf(out, "  Draft ID: %s\n  Subject:  %s\n  To:       %s\n\n", pending.ID, pending.Subject, smokeEmail)
		fmt.Fprintln(out, "  --- DRAFT BODY ---")
		for _, line := range strings.Split(pending.Body, "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
		fmt.Fprintln(out, "  --- END DRAFT ---")
	}

	fmt.Fprintln(out, "\n[5/6] SMTP check...")
	if c.cfg.HasSMTP() {
		fmt.Fprintln(out, "  SMTP: configured (ready to send)")
	} else {
		fmt.Fprintln(out, "  SMTP: NOT configured; set SMTP_USER, SMTP_PASS, FROM_EMAIL in .env")
	}

	fmt.Fprintln(out, "[6/6] IMAP check...")
	if c.cfg.HasIMAP() {
		fmt.Fprintln(out, "  IMAP: configured (ready to check replies)")
		r := o.CheckReplies(ctx)
		if r.OK {
			fmt.Fprintf(out, "  IMAP test: OK, %d new replies found\n", r.Counts["found"])
		} else {
			fmt.Fprintf(out, "  IMAP test: %s\n", r.Error)
		}
	} else {
		fmt.Fprintln(out, "  IMAP: NOT configured; set IMAP_USER, IMAP_PASS in .env")
	}

	fmt.Fprintf(out, "\n%s\n  SMOKE TEST COMPLETE\n%s\n\n", banner, banner)
	if pending != nil {
		fmt.Fprintln(out, "  To send this test email:")
		fmt.Fprintf(out, "    1. outreach approve %s\n", pending.ID)
		fmt.Fprintln(out, "    2. outreach send-approved --limit 1")
		fmt.Fprintf(out, "\n  The test lead %s uses %s and will not match real prospects.\n\n", lead.ID, smokeEmail)
	}
	return nil
}
