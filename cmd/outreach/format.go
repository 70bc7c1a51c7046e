package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/pipeline"
)

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func printQueue(w io.Writer, drafts []domain.DraftWithLead) {
	if len(drafts) == 0 {
		fmt.Fprintln(w, "No drafts in queue.")
		return
	}
	fmt.Fprintf(w, "\n%-36s  %-30s %-40s %s\n", "ID", "Business", "Subject", "Follow-up")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, d := range drafts {
		fmt.Fprintf(w, "%-36s  %-30s %-40s #%d\n", d.ID, clip(d.BusinessName, 28), clip(d.Subject, 38), d.FollowupNumber)
	}
	fmt.Fprintf(w, "\n%d drafts awaiting approval.\n", len(drafts))
	fmt.Fprintln(w, "Use: outreach approve <draft_id>")
}

func printReplies(w io.Writer, replies []domain.ReplyWithLead) {
	if len(replies) == 0 {
		fmt.Fprintln(w, "No replies yet.")
		return
	}
	fmt.Fprintf(w, "\n%-30s %-12s %-30s %s\n", "Business", "Type", "From", "Date")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, r := range replies {
		fmt.Fprintf(w, "%-30s %-12s %-30s %s\n", clip(r.BusinessName, 28), r.Type, clip(r.FromEmail, 28), r.CreatedAt.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(w, "\n%d replies. Handle these manually.\n", len(replies))
}

// printResult writes one stage line with its counts in key order.
func printResult(w io.Writer, r pipeline.Result) {
	if !r.OK {
		fmt.Fprintf(w, "  %s ERROR: %s\n", r.Stage, r.Error)
		return
	}
	keys := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r.Counts[k]))
	}
	fmt.Fprintf(w, "  %s: %s\n", r.Stage, strings.Join(parts, " "))
}

func stageError(r pipeline.Result) error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%s stage failed: %s", r.Stage, r.Error)
}
