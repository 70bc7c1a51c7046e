package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository/repositorytest"
	"outreach_backend/internal/pipeline"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

func memoryApp(t *testing.T) (*cli, *app, *repositorytest.Memory) {
	t.Helper()
	cfg := &config.Config{
		Env:         "test",
		PreviewDir:  t.TempDir(),
		PreviewHost: "http://localhost:8111",
		FromName:    "Sam Rivera",
	}
	store := repositorytest.NewMemory()
	log := logger.Discard()
	a := &app{cfg: cfg, log: log, store: store, catalog: catalog.Default(), val: validator.New()}
	return &cli{cfg: cfg, log: log}, a, store
}

func TestSmokeTest(t *testing.T) {
	c, a, store := memoryApp(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := c.smokeTest(ctx, &out, a); err != nil {
		t.Fatalf("smokeTest: %v\n%s", err, out.String())
	}
	for _, want := range []string{
		"Ace Plumbing & Drain",
		"Tier:",
		"http://localhost:8111/preview/ace-plumbing-drain/",
		"--- DRAFT BODY ---",
		"Mike",
		"SMTP: NOT configured",
		"IMAP: NOT configured",
		"outreach approve",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("smoke output missing %q:\n%s", want, out.String())
		}
	}

	ready, _ := store.ListLeadsByStatus(ctx, domain.StatusDraftReady, 0)
	if len(ready) != 1 {
		t.Fatalf("expected the test lead to be draft ready, got %d", len(ready))
	}

	// a rerun reuses the lead and keeps a single open draft
	out.Reset()
	if err := c.smokeTest(ctx, &out, a); err != nil {
		t.Fatalf("second smokeTest: %v", err)
	}
	if !strings.Contains(out.String(), "reusing it") {
		t.Fatalf("expected reuse notice:\n%s", out.String())
	}
	drafts, _ := store.ListDraftsByStatus(ctx, domain.DraftStatusDraft, 0)
	if len(drafts) != 1 {
		t.Fatalf("expected one open draft, got %d", len(drafts))
	}
}

func TestPrintQueue(t *testing.T) {
	var buf bytes.Buffer
	printQueue(&buf, nil)
	if !strings.Contains(buf.String(), "No drafts in queue.") {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	d, _ := domain.NewDraft(smokeLead(time.Now()).ID, 1, "Following up", "body", time.Now())
	printQueue(&buf, []domain.DraftWithLead{{Draft: d, BusinessName: "A Very Long Business Name That Keeps Going"}})
	got := buf.String()
	if !strings.Contains(got, d.ID.String()) || !strings.Contains(got, "#1") || !strings.Contains(got, "1 drafts awaiting approval.") {
		t.Fatalf("unexpected queue output:\n%s", got)
	}
	if strings.Contains(got, "Keeps Going") {
		t.Fatalf("expected business name clipped:\n%s", got)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, pipeline.Result{Stage: "qualify", OK: true, Counts: map[string]int{"qualified": 2, "errors": 0}})
	printResult(&buf, pipeline.Result{Stage: "discover", Error: "no key"})
	want := "  qualify: errors=0 qualified=2\n  discover ERROR: no key\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
	if stageError(pipeline.Result{Stage: "x", OK: true}) != nil {
		t.Fatalf("expected no error for ok stage")
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{
		"init-db", "prospect", "qualify", "build", "draft", "queue", "approve",
		"send-approved", "check-replies", "replies", "boost", "pause", "unpause",
		"convert", "dashboard", "smoke-test", "serve", "run-daily",
	} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("missing command %q", name)
		}
	}
}

func TestParseID(t *testing.T) {
	if _, err := parseID("lead", "not-a-uuid"); err == nil {
		t.Fatalf("expected validation error")
	}
	id := smokeLead(time.Now()).ID
	if got, err := parseID("lead", " "+id.String()+" "); err != nil || got != id {
		t.Fatalf("parseID = %v, %v", got, err)
	}
}
