package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestDraftLifecycle(t *testing.T) {
	d, err := NewDraft(uuid.New(), 0, "Quick website preview for Acme", "body", testNow)
	if err != nil {
		t.Fatalf("new draft: %v", err)
	}

	if err := d.MarkSent("abc@example.test", testNow); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected sending an unapproved draft to be refused, got %v", err)
	}

	if err := d.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := d.Approve(); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected second approve to conflict, got %v", err)
	}

	if err := d.MarkSent("abc@example.test", testNow); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if d.SentAt == nil || d.MessageID != "abc@example.test" {
		t.Fatalf("expected sent_at and message id to be set")
	}
	if d.Cancel() {
		t.Fatalf("expected sent draft not to be cancellable")
	}
}

func TestNewDraftRejectsOutOfRangeFollowup(t *testing.T) {
	if _, err := NewDraft(uuid.New(), MaxDrafts, "s", "b", testNow); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewReplyTruncates(t *testing.T) {
	r := NewReply(uuid.New(), " Owner@Example.TEST ", strings.Repeat("s", 300), strings.Repeat("i", 300), strings.Repeat("b", 2500), ReplyOther, testNow)

	if r.FromEmail != "owner@example.test" {
		t.Fatalf("expected lower-cased sender, got %q", r.FromEmail)
	}
	if len(r.Subject) != MaxReplySubject || len(r.InReplyTo) != MaxReplyInReplyTo || len(r.RawBody) != MaxReplyBody {
		t.Fatalf("unexpected lengths: subject=%d in_reply_to=%d body=%d", len(r.Subject), len(r.InReplyTo), len(r.RawBody))
	}
}

func TestNewReplyStoresValidText(t *testing.T) {
	r := NewReply(uuid.New(), "owner@example.test\xff", "Re: d\xe9j\xe0 vu", "abc@mail\x00.test", "body \xc3", ReplyOther, testNow)

	for name, v := range map[string]string{"from": r.FromEmail, "subject": r.Subject, "in_reply_to": r.InReplyTo, "body": r.RawBody} {
		if !utf8.ValidString(v) || strings.Contains(v, "\x00") {
			t.Fatalf("%s is not storable text: %q", name, v)
		}
	}
}
