package domain

import (
	"strings"
	"time"

	"outreach_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Stored field limits for inbound replies.
const (
	MaxReplySubject   = 200
	MaxReplyInReplyTo = 200
	MaxReplyBody      = 2000
)

// ReplyType is the coarse intent of an inbound reply.
type ReplyType string

const (
	ReplyPositive ReplyType = "positive"
	ReplyNegative ReplyType = "negative"
	ReplyQuestion ReplyType = "question"
	ReplyOOO      ReplyType = "ooo"
	ReplyOther    ReplyType = "other"
)

// Reply is an inbound message attributed to exactly one lead.
type Reply struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	FromEmail string
	Subject   string
	InReplyTo string
	RawBody   string
	Type      ReplyType
	CreatedAt time.Time
}

// NewReply builds a reply with its stored fields truncated to their limits.
func NewReply(leadID uuid.UUID, from, subject, inReplyTo, body string, kind ReplyType, now time.Time) Reply {
	return Reply{
		ID:        uuid.New(),
		LeadID:    leadID,
		FromEmail: strings.ToLower(strings.TrimSpace(sanitize.ValidText(from))),
		Subject:   sanitize.Truncate(subject, MaxReplySubject),
		InReplyTo: sanitize.Truncate(inReplyTo, MaxReplyInReplyTo),
		RawBody:   sanitize.Truncate(body, MaxReplyBody),
		Type:      kind,
		CreatedAt: now,
	}
}

// ReplyWithLead is a reply joined with its lead for operator listings.
type ReplyWithLead struct {
	Reply
	BusinessName string
	LeadStatus   LeadStatus
}
