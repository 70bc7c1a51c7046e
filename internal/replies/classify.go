// Package replies attributes inbound messages to leads, classifies their
// intent and retires outstanding drafts for leads that answered.
package replies

import (
	"strings"

	"outreach_backend/internal/leads/domain"
)

var (
	oooKeywords = []string{
		"out of office", "auto-reply", "away from", "on vacation", "limited access",
		"currently unavailable", "automatic reply", "i am currently out",
	}
	negativeKeywords = []string{
		"not interested", "no thanks", "remove me", "unsubscribe", "stop",
		"don't contact", "not for me", "take me off", "do not contact", "not right now",
	}
	positiveKeywords = []string{
		"yes", "interested", "sounds good", "let's do it", "tell me more", "love it",
		"looks great", "set it up", "go ahead", "call me", "i'm in", "let's talk", "when can we",
	}
	questionKeywords = []string{
		"how much", "price", "cost", "what's included", "how does", "can you", "do you",
		"what do you charge", "what are your rates",
	}
)

// classes is evaluated in order; the first class with a hit wins.
var classes = []struct {
	kind     domain.ReplyType
	keywords []string
}{
	{domain.ReplyOOO, oooKeywords},
	{domain.ReplyNegative, negativeKeywords},
	{domain.ReplyPositive, positiveKeywords},
	{domain.ReplyQuestion, questionKeywords},
}

// Classify scans subject and body for intent keywords. Auto-replies win
// over everything, so an out-of-office note containing "yes" stays ooo.
func Classify(subject, body string) domain.ReplyType {
	text := strings.ToLower(subject + " " + body)
	for _, c := range classes {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.kind
			}
		}
	}
	return domain.ReplyOther
}
