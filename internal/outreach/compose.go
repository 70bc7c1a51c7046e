package outreach

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"outreach_backend/internal/leads/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// DefaultSender signs messages when FROM_NAME is not configured.
const DefaultSender = "Your Name"

type messageData struct {
	Name         string
	Business     string
	Metro        string
	PreviewURL   string
	Sender       string
	CalendarLink string
}

// Composer renders the subject and body of each follow-up from the embedded
// templates. It satisfies sequencing.Composer.
type Composer struct {
	sender       string
	calendarLink string
	templates    [domain.MaxDrafts]*template.Template
}

// NewComposer parses the follow-up templates.
func NewComposer(fromName, calendarLink string) (*Composer, error) {
	sender := strings.TrimSpace(fromName)
	if sender == "" {
		sender = DefaultSender
	}
	c := &Composer{sender: sender, calendarLink: strings.TrimSpace(calendarLink)}
	for i := range c.templates {
		name := fmt.Sprintf("templates/followup_%d.tmpl", i)
		tmpl, err := template.ParseFS(templateFS, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		c.templates[i] = tmpl
	}
	return c, nil
}

func (c *Composer) Compose(l domain.Lead, followup int) (string, string, error) {
	if followup < 0 || followup >= len(c.templates) {
		return "", "", fmt.Errorf("no template for follow-up %d", followup)
	}
	data := messageData{
		Name:         l.GreetingName(),
		Business:     l.BusinessName,
		Metro:        l.Metro,
		PreviewURL:   l.PreviewURL,
		Sender:       c.sender,
		CalendarLink: c.calendarLink,
	}

	tmpl := c.templates[followup]
	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
