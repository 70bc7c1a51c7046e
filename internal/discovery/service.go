package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
	"outreach_backend/platform/sanitize"
	"outreach_backend/platform/validator"
)

const (
	// Source tags leads created by this package.
	Source = "google_places"

	maxExcerptLen = 200
)

type candidateInput struct {
	Name        string  `validate:"required,max=200"`
	Rating      float64 `validate:"gte=0,lte=5"`
	ReviewCount int     `validate:"gte=0"`
}

type queryInput struct {
	Category string `validate:"required"`
	Metro    string `validate:"required,max=120"`
}

// Service turns provider candidates into new leads.
type Service struct {
	provider  Provider
	store     repository.Store
	catalog   *catalog.Catalog
	validator *validator.Validator
	region    string
	batchSize int
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a discovery service. region is the default phone region.
func NewService(provider Provider, store repository.Store, cat *catalog.Catalog, val *validator.Validator, region string, batchSize int, log *logger.Logger) *Service {
	return &Service{
		provider:  provider,
		store:     store,
		catalog:   cat,
		validator: val,
		region:    region,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// Discover searches the provider for category in metro and inserts every
// candidate that is not a franchise and not already known.
func (s *Service) Discover(ctx context.Context, category, metro string) (Counts, error) {
	var counts Counts
	metro = strings.TrimSpace(metro)
	if err := s.validator.Struct(queryInput{Category: category, Metro: metro}); err != nil {
		return counts, err
	}
	cat, ok := s.catalog.Get(category)
	if !ok {
		return counts, apperr.Validation(fmt.Sprintf("unknown category %q (known: %s)", category, strings.Join(s.catalog.Keys(), ", ")))
	}

	candidates, err := s.provider.Search(ctx, cat.SearchTerm, metro, s.batchSize)
	if err != nil {
		return counts, err
	}
	counts.Raw = len(candidates)

	for _, c := range candidates {
		created, err := s.ingest(ctx, c, category, metro)
		switch {
		case err != nil:
			counts.Errors++
			s.log.ItemError("discover", c.Name, err)
		case created:
			counts.Created++
		default:
			counts.Skipped++
		}
	}
	return counts, nil
}

func (s *Service) ingest(ctx context.Context, c Candidate, category, metro string) (bool, error) {
	lead, ok := BuildLead(c, category, metro, s.region, s.now())
	if !ok {
		return false, nil
	}
	if s.catalog.IsFranchise(lead.BusinessName) {
		s.log.Debug("skipping franchise", slog.String("business", lead.BusinessName))
		return false, nil
	}
	if err := s.validator.Struct(candidateInput{Name: lead.BusinessName, Rating: lead.Rating, ReviewCount: lead.ReviewCount}); err != nil {
		s.log.Debug("skipping invalid candidate", slog.String("business", lead.BusinessName), slog.String("error", err.Error()))
		return false, nil
	}

	exists, err := s.store.LeadExists(ctx, lead.BusinessName, lead.Metro, lead.Email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return s.store.InsertLead(ctx, lead)
}

// BuildLead maps a candidate to a new lead. It reports false for candidates
// without a usable name.
func BuildLead(c Candidate, category, metro, region string, now time.Time) (domain.Lead, bool) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return domain.Lead{}, false
	}

	l := domain.NewLead(name, category, metro, now)
	l.Phone = phone.NormalizeE164(c.Phone, region)
	l.Rating = c.Rating
	l.ReviewCount = c.ReviewCount
	l.WebsiteURL = strings.TrimSpace(c.Website)
	l.HasWebsite = l.WebsiteURL != ""
	l.ExternalProfileLink = c.ProfileLink
	l.Source = Source

	if ex, ok := singleExcerpt(c.Reviews); ok {
		l.ReviewExcerpt = ex.text
		l.ReviewExcerptAuthor = ex.author
		l.ReviewExcerptDate = ex.date
		l.LastReviewDate = ex.date
	}
	return l, true
}

type excerpt struct {
	text   string
	author string
	date   string
}

// singleExcerpt keeps only the first review: one line of text, at most 200
// characters, and the author reduced to first name and last initial.
func singleExcerpt(reviews []Review) (excerpt, bool) {
	if len(reviews) == 0 {
		return excerpt{}, false
	}
	r := reviews[0]
	text := sanitize.OneLine(r.Text)
	if text == "" {
		return excerpt{}, false
	}

	ex := excerpt{
		text:   sanitize.TruncateWords(text, maxExcerptLen),
		author: ShortAuthor(r.Author),
	}
	if r.Time > 0 {
		ex.date = time.Unix(r.Time, 0).UTC().Format("2006-01")
	}
	return ex, true
}

// ShortAuthor reduces a full name to "First L.".
func ShortAuthor(full string) string {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		last := []rune(parts[len(parts)-1])
		return fmt.Sprintf("%s %s.", parts[0], string(last[0]))
	}
}
