package qualify

import (
	"context"
	"strings"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/platform/logger"
)

// Outcome is the result of evaluating one lead.
type Outcome struct {
	Reason  string
	Score   int
	Tier    domain.Tier
	ROI     int
	Themes  []string
	Website WebsiteQuality
}

// Disqualified reports whether the lead failed a disqualification rule.
func (o Outcome) Disqualified() bool {
	return o.Reason != ""
}

// Engine evaluates leads against the disqualification policy and scoring bands.
type Engine struct {
	catalog *catalog.Catalog
	checker WebsiteChecker
	log     *logger.Logger
}

// NewEngine creates an engine. A nil checker means websites are never
// fetched and every site counts as weak.
func NewEngine(cat *catalog.Catalog, checker WebsiteChecker, log *logger.Logger) *Engine {
	return &Engine{catalog: cat, checker: checker, log: log}
}

// Evaluate scores a lead. It never fails: a website check error is
// treated as a weak site.
func (e *Engine) Evaluate(ctx context.Context, l domain.Lead, now time.Time) Outcome {
	if reason := Disqualify(l, now); reason != "" {
		return Outcome{Reason: reason}
	}

	quality := WebsiteUnchecked
	if l.HasWebsite && strings.TrimSpace(l.WebsiteURL) != "" {
		quality = e.checkWebsite(ctx, l)
	}

	score := Score(l, quality)
	return Outcome{
		Score:   score,
		Tier:    TierFor(score),
		ROI:     ROI(e.catalog, l),
		Themes:  ExtractThemes(e.catalog, l),
		Website: quality,
	}
}

func (e *Engine) checkWebsite(ctx context.Context, l domain.Lead) WebsiteQuality {
	if e.checker == nil {
		return WebsiteWeak
	}
	quality, err := e.checker.Check(ctx, l.WebsiteURL)
	if err != nil {
		if e.log != nil {
			e.log.Debug("website check inconclusive", "lead_id", l.ID.String(), "url", l.WebsiteURL, "error", err)
		}
		return WebsiteWeak
	}
	if quality != WebsiteModern {
		return WebsiteWeak
	}
	return quality
}

// Apply writes an outcome onto the lead and moves it to qualified or lost.
func Apply(l *domain.Lead, o Outcome, now time.Time) (bool, error) {
	if o.Disqualified() {
		l.DisqualifyReason = o.Reason
		l.HumanNotes = "Disqualified: " + o.Reason
		return l.Transition(domain.StatusLost, domain.TriggerAutomated, now)
	}
	l.QualificationScore = o.Score
	l.Tier = o.Tier
	l.ROIEstimateMonthly = o.ROI
	l.ReviewThemes = o.Themes
	return l.Transition(domain.StatusQualified, domain.TriggerAutomated, now)
}
