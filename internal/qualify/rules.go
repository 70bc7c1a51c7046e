// Package qualify scores leads and decides disqualification. Everything here
// except the website check is a pure function of the lead snapshot.
package qualify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/leads/domain"
)

const (
	minRating      = 4.4
	minReviewCount = 15
	maxReviewAge   = 120 * 24 * time.Hour
	maxThemes      = 3
)

// Disqualify returns the first failing rule as a reason, or "" when the lead
// passes. Rules run in a fixed order: rating, review count, recency.
func Disqualify(l domain.Lead, now time.Time) string {
	if l.Rating < minRating {
		return fmt.Sprintf("rating %s < %s", formatFloat(l.Rating), formatFloat(minRating))
	}
	if l.ReviewCount < minReviewCount {
		return fmt.Sprintf("review_count %d < %d", l.ReviewCount, minReviewCount)
	}
	if last, ok := parseReviewMonth(l.LastReviewDate); ok {
		if last.Before(now.Add(-maxReviewAge)) {
			return fmt.Sprintf("last review %s > 120 days ago", l.LastReviewDate)
		}
	}
	return ""
}

// parseReviewMonth reads the YYYY-MM prefix of a review date. Anything
// unparsable counts as no date.
func parseReviewMonth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 7 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01", s[:7])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Score adds up the scoring bands and clamps to [0,100]. quality only
// matters when the lead has a website URL to check.
func Score(l domain.Lead, quality WebsiteQuality) int {
	s := 0

	switch {
	case l.Rating >= 4.6:
		s += 20
	case l.Rating >= 4.0:
		s += 10
	}

	switch {
	case l.ReviewCount >= 40:
		s += 20
	case l.ReviewCount >= 20:
		s += 12
	case l.ReviewCount >= 10:
		s += 5
	}

	if !l.HasWebsite {
		s += 25
	} else if strings.TrimSpace(l.WebsiteURL) != "" {
		switch quality {
		case WebsiteWeak:
			s += 15
		case WebsiteModern:
			s -= 15
		}
	}

	if strings.TrimSpace(l.Email) != "" {
		s += 10
	}
	if strings.TrimSpace(l.Phone) != "" {
		s += 5
	}

	// separate penalty band, stacks with the count bands above
	if l.ReviewCount < 10 {
		s -= 10
	}

	return min(max(s, 0), 100)
}

// TierFor maps a clamped score to its tier.
func TierFor(score int) domain.Tier {
	switch {
	case score >= 80:
		return domain.TierA
	case score >= 55:
		return domain.TierB
	case score >= 30:
		return domain.TierC
	default:
		return domain.TierD
	}
}

// ROI estimates monthly missed revenue: average ticket times 6 without a
// website, 3 with one.
func ROI(cat *catalog.Catalog, l domain.Lead) int {
	missed := 3
	if !l.HasWebsite {
		missed = 6
	}
	return missed * cat.AvgTicket(l.Category)
}

// ExtractThemes scans the review excerpt for theme keywords in dictionary
// order and keeps up to three distinct themes. With no match it falls back
// to the category's fixed themes.
func ExtractThemes(cat *catalog.Catalog, l domain.Lead) []string {
	if excerpt := strings.ToLower(l.ReviewExcerpt); excerpt != "" {
		matched := make([]string, 0, maxThemes)
		seen := make(map[string]bool, maxThemes)
		for _, kw := range cat.ThemeKeywords {
			if len(matched) >= maxThemes {
				break
			}
			if strings.Contains(excerpt, kw.Keyword) && !seen[kw.Theme] {
				matched = append(matched, kw.Theme)
				seen[kw.Theme] = true
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return cat.FallbackThemes(l.Category)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
