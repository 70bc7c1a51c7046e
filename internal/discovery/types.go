// Package discovery populates new leads from an external business directory.
package discovery

import "context"

// Review is one public review as returned by the provider.
type Review struct {
	Text   string
	Author string
	// Time is a unix timestamp in seconds; zero when unknown.
	Time int64
}

// Candidate is a raw business record from the provider.
type Candidate struct {
	Name        string
	Phone       string
	Website     string
	Rating      float64
	ReviewCount int
	ProfileLink string
	Reviews     []Review
}

// Provider searches for businesses of a category in a region.
type Provider interface {
	Search(ctx context.Context, searchTerm, region string, limit int) ([]Candidate, error)
}

// Counts summarizes one discovery run.
type Counts struct {
	Raw     int
	Created int
	Skipped int
	Errors  int
}

// Map returns the counts keyed for stage reporting.
func (c Counts) Map() map[string]int {
	return map[string]int{
		"raw":     c.Raw,
		"created": c.Created,
		"skipped": c.Skipped,
		"errors":  c.Errors,
	}
}

type placesTextSearchResponse struct {
	Status        string              `json:"status"`
	ErrorMessage  string              `json:"error_message"`
	NextPageToken string              `json:"next_page_token"`
	Results       []placesSearchEntry `json:"results"`
}

type placesSearchEntry struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
}

type placesDetailsResponse struct {
	Status string        `json:"status"`
	Result placesDetails `json:"result"`
}

type placesDetails struct {
	FormattedPhoneNumber string         `json:"formatted_phone_number"`
	Website              string         `json:"website"`
	URL                  string         `json:"url"`
	Reviews              []placesReview `json:"reviews"`
}

type placesReview struct {
	AuthorName string `json:"author_name"`
	Text       string `json:"text"`
	Time       int64  `json:"time"`
}
