package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	placesBaseURL  = "https://maps.googleapis.com/maps/api/place"
	maxSearchPages = 3
	// Places needs a short pause before a next_page_token becomes valid.
	pageTokenDelay = 2 * time.Second
	detailsFields  = "formatted_phone_number,website,url,reviews"
)

// PlacesClient is a Provider backed by the Google Places web API.
type PlacesClient struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	limiter   *rate.Limiter
	pageDelay time.Duration
	log       *logger.Logger
}

// NewPlacesClient creates a Places client. Requests are bounded by the
// discovery timeout and spaced to ten per second.
func NewPlacesClient(cfg config.PlacesConfig, log *logger.Logger) *PlacesClient {
	timeout := cfg.GetDiscoveryTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PlacesClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   placesBaseURL,
		apiKey:    cfg.GetPlacesAPIKey(),
		limiter:   rate.NewLimiter(rate.Limit(10), 1),
		pageDelay: pageTokenDelay,
		log:       log,
	}
}

// Search runs a text search for "<searchTerm> in <region>" over up to three
// result pages and enriches each place with its details. A failed page ends
// the search with whatever was collected; a failed details lookup keeps the
// place without details.
func (p *PlacesClient) Search(ctx context.Context, searchTerm, region string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("%s in %s", searchTerm, region))
	params.Set("key", p.apiKey)

	var out []Candidate
	for page := 0; page < maxSearchPages; page++ {
		var resp placesTextSearchResponse
		if err := p.get(ctx, "/textsearch/json", params, &resp); err != nil {
			if len(out) == 0 {
				return nil, err
			}
			p.log.Error("places search page failed", "page", page, "error", err)
			break
		}
		if resp.Status != "" && resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
			err := apperr.Transient(fmt.Sprintf("places search status %s: %s", resp.Status, resp.ErrorMessage), nil)
			if len(out) == 0 {
				return nil, err
			}
			p.log.Error("places search page rejected", "page", page, "status", resp.Status)
			break
		}

		for _, entry := range resp.Results {
			c := Candidate{
				Name:        entry.Name,
				Rating:      entry.Rating,
				ReviewCount: entry.UserRatingsTotal,
			}
			if details, err := p.details(ctx, entry.PlaceID); err != nil {
				p.log.Warn("places details failed", "place_id", entry.PlaceID, "error", err)
			} else {
				c.Phone = details.FormattedPhoneNumber
				c.Website = details.Website
				c.ProfileLink = details.URL
				for _, r := range details.Reviews {
					c.Reviews = append(c.Reviews, Review{Text: r.Text, Author: r.AuthorName, Time: r.Time})
				}
			}
			out = append(out, c)
		}

		if resp.NextPageToken == "" || (limit > 0 && len(out) >= limit) {
			break
		}
		params = url.Values{}
		params.Set("pagetoken", resp.NextPageToken)
		params.Set("key", p.apiKey)
		if err := sleepCtx(ctx, p.pageDelay); err != nil {
			return out, err
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *PlacesClient) details(ctx context.Context, placeID string) (placesDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)
	params.Set("key", p.apiKey)

	var resp placesDetailsResponse
	if err := p.get(ctx, "/details/json", params, &resp); err != nil {
		return placesDetails{}, err
	}
	return resp.Result, nil
}

func (p *PlacesClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s%s?%s", p.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "OutreachEngine/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return apperr.Transient("places request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return apperr.Transient(fmt.Sprintf("places upstream error: %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindInternal, "decode places payload", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
