package qualify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// WebsiteQuality is the coarse verdict of the website check.
type WebsiteQuality string

const (
	WebsiteUnchecked WebsiteQuality = ""
	WebsiteWeak      WebsiteQuality = "weak"
	WebsiteModern    WebsiteQuality = "modern"
)

const (
	modernMinLength = 40000
	maxPageBytes    = 4 << 20
	userAgent       = "Mozilla/5.0"
)

// WebsiteChecker classifies a business website.
type WebsiteChecker interface {
	Check(ctx context.Context, url string) (WebsiteQuality, error)
}

// HTTPChecker fetches the page and looks for a form, a viewport meta tag
// and a substantial page size. All three make it modern.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates a checker with a bounded per-request timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPChecker{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPChecker) Check(ctx context.Context, url string) (WebsiteQuality, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WebsiteWeak, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return WebsiteWeak, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return WebsiteWeak, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return WebsiteWeak, err
	}

	return Classify(string(body)), nil
}

// Classify applies the modern/weak heuristic to a page body.
func Classify(page string) WebsiteQuality {
	lower := strings.ToLower(page)
	hasForm, hasViewport := scanTags(lower)
	if hasForm && hasViewport && len(lower) > modernMinLength {
		return WebsiteModern
	}
	return WebsiteWeak
}

func scanTags(page string) (hasForm, hasViewport bool) {
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return hasForm, hasViewport
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "form":
				hasForm = true
			case "meta":
				for _, a := range tok.Attr {
					if a.Key == "name" && a.Val == "viewport" {
						hasViewport = true
					}
				}
			}
		}
		if hasForm && hasViewport {
			return true, true
		}
	}
}
