package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"golang.org/x/time/rate"
)

func newTestClient(srv *httptest.Server) *PlacesClient {
	return &PlacesClient{
		client:  srv.Client(),
		baseURL: srv.URL,
		apiKey:  "test-key",
		limiter: rate.NewLimiter(rate.Inf, 1),
		log:     logger.Discard(),
	}
}

func TestPlacesSearchPaginatesAndEnriches(t *testing.T) {
	var searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/textsearch/json", func(w http.ResponseWriter, r *http.Request) {
		n := searches.Add(1)
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch n {
		case 1:
			if q := r.URL.Query().Get("query"); q != "plumber in Austin" {
				t.Errorf("unexpected query %q", q)
			}
			fmt.Fprint(w, `{"status":"OK","next_page_token":"p2","results":[{"place_id":"a","name":"Acme","rating":4.7,"user_ratings_total":42}]}`)
		default:
			if r.URL.Query().Get("pagetoken") != "p2" {
				t.Errorf("expected page token on second page")
			}
			fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"b","name":"Bolt","rating":4.5,"user_ratings_total":18}]}`)
		}
	})
	mux.HandleFunc("/details/json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("place_id") == "b" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status":"OK","result":{"formatted_phone_number":"(650) 253-0000","website":"https://acme.test","url":"https://maps.test/a","reviews":[{"author_name":"Jane Doe","text":"Fast and clean","time":1760000000}]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := newTestClient(srv).Search(context.Background(), "plumber", "Austin", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || searches.Load() != 2 {
		t.Fatalf("expected 2 candidates over 2 pages, got %d over %d", len(got), searches.Load())
	}
	if got[0].Phone != "(650) 253-0000" || got[0].ProfileLink != "https://maps.test/a" || len(got[0].Reviews) != 1 {
		t.Fatalf("expected enriched first candidate, got %+v", got[0])
	}
	if got[1].Name != "Bolt" || got[1].Phone != "" {
		t.Fatalf("expected second candidate kept without details, got %+v", got[1])
	}
}

func TestPlacesSearchStopsAtLimit(t *testing.T) {
	var searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/textsearch/json", func(w http.ResponseWriter, _ *http.Request) {
		searches.Add(1)
		fmt.Fprint(w, `{"status":"OK","next_page_token":"more","results":[{"place_id":"a","name":"A"},{"place_id":"b","name":"B"}]}`)
	})
	mux.HandleFunc("/details/json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"OK","result":{}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := newTestClient(srv).Search(context.Background(), "plumber", "Austin", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || searches.Load() != 1 {
		t.Fatalf("expected one candidate from one page, got %d from %d", len(got), searches.Load())
	}
}

func TestPlacesSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), "plumber", "Austin", 10)
	if !apperr.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPlacesSearchDeniedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.client.Timeout = time.Second
	if _, err := c.Search(context.Background(), "plumber", "Austin", 10); err == nil {
		t.Fatalf("expected error for denied status")
	}
}
