package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestResolver(t *testing.T, navigate func(ctx context.Context, entryURL string) (string, error)) *Resolver {
	t.Helper()
	r := New(Options{
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		StepTimeout:  2 * time.Second,
	})
	r.navigate = navigate
	return r
}

func TestResolveReturnsInputOnExhaustedAttempts(t *testing.T) {
	attempts := 0
	r := newTestResolver(t, func(context.Context, string) (string, error) {
		attempts++
		return "", errors.New("browser unavailable")
	})

	got := r.Discover(context.Background(), "https://seed.example/")
	if got.ResolvedURL != "https://seed.example/" {
		t.Fatalf("expected degraded result to echo input, got %q", got.ResolvedURL)
	}
	if got.Succeeded {
		t.Fatalf("expected degraded result to be flagged as such")
	}
	if attempts != 3 || got.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got navigate=%d reported=%d", attempts, got.Attempts)
	}
}

func TestResolveRecoversAfterTransientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	attempts := 0
	r := newTestResolver(t, func(context.Context, string) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return server.URL + "/landing", nil
	})

	got := r.Resolve(context.Background(), "https://seed.example/")
	if got != server.URL+"/landing" {
		t.Fatalf("unexpected resolved url: %q", got)
	}
	if attempts != 2 {
		t.Fatalf("expected retry then success, got %d attempts", attempts)
	}
}

func TestResolveCanonicalizesThroughServerRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/current", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/current", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := newTestResolver(t, func(context.Context, string) (string, error) {
		return server.URL + "/old", nil
	})

	got := r.Resolve(context.Background(), "https://seed.example/")
	if got != server.URL+"/current" {
		t.Fatalf("expected canonicalized url, got %q", got)
	}
}

func TestResolveKeepsBrowserURLWhenCanonicalizeFails(t *testing.T) {
	r := newTestResolver(t, func(context.Context, string) (string, error) {
		return "http://127.0.0.1:1/unreachable", nil
	})

	got := r.Resolve(context.Background(), "https://seed.example/")
	if got != "http://127.0.0.1:1/unreachable" {
		t.Fatalf("canonicalize failure must not discard the browser result, got %q", got)
	}
}

func TestCanonicalizeSendsBrowserLikeHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	r := New(Options{})
	if _, err := r.canonicalize(context.Background(), server.URL); err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if gotUA != defaultUserAgent {
		t.Fatalf("unexpected user agent: %q", gotUA)
	}
	if gotReferer == "" {
		t.Fatalf("expected referer header to be set")
	}
}

func TestCanonicalizeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	r := New(Options{})
	if _, err := r.canonicalize(context.Background(), server.URL); err == nil {
		t.Fatalf("expected error for 503 response")
	}
}

func TestMatchInterstitial(t *testing.T) {
	r := New(Options{})
	cases := []struct {
		url     string
		matched bool
	}{
		{"https://hdhub4u.mn/?id=abc", true},
		{"https://new.hdhub4u.mn/landing", true},
		{"https://hdhub4u.tv/", false},
		{"https://katworld.example/", false},
	}
	for _, tc := range cases {
		if _, got := r.matchInterstitial(tc.url); got != tc.matched {
			t.Fatalf("matchInterstitial(%q)=%v, want %v", tc.url, got, tc.matched)
		}
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	r := New(Options{MaxAttempts: 5, RetryBackoff: time.Hour})
	r.navigate = func(context.Context, string) (string, error) {
		attempts++
		cancel()
		return "", fmt.Errorf("failing on purpose")
	}

	got := r.Resolve(ctx, "https://seed.example/")
	if got != "https://seed.example/" {
		t.Fatalf("expected input echo, got %q", got)
	}
	if attempts != 1 {
		t.Fatalf("expected cancellation to stop retries, got %d attempts", attempts)
	}
}
