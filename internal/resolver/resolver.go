// Package resolver discovers the final reachable URL behind JavaScript
// redirect chains and click-through interstitial pages by driving a headless
// browser, then canonicalizes the result over plain HTTP.
package resolver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// Interstitial describes a known soft-landing host and the controls that
// lead through it to the real site.
type Interstitial struct {
	HostContains       string
	ContinueSelector   string
	DirectLinkSelector string
}

// DefaultInterstitials covers the landing pages the catalog's sites are
// known to sit behind.
func DefaultInterstitials() []Interstitial {
	return []Interstitial{
		{
			HostContains:       "hdhub4u.mn",
			ContinueSelector:   "a.new-tab.btn.btn-lg.btn-radius.btn-primary",
			DirectLinkSelector: "#stx a",
		},
	}
}

type Options struct {
	MaxAttempts      int
	StepTimeout      time.Duration
	SettleDelay      time.Duration
	ClickSettleDelay time.Duration
	RetryBackoff     time.Duration
	Headless         bool
	UserAgent        string
	Interstitials    []Interstitial
}

func (o *Options) fillDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = 10 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.ClickSettleDelay <= 0 {
		o.ClickSettleDelay = 7 * time.Second
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Interstitials == nil {
		o.Interstitials = DefaultInterstitials()
	}
}

// Resolver drives one disposable browser instance per Resolve call.
type Resolver struct {
	opts   Options
	client *http.Client

	// navigate is the browser-driven step, replaceable in tests.
	navigate func(ctx context.Context, entryURL string) (string, error)
}

func New(opts Options) *Resolver {
	opts.fillDefaults()
	r := &Resolver{
		opts:   opts,
		client: &http.Client{Timeout: opts.StepTimeout},
	}
	r.navigate = r.browserResolve
	return r
}

// Result is the outcome of one discovery run. When Succeeded is false,
// ResolvedURL echoes RequestedURL so callers always get a usable value.
type Result struct {
	RequestedURL string
	ResolvedURL  string
	Succeeded    bool
	Attempts     int
}

// Resolve returns the live URL reached from entryURL. It never fails past
// its own boundary: when every attempt errors out the input is returned
// unchanged and the caller decides whether that degraded result is usable.
func (r *Resolver) Resolve(ctx context.Context, entryURL string) string {
	return r.Discover(ctx, entryURL).ResolvedURL
}

// Discover resolves entryURL and reports whether the result is fresh or a
// degraded echo of the input.
func (r *Resolver) Discover(ctx context.Context, entryURL string) Result {
	res := Result{RequestedURL: entryURL, ResolvedURL: entryURL}
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt
		resolved, err := r.navigate(ctx, entryURL)
		if err == nil && strings.TrimSpace(resolved) != "" {
			if canonical, cerr := r.canonicalize(ctx, resolved); cerr == nil {
				resolved = canonical
			} else {
				log.Printf("resolver canonicalize failed url=%s err=%v", resolved, cerr)
			}
			res.ResolvedURL = resolved
			res.Succeeded = true
			return res
		}
		log.Printf("resolver attempt failed url=%s attempt=%d/%d err=%v", entryURL, attempt, r.opts.MaxAttempts, err)
		if attempt < r.opts.MaxAttempts {
			if !sleepCtx(ctx, r.opts.RetryBackoff) {
				break
			}
		}
	}
	return res
}

func (r *Resolver) browserResolve(ctx context.Context, entryURL string) (string, error) {
	l := launcher.New().
		Headless(r.opts.Headless).
		Set(flags.Flag("disable-gpu")).
		Set(flags.Flag("no-sandbox")).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("ignore-certificate-errors")).
		Set(flags.Flag("disable-popup-blocking")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.opts.UserAgent}); err != nil {
		return "", fmt.Errorf("set user agent: %w", err)
	}
	if err := page.Timeout(r.opts.StepTimeout).Navigate(entryURL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", entryURL, err)
	}
	if err := page.Timeout(r.opts.StepTimeout).WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", entryURL, err)
	}
	if !sleepCtx(ctx, r.opts.SettleDelay) {
		return "", ctx.Err()
	}

	current, err := pageURL(page)
	if err != nil {
		return "", err
	}

	rule, matched := r.matchInterstitial(current)
	if !matched {
		// Plain client-side redirect chain: wait it out and read the URL.
		if !sleepCtx(ctx, r.opts.SettleDelay) {
			return "", ctx.Err()
		}
		return pageURL(page)
	}
	return r.passInterstitial(ctx, browser, page, rule)
}

// passInterstitial clicks through a soft-landing page. First choice is the
// designated continue control, adopting a newly opened tab when one appears;
// when that path dead-ends the designated direct-link anchor is followed
// in place.
func (r *Resolver) passInterstitial(ctx context.Context, browser *rod.Browser, page *rod.Page, rule Interstitial) (string, error) {
	if el, err := page.Timeout(r.opts.StepTimeout).Element(rule.ContinueSelector); err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			if !sleepCtx(ctx, r.opts.ClickSettleDelay) {
				return "", ctx.Err()
			}
			if opened := newlyOpenedPage(browser, page); opened != nil {
				if !sleepCtx(ctx, r.opts.SettleDelay) {
					return "", ctx.Err()
				}
				openedURL, err := pageURL(opened)
				if err == nil && !hostMatches(openedURL, rule.HostContains) {
					return openedURL, nil
				}
			}
		}
	}

	link, err := page.Timeout(r.opts.StepTimeout).Element(rule.DirectLinkSelector)
	if err != nil {
		return "", fmt.Errorf("interstitial direct link %q not found: %w", rule.DirectLinkSelector, err)
	}
	href, err := link.Attribute("href")
	if err != nil || href == nil || strings.TrimSpace(*href) == "" {
		return "", fmt.Errorf("interstitial direct link %q has no target", rule.DirectLinkSelector)
	}
	if err := page.Timeout(r.opts.StepTimeout).Navigate(*href); err != nil {
		return "", fmt.Errorf("navigate direct link %s: %w", *href, err)
	}
	if !sleepCtx(ctx, r.opts.ClickSettleDelay) {
		return "", ctx.Err()
	}
	return pageURL(page)
}

func (r *Resolver) matchInterstitial(rawURL string) (Interstitial, bool) {
	for _, rule := range r.opts.Interstitials {
		if hostMatches(rawURL, rule.HostContains) {
			return rule, true
		}
	}
	return Interstitial{}, false
}

// canonicalize performs one redirect-following GET so server-side redirects
// the browser never re-verified are folded in.
func (r *Resolver) canonicalize(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("canonicalize returned status %d", resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}

func pageURL(page *rod.Page) (string, error) {
	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("read page url: %w", err)
	}
	return info.URL, nil
}

func newlyOpenedPage(browser *rod.Browser, original *rod.Page) *rod.Page {
	pages, err := browser.Pages()
	if err != nil {
		return nil
	}
	for _, p := range pages {
		if p.TargetID != original.TargetID {
			return p
		}
	}
	return nil
}

func hostMatches(rawURL, hostFragment string) bool {
	if hostFragment == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.Contains(rawURL, hostFragment)
	}
	return strings.Contains(parsed.Host, hostFragment)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
