// Package refresh re-discovers live mirror URLs for every cataloged site
// and folds the results into the catalog store.
package refresh

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"linkscout/internal/catalog"
)

const (
	discoveryUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
	discoveryTimeout   = 15 * time.Second
)

type anchor struct {
	text string
	href string
}

// Discoverer turns a site's discovery spec into per-category entry URLs by
// scraping the site's directory listing page.
type Discoverer struct {
	client *http.Client
}

func NewDiscoverer() *Discoverer {
	return &Discoverer{client: &http.Client{Timeout: discoveryTimeout}}
}

// Candidates returns the entry URL to resolve for each of the site's
// categories. Seeds are always the floor; listing matches override them.
// A listing fetch failure is reported but the seed candidates still come
// back, so the caller can proceed degraded.
func (d *Discoverer) Candidates(ctx context.Context, site catalog.Site) (map[string]string, error) {
	candidates := make(map[string]string, len(site.SeedURLs))
	for key, seedURL := range site.SeedURLs {
		candidates[key] = seedURL
	}
	if site.Discovery == nil || strings.TrimSpace(site.Discovery.ListingURL) == "" {
		return candidates, nil
	}

	anchors, err := d.fetchAnchors(ctx, site.Discovery.ListingURL)
	if err != nil {
		applyFallback(candidates, site.Discovery)
		return candidates, fmt.Errorf("site %s listing: %w", site.ID, err)
	}

	for _, rule := range site.Discovery.Rules {
		if href, ok := firstMatch(anchors, rule); ok {
			candidates[rule.Category] = href
		}
	}
	applyFallback(candidates, site.Discovery)
	return candidates, nil
}

// applyFallback fills rule categories that still have no candidate with the
// spec's fallback entry point.
func applyFallback(candidates map[string]string, spec *catalog.DiscoverySpec) {
	if strings.TrimSpace(spec.FallbackEntry) == "" {
		return
	}
	for _, rule := range spec.Rules {
		if strings.TrimSpace(candidates[rule.Category]) == "" {
			candidates[rule.Category] = spec.FallbackEntry
		}
	}
}

func (d *Discoverer) fetchAnchors(ctx context.Context, listingURL string) ([]anchor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", discoveryUserAgent)
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return collectAnchors(doc, base), nil
}

// collectAnchors walks the parsed document and returns every anchor with a
// resolvable href, its text lowercased for rule matching.
func collectAnchors(doc *html.Node, base *url.URL) []anchor {
	var out []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attrValue(n, "href"); href != "" {
				if abs := resolveHref(base, href); abs != "" {
					out = append(out, anchor{
						text: strings.ToLower(strings.TrimSpace(nodeText(n))),
						href: abs,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func resolveHref(base *url.URL, href string) string {
	if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// firstMatch returns the href of the first anchor satisfying the rule.
func firstMatch(anchors []anchor, rule catalog.Rule) (string, bool) {
	for _, a := range anchors {
		if ruleMatches(a.text, rule) {
			return a.href, true
		}
	}
	return "", false
}

func ruleMatches(text string, rule catalog.Rule) bool {
	if len(rule.Any) == 0 && len(rule.All) == 0 {
		return false
	}
	for _, kw := range rule.All {
		if !strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	if len(rule.Any) == 0 {
		return true
	}
	for _, kw := range rule.Any {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
