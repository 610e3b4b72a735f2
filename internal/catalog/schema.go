package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Category is one selectable entry under a site. Key is the stable
// identifier, Label the human-readable menu text.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Rule matches directory-page anchors to a category. Any matches when any
// keyword appears in the anchor text, All requires every keyword.
type Rule struct {
	Category string   `json:"category"`
	Any      []string `json:"any,omitempty"`
	All      []string `json:"all,omitempty"`
}

// DiscoverySpec describes how to find current mirror links for a site.
type DiscoverySpec struct {
	ListingURL    string `json:"listing_url"`
	FallbackEntry string `json:"fallback_entry,omitempty"`
	Rules         []Rule `json:"rules"`
}

// Site is the static, configuration-defined description of one target site.
// The refresh pipeline never mutates it.
type Site struct {
	ID               string            `json:"id"`
	BaseURL          string            `json:"base_url"`
	Categories       []Category        `json:"categories"`
	DirectCategories bool              `json:"direct_categories,omitempty"`
	SearchCategory   string            `json:"search_category,omitempty"`
	SeedURLs         map[string]string `json:"seed_urls,omitempty"`
	Discovery        *DiscoverySpec    `json:"discovery,omitempty"`
}

// Schema is the ordered list of known sites. Order drives menu numbering.
type Schema struct {
	Sites []Site `json:"sites"`
}

func (s Schema) SiteByID(id string) (Site, bool) {
	for _, site := range s.Sites {
		if site.ID == id {
			return site, true
		}
	}
	return Site{}, false
}

func (site Site) HasCategory(key string) bool {
	for _, cat := range site.Categories {
		if cat.Key == key {
			return true
		}
	}
	return false
}

func (site Site) CategoryLabel(key string) string {
	for _, cat := range site.Categories {
		if cat.Key == key {
			return cat.Label
		}
	}
	return ""
}

// LoadSchema reads a schema override file, falling back to the built-in
// default when path is empty.
func LoadSchema(path string) (Schema, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSchema(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read sites file: %w", err)
	}
	var schema Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return Schema{}, fmt.Errorf("parse sites file: %w", err)
	}
	if err := validateSchema(schema); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

func validateSchema(schema Schema) error {
	if len(schema.Sites) == 0 {
		return fmt.Errorf("sites file declares no sites")
	}
	seen := map[string]struct{}{}
	for _, site := range schema.Sites {
		id := strings.TrimSpace(site.ID)
		if id == "" {
			return fmt.Errorf("site with empty id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate site id %q", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(site.BaseURL) == "" {
			return fmt.Errorf("site %q has no base_url", id)
		}
		if len(site.Categories) == 0 {
			return fmt.Errorf("site %q has no categories", id)
		}
		for key := range site.SeedURLs {
			if !site.HasCategory(key) {
				return fmt.Errorf("site %q seeds unknown category %q", id, key)
			}
		}
		if site.Discovery != nil {
			for _, rule := range site.Discovery.Rules {
				if !site.HasCategory(rule.Category) {
					return fmt.Errorf("site %q discovery rule targets unknown category %q", id, rule.Category)
				}
			}
		}
	}
	return nil
}

// DefaultSchema returns the built-in site catalog.
func DefaultSchema() Schema {
	return Schema{Sites: []Site{
		{
			ID:      "katworld",
			BaseURL: "https://katworld.net/",
			Categories: []Category{
				{Key: "hollywood", Label: "Hollywood Movies & Web Series"},
				{Key: "kdrama", Label: "Korean & Chinese Dramas"},
			},
			SeedURLs: map[string]string{
				"hollywood": "https://katmoviehd.blue/",
				"kdrama":    "https://katdrama.com/",
			},
			Discovery: &DiscoverySpec{
				ListingURL: "https://katworld.net/",
				Rules: []Rule{
					{Category: "hollywood", Any: []string{"katmoviehd"}},
					{Category: "kdrama", Any: []string{"katdrama", "drama"}},
				},
			},
		},
		{
			ID:      "hdhub4u",
			BaseURL: "https://hdhub4u.tv/",
			Categories: []Category{
				{Key: "main", Label: "Hollywood, Bollywood, South & Gujarati"},
			},
			SeedURLs: map[string]string{
				"main": "https://hdhub4u.frl/",
			},
			Discovery: &DiscoverySpec{
				ListingURL:    "https://hdhublist.com/",
				FallbackEntry: "https://hdhub4u.tv/",
				Rules: []Rule{
					{Category: "main", All: []string{"hdhub4u", "main site"}},
				},
			},
		},
		{
			ID:               "moviesflix",
			BaseURL:          "https://themoviesflix.ag/",
			DirectCategories: true,
			SearchCategory:   "search",
			Categories: []Category{
				{Key: "search", Label: "movies/webseries"},
				{Key: "bollywood", Label: "Bollywood/Hindi Movies"},
				{Key: "hindi_dubbed", Label: "Hindi Dubbed Movies"},
				{Key: "hollywood", Label: "Hollywood/English Movies"},
				{Key: "dual_audio", Label: "Dual Audio Movies"},
				{Key: "web_series", Label: "Web Series"},
				{Key: "adult", Label: "18+ Adult Content"},
				{Key: "south", Label: "South Indian Movies (Tamil/Telugu)"},
				{Key: "regional", Label: "Regional Movies (Bengali/Gujarati/Marathi/Punjabi)"},
				{Key: "tv_shows", Label: "TV Shows"},
			},
			SeedURLs: map[string]string{
				"search":       "https://themoviesflix.ag/",
				"bollywood":    "https://themoviesflix.ag/category/hindi-movies/",
				"hindi_dubbed": "https://themoviesflix.ag/category/hindi-dubbed/",
				"hollywood":    "https://themoviesflix.ag/category/english-movies/",
				"dual_audio":   "https://themoviesflix.ag/category/dual-audio/",
				"web_series":   "https://themoviesflix.ag/category/web-series/",
				"adult":        "https://themoviesflix.ag/category/18-adult/",
				"south":        "https://themoviesflix.ag/",
				"regional":     "https://themoviesflix.ag/",
				"tv_shows":     "https://themoviesflix.ag/category/tv-shows/"},
		},
	}}
}
