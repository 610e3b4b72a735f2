package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const snapshotFileName = "domains.json"

// Store holds the static site schema plus the live working-URL map.
// Readers see whole site entries; a publish swaps a site's submap in one
// step so no half-updated entry is ever observable.
type Store struct {
	mu           sync.RWMutex
	schema       Schema
	working      map[string]map[string]string
	snapshotFile string
}

func NewStore(schema Schema, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		schema:       schema,
		working:      seedWorking(schema),
		snapshotFile: filepath.Join(dataDir, snapshotFileName),
	}
	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}
	return s, nil
}

func seedWorking(schema Schema) map[string]map[string]string {
	out := make(map[string]map[string]string, len(schema.Sites))
	for _, site := range schema.Sites {
		entry := map[string]string{}
		for key, url := range site.SeedURLs {
			if strings.TrimSpace(url) == "" {
				continue
			}
			entry[key] = url
		}
		out[site.ID] = entry
	}
	return out
}

// loadSnapshot overlays the on-disk working URLs onto the seeded defaults.
// Unknown sites or categories in the snapshot are dropped so the schema
// stays authoritative.
func (s *Store) loadSnapshot() error {
	raw, err := os.ReadFile(s.snapshotFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snapshot map[string]map[string]string
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return err
	}
	for siteID, urls := range snapshot {
		site, ok := s.schema.SiteByID(siteID)
		if !ok {
			continue
		}
		for key, url := range urls {
			if !site.HasCategory(key) || strings.TrimSpace(url) == "" {
				continue
			}
			s.working[siteID][key] = url
		}
	}
	return nil
}

// SaveSnapshot writes the current working URLs as a human-diffable nested
// JSON document.
func (s *Store) SaveSnapshot() error {
	snapshot := s.WorkingSnapshot()
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.snapshotFile, raw, 0o644)
}

// Sites returns sites in declared order.
func (s *Store) Sites() []Site {
	out := make([]Site, len(s.schema.Sites))
	copy(out, s.schema.Sites)
	return out
}

func (s *Store) SiteByID(id string) (Site, bool) {
	return s.schema.SiteByID(id)
}

// WorkingURL reports the currently known live URL for a site/category.
func (s *Store) WorkingURL(siteID, categoryKey string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.working[siteID]
	if !ok {
		return "", false
	}
	url, ok := entry[categoryKey]
	return url, ok
}

// LookupURL returns the working URL for a site/category, degrading to the
// site's static base URL when nothing fresher is known.
func (s *Store) LookupURL(siteID, categoryKey string) string {
	if url, ok := s.WorkingURL(siteID, categoryKey); ok {
		return url
	}
	if site, ok := s.schema.SiteByID(siteID); ok {
		return site.BaseURL
	}
	return ""
}

// PublishSite folds freshly resolved URLs into a site's entry. Only keys
// declared in the site's schema are accepted, existing keys absent from
// resolved are preserved, and the whole submap is replaced in one step.
// Returns how many values actually changed.
func (s *Store) PublishSite(siteID string, resolved map[string]string) int {
	site, ok := s.schema.SiteByID(siteID)
	if !ok {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prior := s.working[siteID]
	next := make(map[string]string, len(prior)+len(resolved))
	for key, url := range prior {
		next[key] = url
	}
	changed := 0
	for key, url := range resolved {
		if !site.HasCategory(key) || strings.TrimSpace(url) == "" {
			continue
		}
		if next[key] != url {
			changed++
		}
		next[key] = url
	}
	s.working[siteID] = next
	return changed
}

// WorkingSnapshot returns a deep copy of the live working-URL map.
func (s *Store) WorkingSnapshot() map[string]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]string, len(s.working))
	for siteID, entry := range s.working {
		copied := make(map[string]string, len(entry))
		for key, url := range entry {
			copied[key] = url
		}
		out[siteID] = copied
	}
	return out
}
