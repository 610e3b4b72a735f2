package refresh

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"linkscout/internal/catalog"
	"linkscout/internal/resolver"
)

// ErrAlreadyRunning reports that a refresh cycle is in flight; overlapping
// cycles are rejected rather than queued.
var ErrAlreadyRunning = errors.New("refresh already running")

// Discovery yields per-category entry URLs to resolve for a site.
type Discovery interface {
	Candidates(ctx context.Context, site catalog.Site) (map[string]string, error)
}

// Liveness resolves an entry URL to the live URL behind it.
type Liveness interface {
	Discover(ctx context.Context, entryURL string) resolver.Result
}

// Pipeline runs one full refresh: discover candidates per site, resolve
// each through the browser, publish fresh values into the catalog store and
// snapshot to disk. Sites are processed concurrently, isolated from one
// another's failures.
type Pipeline struct {
	store      *catalog.Store
	discovery  Discovery
	liveness   Liveness
	concurrent int

	mu      sync.Mutex
	running bool
}

func NewPipeline(store *catalog.Store, discovery Discovery, liveness Liveness, concurrent int) *Pipeline {
	if concurrent <= 0 {
		concurrent = 2
	}
	return &Pipeline{
		store:      store,
		discovery:  discovery,
		liveness:   liveness,
		concurrent: concurrent,
	}
}

func (p *Pipeline) tryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// Running reports whether a cycle is currently in flight.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshAll refreshes every site and returns how many working URLs
// changed. A failing site never aborts the others; per-site errors are
// joined into the returned error.
func (p *Pipeline) RefreshAll(ctx context.Context) (int, error) {
	if !p.tryAcquire() {
		return 0, ErrAlreadyRunning
	}
	defer p.release()

	log.Printf("refresh cycle starting sites=%d", len(p.store.Sites()))

	var (
		mu       sync.Mutex
		changed  int
		siteErrs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrent)
	for _, site := range p.store.Sites() {
		site := site
		g.Go(func() error {
			n, err := p.refreshSite(gctx, site)
			mu.Lock()
			changed += n
			if err != nil {
				siteErrs = append(siteErrs, err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := p.store.SaveSnapshot(); err != nil {
		log.Printf("refresh snapshot save failed err=%v", err)
		siteErrs = append(siteErrs, err)
	}
	log.Printf("refresh cycle finished changed=%d errors=%d", changed, len(siteErrs))
	return changed, errors.Join(siteErrs...)
}

// refreshSite resolves every candidate for one site and publishes the
// fresh values. A degraded resolution never overwrites a known-good URL;
// it is only kept when the category has no working URL at all.
func (p *Pipeline) refreshSite(ctx context.Context, site catalog.Site) (int, error) {
	candidates, err := p.discovery.Candidates(ctx, site)
	if err != nil {
		log.Printf("refresh discovery degraded site=%s err=%v", site.ID, err)
	}

	resolved := make(map[string]string, len(candidates))
	for key, entryURL := range candidates {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		res := p.liveness.Discover(ctx, entryURL)
		if !res.Succeeded {
			if _, known := p.store.WorkingURL(site.ID, key); known {
				log.Printf("refresh keeping prior url site=%s category=%s attempts=%d", site.ID, key, res.Attempts)
				continue
			}
		}
		resolved[key] = res.ResolvedURL
	}

	changed := p.store.PublishSite(site.ID, resolved)
	if changed > 0 {
		log.Printf("refresh site updated site=%s changed=%d", site.ID, changed)
	}
	return changed, err
}
