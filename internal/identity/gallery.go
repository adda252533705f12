package identity

import (
	"context"
	"sync"
	"time"

	"go-bioattend/internal/matcher"

	"golang.org/x/sync/singleflight"
)

// Gallery serves the enrolled face templates as matcher candidates. The
// matcher runs on every mark request, so the template set is cached for a
// short TTL and concurrent cold loads collapse into one query.
type Gallery struct {
	repo Repository
	ttl  time.Duration

	sf singleflight.Group

	mu      sync.RWMutex
	cached  []matcher.Candidate
	expires time.Time
}

const defaultGalleryTTL = 30 * time.Second

func NewGallery(repo Repository, ttl time.Duration) *Gallery {
	if ttl <= 0 {
		ttl = defaultGalleryTTL
	}
	return &Gallery{repo: repo, ttl: ttl}
}

// Candidates returns the active face templates, loading from the repository
// when the cache is cold or stale.
func (g *Gallery) Candidates(ctx context.Context) ([]matcher.Candidate, error) {
	g.mu.RLock()
	if g.cached != nil && time.Now().Before(g.expires) {
		cands := g.cached
		g.mu.RUnlock()
		return cands, nil
	}
	g.mu.RUnlock()

	v, err, _ := g.sf.Do("gallery", func() (any, error) {
		templates, err := g.repo.ListActiveFaceTemplates(ctx)
		if err != nil {
			return nil, err
		}

		cands := make([]matcher.Candidate, 0, len(templates))
		for _, t := range templates {
			vec, err := t.Vector()
			if err != nil {
				// malformed stored template is an infrastructure fault
				return nil, err
			}
			cands = append(cands, matcher.Candidate{
				IdentityID: t.IdentityID.String(),
				Vector:     vec,
			})
		}

		g.mu.Lock()
		g.cached = cands
		g.expires = time.Now().Add(g.ttl)
		g.mu.Unlock()

		return cands, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]matcher.Candidate), nil
}

// Invalidate drops the cache. Called after enrollment and deactivation.
func (g *Gallery) Invalidate() {
	g.mu.Lock()
	g.cached = nil
	g.expires = time.Time{}
	g.mu.Unlock()
}
