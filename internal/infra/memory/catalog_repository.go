package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"corrode-course/internal/domain"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "catalog"

// CatalogLoader fetches the exercise catalog from its source (exercise directory, config).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogRepository caches the catalog with a TTL so status reads do not rescan the source.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu     sync.RWMutex
	cached *cachedCatalog
}

type cachedCatalog struct {
	catalog   domain.Catalog
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := r.fresh(r.clock()); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		now := r.clock()
		if catalog, ok := r.fresh(now); ok {
			return catalog, nil
		}

		catalog, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		r.mu.Lock()
		r.cached = &cachedCatalog{
			catalog:   catalog,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) fresh(now time.Time) (domain.Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cached != nil && r.cached.expiresAt.After(now) {
		return r.cached.catalog, true
	}
	return domain.Catalog{}, false
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// rand.Rand is not goroutine-safe; callers hold the singleflight slot.
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves a fixed list of exercises (useful for tests/demos).
type StaticCatalogLoader struct {
	exercises []domain.Exercise
}

func NewStaticCatalogLoader(exercises []domain.Exercise) *StaticCatalogLoader {
	return &StaticCatalogLoader{exercises: exercises}
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	out := make([]domain.Exercise, len(l.exercises))
	copy(out, l.exercises)
	return domain.Catalog{Exercises: out}, nil
}
