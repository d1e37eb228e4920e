package redis

import (
	"context"
	"math/rand"
	"time"

	"corrode-course/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches the exercise catalog from its source (exercise directory, config).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogRepository caches the catalog in Redis so every instance shares one scan.
// Order is kept in a list, metadata in two hashes keyed by exercise name:
//
//	RPUSH course:catalog:names        {name}...
//	HSET  course:catalog:titles       {name} {title}
//	HSET  course:catalog:descriptions {name} {description}
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const (
	namesKey        = "course:catalog:names"
	titlesKey       = "course:catalog:titles"
	descriptionsKey = "course:catalog:descriptions"
)

func (r *CatalogRepository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := r.cached(ctx); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(namesKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := r.cached(ctx); ok {
			return catalog, nil
		}

		catalog, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}
		if len(catalog.Exercises) == 0 {
			return catalog, nil
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, namesKey, titlesKey, descriptionsKey)
		for _, e := range catalog.Exercises {
			pipe.RPush(ctx, namesKey, e.Name)
			pipe.HSet(ctx, titlesKey, e.Name, e.Title)
			pipe.HSet(ctx, descriptionsKey, e.Name, e.Description)
		}
		if ttl > 0 {
			pipe.Expire(ctx, namesKey, ttl)
			pipe.Expire(ctx, titlesKey, ttl)
			pipe.Expire(ctx, descriptionsKey, ttl)
		}
		// best effort: a failed fill just means the next read loads again
		_, _ = pipe.Exec(ctx)

		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) cached(ctx context.Context) (domain.Catalog, bool) {
	names, err := r.client.LRange(ctx, namesKey, 0, -1).Result()
	if err != nil || len(names) == 0 {
		return domain.Catalog{}, false
	}
	titles, _ := r.client.HGetAll(ctx, titlesKey).Result()
	descriptions, _ := r.client.HGetAll(ctx, descriptionsKey).Result()
	return buildCatalogFromCache(names, titles, descriptions), true
}

func buildCatalogFromCache(names []string, titles, descriptions map[string]string) domain.Catalog {
	exercises := make([]domain.Exercise, 0, len(names))
	for _, name := range names {
		title := titles[name]
		if title == "" {
			title = name
		}
		exercises = append(exercises, domain.Exercise{
			Name:        name,
			Title:       title,
			Description: descriptions[name],
		})
	}
	return domain.Catalog{Exercises: exercises}
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
