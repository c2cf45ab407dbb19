package resource

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/platform/cache"
)

const defaultCacheTTL = 24 * time.Hour

// Source is a fetcher with its per-lookup result cap.
type Source struct {
	Fetcher    Fetcher
	MaxResults int
}

// Cache stores lookup results by topic.
type Cache interface {
	Get(ctx context.Context, topic string) ([]learning.Resource, bool)
	Set(ctx context.Context, topic string, resources []learning.Resource)
}

// Aggregator fans a topic out to every source and merges the results in
// source order. It implements learning.ResourceCollector.
type Aggregator struct {
	sources []Source
	cache   Cache
}

// NewAggregator creates an Aggregator. cache may be nil.
func NewAggregator(c Cache, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, cache: c}
}

// DefaultSources returns the standard source set. YouTube is included only
// when an API key is configured.
func DefaultSources(youtubeKey, githubToken string) []Source {
	var sources []Source
	if yt, err := NewYouTube(YouTubeConfig{APIKey: youtubeKey}); err == nil {
		sources = append(sources, Source{Fetcher: yt, MaxResults: youtubeMaxResults})
	}
	sources = append(sources,
		Source{Fetcher: NewGitHub(GitHubConfig{Token: githubToken}), MaxResults: githubMaxResults},
		Source{Fetcher: NewArticles(ArticlesConfig{}), MaxResults: articlesMaxResults},
	)
	return sources
}

// Collect gathers resources for topic. Source failures are logged and
// skipped; the result may be empty.
func (a *Aggregator) Collect(ctx context.Context, topic string, difficulty learning.Difficulty) []learning.Resource {
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, topic); ok {
			return stamp(cached, difficulty)
		}
	}

	results := make([][]learning.Resource, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			found, err := src.Fetcher.Fetch(ctx, Query{Topic: topic, MaxResults: src.MaxResults})
			if err != nil {
				slog.Warn("resource source failed", "source", src.Fetcher.Name(), "topic", topic, "error", err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var out []learning.Resource
	for _, r := range results {
		out = append(out, r...)
	}
	if a.cache != nil && len(out) > 0 {
		a.cache.Set(ctx, topic, out)
	}
	return stamp(out, difficulty)
}

func stamp(resources []learning.Resource, difficulty learning.Difficulty) []learning.Resource {
	out := make([]learning.Resource, len(resources))
	for i, r := range resources {
		if r.Difficulty == "" {
			r.Difficulty = difficulty
		}
		out[i] = r
	}
	return out
}

// CacheKey derives the cache key for a topic.
func CacheKey(topic string) string {
	sum := blake2b.Sum256([]byte(FoldTopic(topic)))
	return "resources:" + hex.EncodeToString(sum[:])
}

// RedisCache keeps lookups in Redis for a fixed TTL. Errors are logged and
// treated as misses.
type RedisCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisCache creates a RedisCache. A zero ttl defaults to 24h.
func NewRedisCache(c *cache.Cache, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{cache: c, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, topic string) ([]learning.Resource, bool) {
	var out []learning.Resource
	err := r.cache.GetJSON(ctx, CacheKey(topic), &out)
	if errors.Is(err, cache.ErrMiss) {
		return nil, false
	}
	if err != nil {
		slog.Warn("resource cache read failed", "topic", topic, "error", err)
		return nil, false
	}
	return out, true
}

func (r *RedisCache) Set(ctx context.Context, topic string, resources []learning.Resource) {
	if err := r.cache.SetJSON(ctx, CacheKey(topic), resources, r.ttl); err != nil {
		slog.Warn("resource cache write failed", "topic", topic, "error", err)
	}
}
