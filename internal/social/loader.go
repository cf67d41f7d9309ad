package social

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"dashsync/internal/cache"
)

// FeedAPI is the slice of Client the loader needs.
type FeedAPI interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	AuthorFeed(ctx context.Context, did string, limit int) ([]Post, error)
}

// Loader caches feed lookups. Handle resolution is cached without expiry
// (a handle's DID is immutable in practice); the feed itself is cached
// for the feed TTL and degrades to the stale copy during an outage so
// the panel keeps rendering.
type Loader struct {
	api   FeedAPI
	dids  *cache.Cache[string, string]
	feeds *cache.Cache[string, []Post]
	sf    singleflight.Group
	limit int
	log   zerolog.Logger
}

// NewLoader creates a Loader with the given feed TTL and page size.
func NewLoader(api FeedAPI, feedTTL time.Duration, limit int, log zerolog.Logger) *Loader {
	if feedTTL <= 0 {
		feedTTL = 120 * time.Second
	}
	if limit <= 0 {
		limit = 25
	}
	return &Loader{
		api:   api,
		dids:  cache.New[string, string](0),
		feeds: cache.New[string, []Post](feedTTL),
		limit: limit,
		log:   log.With().Str("component", "social").Logger(),
	}
}

// Load returns the feed for handle: fresh cache, then network, then the
// stale cached copy as a last resort. Concurrent loads for one handle
// share a single upstream call.
func (l *Loader) Load(ctx context.Context, handle string) ([]Post, error) {
	if posts, ok := l.feeds.Get(handle); ok {
		return posts, nil
	}
	v, err, _ := l.sf.Do("feed:"+handle, func() (any, error) {
		did, err := l.resolve(ctx, handle)
		if err != nil {
			return l.degrade(handle, err)
		}
		posts, err := l.api.AuthorFeed(ctx, did, l.limit)
		if err != nil {
			return l.degrade(handle, err)
		}
		l.feeds.Put(handle, posts)
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Post), nil
}

func (l *Loader) resolve(ctx context.Context, handle string) (string, error) {
	if did, ok := l.dids.Get(handle); ok {
		return did, nil
	}
	v, err, _ := l.sf.Do("did:"+handle, func() (any, error) {
		did, err := l.api.ResolveHandle(ctx, handle)
		if err != nil {
			return "", err
		}
		l.dids.Put(handle, did)
		return did, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// degrade serves the stale feed when the upstream is down. The stale
// entry is not re-stamped, so the next call past the TTL retries the
// network again.
func (l *Loader) degrade(handle string, cause error) (any, error) {
	if posts, ok := l.feeds.GetStale(handle); ok {
		l.log.Warn().Err(cause).Str("handle", handle).Msg("feed fetch failed, serving stale copy")
		return posts, nil
	}
	return nil, cause
}
