// Package quotes orchestrates the price cache, the backend fetch, and
// fallback synthesis so every consumer sees a quote for every symbol it
// asks for, with at most one network call in flight per symbol.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dashsync/internal/cache"
	"dashsync/internal/fallback"
	"dashsync/internal/metrics"
	"dashsync/internal/model"
)

// Fetcher issues one batched price request. Implemented by backend.Client.
type Fetcher interface {
	Prices(ctx context.Context, tickers []string) (map[string]model.Quote, error)
}

// call is one in-flight batched fetch shared by every caller whose
// symbols it covers.
type call struct {
	done   chan struct{}
	quotes map[string]model.Quote
}

// Engine serves overlapping symbol sets to independent consumers (ticker,
// movers, companies, lookups) from one cache without duplicate fetches.
type Engine struct {
	fetcher Fetcher
	cache   *cache.Cache[string, model.Quote]
	synth   *fallback.Synthesizer
	met     *metrics.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*call
}

// New creates an Engine. met may be nil in tests.
func New(f Fetcher, c *cache.Cache[string, model.Quote], s *fallback.Synthesizer, met *metrics.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		fetcher:  f,
		cache:    c,
		synth:    s,
		met:      met,
		log:      log.With().Str("component", "quotes").Logger(),
		inflight: make(map[string]*call),
	}
}

// GetQuotes returns a quote for every requested symbol: fresh cache where
// possible, one batched fetch for the rest, fallback synthesis for
// anything the network could not answer. The result is always total over
// the input. Synthetic values never enter the cache, so the next caller
// inside the TTL window retries the network instead of inheriting them.
func (e *Engine) GetQuotes(ctx context.Context, symbols []string) map[string]model.Quote {
	uniq := dedupe(symbols)
	result := e.cache.GetMany(uniq)
	if e.met != nil {
		e.met.CacheHits.Add(float64(len(result)))
		e.met.CacheMisses.Add(float64(len(uniq) - len(result)))
	}

	var missing []string
	for _, s := range uniq {
		if _, ok := result[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return result
	}

	// Partition the misses into symbols this caller will fetch and
	// symbols some other caller is already fetching.
	e.mu.Lock()
	var owned []string
	awaited := make(map[string]*call)
	var ownedCall *call
	for _, s := range missing {
		if c, ok := e.inflight[s]; ok {
			awaited[s] = c
			continue
		}
		if ownedCall == nil {
			ownedCall = &call{done: make(chan struct{})}
		}
		e.inflight[s] = ownedCall
		owned = append(owned, s)
	}
	e.mu.Unlock()

	if len(owned) > 0 {
		live := e.fetchBatch(ctx, owned)
		ownedCall.quotes = live

		e.mu.Lock()
		for _, s := range owned {
			delete(e.inflight, s)
		}
		e.mu.Unlock()
		close(ownedCall.done)

		for _, s := range owned {
			if q, ok := live[s]; ok {
				result[s] = q
			} else {
				result[s] = e.synthesize(s)
			}
		}
	}

	for s, c := range awaited {
		select {
		case <-c.done:
			if q, ok := c.quotes[s]; ok {
				result[s] = q
			} else {
				result[s] = e.synthesize(s)
			}
		case <-ctx.Done():
			// Totality beats waiting: hand back a placeholder.
			result[s] = e.synthesize(s)
		}
	}
	return result
}

// Get returns the quote for a single symbol, same guarantees as GetQuotes.
func (e *Engine) Get(ctx context.Context, symbol string) model.Quote {
	return e.GetQuotes(ctx, []string{symbol})[symbol]
}

// fetchBatch issues exactly one request for symbols and caches whatever
// live data came back. On any failure it returns an empty map and the
// caller synthesizes; the cache is left untouched.
func (e *Engine) fetchBatch(ctx context.Context, symbols []string) map[string]model.Quote {
	start := time.Now()
	live, err := e.fetcher.Prices(ctx, symbols)
	if e.met != nil {
		e.met.FetchDuration.WithLabelValues("prices").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if e.met != nil {
			e.met.FetchesTotal.WithLabelValues("prices", "error").Inc()
		}
		e.log.Warn().Err(err).Int("symbols", len(symbols)).Msg("price fetch failed, synthesizing")
		return map[string]model.Quote{}
	}
	if e.met != nil {
		e.met.FetchesTotal.WithLabelValues("prices", "ok").Inc()
	}
	e.cache.PutAll(live)
	return live
}

func (e *Engine) synthesize(symbol string) model.Quote {
	if e.met != nil {
		e.met.FallbacksTotal.Inc()
	}
	return e.synth.Synthesize(symbol)
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
