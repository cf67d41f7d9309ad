package panels

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"dashsync/internal/model"
	"dashsync/internal/quotes"
	"dashsync/internal/social"
)

// WatchlistSource yields the current symbol universe. Implemented by
// settings.Sync.
type WatchlistSource interface {
	Tickers() []string
}

// CompanySource reads the top-companies rows. Implemented by
// backend.Client.
type CompanySource interface {
	TopCompanies(ctx context.Context) ([]model.Company, error)
}

// FeedLoader loads the social feed. Implemented by social.Loader.
type FeedLoader interface {
	Load(ctx context.Context, handle string) ([]social.Post, error)
}

// moversLimit caps the top-movers panel.
const moversLimit = 10

// Tasks bundles the refresh units of work. Each method is one
// scheduler task body; results land in the store, failures degrade the
// panel in place.
type Tasks struct {
	engine    *quotes.Engine
	watchlist WatchlistSource
	companies CompanySource
	feed      FeedLoader
	handle    string
	store     *Store
	log       zerolog.Logger
}

func NewTasks(engine *quotes.Engine, wl WatchlistSource, cs CompanySource, fl FeedLoader, handle string, store *Store, log zerolog.Logger) *Tasks {
	return &Tasks{
		engine:    engine,
		watchlist: wl,
		companies: cs,
		feed:      fl,
		handle:    handle,
		store:     store,
		log:       log.With().Str("component", "panels").Logger(),
	}
}

// RefreshTicker rebuilds the scrolling-ticker items. The quote engine
// is total over the watchlist, so every cell gets a value.
func (t *Tasks) RefreshTicker(ctx context.Context) {
	symbols := t.watchlist.Tickers()
	sort.Strings(symbols)
	if len(symbols) == 0 {
		t.store.SetTicker([]model.TickerItem{})
		return
	}
	qs := t.engine.GetQuotes(ctx, symbols)
	items := make([]model.TickerItem, 0, len(symbols))
	for _, s := range symbols {
		q := qs[s]
		price, pct := q.Price, q.ChangePct
		items = append(items, model.TickerItem{Symbol: s, Price: &price, ChangePct: &pct})
	}
	t.store.SetTicker(items)
}

// RefreshMovers rebuilds the top-movers panel: watchlist symbols ranked
// by absolute change.
func (t *Tasks) RefreshMovers(ctx context.Context) {
	symbols := t.watchlist.Tickers()
	if len(symbols) == 0 {
		t.store.SetMovers([]model.Mover{})
		return
	}
	qs := t.engine.GetQuotes(ctx, symbols)
	movers := make([]model.Mover, 0, len(qs))
	for s, q := range qs {
		movers = append(movers, model.Mover{Symbol: s, Price: q.Price, ChangePct: q.ChangePct})
	}
	sort.Slice(movers, func(i, j int) bool {
		ai, aj := math.Abs(movers[i].ChangePct), math.Abs(movers[j].ChangePct)
		if ai != aj {
			return ai > aj
		}
		return movers[i].Symbol < movers[j].Symbol
	})
	if len(movers) > moversLimit {
		movers = movers[:moversLimit]
	}
	t.store.SetMovers(movers)
}

// RefreshCompanies reloads the top-companies rows and attaches current
// quotes. A backend failure keeps the previous snapshot on screen.
func (t *Tasks) RefreshCompanies(ctx context.Context) {
	rows, err := t.companies.TopCompanies(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("top companies refresh failed, keeping previous panel")
		return
	}
	if len(rows) > 0 {
		symbols := make([]string, 0, len(rows))
		for _, r := range rows {
			symbols = append(symbols, r.Ticker)
		}
		qs := t.engine.GetQuotes(ctx, symbols)
		for i := range rows {
			if q, ok := qs[rows[i].Ticker]; ok {
				quote := q
				rows[i].Quote = &quote
			}
		}
	}
	t.store.SetCompanies(rows)
}

// RefreshFeed reloads the social feed panel. The loader already
// degrades to its stale copy, so an error here means there is nothing
// at all to show and the previous snapshot stays.
func (t *Tasks) RefreshFeed(ctx context.Context) {
	if t.handle == "" {
		return
	}
	posts, err := t.feed.Load(ctx, t.handle)
	if err != nil {
		t.log.Warn().Err(err).Str("handle", t.handle).Msg("feed refresh failed, keeping previous panel")
		return
	}
	t.store.SetFeed(posts)
}
