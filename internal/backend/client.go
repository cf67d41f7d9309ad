// Package backend is the typed client for the local dashboard backend.
// All calls are deadline-bounded and rate limited so a slow backend
// degrades panels instead of stalling them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"dashsync/internal/httpx"
	"dashsync/internal/model"
)

// ErrRejected means the backend answered 2xx but reported success=false.
var ErrRejected = errors.New("backend: request rejected")

type Config struct {
	BaseURL string
	// Timeout is the default per-request deadline.
	Timeout time.Duration
	// PriceTimeout bounds quote polling tighter than the default so a slow
	// backend cannot stall the ticker cadence.
	PriceTimeout time.Duration
	// BotRunTimeout covers the long-running bot action.
	BotRunTimeout time.Duration
	// MaxRequestsPerSec and Burst configure the client-side limiter.
	MaxRequestsPerSec int
	Burst             int
}

type Client struct {
	cfg     Config
	http    *httpx.Client
	limiter *rate.Limiter
	details singleflight.Group
	log     zerolog.Logger
}

func New(cfg Config, hc *httpx.Client, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpx.DefaultTimeout
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 5 * time.Second
	}
	if cfg.BotRunTimeout <= 0 {
		cfg.BotRunTimeout = 60 * time.Second
	}
	rps := cfg.MaxRequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = rps
	}
	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(float64(rps)), burst),
		log:     log.With().Str("component", "backend").Logger(),
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *Client) get(ctx context.Context, path string, timeout time.Duration, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.http.GetJSON(ctx, c.url(path), timeout, out)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.http.PostJSON(ctx, c.url(path), timeout, body, out)
}

// Prices fetches quotes for tickers in one batched request. The response
// may omit symbols the backend does not know; callers handle the gaps.
func (c *Client) Prices(ctx context.Context, tickers []string) (map[string]model.Quote, error) {
	if len(tickers) == 0 {
		return map[string]model.Quote{}, nil
	}
	path := "/api/prices?tickers=" + url.QueryEscape(strings.Join(tickers, ","))
	out := make(map[string]model.Quote, len(tickers))
	if err := c.get(ctx, path, c.cfg.PriceTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type watchlistResponse struct {
	Success   bool            `json:"success"`
	Watchlist model.Watchlist `json:"watchlist"`
}

// Watchlist reads the full watchlist map.
func (c *Client) Watchlist(ctx context.Context) (model.Watchlist, error) {
	var resp watchlistResponse
	if err := c.get(ctx, "/api/watchlist", 0, &resp); err != nil {
		return nil, err
	}
	return resp.Watchlist, nil
}

type watchlistUpdate struct {
	Action string   `json:"action"`
	Ticker string   `json:"ticker"`
	Names  []string `json:"names,omitempty"`
}

// UpdateWatchlist applies an add/remove and returns the server's
// authoritative watchlist, which replaces the local copy wholesale.
func (c *Client) UpdateWatchlist(ctx context.Context, action, ticker string, names []string) (model.Watchlist, error) {
	var resp watchlistResponse
	body := watchlistUpdate{Action: action, Ticker: ticker, Names: names}
	if err := c.post(ctx, "/api/watchlist", 0, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: watchlist %s %s", ErrRejected, action, ticker)
	}
	return resp.Watchlist, nil
}

// Preferences reads the thresholds document.
func (c *Client) Preferences(ctx context.Context) (model.Preferences, error) {
	var out model.Preferences
	err := c.get(ctx, "/api/preferences", 0, &out)
	return out, err
}

type saveResponse struct {
	Success bool `json:"success"`
}

// SavePreferences writes the thresholds document.
func (c *Client) SavePreferences(ctx context.Context, p model.Preferences) error {
	var resp saveResponse
	if err := c.post(ctx, "/api/preferences", 0, p, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: preferences", ErrRejected)
	}
	return nil
}

// AlertRules reads channel toggles, severity routing, and per-company
// preferences.
func (c *Client) AlertRules(ctx context.Context) (model.AlertRules, error) {
	var out model.AlertRules
	err := c.get(ctx, "/api/alert-rules", 0, &out)
	return out, err
}

// SaveAlertRules writes the alert-rules document.
func (c *Client) SaveAlertRules(ctx context.Context, r model.AlertRules) error {
	var resp saveResponse
	if err := c.post(ctx, "/api/alert-rules", 0, r, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: alert-rules", ErrRejected)
	}
	return nil
}

// StockDetails is the on-demand symbol lookup. Concurrent lookups for the
// same symbol are coalesced into one request.
func (c *Client) StockDetails(ctx context.Context, symbol string) (model.StockDetails, error) {
	v, err, _ := c.details.Do(symbol, func() (any, error) {
		var out model.StockDetails
		if err := c.get(ctx, "/api/stock/"+url.PathEscape(symbol)+"/details", 0, &out); err != nil {
			return model.StockDetails{}, err
		}
		return out, nil
	})
	if err != nil {
		return model.StockDetails{}, err
	}
	return v.(model.StockDetails), nil
}

// Stats reads the headline stats strip.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var out model.Stats
	err := c.get(ctx, "/api/stats", 0, &out)
	return out, err
}

// Alerts reads the recent alerts panel.
func (c *Client) Alerts(ctx context.Context) ([]model.Alert, error) {
	var out struct {
		Alerts []model.Alert `json:"alerts"`
	}
	err := c.get(ctx, "/api/alerts", 0, &out)
	return out.Alerts, err
}

// Articles reads the recent articles panel.
func (c *Client) Articles(ctx context.Context) ([]model.Article, error) {
	var out struct {
		Articles []model.Article `json:"articles"`
	}
	err := c.get(ctx, "/api/articles", 0, &out)
	return out.Articles, err
}

// Sentiment reads the sentiment timeline.
func (c *Client) Sentiment(ctx context.Context) ([]model.SentimentPoint, error) {
	var out struct {
		Points []model.SentimentPoint `json:"points"`
	}
	err := c.get(ctx, "/api/sentiment", 0, &out)
	return out.Points, err
}

// TopCompanies reads the top-companies panel rows.
func (c *Client) TopCompanies(ctx context.Context) ([]model.Company, error) {
	var out struct {
		Companies []model.Company `json:"companies"`
	}
	err := c.get(ctx, "/api/companies/top", 0, &out)
	return out.Companies, err
}

// RunBot triggers a full pipeline run on the backend. This is the one
// long-running action, bounded by BotRunTimeout rather than the default.
func (c *Client) RunBot(ctx context.Context) error {
	var resp saveResponse
	if err := c.post(ctx, "/api/bot/run", c.cfg.BotRunTimeout, struct{}{}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: bot run", ErrRejected)
	}
	c.log.Info().Msg("bot run completed")
	return nil
}
