// Package panels holds the in-memory snapshots the dashboard serves.
// Scheduler tasks write; HTTP handlers read. Nothing here survives a
// restart, by design.
package panels

import (
	"sync"
	"time"

	"dashsync/internal/model"
	"dashsync/internal/social"
)

// Snapshot wraps a panel payload with its last update time.
type Snapshot[T any] struct {
	Data      T         `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the single writer-per-panel snapshot holder.
type Store struct {
	mu        sync.RWMutex
	ticker    Snapshot[[]model.TickerItem]
	movers    Snapshot[[]model.Mover]
	companies Snapshot[[]model.Company]
	feed      Snapshot[[]social.Post]
	stats     Snapshot[model.Stats]
	alerts    Snapshot[[]model.Alert]
	articles  Snapshot[[]model.Article]
	sentiment Snapshot[[]model.SentimentPoint]
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SetTicker(items []model.TickerItem) {
	s.mu.Lock()
	s.ticker = Snapshot[[]model.TickerItem]{Data: items, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Ticker() Snapshot[[]model.TickerItem] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker
}

func (s *Store) SetMovers(m []model.Mover) {
	s.mu.Lock()
	s.movers = Snapshot[[]model.Mover]{Data: m, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Movers() Snapshot[[]model.Mover] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movers
}

func (s *Store) SetCompanies(c []model.Company) {
	s.mu.Lock()
	s.companies = Snapshot[[]model.Company]{Data: c, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Companies() Snapshot[[]model.Company] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companies
}

func (s *Store) SetFeed(p []social.Post) {
	s.mu.Lock()
	s.feed = Snapshot[[]social.Post]{Data: p, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Feed() Snapshot[[]social.Post] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

func (s *Store) SetStats(st model.Stats) {
	s.mu.Lock()
	s.stats = Snapshot[model.Stats]{Data: st, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Stats() Snapshot[model.Stats] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Store) SetAlerts(a []model.Alert) {
	s.mu.Lock()
	s.alerts = Snapshot[[]model.Alert]{Data: a, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Alerts() Snapshot[[]model.Alert] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alerts
}

func (s *Store) SetArticles(a []model.Article) {
	s.mu.Lock()
	s.articles = Snapshot[[]model.Article]{Data: a, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Articles() Snapshot[[]model.Article] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.articles
}

func (s *Store) SetSentiment(p []model.SentimentPoint) {
	s.mu.Lock()
	s.sentiment = Snapshot[[]model.SentimentPoint]{Data: p, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Store) Sentiment() Snapshot[[]model.SentimentPoint] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sentiment
}
