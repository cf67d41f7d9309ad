// Package model holds the normalized shapes shared between the sync
// engine, the backend client, and the panel store.
package model

import "time"

// Quote is a live or synthesized price point for one symbol.
type Quote struct {
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
}

// TickerItem is one scrolling-ticker cell. Nil price/change means "no
// data available", which is distinct from a valid zero change.
type TickerItem struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	ChangePct *float64 `json:"change_pct"`
}

// Mover is a row in the top-movers panel.
type Mover struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
}

// Company is a row in the top-companies panel.
type Company struct {
	Ticker   string  `json:"ticker"`
	Name     string  `json:"name"`
	Mentions int     `json:"mentions"`
	Score    float64 `json:"score"`
	Quote    *Quote  `json:"quote,omitempty"`
}

// StockDetails is the on-demand symbol lookup payload.
type StockDetails struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Mentions  int       `json:"mentions"`
	Articles  []Article `json:"articles"`
}

// Article is one news item attached to a company or panel.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Sentiment   float64   `json:"sentiment"`
	PublishedAt time.Time `json:"published_at"`
}

// Stats is the headline stats strip.
type Stats struct {
	Articles   int `json:"articles"`
	Companies  int `json:"companies"`
	Alerts     int `json:"alerts"`
	FeedsAlive int `json:"feeds_alive"`
}

// Alert is one fired alert row.
type Alert struct {
	Ticker    string    `json:"ticker"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SentimentPoint is one bucket of the sentiment timeline.
type SentimentPoint struct {
	Bucket   time.Time `json:"bucket"`
	Positive int       `json:"positive"`
	Negative int       `json:"negative"`
	Neutral  int       `json:"neutral"`
}
