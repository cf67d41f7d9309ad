package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Server struct {
	Port string `json:"port"`
}

type Backend struct {
	BaseURL           string `json:"base_url"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	PriceTimeoutSec   int    `json:"price_timeout_sec"`
	BotRunTimeoutSec  int    `json:"bot_run_timeout_sec"`
	MaxRequestsPerSec int    `json:"max_requests_per_sec"`
	Burst             int    `json:"burst"`
	PriceCacheTTLSec  int    `json:"price_cache_ttl_sec"`
}

type Social struct {
	BaseURL           string `json:"base_url"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	FeedCacheTTLSec   int    `json:"feed_cache_ttl_sec"`
	FeedLimit         int    `json:"feed_limit"`
	Handle            string `json:"handle"`
}

type Refresh struct {
	TickerSec    int `json:"ticker_sec"`
	MoversSec    int `json:"movers_sec"`
	CompaniesSec int `json:"companies_sec"`
	FeedSec      int `json:"feed_sec"`
}

type Config struct {
	Server  Server  `json:"server"`
	Backend Backend `json:"backend"`
	Social  Social  `json:"social"`
	Refresh Refresh `json:"refresh"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8090"},
		Backend: Backend{
			BaseURL:           "http://127.0.0.1:8000",
			RequestTimeoutSec: 10,
			PriceTimeoutSec:   5,
			BotRunTimeoutSec:  60,
			MaxRequestsPerSec: 10,
			Burst:             5,
			PriceCacheTTLSec:  60,
		},
		Social: Social{
			BaseURL:           "https://public.api.bsky.app",
			RequestTimeoutSec: 10,
			FeedCacheTTLSec:   120,
			FeedLimit:         25,
		},
		Refresh: Refresh{
			TickerSec:    30,
			MoversSec:    60,
			CompaniesSec: 60,
			FeedSec:      120,
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_TIMEOUT_SEC"); v != "" {
		setInt(&cfg.Backend.RequestTimeoutSec, v)
	}
	if v := os.Getenv("BACKEND_PRICE_TIMEOUT_SEC"); v != "" {
		setInt(&cfg.Backend.PriceTimeoutSec, v)
	}
	if v := os.Getenv("BACKEND_MAX_RPS"); v != "" {
		setInt(&cfg.Backend.MaxRequestsPerSec, v)
	}
	if v := os.Getenv("PRICE_CACHE_TTL_SEC"); v != "" {
		setInt(&cfg.Backend.PriceCacheTTLSec, v)
	}
	if v := os.Getenv("SOCIAL_BASE_URL"); v != "" {
		cfg.Social.BaseURL = v
	}
	if v := os.Getenv("SOCIAL_HANDLE"); v != "" {
		cfg.Social.Handle = v
	}
	if v := os.Getenv("FEED_CACHE_TTL_SEC"); v != "" {
		setInt(&cfg.Social.FeedCacheTTLSec, v)
	}
	if v := os.Getenv("REFRESH_TICKER_SEC"); v != "" {
		setInt(&cfg.Refresh.TickerSec, v)
	}
	if v := os.Getenv("REFRESH_MOVERS_SEC"); v != "" {
		setInt(&cfg.Refresh.MoversSec, v)
	}
	if v := os.Getenv("REFRESH_COMPANIES_SEC"); v != "" {
		setInt(&cfg.Refresh.CompaniesSec, v)
	}
	if v := os.Getenv("REFRESH_FEED_SEC"); v != "" {
		setInt(&cfg.Refresh.FeedSec, v)
	}
}

func setInt(dst *int, v string) {
	var x int
	if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &x); err == nil && x > 0 {
		*dst = x
	}
}

// Seconds converts a config integer to a duration, with a fallback for
// zero/negative values.
func Seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
