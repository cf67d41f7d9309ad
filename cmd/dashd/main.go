package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"dashsync/internal/backend"
	"dashsync/internal/cache"
	"dashsync/internal/config"
	"dashsync/internal/fallback"
	"dashsync/internal/httpx"
	"dashsync/internal/metrics"
	"dashsync/internal/model"
	"dashsync/internal/panels"
	"dashsync/internal/quotes"
	"dashsync/internal/scheduler"
	"dashsync/internal/settings"
	"dashsync/internal/social"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		log = log.Level(lvl)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	met := metrics.New()

	backendClient := backend.New(backend.Config{
		BaseURL:           cfg.Backend.BaseURL,
		Timeout:           config.Seconds(cfg.Backend.RequestTimeoutSec, 10),
		PriceTimeout:      config.Seconds(cfg.Backend.PriceTimeoutSec, 5),
		BotRunTimeout:     config.Seconds(cfg.Backend.BotRunTimeoutSec, 60),
		MaxRequestsPerSec: cfg.Backend.MaxRequestsPerSec,
		Burst:             cfg.Backend.Burst,
	}, httpx.New(config.Seconds(cfg.Backend.RequestTimeoutSec, 10)), log)

	settingsSync := settings.New(backendClient, log, met)

	// The initial settings load is the startup gate: an unreachable
	// backend here is a blocking error, unlike per-panel degradation.
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := settingsSync.Load(startCtx); err != nil {
		startCancel()
		log.Fatal().Err(err).Str("backend", cfg.Backend.BaseURL).Msg("backend unreachable at startup")
	}

	priceCache := cache.New[string, model.Quote](config.Seconds(cfg.Backend.PriceCacheTTLSec, 60))
	engine := quotes.New(backendClient, priceCache, fallback.New(nil), met, log)

	feedClient := social.NewClient(
		social.WithBaseURL(cfg.Social.BaseURL),
		social.WithHTTPClient(&http.Client{Timeout: config.Seconds(cfg.Social.RequestTimeoutSec, 10)}),
	)
	feedLoader := social.NewLoader(feedClient, config.Seconds(cfg.Social.FeedCacheTTLSec, 120), cfg.Social.FeedLimit, log)

	store := panels.NewStore()
	tasks := panels.NewTasks(engine, settingsSync, backendClient, feedLoader, cfg.Social.Handle, store, log)

	// First paint before the intervals start ticking.
	loadStaticPanels(startCtx, backendClient, store, log)
	tasks.RefreshTicker(startCtx)
	tasks.RefreshMovers(startCtx)
	tasks.RefreshCompanies(startCtx)
	tasks.RefreshFeed(startCtx)
	startCancel()

	sched := scheduler.New(log, met)
	for _, t := range []scheduler.Task{
		{Name: "ticker", Every: config.Seconds(cfg.Refresh.TickerSec, 30), Run: tasks.RefreshTicker},
		{Name: "movers", Every: config.Seconds(cfg.Refresh.MoversSec, 60), Run: tasks.RefreshMovers},
		{Name: "companies", Every: config.Seconds(cfg.Refresh.CompaniesSec, 60), Run: tasks.RefreshCompanies},
		{Name: "feed", Every: config.Seconds(cfg.Refresh.FeedSec, 120), Run: tasks.RefreshFeed},
	} {
		if err := sched.Add(t); err != nil {
			log.Fatal().Err(err).Str("task", t.Name).Msg("scheduler")
		}
	}
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(store, settingsSync, backendClient, met),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second, // covers the bot-run proxy
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("dashd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("dashd stopped")
}

// loadStaticPanels fills the read-only panels once at startup. These
// degrade individually; only the settings load gates startup.
func loadStaticPanels(ctx context.Context, c *backend.Client, store *panels.Store, log zerolog.Logger) {
	if stats, err := c.Stats(ctx); err != nil {
		log.Warn().Err(err).Msg("stats load failed")
	} else {
		store.SetStats(stats)
	}
	if alerts, err := c.Alerts(ctx); err != nil {
		log.Warn().Err(err).Msg("alerts load failed")
	} else {
		store.SetAlerts(alerts)
	}
	if articles, err := c.Articles(ctx); err != nil {
		log.Warn().Err(err).Msg("articles load failed")
	} else {
		store.SetArticles(articles)
	}
	if points, err := c.Sentiment(ctx); err != nil {
		log.Warn().Err(err).Msg("sentiment load failed")
	} else {
		store.SetSentiment(points)
	}
}

func newRouter(store *panels.Store, sync *settings.Sync, client *backend.Client, met *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", met.Handler())
	r.Mount("/panels", store.Routes())

	r.Get("/settings", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{"state": sync.State().String(), "document": sync.Document()})
	})
	r.Post("/settings/thresholds", func(w http.ResponseWriter, req *http.Request) {
		var t model.Thresholds
		if err := json.NewDecoder(req.Body).Decode(&t); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		sync.SetThresholds(t)
		writeJSON(w, map[string]any{"state": sync.State().String()})
	})
	r.Post("/settings/channels", func(w http.ResponseWriter, req *http.Request) {
		var ch model.AlertChannels
		if err := json.NewDecoder(req.Body).Decode(&ch); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		sync.SetAlertChannels(ch)
		writeJSON(w, map[string]any{"state": sync.State().String()})
	})
	r.Post("/settings/save", func(w http.ResponseWriter, req *http.Request) {
		if err := sync.Save(req.Context()); err != nil {
			status := http.StatusBadGateway
			if err == settings.ErrSaveInFlight {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, map[string]any{"state": sync.State().String()})
	})

	r.Post("/watchlist", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Action string   `json:"action"`
			Ticker string   `json:"ticker"`
			Names  []string `json:"names"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		var err error
		switch body.Action {
		case "add":
			err = sync.AddTicker(req.Context(), body.Ticker, body.Names)
		case "remove":
			err = sync.RemoveTicker(req.Context(), body.Ticker)
		default:
			http.Error(w, "action must be add or remove", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{"watchlist": sync.Document().Watchlist})
	})

	r.Get("/stock/{symbol}", func(w http.ResponseWriter, req *http.Request) {
		details, err := client.StockDetails(req.Context(), chi.URLParam(req, "symbol"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, details)
	})

	r.Post("/bot/run", func(w http.ResponseWriter, req *http.Request) {
		if err := client.RunBot(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{"success": true})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
