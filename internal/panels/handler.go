package panels

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes serves the read-only panel snapshots.
func (s *Store) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ticker", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Ticker())
	})
	r.Get("/movers", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Movers())
	})
	r.Get("/companies", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Companies())
	})
	r.Get("/feed", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Feed())
	})
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Stats())
	})
	r.Get("/alerts", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Alerts())
	})
	r.Get("/articles", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Articles())
	})
	r.Get("/sentiment", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Sentiment())
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
