// Package settings tracks local edits to the settings document and
// commits them to the backend as one atomic save.
package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dashsync/internal/metrics"
	"dashsync/internal/model"
)

// State is the sync lifecycle: Clean -> Dirty -> Saving -> {Clean | Error}.
type State int

const (
	Clean State = iota
	Dirty
	Saving
	Error
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrSaveInFlight is returned when a save is requested while one is
// already running.
var ErrSaveInFlight = errors.New("settings: save already in flight")

// Client is the slice of the backend the settings sync needs.
type Client interface {
	Preferences(ctx context.Context) (model.Preferences, error)
	SavePreferences(ctx context.Context, p model.Preferences) error
	AlertRules(ctx context.Context) (model.AlertRules, error)
	SaveAlertRules(ctx context.Context, r model.AlertRules) error
	Watchlist(ctx context.Context) (model.Watchlist, error)
	UpdateWatchlist(ctx context.Context, action, ticker string, names []string) (model.Watchlist, error)
}

// Document is the locally edited settings snapshot. The backend holds
// the authoritative copy; this one is a cache of it plus pending edits.
type Document struct {
	Watchlist          model.Watchlist
	AlertChannels      model.AlertChannels
	SeverityRouting    map[string][]string
	Thresholds         model.Thresholds
	CompanyPreferences map[string]model.CompanyPreference
}

func (d Document) clone() Document {
	out := d
	out.Watchlist = make(model.Watchlist, len(d.Watchlist))
	for k, v := range d.Watchlist {
		out.Watchlist[k] = append([]string(nil), v...)
	}
	out.SeverityRouting = make(map[string][]string, len(d.SeverityRouting))
	for k, v := range d.SeverityRouting {
		out.SeverityRouting[k] = append([]string(nil), v...)
	}
	out.CompanyPreferences = make(map[string]model.CompanyPreference, len(d.CompanyPreferences))
	for k, v := range d.CompanyPreferences {
		out.CompanyPreferences[k] = v
	}
	return out
}

// Sync is the settings state machine. All methods are safe for
// concurrent use; each mutation is a single atomic assignment under the
// lock.
type Sync struct {
	client Client
	log    zerolog.Logger
	met    *metrics.Metrics

	mu sync.Mutex
	// editedWhileSaving remembers edits that raced a save so a
	// successful save lands in Dirty instead of silently dropping them.
	editedWhileSaving bool
	state             State
	doc               Document
}

// New creates a Sync in the Clean state with an empty document. met may
// be nil.
func New(client Client, log zerolog.Logger, met *metrics.Metrics) *Sync {
	return &Sync{
		client: client,
		log:    log.With().Str("component", "settings").Logger(),
		met:    met,
		doc: Document{
			Watchlist:          model.Watchlist{},
			SeverityRouting:    map[string][]string{},
			CompanyPreferences: map[string]model.CompanyPreference{},
		},
	}
}

// State returns the current lifecycle state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns a deep copy of the current document.
func (s *Sync) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.clone()
}

// Load replaces the local document with the backend's authoritative
// snapshot and resets the state to Clean. The three reads run
// concurrently.
func (s *Sync) Load(ctx context.Context) error {
	var (
		prefs model.Preferences
		rules model.AlertRules
		wl    model.Watchlist
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		prefs, err = s.client.Preferences(ctx)
		return err
	})
	g.Go(func() (err error) {
		rules, err = s.client.AlertRules(ctx)
		return err
	})
	g.Go(func() (err error) {
		wl, err = s.client.Watchlist(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = Document{
		Watchlist:          wl,
		AlertChannels:      rules.AlertChannels,
		SeverityRouting:    rules.SeverityRouting,
		Thresholds:         prefs.Thresholds,
		CompanyPreferences: rules.CompanyPreferences,
	}
	if s.doc.Watchlist == nil {
		s.doc.Watchlist = model.Watchlist{}
	}
	if s.doc.SeverityRouting == nil {
		s.doc.SeverityRouting = map[string][]string{}
	}
	if s.doc.CompanyPreferences == nil {
		s.doc.CompanyPreferences = map[string]model.CompanyPreference{}
	}
	s.state = Clean
	s.editedWhileSaving = false
	return nil
}

// markDirty records a mutation. Edits that land mid-save are remembered
// so the save's success does not mask them.
func (s *Sync) markDirty() {
	if s.state == Saving {
		s.editedWhileSaving = true
		return
	}
	s.state = Dirty
}

// SetAlertChannels replaces the channel toggles.
func (s *Sync) SetAlertChannels(ch model.AlertChannels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.AlertChannels = ch
	s.markDirty()
}

// SetThresholds replaces the numeric thresholds.
func (s *Sync) SetThresholds(t model.Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Thresholds = t
	s.markDirty()
}

// RouteSeverity sets the channel fan-out for one severity.
func (s *Sync) RouteSeverity(severity string, channels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.SeverityRouting[severity] = append([]string(nil), channels...)
	s.markDirty()
}

// SetCompanyPreference sets the per-ticker preference.
func (s *Sync) SetCompanyPreference(ticker string, pref model.CompanyPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.CompanyPreferences[ticker] = pref
	s.markDirty()
}

// Save commits the document. A no-op from Clean; rejected while a save
// is running. Both backend writes must succeed for the Clean
// transition; any failure moves to Error with the local edits kept
// intact for retry.
//
// The preferences response is deliberately not read back into the local
// thresholds; of the whole document, only the watchlist is ever
// reconciled from server responses (see AddTicker/RemoveTicker).
func (s *Sync) Save(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Clean:
		s.mu.Unlock()
		return nil
	case Saving:
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	s.state = Saving
	s.editedWhileSaving = false
	snapshot := s.doc.clone()
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.client.SavePreferences(gctx, model.Preferences{Thresholds: snapshot.Thresholds})
	})
	g.Go(func() error {
		return s.client.SaveAlertRules(gctx, model.AlertRules{
			AlertChannels:      snapshot.AlertChannels,
			SeverityRouting:    snapshot.SeverityRouting,
			CompanyPreferences: snapshot.CompanyPreferences,
		})
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Error
		if s.met != nil {
			s.met.SettingsSaves.WithLabelValues("error").Inc()
		}
		s.log.Warn().Err(err).Msg("settings save failed, edits preserved")
		return err
	}
	if s.editedWhileSaving {
		s.state = Dirty
	} else {
		s.state = Clean
	}
	if s.met != nil {
		s.met.SettingsSaves.WithLabelValues("ok").Inc()
	}
	s.log.Info().Msg("settings saved")
	return nil
}

// AddTicker adds a watchlist entry. The server's returned watchlist
// replaces the local map wholesale; the server is authoritative here.
func (s *Sync) AddTicker(ctx context.Context, ticker string, names []string) error {
	wl, err := s.client.UpdateWatchlist(ctx, "add", ticker, names)
	if err != nil {
		return err
	}
	s.replaceWatchlist(wl)
	return nil
}

// RemoveTicker removes a watchlist entry, with the same reconciliation
// as AddTicker.
func (s *Sync) RemoveTicker(ctx context.Context, ticker string) error {
	wl, err := s.client.UpdateWatchlist(ctx, "remove", ticker, nil)
	if err != nil {
		return err
	}
	s.replaceWatchlist(wl)
	return nil
}

func (s *Sync) replaceWatchlist(wl model.Watchlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wl == nil {
		wl = model.Watchlist{}
	}
	s.doc.Watchlist = wl
}

// Tickers returns the current watchlist symbols, the symbol universe
// for the quote consumers.
func (s *Sync) Tickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.doc.Watchlist))
	for t := range s.doc.Watchlist {
		out = append(out, t)
	}
	return out
}
