package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashsync/internal/model"
)

// fakeClient scripts backend behavior per call.
type fakeClient struct {
	mu            sync.Mutex
	prefs         model.Preferences
	rules         model.AlertRules
	watchlist     model.Watchlist
	prefsSaveErr  error
	rulesSaveErr  error
	updateErr     error
	savedPrefs    []model.Preferences
	savedRules    []model.AlertRules
	block         chan struct{}
	updateReturns model.Watchlist
}

func (f *fakeClient) Preferences(ctx context.Context) (model.Preferences, error) {
	return f.prefs, nil
}

func (f *fakeClient) SavePreferences(ctx context.Context, p model.Preferences) error {
	f.mu.Lock()
	block := f.block
	f.savedPrefs = append(f.savedPrefs, p)
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.prefsSaveErr
}

func (f *fakeClient) AlertRules(ctx context.Context) (model.AlertRules, error) {
	return f.rules, nil
}

func (f *fakeClient) SaveAlertRules(ctx context.Context, r model.AlertRules) error {
	f.mu.Lock()
	f.savedRules = append(f.savedRules, r)
	f.mu.Unlock()
	return f.rulesSaveErr
}

func (f *fakeClient) Watchlist(ctx context.Context) (model.Watchlist, error) {
	return f.watchlist, nil
}

func (f *fakeClient) UpdateWatchlist(ctx context.Context, action, ticker string, names []string) (model.Watchlist, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateReturns, nil
}

func TestLoad_ReplacesDocumentAndResetsState(t *testing.T) {
	fc := &fakeClient{
		prefs:     model.Preferences{Thresholds: model.Thresholds{VolumeSpike: 2.5, MinArticles: 3}},
		rules:     model.AlertRules{AlertChannels: model.AlertChannels{Console: true}},
		watchlist: model.Watchlist{"AAPL": {"Apple"}},
	}
	s := New(fc, zerolog.Nop(), nil)
	s.SetThresholds(model.Thresholds{VolumeSpike: 99})
	require.Equal(t, Dirty, s.State())

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, Clean, s.State())
	doc := s.Document()
	assert.Equal(t, 2.5, doc.Thresholds.VolumeSpike)
	assert.True(t, doc.AlertChannels.Console)
	assert.Equal(t, model.Watchlist{"AAPL": {"Apple"}}, doc.Watchlist)
}

func TestEdit_MarksDirty(t *testing.T) {
	s := New(&fakeClient{}, zerolog.Nop(), nil)
	require.Equal(t, Clean, s.State())

	s.SetAlertChannels(model.AlertChannels{Telegram: true})
	assert.Equal(t, Dirty, s.State())
}

func TestSave_FromCleanIsNoOp(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, zerolog.Nop(), nil)

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, Clean, s.State())
	assert.Empty(t, fc.savedPrefs, "no-op save must not hit the backend")
}

func TestSave_SuccessTransitionsToClean(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, zerolog.Nop(), nil)
	s.SetThresholds(model.Thresholds{VolumeSpike: 3, MinArticles: 2, SentimentShift: 0.4})
	s.RouteSeverity("critical", []string{"telegram", "webhook"})

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, Clean, s.State())
	require.Len(t, fc.savedPrefs, 1)
	assert.Equal(t, 3.0, fc.savedPrefs[0].Thresholds.VolumeSpike)
	require.Len(t, fc.savedRules, 1)
	assert.Equal(t, []string{"telegram", "webhook"}, fc.savedRules[0].SeverityRouting["critical"])
}

func TestSave_FailurePreservesEdits(t *testing.T) {
	fc := &fakeClient{rulesSaveErr: errors.New("success=false")}
	s := New(fc, zerolog.Nop(), nil)
	edited := model.Thresholds{VolumeSpike: 7, MinArticles: 5, SentimentShift: 1.2}
	s.SetThresholds(edited)

	err := s.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, Error, s.State())
	assert.Equal(t, edited, s.Document().Thresholds, "failed save must not roll back local edits")

	// Retry after the backend recovers.
	fc.rulesSaveErr = nil
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, Clean, s.State())
}

func TestSave_ConcurrentSaveRejected(t *testing.T) {
	block := make(chan struct{})
	fc := &fakeClient{block: block}
	s := New(fc, zerolog.Nop(), nil)
	s.SetThresholds(model.Thresholds{VolumeSpike: 1})

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()

	require.Eventually(t, func() bool { return s.State() == Saving }, time.Second, time.Millisecond)
	err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInFlight)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, Clean, s.State())
}

func TestSave_EditDuringSaveLandsDirty(t *testing.T) {
	block := make(chan struct{})
	fc := &fakeClient{block: block}
	s := New(fc, zerolog.Nop(), nil)
	s.SetThresholds(model.Thresholds{VolumeSpike: 1})

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	require.Eventually(t, func() bool { return s.State() == Saving }, time.Second, time.Millisecond)

	s.SetCompanyPreference("TSLA", model.CompanyPreference{Muted: true, Priority: "low"})
	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, Dirty, s.State(), "edits racing a save must survive as dirty state")
}

func TestAddTicker_ReplacesWatchlistFromServer(t *testing.T) {
	fc := &fakeClient{updateReturns: model.Watchlist{"NVDA": {"NVIDIA"}}}
	s := New(fc, zerolog.Nop(), nil)

	require.NoError(t, s.AddTicker(context.Background(), "NVDA", []string{"NVIDIA"}))
	assert.Equal(t, model.Watchlist{"NVDA": {"NVIDIA"}}, s.Document().Watchlist)
	// Watchlist changes commit immediately; they do not dirty the document.
	assert.Equal(t, Clean, s.State())
}

func TestRemoveTicker_FailureKeepsLocalWatchlist(t *testing.T) {
	fc := &fakeClient{
		watchlist: model.Watchlist{"AAPL": {"Apple"}},
		updateErr: errors.New("unreachable"),
	}
	s := New(fc, zerolog.Nop(), nil)
	require.NoError(t, s.Load(context.Background()))

	err := s.RemoveTicker(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, model.Watchlist{"AAPL": {"Apple"}}, s.Document().Watchlist)
}

func TestTickers(t *testing.T) {
	fc := &fakeClient{watchlist: model.Watchlist{"AAPL": {"Apple"}, "MSFT": {"Microsoft"}}}
	s := New(fc, zerolog.Nop(), nil)
	require.NoError(t, s.Load(context.Background()))
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, s.Tickers())
}
