// Package scheduler runs the named refresh tasks on their intervals.
// A tick that fires while the previous run is still in flight is
// skipped, never queued, so a slow upstream cannot build a backlog.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dashsync/internal/metrics"
)

// Task is one named periodic unit of work. Run receives a context that
// is cancelled on scheduler teardown.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

// Scheduler owns the refresh tasks. Built on cron with a fixed-delay
// schedule and a per-task SkipIfStillRunning chain.
type Scheduler struct {
	cron   *cron.Cron
	log    zerolog.Logger
	met    *metrics.Metrics
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler. met may be nil.
func New(log zerolog.Logger, met *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		log:    log.With().Str("component", "scheduler").Logger(),
		met:    met,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Every <= 0 || t.Run == nil {
		return fmt.Errorf("scheduler: invalid task %q", t.Name)
	}
	taskLog := s.log.With().Str("task", t.Name).Logger()
	job := cron.FuncJob(func() {
		start := time.Now()
		taskLog.Debug().Msg("refresh started")
		t.Run(s.ctx)
		if s.met != nil {
			s.met.RefreshDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
		}
		taskLog.Debug().Dur("took", time.Since(start)).Msg("refresh finished")
	})
	wrapped := cron.NewChain(cron.SkipIfStillRunning(&skipLogger{
		log:  taskLog,
		task: t.Name,
		met:  s.met,
	})).Then(job)

	// cron's own @every rounds sub-second delays up to one second, so
	// the interval is supplied as a Schedule directly.
	s.cron.Schedule(constantDelay{every: t.Every}, wrapped)
	s.log.Info().Str("task", t.Name).Dur("every", t.Every).Msg("task registered")
	return nil
}

// constantDelay fires a fixed duration after each activation.
type constantDelay struct {
	every time.Duration
}

func (c constantDelay) Next(t time.Time) time.Time { return t.Add(c.every) }

// Start begins ticking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop tears the scheduler down: no task fires afterwards, the task
// context is cancelled, and Stop blocks until in-flight runs return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// skipLogger receives cron's SkipIfStillRunning notifications for one
// task and turns them into a warning plus a counter bump.
type skipLogger struct {
	log  zerolog.Logger
	task string
	met  *metrics.Metrics
}

func (l *skipLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		if l.met != nil {
			l.met.RefreshSkipped.WithLabelValues(l.task).Inc()
		}
		l.log.Warn().Msg("tick skipped, previous run still in flight")
		return
	}
	l.log.Debug().Msg(msg)
}

func (l *skipLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msg(msg)
}
