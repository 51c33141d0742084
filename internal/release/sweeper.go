// Package release fires durable release tasks once a stay has ended. Tasks live in
// Mongo next to the reservations they belong to, so a restart loses nothing: the
// first sweep after startup fires every task that fell due while the process was down.
package release

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hulu/internal/reservations/repository"
	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"
	"hulu/pkg/logger"
	"hulu/pkg/metrics"
	"hulu/pkg/model"

	"github.com/robfig/cron/v3"
)

// maxRetryDelay caps how long a failing task is held back between attempts.
const maxRetryDelay = 6 * time.Hour

// Releaser is the part of the reservation service the sweeper drives.
type Releaser interface {
	Release(ctx context.Context, reservationID string) (*model.Reservation, error)
}

type Result struct {
	Fired  int
	Failed int
}

type Sweeper struct {
	tasks    repository.ReleaseTaskRepository
	releaser Releaser
	cfg      *config.Config
	now      func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewSweeper(tasks repository.ReleaseTaskRepository, releaser Releaser, cfg *config.Config) *Sweeper {
	return &Sweeper{
		tasks:    tasks,
		releaser: releaser,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock used to decide which tasks are due.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep fires up to one batch of due tasks. A task whose reservation is gone is
// marked executed. Any other failure defers the task with a growing delay, so a
// batch full of failing tasks cannot hold back the ones behind it.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	start := time.Now()
	var result Result

	due, err := s.tasks.FindDue(ctx, s.now().UTC(), s.cfg.ReleaseSweepBatch)
	if err != nil {
		s.cfg.Log.Error("Failed to load due release tasks", "error", err)
		return result, fmt.Errorf("failed to load due release tasks: %w", err)
	}

	for _, task := range due {
		if ctx.Err() != nil {
			break
		}

		_, err := s.releaser.Release(ctx, task.ReservationID)
		switch {
		case err == nil:
			result.Fired++
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			s.cfg.Log.Warn("Release task has no reservation, discarding", "reservation_id", task.ReservationID)
			if err := s.tasks.MarkExecuted(ctx, task.ID, s.now()); err != nil {
				s.cfg.Log.Error("Failed to discard orphan release task", "reservation_id", task.ReservationID, "error", err)
				result.Failed++
			}
		default:
			next := s.now().UTC().Add(retryDelay(s.cfg.ReleaseSweepInterval, task.Attempts+1))
			s.cfg.Log.Error("Failed to release reservation",
				"reservation_id", task.ReservationID,
				"room_type_id", task.RoomTypeID,
				"due_at", task.DueAt,
				"attempts", task.Attempts+1,
				"next_attempt_at", next,
				"error", err,
			)
			if markErr := s.tasks.MarkFailed(ctx, task.ID, next, err.Error()); markErr != nil {
				s.cfg.Log.Error("Failed to defer release task", "reservation_id", task.ReservationID, "error", markErr)
			}
			result.Failed++
		}
	}

	metrics.ObserveSweep(result.Fired, result.Failed, time.Since(start))
	s.cfg.Log.Debug("Release sweep finished",
		"due", len(due),
		"fired", result.Fired,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
	return result, nil
}

// Start runs a recovery sweep before returning, then schedules periodic sweeps.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("release sweeper already started")
	}

	ctx, cancel := context.WithCancel(ctx)

	recovered, err := s.Sweep(ctx)
	if err != nil {
		s.cfg.Log.Warn("Recovery sweep failed, periodic sweeps will retry", "error", err)
	} else {
		s.cfg.Log.Info("Recovery sweep finished", "fired", recovered.Fired, "failed", recovered.Failed)
	}

	cronLog := cronLogger{log: s.cfg.Log}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	spec := fmt.Sprintf("@every %s", s.cfg.ReleaseSweepInterval)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.cfg.Log.Warn("Release sweep failed", "error", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule release sweep: %w", err)
	}

	c.Start()
	s.cron, s.cancel = c, cancel
	s.cfg.Log.Info("Release sweeper started", "interval", s.cfg.ReleaseSweepInterval, "batch", s.cfg.ReleaseSweepBatch)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}

	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.cron, s.cancel = nil, nil
	s.cfg.Log.Info("Release sweeper stopped")
}

// retryDelay doubles the sweep interval for every failed attempt.
func retryDelay(interval time.Duration, attempts int) time.Duration {
	if interval <= 0 {
		interval = time.Minute
	}
	delay := interval
	for i := 1; i < attempts && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// cronLogger routes cron's own logging through the service logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
