package release

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hulu/internal/events"
	reservationservice "hulu/internal/reservations/service"
	"hulu/internal/testutil"
	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"
	"hulu/pkg/logger"
	"hulu/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Log:                  logger.NewNop(),
		ReadTimeout:          time.Second,
		WriteTimeout:         time.Second,
		ReserveMaxAttempts:   3,
		ReserveRetryBackoff:  time.Millisecond,
		ReleaseSweepInterval: time.Hour,
		ReleaseSweepBatch:    50,
	}
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func newReservationService(store *testutil.Store, cfg *config.Config) reservationservice.ReservationService {
	return reservationservice.NewReservationService(
		&testutil.Reservations{Store: store},
		&testutil.ReleaseTasks{Store: store},
		&testutil.RoomTypes{Store: store},
		reservationservice.NewRoomTypeLocker(nil, cfg),
		&events.Recorder{},
		cfg,
	)
}

type stubReleaser struct {
	mu    sync.Mutex
	calls []string
	err   map[string]error
}

func (s *stubReleaser) Release(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if err := s.err[id]; err != nil {
		return nil, err
	}
	return &model.Reservation{ID: id, State: model.ReservationReleased}, nil
}

func TestSweep_FiresOnlyDueTasks(t *testing.T) {
	cfg := testConfig()
	store := testutil.NewStore()
	svc := newReservationService(store, cfg)
	rt := store.AddRoomType("hotel-1", 5, 100)

	_, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "past")
	require.NoError(t, err)
	_, err = svc.Reserve(context.Background(), rt, 1, day("2024-06-10"), day("2024-06-12"), "future")
	require.NoError(t, err)

	sweeper := NewSweeper(&testutil.ReleaseTasks{Store: store}, svc, cfg).
		WithClock(func() time.Time { return day("2024-06-05") })

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Fired: 1}, result)

	past, err := svc.Get(context.Background(), "past")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationReleased, past.State)

	future, err := svc.Get(context.Background(), "future")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationHeld, future.State)

	again, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Fired)
}

func TestSweep_DueAtCheckOutBoundary(t *testing.T) {
	cfg := testConfig()
	store := testutil.NewStore()
	svc := newReservationService(store, cfg)
	rt := store.AddRoomType("hotel-1", 5, 100)

	_, err := svc.Reserve(context.Background(), rt, 1, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	now := day("2024-06-03").Add(-time.Second)
	sweeper := NewSweeper(&testutil.ReleaseTasks{Store: store}, svc, cfg).WithClock(func() time.Time { return now })

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Fired)

	now = day("2024-06-03")
	result, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fired)
}

func TestSweep_CancelledReservationIsNotRefired(t *testing.T) {
	cfg := testConfig()
	store := testutil.NewStore()
	svc := newReservationService(store, cfg)
	rt := store.AddRoomType("hotel-1", 5, 100)

	_, err := svc.Reserve(context.Background(), rt, 1, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), "A")
	require.NoError(t, err)

	sweeper := NewSweeper(&testutil.ReleaseTasks{Store: store}, svc, cfg).
		WithClock(func() time.Time { return day("2024-07-01") })
	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Fired)

	res, err := svc.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.State)
}

func TestSweep_RecoversAfterRestart(t *testing.T) {
	cfg := testConfig()
	store := testutil.NewStore()
	rt := store.AddRoomType("hotel-1", 5, 100)

	_, err := newReservationService(store, cfg).Reserve(context.Background(), rt, 3, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	// The first process dies without ever sweeping. A new one starts a week later.
	restarted := newReservationService(store, cfg)
	sweeper := NewSweeper(&testutil.ReleaseTasks{Store: store}, restarted, cfg).
		WithClock(func() time.Time { return day("2024-06-10") })

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	res, err := restarted.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationReleased, res.State)

	task, ok := store.Task("A")
	require.True(t, ok)
	assert.True(t, task.Executed)
	assert.Zero(t, store.HeldQuantity(rt, day("2024-06-01"), day("2024-06-03")))
}

func TestSweep_FailuresStayPending(t *testing.T) {
	cfg := testConfig()
	store := testutil.NewStore()
	tasks := &testutil.ReleaseTasks{Store: store}
	for _, id := range []string{"ok", "broken", "orphan"} {
		require.NoError(t, tasks.Insert(context.Background(), &model.ReleaseTask{ID: id, ReservationID: id, DueAt: day("2024-06-01")}))
	}

	releaser := &stubReleaser{err: map[string]error{
		"broken": errors.New("mongo unavailable"),
		"orphan": apperrors.NotFoundWithID("Reservation", "orphan"),
	}}
	sweeper := NewSweeper(tasks, releaser, cfg).WithClock(func() time.Time { return day("2024-06-02") })

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Fired: 1, Failed: 1}, result)

	broken, _ := store.Task("broken")
	assert.False(t, broken.Executed)
	assert.Equal(t, 1, broken.Attempts)
	assert.Equal(t, "mongo unavailable", broken.LastError)
	orphan, _ := store.Task("orphan")
	assert.True(t, orphan.Executed)
}

func TestSweep_RespectsBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.ReleaseSweepBatch = 2
	store := testutil.NewStore()
	tasks := &testutil.ReleaseTasks{Store: store}
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tasks.Insert(context.Background(), &model.ReleaseTask{ID: id, ReservationID: id, DueAt: day("2024-06-01")}))
	}

	releaser := &stubReleaser{}
	sweeper := NewSweeper(tasks, releaser, cfg).WithClock(func() time.Time { return day("2024-06-02") })

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fired)
}

func TestSweep_FailingTasksDoNotStarveBatch(t *testing.T) {
	cfg := testConfig()
	cfg.ReleaseSweepBatch = 3
	store := testutil.NewStore()
	tasks := &testutil.ReleaseTasks{Store: store}

	failing := map[string]error{}
	for _, id := range []string{"stuck-1", "stuck-2", "stuck-3"} {
		require.NoError(t, tasks.Insert(context.Background(), &model.ReleaseTask{ID: id, ReservationID: id, DueAt: day("2024-06-01")}))
		failing[id] = errors.New("write concern timeout")
	}
	require.NoError(t, tasks.Insert(context.Background(), &model.ReleaseTask{
		ID:            "healthy",
		ReservationID: "healthy",
		DueAt:         day("2024-06-01").Add(12 * time.Hour),
	}))

	now := day("2024-06-02")
	releaser := &stubReleaser{err: failing}
	sweeper := NewSweeper(tasks, releaser, cfg).WithClock(func() time.Time { return now })

	first, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 3}, first)

	second, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Fired: 1}, second)
	healthy, _ := store.Task("healthy")
	assert.Equal(t, 0, healthy.Attempts)

	stuck, _ := store.Task("stuck-1")
	assert.Equal(t, 1, stuck.Attempts)
	require.NotNil(t, stuck.NextAttemptAt)
	assert.Equal(t, now.Add(cfg.ReleaseSweepInterval), *stuck.NextAttemptAt)

	now = now.Add(cfg.ReleaseSweepInterval)
	third, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 3}, third)
	stuck, _ = store.Task("stuck-1")
	assert.Equal(t, 2, stuck.Attempts)
	assert.Equal(t, now.Add(2*cfg.ReleaseSweepInterval), *stuck.NextAttemptAt)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{30, maxRetryDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(time.Minute, tt.attempts), "attempts=%d", tt.attempts)
	}
	assert.Equal(t, time.Minute, retryDelay(0, 1))
}

func TestSweeper_StartTwice(t *testing.T) {
	cfg := testConfig()
	store := testutil.NewStore()
	sweeper := NewSweeper(&testutil.ReleaseTasks{Store: store}, &stubReleaser{}, cfg)

	require.NoError(t, sweeper.Start(context.Background()))
	assert.Error(t, sweeper.Start(context.Background()))
	sweeper.Stop()
	sweeper.Stop()
}
