package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hulu/internal/events"
	inventoryservice "hulu/internal/inventory/service"
	"hulu/internal/testutil"
	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"
	"hulu/pkg/logger"
	"hulu/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func testConfig() *config.Config {
	return &config.Config{
		Log:                 logger.NewNop(),
		ReadTimeout:         time.Second,
		WriteTimeout:        time.Second,
		ReserveMaxAttempts:  4,
		ReserveRetryBackoff: time.Millisecond,
		InventoryLockTTL:    time.Second,
	}
}

type harness struct {
	store     *testutil.Store
	svc       ReservationService
	publisher *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := testutil.NewStore()
	return &harness{store: store, publisher: &events.Recorder{}}
}

// start builds a service over the harness store. Calling it again simulates a
// process restart: nothing but the store survives.
func (h *harness) start() ReservationService {
	cfg := testConfig()
	h.svc = NewReservationService(
		&testutil.Reservations{Store: h.store},
		&testutil.ReleaseTasks{Store: h.store},
		&testutil.RoomTypes{Store: h.store},
		NewRoomTypeLocker(nil, cfg),
		h.publisher,
		cfg,
	)
	return h.svc
}

func (h *harness) available(t *testing.T, roomTypeID string, in, out time.Time) int {
	t.Helper()
	rt, err := (&testutil.RoomTypes{Store: h.store}).FindByID(context.Background(), roomTypeID)
	require.NoError(t, err)
	held, err := (&testutil.Reservations{Store: h.store}).FindHeldOverlapping(context.Background(), roomTypeID, in, out)
	require.NoError(t, err)
	return inventoryservice.Available(rt.TotalRoomCount, held, in, out)
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// ────────────────────────────────────────────────
// Reserve
// ────────────────────────────────────────────────

func TestReserve_InvalidArguments(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	tests := []struct {
		name     string
		rt       string
		qty      int
		in, out  time.Time
		id       string
		expected string
	}{
		{"zero quantity", rt, 0, day("2024-06-01"), day("2024-06-03"), "A", apperrors.CodeInvalidInput},
		{"negative quantity", rt, -2, day("2024-06-01"), day("2024-06-03"), "A", apperrors.CodeInvalidInput},
		{"inverted range", rt, 1, day("2024-06-03"), day("2024-06-01"), "A", apperrors.CodeInvalidInput},
		{"empty range", rt, 1, day("2024-06-03"), day("2024-06-03"), "A", apperrors.CodeInvalidInput},
		{"missing id", rt, 1, day("2024-06-01"), day("2024-06-03"), "", apperrors.CodeInvalidInput},
		{"unknown room type", fmt.Sprintf("%024x", 999), 1, day("2024-06-01"), day("2024-06-03"), "A", apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reserve(context.Background(), tt.rt, tt.qty, tt.in, tt.out, tt.id)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.expected), "got %v", err)
		})
	}
	assert.Zero(t, h.store.ReservationCount())
}

func TestReserve_CreatesReservationAndReleaseTask(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	res, err := svc.Reserve(context.Background(), rt, 3, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	assert.Equal(t, model.ReservationHeld, res.State)
	assert.Equal(t, 2, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))

	task, ok := h.store.Task("A")
	require.True(t, ok)
	assert.Equal(t, day("2024-06-03"), task.DueAt)
	assert.False(t, task.Executed)
}

func TestReserve_InsufficientInventory(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 2, 100)

	_, err := svc.Reserve(context.Background(), rt, 3, day("2024-06-01"), day("2024-06-03"), "A")
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInsufficientInventory, appErr.Code)
	assert.Equal(t, 2, appErr.Details["available"])
	assert.Zero(t, h.store.ReservationCount())
	_, ok := h.store.Task("A")
	assert.False(t, ok)
}

func TestReserve_IdempotentOnReservationID(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	first, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	second, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.store.ReservationCount())
	assert.Equal(t, 3, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))
}

func TestReserve_ReusedIDWithDifferentParameters(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	_, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), rt, 3, day("2024-06-01"), day("2024-06-03"), "A")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	assert.Equal(t, 3, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))
}

func TestReserve_ReplayAfterCancelReturnsCancelled(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	_, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), "A")
	require.NoError(t, err)

	res, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.State)
	assert.Equal(t, 5, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))
}

func TestReserve_RetriesTransientConflicts(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)
	h.store.InsertFaults = []error{
		mongo.CommandError{Code: 112, Message: "WriteConflict"},
		mongo.CommandError{Code: 112, Message: "WriteConflict"},
	}

	res, err := svc.Reserve(context.Background(), rt, 1, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationHeld, res.State)
	assert.Equal(t, 1, h.store.ReservationCount())
}

func TestReserve_SurfacesConflictAfterRetriesExhausted(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)
	for i := 0; i < 10; i++ {
		h.store.InsertFaults = append(h.store.InsertFaults, mongo.CommandError{Code: 112, Message: "WriteConflict"})
	}

	_, err := svc.Reserve(context.Background(), rt, 1, day("2024-06-01"), day("2024-06-03"), "A")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Zero(t, h.store.ReservationCount())
}

func TestReserve_ConcurrentSameRoomTypeExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), rt, 3, day("2024-06-01"), day("2024-06-03"), fmt.Sprintf("R%d", i))
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.HasCode(err, apperrors.CodeInsufficientInventory):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 3, h.store.HeldQuantity(rt, day("2024-06-01"), day("2024-06-03")))
}

func TestReserve_NoOversellUnderFanOut(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 10, 100)

	const callers = 40
	var (
		wg      sync.WaitGroup
		granted atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := day("2024-06-01").AddDate(0, 0, i%3)
			res, err := svc.Reserve(context.Background(), rt, 1+i%2, in, in.AddDate(0, 0, 2), fmt.Sprintf("R%d", i))
			if err == nil {
				granted.Add(int64(res.Quantity))
				return
			}
			if !apperrors.HasCode(err, apperrors.CodeInsufficientInventory) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Positive(t, granted.Load())
	for d := day("2024-06-01"); d.Before(day("2024-06-06")); d = d.AddDate(0, 0, 1) {
		held := h.store.HeldQuantity(rt, d, d.AddDate(0, 0, 1))
		assert.LessOrEqual(t, held, 10, "day %s", d.Format("2006-01-02"))
	}
}

// ────────────────────────────────────────────────
// Cancel / Release
// ────────────────────────────────────────────────

func TestCancel_RestoresAvailability(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)
	before := h.available(t, rt, day("2024-06-01"), day("2024-06-05"))

	_, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-05"), "A")
	require.NoError(t, err)
	res, err := svc.Cancel(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, model.ReservationCancelled, res.State)
	assert.Equal(t, before, h.available(t, rt, day("2024-06-01"), day("2024-06-05")))

	task, _ := h.store.Task("A")
	assert.True(t, task.Executed)
}

func TestRelease_RoundTripAvailability(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)
	before := h.available(t, rt, day("2024-06-01"), day("2024-06-03"))

	_, err := svc.Reserve(context.Background(), rt, 3, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	_, err = svc.Release(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, before, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))
	assert.Len(t, h.publisher.OfType(events.ReservationReleased), 1)
}

func TestCancel_ClearsOversoldOnceHeldRoomsFit(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)
	roomTypes := &testutil.RoomTypes{Store: h.store}
	in, out := time.Now().UTC().AddDate(0, 1, 0), time.Now().UTC().AddDate(0, 1, 2)

	_, err := svc.Reserve(context.Background(), rt, 2, in, out, "A")
	require.NoError(t, err)
	_, err = svc.Reserve(context.Background(), rt, 2, in, out, "B")
	require.NoError(t, err)
	// The hotel took rooms out of service while 4 were held.
	require.NoError(t, roomTypes.SetTotalRoomCount(context.Background(), rt, 1, true))

	_, err = svc.Cancel(context.Background(), "A")
	require.NoError(t, err)
	stored, err := roomTypes.FindByID(context.Background(), rt)
	require.NoError(t, err)
	assert.True(t, stored.Oversold, "2 held rooms still exceed 1")

	_, err = svc.Cancel(context.Background(), "B")
	require.NoError(t, err)
	stored, err = roomTypes.FindByID(context.Background(), rt)
	require.NoError(t, err)
	assert.False(t, stored.Oversold)
	assert.Equal(t, 1, stored.TotalRoomCount)
}

func TestCancel_NotFound(t *testing.T) {
	h := newHarness(t)
	svc := h.start()

	_, err := svc.Cancel(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = svc.Release(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestFinalize_FirstTerminalStateWins(t *testing.T) {
	tests := []struct {
		name     string
		calls    []string
		expected model.ReservationState
	}{
		{"cancel then release", []string{"cancel", "release", "cancel"}, model.ReservationCancelled},
		{"release then cancel", []string{"release", "cancel", "release"}, model.ReservationReleased},
		{"repeated cancel", []string{"cancel", "cancel", "cancel"}, model.ReservationCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			svc := h.start()
			rt := h.store.AddRoomType("hotel-1", 5, 100)
			_, err := svc.Reserve(context.Background(), rt, 1, day("2024-06-01"), day("2024-06-03"), "A")
			require.NoError(t, err)

			for _, call := range tt.calls {
				var res *model.Reservation
				if call == "cancel" {
					res, err = svc.Cancel(context.Background(), "A")
				} else {
					res, err = svc.Release(context.Background(), "A")
				}
				require.NoError(t, err)
				assert.Equal(t, tt.expected, res.State)
			}

			got, err := svc.Get(context.Background(), "A")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.State)
		})
	}
}

func TestFinalize_ConcurrentInterleaving(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)
	_, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = svc.Cancel(context.Background(), "A")
			} else {
				_, err = svc.Release(context.Background(), "A")
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, got.State.Terminal())
	assert.Equal(t, 5, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))
	assert.LessOrEqual(t, len(h.publisher.OfType(events.ReservationReleased)), 1)
}

func TestReserveThenCancelScenario(t *testing.T) {
	h := newHarness(t)
	svc := h.start()
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	_, err := svc.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-05"), "A")
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, 5, h.available(t, rt, day("2024-06-01"), day("2024-06-05")))
}

func TestReservations_SurviveRestart(t *testing.T) {
	h := newHarness(t)
	rt := h.store.AddRoomType("hotel-1", 5, 100)

	_, err := h.start().Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)

	restarted := h.start()
	res, err := restarted.Reserve(context.Background(), rt, 2, day("2024-06-01"), day("2024-06-03"), "A")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationHeld, res.State)
	assert.Equal(t, 1, h.store.ReservationCount())

	_, err = restarted.Release(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 5, h.available(t, rt, day("2024-06-01"), day("2024-06-03")))
}
