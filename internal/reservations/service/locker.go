package service

import (
	"context"
	"errors"
	"sync"
	"time"

	reservationerrors "hulu/internal/reservations/errors"
	"hulu/internal/reservations/repository"
	"hulu/pkg/config"
	apperrors "hulu/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// keyedMutex is a per-key mutex whose Lock honours context cancellation. Entries are
// dropped once no goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				k.unref(key, l)
			})
		}, nil
	case <-ctx.Done():
		k.unref(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) unref(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// RoomTypeLocker serialises inventory writers of one room type. Goroutines of this
// process queue on an in-process mutex; other processes are excluded by an advisory
// lock document in Mongo. A nil lock repository leaves only the in-process mutex.
type RoomTypeLocker struct {
	local    *keyedMutex
	lockRepo repository.InventoryLockRepository
	cfg      *config.Config
}

func NewRoomTypeLocker(lockRepo repository.InventoryLockRepository, cfg *config.Config) *RoomTypeLocker {
	return &RoomTypeLocker{
		local:    newKeyedMutex(),
		lockRepo: lockRepo,
		cfg:      cfg,
	}
}

// Lock blocks until the room type is held or ctx ends. Contention on the advisory lock
// is retried with backoff and reported as Conflict once the attempts run out.
func (l *RoomTypeLocker) Lock(ctx context.Context, roomTypeID string) (func(), error) {
	unlockLocal, err := l.local.lock(ctx, roomTypeID)
	if err != nil {
		return nil, apperrors.Timeout("Timed out waiting for room type inventory lock")
	}
	if l.lockRepo == nil {
		return unlockLocal, nil
	}

	owner := uuid.NewString()
	acquire := func() error {
		err := l.lockRepo.Acquire(ctx, roomTypeID, owner, l.cfg.InventoryLockTTL)
		if err != nil && !errors.Is(err, reservationerrors.ErrLockHeld) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(acquire, l.retryPolicy(ctx)); err != nil {
		unlockLocal()
		if errors.Is(err, reservationerrors.ErrLockHeld) {
			l.cfg.Log.Warn("Inventory lock contention", "room_type_id", roomTypeID)
			return nil, apperrors.Conflict("Room type inventory is busy, please retry")
		}
		if ctx.Err() != nil {
			return nil, apperrors.Timeout("Timed out waiting for room type inventory lock")
		}
		l.cfg.Log.Error("Failed to acquire inventory lock", "room_type_id", roomTypeID, "error", err)
		return nil, apperrors.Internal("Failed to acquire inventory lock", err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.WriteTimeout)
		defer cancel()
		if err := l.lockRepo.Release(releaseCtx, roomTypeID, owner); err != nil {
			l.cfg.Log.Warn("Failed to release inventory lock", "room_type_id", roomTypeID, "error", err)
		}
		unlockLocal()
	}, nil
}

func (l *RoomTypeLocker) retryPolicy(ctx context.Context) backoff.BackOff {
	return newRetryPolicy(ctx, l.cfg.ReserveRetryBackoff, l.cfg.ReserveMaxAttempts)
}

func newRetryPolicy(ctx context.Context, initial time.Duration, attempts int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.MaxInterval = 20 * initial
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(max(attempts-1, 0))), ctx)
}
