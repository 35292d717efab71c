package scheduling

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrLockBusy is returned when a slot lock cannot be acquired. Callers
// should retry; the losing booker will observe the updated capacity.
var ErrLockBusy = errors.New("slot lock busy")

// Locker guards the booking critical section per slot. The production
// implementation lives in internal/redis; LocalLocker covers single-process
// deployments and tests.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

// LocalLocker serializes bookings per slot with in-process mutexes.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.slots[slotID]
	if !ok {
		m = &sync.Mutex{}
		l.slots[slotID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
