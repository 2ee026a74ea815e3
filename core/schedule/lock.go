package schedule

import (
	"context"
	"sync"
	"time"
)

// PlanLocker serializes schedule generations per plan within the process.
// Generations across processes are serialized by the database lock taken in the
// generation transaction.
// A plan's entry lives only while someone holds or waits for its lock.
type PlanLocker struct {
	mu    sync.Mutex
	locks map[int64]*planLock
	wait  time.Duration
}

type planLock struct {
	ch   chan struct{}
	refs int // holders and waiters
}

func NewPlanLocker(wait time.Duration) *PlanLocker {
	return &PlanLocker{locks: make(map[int64]*planLock), wait: wait}
}

func (l *PlanLocker) acquire(planID int64) *planLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.locks[planID]
	if !ok {
		pl = &planLock{ch: make(chan struct{}, 1)}
		l.locks[planID] = pl
	}
	pl.refs++
	return pl
}

func (l *PlanLocker) release(planID int64, pl *planLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, planID)
	}
}

// size returns the number of plans with a holder or a waiter.
func (l *PlanLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Lock acquires the lock of planID, waiting at most the locker's wait duration.
// The returned func releases it.
func (l *PlanLocker) Lock(ctx context.Context, planID int64) (unlock func(), err error) {
	pl := l.acquire(planID)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case pl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-pl.ch
				l.release(planID, pl)
			})
		}, nil
	case <-timer.C:
		l.release(planID, pl)
		return nil, &ConcurrencyConflictError{PlanID: planID}
	case <-ctx.Done():
		l.release(planID, pl)
		return nil, ctx.Err()
	}
}
