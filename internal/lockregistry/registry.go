// Package lockregistry provides keyed mutual exclusion with bounded waits.
//
// Locks are created lazily on first use and shared by every caller of the
// same key. Operations on different keys never contend. A lock is not
// reentrant: a caller must not acquire the same key twice on one path.
package lockregistry

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when a lock could not be acquired within the
// requested timeout.
var ErrTimeout = errors.New("lock acquisition timed out")

type entry struct {
	sem *semaphore.Weighted
	// retired is only read or written while sem is held.
	retired bool
}

type Registry[K comparable] struct {
	locks sync.Map // K -> *entry
}

func New[K comparable]() *Registry[K] {
	return &Registry[K]{}
}

// Guard is a held lock. Release is safe to call more than once.
type Guard struct {
	e    *entry
	once sync.Once
}

func (g *Guard) Release() {
	g.once.Do(func() { g.e.sem.Release(1) })
}

func (r *Registry[K]) entry(key K) *entry {
	if v, ok := r.locks.Load(key); ok {
		return v.(*entry)
	}
	v, _ := r.locks.LoadOrStore(key, &entry{sem: semaphore.NewWeighted(1)})
	return v.(*entry)
}

// Acquire blocks until the lock for key is held, timeout elapses, or ctx is
// done. A timeout yields ErrTimeout; a done ctx yields ctx.Err(). A
// non-positive timeout means a single attempt without waiting.
func (r *Registry[K]) Acquire(ctx context.Context, key K, timeout time.Duration) (*Guard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return r.TryAcquire(key)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		e := r.entry(key)
		if err := e.sem.Acquire(waitCtx, 1); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTimeout
		}
		if !e.retired {
			return &Guard{e: e}, nil
		}
		// Retired between lookup and acquisition; the key now maps to a
		// fresh entry (or none yet).
		e.sem.Release(1)
	}
}

// TryAcquire takes the lock only if it is free right now.
func (r *Registry[K]) TryAcquire(key K) (*Guard, error) {
	for {
		e := r.entry(key)
		if !e.sem.TryAcquire(1) {
			return nil, ErrTimeout
		}
		if !e.retired {
			return &Guard{e: e}, nil
		}
		e.sem.Release(1)
	}
}

// Retire removes the lock for key if nobody holds it. It reports whether an
// entry was removed. A later Acquire for the same key creates a new lock.
func (r *Registry[K]) Retire(key K) bool {
	v, ok := r.locks.Load(key)
	if !ok {
		return false
	}
	e := v.(*entry)
	if !e.sem.TryAcquire(1) {
		return false
	}
	e.retired = true
	r.locks.CompareAndDelete(key, e)
	e.sem.Release(1)
	return true
}

// Keys returns a snapshot of the registered keys.
func (r *Registry[K]) Keys() []K {
	var keys []K
	r.locks.Range(func(k, _ any) bool {
		keys = append(keys, k.(K))
		return true
	})
	return keys
}

func (r *Registry[K]) Len() int {
	n := 0
	r.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
