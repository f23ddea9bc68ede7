package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/observability"
)

var ErrSweepInProgress = errors.New("sweep already in progress")

type SweepResult struct {
	Found     int
	Reclaimed int
	Skipped   int
	Failed    int
}

// Sweeper deletes holds whose expiry has passed. It must share the lock
// registry of the Service that creates holds.
type Sweeper struct {
	svc        *Service
	logger     observability.Logger
	maxRetries int
	backoff    time.Duration
	running    atomic.Bool
}

type SweeperOption func(*Sweeper)

func WithRetries(n int, backoff time.Duration) SweeperOption {
	return func(w *Sweeper) {
		if n > 0 {
			w.maxRetries = n
		}
		if backoff > 0 {
			w.backoff = backoff
		}
	}
}

func NewSweeper(svc *Service, logger observability.Logger, opts ...SweeperOption) *Sweeper {
	w := &Sweeper{svc: svc, logger: logger, maxRetries: 3, backoff: time.Second}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := w.SweepOnce(ctx)
			if err != nil {
				w.logger.WithError(err).Error("expiry sweep failed")
				continue
			}
			if res.Found > 0 {
				w.logger.WithField("reclaimed", res.Reclaimed).
					WithField("skipped", res.Skipped).
					WithField("failed", res.Failed).
					Info("expiry sweep finished")
			}
		}
	}
}

// SweepOnce reclaims every hold expired as of a single instant. A hold that
// cannot be reclaimed is logged and counted; it does not stop the sweep.
func (w *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		return SweepResult{}, ErrSweepInProgress
	}
	defer w.running.Store(false)

	now := w.svc.clock.Now()
	holds, err := w.svc.store.FindExpiredHolds(ctx, now)
	if err != nil {
		return SweepResult{}, errors.Wrap(err, "find expired holds")
	}

	res := SweepResult{Found: len(holds)}
	for _, hold := range holds {
		reclaimed, err := w.reclaimWithRetry(ctx, hold, now)
		switch {
		case err != nil:
			res.Failed++
			observability.SweepFailures.Inc()
			w.logger.WithError(err).WithField("reservation_id", hold.ID).Error("failed to reclaim expired hold")
		case reclaimed:
			res.Reclaimed++
			observability.HoldsReclaimed.Inc()
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (w *Sweeper) reclaimWithRetry(ctx context.Context, hold domain.Booking, now time.Time) (bool, error) {
	var err error
	for i := 0; i < w.maxRetries; i++ {
		var reclaimed bool
		reclaimed, err = w.svc.reclaimExpired(ctx, hold, now)
		if err == nil {
			return reclaimed, nil
		}
		if i == w.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(w.backoff * time.Duration(1<<i)):
		}
	}
	return false, errors.Wrapf(err, "after %d attempts", w.maxRetries)
}

// reclaimExpired deletes hold if, re-read under the event lock, it is still
// an expired hold. Anything else is left alone and reported as not reclaimed.
func (s *Service) reclaimExpired(ctx context.Context, hold domain.Booking, now time.Time) (bool, error) {
	reclaimed := false
	err := s.withEventLock(ctx, hold.EventID, func(ctx context.Context) error {
		current, err := s.store.FindBooking(ctx, hold.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !current.IsHold() || current.IsActiveHold(now) {
			return nil
		}
		if err := s.store.DeleteBooking(ctx, current.ID); err != nil {
			return errors.Wrap(err, "delete expired hold")
		}
		if err := s.store.Enqueue(ctx, domain.NewNotification(domain.ReservationExpired, *current, now)); err != nil {
			return err
		}
		reclaimed = true
		return nil
	})
	return reclaimed, err
}
