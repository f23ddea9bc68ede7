package inventory

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/observability"
)

// Janitor drops the locks of events that no longer take reservations so the
// registry does not grow without bound.
type Janitor struct {
	svc    *Service
	logger observability.Logger
}

func NewJanitor(svc *Service, logger observability.Logger) *Janitor {
	return &Janitor{svc: svc, logger: logger}
}

func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.PruneOnce(ctx); n > 0 {
				j.logger.WithField("retired", n).Info("event locks retired")
			}
		}
	}
}

// PruneOnce retires the lock of every event that is gone or has started.
// Locks held at the time are kept for the next pass.
func (j *Janitor) PruneOnce(ctx context.Context) int {
	now := j.svc.clock.Now()
	retired := 0
	for _, id := range j.svc.locks.Keys() {
		event, err := j.svc.store.FindEvent(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			j.logger.WithError(err).WithField("event_id", id).Warn("janitor could not load event")
			continue
		case !event.HasStarted(now):
			continue
		}
		if j.svc.locks.Retire(id) {
			retired++
		}
	}
	observability.LockRegistrySize.Set(float64(j.svc.locks.Len()))
	return retired
}
