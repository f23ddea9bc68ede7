package inventory

import (
	"context"
	"time"

	"github.com/robertarktes/ticket-inventory/internal/domain"
)

func (s *Service) ReclaimExpired(ctx context.Context, hold domain.Booking, now time.Time) (bool, error) {
	return s.reclaimExpired(ctx, hold, now)
}
