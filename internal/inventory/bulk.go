package inventory

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const bulkConcurrency = 8

type ReserveRequest struct {
	EventID     uuid.UUID `json:"event_id"`
	TicketCount int       `json:"ticket_count"`
}

// BulkResult carries either the hold or the reason it was refused.
type BulkResult struct {
	Request     ReserveRequest
	Reservation *ReservationView
	Err         error
}

// BulkReserve places one hold per request. Each request takes its own event
// lock, so a refusal never affects the others. Results keep request order.
func (s *Service) BulkReserve(ctx context.Context, userID uuid.UUID, reqs []ReserveRequest) []BulkResult {
	results := make([]BulkResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			view, err := s.Reserve(ctx, userID, req.EventID, req.TicketCount)
			results[i] = BulkResult{Request: req, Err: err}
			if err != nil {
				s.logger.WithError(err).WithField("event_id", req.EventID).Warn("bulk reservation item refused")
				return nil
			}
			results[i].Reservation = &view
			return nil
		})
	}
	_ = g.Wait()

	return results
}
