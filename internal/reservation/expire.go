package reservation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
)

// ExpireUnpaid releases unpaid holds created more than olderThan ago and
// returns how many were released.  The listing only nominates candidates:
// the ledger re-checks each one while deleting it, so a hold that gained a
// pending or succeeded payment in the meantime is left alone.
func (s *Service) ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	stale, err := s.ledger.ListUnpaidBefore(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, apperr.Internal(err)
	}
	released := 0
	for _, r := range stale {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		ok, err := s.ledger.ReleaseUnpaid(ctx, r.ID)
		if err != nil {
			s.log.Warn("hold expiry: release failed", zap.Uint64("reservation_id", r.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		s.inv.SeatsChanged(ctx, r.ShowtimeID)
		released++
	}
	if released > 0 {
		s.log.Info("expired unpaid holds", zap.Int("released", released))
	}
	return released, nil
}
