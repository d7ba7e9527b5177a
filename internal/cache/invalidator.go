package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// invalidateTimeout bounds each invalidation so a slow cache cannot hold up
// the request that triggered it.
const invalidateTimeout = 2 * time.Second

// Invalidator evicts derived entries after ledger or catalog mutations.
// Failures are logged and swallowed: a stale entry expires by TTL and
// never affects seat decisions.
type Invalidator struct {
	cache Cache
	log   *zap.Logger
}

// NewInvalidator returns an Invalidator.  A nil cache makes every call a
// no-op.
func NewInvalidator(c Cache, log *zap.Logger) *Invalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invalidator{cache: c, log: log}
}

// Patterns deletes every key matching each pattern.
func (i *Invalidator) Patterns(ctx context.Context, patterns ...string) {
	if i == nil || i.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	for _, p := range patterns {
		if err := i.cache.DeleteByPattern(ctx, p); err != nil {
			i.log.Warn("cache invalidation failed", zap.String("pattern", p), zap.Error(err))
		}
	}
}

// Keys deletes exact keys.
func (i *Invalidator) Keys(ctx context.Context, keys ...string) {
	if i == nil || i.cache == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := i.cache.Delete(ctx, keys...); err != nil {
		i.log.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// SeatsChanged evicts everything derived from a showtime's occupancy.  It
// bumps the seat map generation first so that a reader still holding a
// pre-mutation ledger read writes it under a retired key.
func (i *Invalidator) SeatsChanged(ctx context.Context, showtimeID uint64) {
	if i == nil || i.cache == nil {
		return
	}
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	err := i.cache.Set(gctx, SeatMapGenKey(showtimeID), uuid.NewString(), SeatMapGenTTL)
	cancel()
	if err != nil {
		i.log.Warn("seat map generation bump failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
	}
	i.Keys(ctx, SeatMapKey(showtimeID))
	i.Patterns(ctx, ShowtimesPattern)
}

// CatalogChanged evicts listings after a catalog write.
func (i *Invalidator) CatalogChanged(ctx context.Context) {
	i.Patterns(ctx, ShowtimesPattern, MoviesPattern)
}
