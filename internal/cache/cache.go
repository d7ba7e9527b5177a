// Package cache holds derived read data (showtime listings, movie listings,
// seat maps) in Redis or, when Redis is unreachable, in process memory.
// Values are JSON encoded.  The cache is never authoritative: seat
// decisions always read the ledger.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a TTL key/value store with glob-pattern deletion.
type Cache interface {
	// Get decodes the value at key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching a glob such as "showtimes:*".
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Key patterns and builders.
const (
	ShowtimesPattern = "showtimes:*"
	MoviesPattern    = "movies:*"
)

// ShowtimePageKey is the key of one page of the unfiltered showtime list.
func ShowtimePageKey(page, size int) string {
	return fmt.Sprintf("showtimes:page:%d:size:%d", page, size)
}

// MoviePageKey is the key of one page of the unfiltered movie list.
func MoviePageKey(page, size int) string {
	return fmt.Sprintf("movies:page:%d:size:%d", page, size)
}

// SeatMapKey is the key of a showtime's booked-seat list before its first
// invalidation.
func SeatMapKey(showtimeID uint64) string {
	return fmt.Sprintf("seats:%d", showtimeID)
}

// SeatMapGenKey holds the current seat map generation of a showtime.  Every
// ledger mutation stores a fresh generation, so a seat map computed before
// the mutation lands under a key no reader looks up anymore.
func SeatMapGenKey(showtimeID uint64) string {
	return fmt.Sprintf("seatgen:%d", showtimeID)
}

// SeatMapGenTTL must outlive any seat map TTL: a generation that expires
// while an older entry is still live would expose it again.
const SeatMapGenTTL = 24 * time.Hour

// VersionedSeatMapKey is the seat map key for generation gen.
func VersionedSeatMapKey(showtimeID uint64, gen string) string {
	if gen == "" {
		return SeatMapKey(showtimeID)
	}
	return fmt.Sprintf("seats:%d:%s", showtimeID, gen)
}
