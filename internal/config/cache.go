package config

import "time"

// CacheConfig controls the read-side cache.  When Enabled is false, or
// Redis is unreachable and FallbackMemory is false, listings and seat maps
// are always read from the store.
type CacheConfig struct {
	Enabled        bool
	FallbackMemory bool          // use an in-process cache when Redis is down
	Prefix         string        // namespace for every Redis key
	ListTTL        time.Duration // showtime and movie listing pages
	SeatMapTTL     time.Duration // booked-seat lists
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled:        envBool("CACHE_ENABLED", true),
		FallbackMemory: envBool("CACHE_FALLBACK_MEMORY", true),
		Prefix:         envStr("CACHE_PREFIX", "movie"),
		ListTTL:        envDur("CACHE_LIST_TTL", 5*time.Minute),
		SeatMapTTL:     envDur("CACHE_SEATMAP_TTL", 30*time.Second),
	}
	if c.ListTTL <= 0 {
		c.ListTTL = 5 * time.Minute
	}
	if c.SeatMapTTL <= 0 {
		c.SeatMapTTL = 30 * time.Second
	}
	return c
}
