// Package memory is an in-process implementation of every repository
// contract.  It backs STORAGE_DRIVER=memory and the service tests.
//
// Seat occupancy is split across shards selected by hashing the
// (showtime, seat) pair.  A shard's mutex serialises the check-and-write
// for every pair it owns, so unrelated seats are reserved in parallel while
// two requests for the same seat are strictly ordered.  Row maps live under
// a single RWMutex that is always acquired after any shard lock.
package memory

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

const shardCount = 64

type seatKey struct {
	showtime uint64
	seat     int
}

type shard struct {
	mu   sync.Mutex
	held map[seatKey]uint64 // seat -> reservation id
}

type refreshToken struct {
	userID    uint64
	expiresAt time.Time
	revokedAt *time.Time
}

// Store keeps all data in maps.  The zero value is not usable; call New.
type Store struct {
	shards [shardCount]shard

	mu               sync.RWMutex
	seq              uint64
	users            map[uint64]*model.User
	usersByEmail     map[string]uint64
	tokens           map[string]*refreshToken
	theaters         map[uint64]*model.Theater
	categories       map[uint64]*model.Category
	movies           map[uint64]*model.Movie
	showtimes        map[uint64]*model.Showtime
	reservations     map[uint64]*model.Reservation
	payments         map[uint64]*model.Payment
	paymentsByIntent map[string]uint64
}

var (
	_ repository.ReservationLedger = (*Store)(nil)
	_ repository.PaymentStore      = (*Store)(nil)
	_ repository.ShowtimeStore     = (*Store)(nil)
	_ repository.MovieStore        = (*Store)(nil)
	_ repository.TheaterStore      = (*Store)(nil)
	_ repository.UserStore         = (*Store)(nil)
	_ repository.TokenStore        = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	s := &Store{
		users:            map[uint64]*model.User{},
		usersByEmail:     map[string]uint64{},
		tokens:           map[string]*refreshToken{},
		theaters:         map[uint64]*model.Theater{},
		categories:       map[uint64]*model.Category{},
		movies:           map[uint64]*model.Movie{},
		showtimes:        map[uint64]*model.Showtime{},
		reservations:     map[uint64]*model.Reservation{},
		payments:         map[uint64]*model.Payment{},
		paymentsByIntent: map[string]uint64{},
	}
	for i := range s.shards {
		s.shards[i].held = map[seatKey]uint64{}
	}
	return s
}

// nextID must be called with mu held for writing.
func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func shardIndex(k seatKey) int {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], k.showtime)
	binary.LittleEndian.PutUint64(b[8:], uint64(k.seat))
	return int(xxhash.Sum64(b[:]) % shardCount)
}

func (s *Store) shardFor(k seatKey) *shard { return &s.shards[shardIndex(k)] }

// lockPair locks the shards owning a and b in index order and returns the
// matching unlock.
func (s *Store) lockPair(a, b seatKey) func() {
	i, j := shardIndex(a), shardIndex(b)
	if i == j {
		s.shards[i].mu.Lock()
		return s.shards[i].mu.Unlock
	}
	if i > j {
		i, j = j, i
	}
	s.shards[i].mu.Lock()
	s.shards[j].mu.Lock()
	return func() {
		s.shards[j].mu.Unlock()
		s.shards[i].mu.Unlock()
	}
}

// lockAll takes every shard lock in order; used by bulk deletes.
func (s *Store) lockAll() func() {
	for i := range s.shards {
		s.shards[i].mu.Lock()
	}
	return func() {
		for i := len(s.shards) - 1; i >= 0; i-- {
			s.shards[i].mu.Unlock()
		}
	}
}

func now() time.Time { return time.Now().UTC() }

func paginate[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return append([]T{}, items[start:end]...)
}
