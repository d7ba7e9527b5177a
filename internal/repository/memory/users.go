package memory

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// CreateUser stores u with a normalised email.
func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, dup := s.usersByEmail[u.Email]; dup {
		return repository.ErrEmailExists
	}
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	u.ID = s.nextID()
	u.IsActive = true
	u.CreatedAt, u.UpdatedAt = now(), now()
	cp := *u
	s.users[u.ID] = &cp
	s.usersByEmail[u.Email] = u.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = now()
	return nil
}

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tokens[tokenHash]; dup {
		return repository.ErrDuplicate
	}
	s.tokens[tokenHash] = &refreshToken{userID: userID, expiresAt: exp.UTC()}
	return nil
}

// ValidateRefresh returns the owner of a live token or ErrNotFound.
func (s *Store) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revokedAt != nil || now().After(t.expiresAt) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}

func (s *Store) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && t.revokedAt == nil {
		n := now()
		t.revokedAt = &n
	}
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := now()
	for _, t := range s.tokens {
		if t.userID == userID && t.revokedAt == nil {
			t.revokedAt = &n
		}
	}
	return nil
}

// PurgeExpired drops tokens that expired or were revoked before cutoff.
func (s *Store) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, t := range s.tokens {
		if t.expiresAt.Before(cutoff) || (t.revokedAt != nil && t.revokedAt.Before(cutoff)) {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}
