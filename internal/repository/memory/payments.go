package memory

import (
	"context"
	"sort"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// CreatePayment stores p.  Intent ids are unique and the reservation must
// exist.
func (s *Store) CreatePayment(_ context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[p.ReservationID]; !ok {
		return repository.ErrNotFound
	}
	if _, dup := s.paymentsByIntent[p.IntentID]; dup {
		return repository.ErrDuplicate
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	p.ID = s.nextID()
	cp := *p
	s.payments[p.ID] = &cp
	s.paymentsByIntent[p.IntentID] = p.ID
	return nil
}

func (s *Store) GetPayment(_ context.Context, id uint64) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetPaymentByIntent(_ context.Context, intentID string) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.paymentsByIntent[intentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.payments[id]
	return &cp, nil
}

func (s *Store) ListPaymentsByReservation(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Payment
	for _, p := range s.payments {
		if p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TransitionPayment applies ch only while the payment is still in status
// from.  The reservation flag changes under the same lock.
func (s *Store) TransitionPayment(_ context.Context, id uint64, from model.PaymentStatus, ch repository.PaymentChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = ch.To
	if ch.PaidAt != nil {
		t := *ch.PaidAt
		p.PaidAt = &t
	}
	if ch.RefundedAt != nil {
		t := *ch.RefundedAt
		p.RefundedAt = &t
	}
	if ch.FailureReason != nil {
		p.FailureReason = *ch.FailureReason
	}
	if ch.SyncPaid {
		if r, ok := s.reservations[p.ReservationID]; ok {
			r.IsPaid = s.anyPaymentLocked(r.ID, func(st model.PaymentStatus) bool { return st == model.PaymentSucceeded })
		}
	}
	return true, nil
}

// anyPaymentLocked reports whether a payment of reservation id matches.
// The caller holds mu.
func (s *Store) anyPaymentLocked(id uint64, match func(model.PaymentStatus) bool) bool {
	for _, p := range s.payments {
		if p.ReservationID == id && match(p.Status) {
			return true
		}
	}
	return false
}
