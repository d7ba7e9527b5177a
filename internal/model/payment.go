package model

import "time"

// PaymentStatus mirrors the gateway's view of a payment attempt.  Besides
// the four settled values below the gateway may report any number of
// in-flight states (requires_payment, requires_action, processing, ...);
// those are treated as pending.
type PaymentStatus string

const (
	PaymentRequiresPayment PaymentStatus = "requires_payment"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefunded        PaymentStatus = "refunded"
	PaymentCanceled        PaymentStatus = "canceled"
)

// Pending reports whether the status is an in-flight gateway state.
func (s PaymentStatus) Pending() bool {
	switch s {
	case PaymentSucceeded, PaymentFailed, PaymentRefunded, PaymentCanceled:
		return false
	}
	return true
}

// Live reports whether the attempt still holds a claim on its reservation:
// in flight or succeeded.
func (s PaymentStatus) Live() bool {
	return s.Pending() || s == PaymentSucceeded
}

// Terminal reports whether no further transition is accepted.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentRefunded || s == PaymentCanceled
}

// CanTransition reports whether moving from s to next is a legal step.
// Re-applying the current status is not a transition.  Refunded and
// canceled payments never change again, a succeeded payment can only be
// refunded, and a failed payment can still succeed or be canceled when the
// customer retries against the same intent.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	if s == next || s.Terminal() {
		return false
	}
	switch s {
	case PaymentSucceeded:
		return next == PaymentRefunded
	case PaymentFailed:
		return next == PaymentSucceeded || next == PaymentCanceled
	}
	return true
}

// Payment is one gateway attempt to pay for a reservation.
//
// Fields:
//
//	ID            – primary key identifier.
//	ReservationID – reservation being paid.
//	UserID        – user who started the attempt.
//	AmountCents   – amount captured from the showtime price at creation.
//	Currency      – ISO currency code, lower case.
//	IntentID      – external payment intent identifier (unique).
//	Status        – latest known gateway status.
//	FailureReason – gateway message for failed attempts.
type Payment struct {
	ID            uint64        `json:"payment_id"`
	ReservationID uint64        `json:"reservation_id"`
	UserID        uint64        `json:"-"`
	AmountCents   int64         `json:"amount_cents"`
	Currency      string        `json:"currency"`
	IntentID      string        `json:"intent_id"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	RefundedAt    *time.Time    `json:"refunded_at,omitempty"`
}

// IsPaid reports whether the attempt has succeeded.
func (p Payment) IsPaid() bool { return p.Status == PaymentSucceeded }
