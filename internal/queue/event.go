// Package queue carries payment notifications over RabbitMQ so that mail
// delivery happens outside the webhook request.
package queue

import "time"

// NotificationQueue is the durable queue payment notifications travel on.
const NotificationQueue = "payment.notifications"

// Kind names the payment outcome a notification reports.
type Kind string

const (
	KindPaymentSucceeded Kind = "payment.succeeded"
	KindPaymentFailed    Kind = "payment.failed"
	KindPaymentRefunded  Kind = "payment.refunded"
)

// PaymentNotification is published once per applied payment transition.  It
// contains enough information for the mailer to render a message without
// querying the primary database.
type PaymentNotification struct {
	Kind          Kind      `json:"kind"`
	Email         string    `json:"email"`
	PaymentID     uint64    `json:"payment_id"`
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	SecretCode    string    `json:"secret_code,omitempty"`
	SeatNumber    int       `json:"seat_number"`
	MovieTitle    string    `json:"movie_title"`
	TheaterName   string    `json:"theater_name"`
	StartsAt      time.Time `json:"starts_at"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
