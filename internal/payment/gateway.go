// Package payment links reservations to payment gateway intents and
// reconciles asynchronous gateway outcomes back into the ledger.
package payment

import (
	"context"
	"errors"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// Gateway event types the reconciler acts on.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
	EventChargeRefunded  = "charge.refunded"
)

// ErrInvalidSignature is returned by ParseEvent when the payload was not
// signed with the configured webhook secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrIntentNotFound is returned by GetIntent for unknown intent ids.
var ErrIntentNotFound = errors.New("payment intent not found")

// IntentRequest describes a charge to set up.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway's view of a charge attempt.
type Intent struct {
	ID            string
	ClientSecret  string
	Status        model.PaymentStatus
	AmountCents   int64
	Currency      string
	FailureReason string
}

// Event is a verified webhook delivery.  IntentID is empty for event types
// that do not reference a payment intent.
type Event struct {
	ID            string
	Type          string
	IntentID      string
	FailureReason string
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// targetStatus maps an event type to the payment status it reports.
func targetStatus(eventType string) (model.PaymentStatus, bool) {
	switch eventType {
	case EventIntentSucceeded:
		return model.PaymentSucceeded, true
	case EventIntentFailed:
		return model.PaymentFailed, true
	case EventIntentCanceled:
		return model.PaymentCanceled, true
	case EventChargeRefunded:
		return model.PaymentRefunded, true
	}
	return "", false
}
