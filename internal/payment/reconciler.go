package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/notify"
	"github.com/iliyamo/movie-reservation/internal/queue"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// DefaultCurrency is used when none is configured.
const DefaultCurrency = "usd"

// unknownFailure is recorded when the gateway gives no reason.
const unknownFailure = "Unknown error"

// maxTransitionAttempts bounds compare-and-set retries against a payment
// that keeps changing underneath us.
const maxTransitionAttempts = 3

// IntentResult is returned to the client after creating an intent.
type IntentResult struct {
	PaymentID    uint64              `json:"payment_id"`
	IntentID     string              `json:"intent_id"`
	ClientSecret string              `json:"client_secret"`
	AmountCents  int64               `json:"amount_cents"`
	Currency     string              `json:"currency"`
	Status       model.PaymentStatus `json:"status"`
}

// Reconciler owns the payment side of a reservation.  Webhook deliveries
// are at-least-once and may arrive out of order, so every status change is
// a compare-and-set guarded by PaymentStatus.CanTransition; re-delivering
// an event that was already applied changes nothing and notifies no one.
type Reconciler struct {
	gateway  Gateway
	payments repository.PaymentStore
	ledger   repository.ReservationLedger
	users    repository.UserStore
	notifier notify.Notifier
	currency string
	log      *zap.Logger
	now      func() time.Time
}

// NewReconciler wires a Reconciler.  A nil notifier disables notifications.
func NewReconciler(g Gateway, payments repository.PaymentStore, ledger repository.ReservationLedger, users repository.UserStore, n notify.Notifier, currency string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Reconciler{
		gateway:  g,
		payments: payments,
		ledger:   ledger,
		users:    users,
		notifier: n,
		currency: currency,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func gatewayFailure(err error) error {
	return apperr.Wrap(apperr.GatewayFailure, err, "payment processing failed: %s", err.Error())
}

// CreateIntent starts a payment for the caller's reservation.  The amount
// is the showtime price at this moment.
func (r *Reconciler) CreateIntent(ctx context.Context, userID, reservationID uint64) (*IntentResult, error) {
	if reservationID == 0 {
		return nil, apperr.Invalid("Reservation ID must be a positive integer")
	}
	det, err := r.ledger.GetReservationDetail(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Reservation with ID %d does not exist.", reservationID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if det.UserID != userID {
		return nil, apperr.New(apperr.Unauthorized, "You are not authorized to pay for this reservation.")
	}
	if det.IsPaid {
		return nil, apperr.New(apperr.Conflict, "Reservation %d is already paid.", reservationID)
	}

	intent, err := r.gateway.CreateIntent(ctx, IntentRequest{
		AmountCents: det.PriceCents,
		Currency:    r.currency,
		Description: fmt.Sprintf("%s, seat %d", det.MovieTitle, det.SeatNumber),
		Metadata: map[string]string{
			"reservation_id": strconv.FormatUint(reservationID, 10),
			"user_id":        strconv.FormatUint(userID, 10),
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		r.log.Error("create payment intent failed", zap.Uint64("reservation_id", reservationID), zap.Error(err))
		return nil, gatewayFailure(err)
	}

	p := &model.Payment{
		ReservationID: reservationID,
		UserID:        userID,
		AmountCents:   det.PriceCents,
		Currency:      r.currency,
		IntentID:      intent.ID,
		Status:        intent.Status,
		CreatedAt:     r.now(),
	}
	switch err := r.payments.CreatePayment(ctx, p); {
	case errors.Is(err, repository.ErrNotFound):
		// Cancelled while the gateway call was in flight.
		return nil, apperr.Missing("Reservation with ID %d does not exist.", reservationID)
	case err != nil:
		return nil, apperr.Internal(err)
	}
	r.log.Info("payment intent created",
		zap.Uint64("payment_id", p.ID), zap.Uint64("reservation_id", reservationID),
		zap.String("intent_id", intent.ID), zap.Int64("amount_cents", p.AmountCents))

	return &IntentResult{
		PaymentID:    p.ID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  p.AmountCents,
		Currency:     p.Currency,
		Status:       p.Status,
	}, nil
}

// ParseEvent verifies and decodes a webhook delivery.
func (r *Reconciler) ParseEvent(payload []byte, signature string) (*Event, error) {
	return r.gateway.ParseEvent(payload, signature)
}

// HandleEvent applies a verified gateway event.  Unknown event types and
// events for intents this service never created are logged and ignored so
// the gateway stops retrying them.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *Event) error {
	to, ok := targetStatus(ev.Type)
	if !ok {
		r.log.Info("ignoring gateway event", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return nil
	}
	if ev.IntentID == "" {
		r.log.Warn("gateway event without intent", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return nil
	}
	p, err := r.payments.GetPaymentByIntent(ctx, ev.IntentID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warn("gateway event for unknown intent", zap.String("event_id", ev.ID), zap.String("intent_id", ev.IntentID))
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	updated, applied, err := r.apply(ctx, p, to, ev.FailureReason)
	if err != nil {
		return apperr.Internal(err)
	}
	if !applied {
		r.log.Info("gateway event already reflected",
			zap.String("event_id", ev.ID), zap.Uint64("payment_id", p.ID),
			zap.String("status", string(updated.Status)), zap.String("event_status", string(to)))
	}
	return nil
}

// Get returns payment id to its owner.
func (r *Reconciler) Get(ctx context.Context, userID, paymentID uint64) (*model.Payment, error) {
	if paymentID == 0 {
		return nil, apperr.Invalid("Payment ID must be a positive integer")
	}
	p, err := r.payments.GetPayment(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Payment with ID %d does not exist.", paymentID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p.UserID != userID {
		return nil, apperr.New(apperr.Unauthorized, "You are not authorized to access this payment.")
	}
	return p, nil
}

// Verify pulls the intent from the gateway and writes back whatever the
// webhook may have missed.  The same transition rules apply, so a refunded
// payment stays refunded whatever the gateway reports.
func (r *Reconciler) Verify(ctx context.Context, userID, paymentID uint64) (*model.Payment, error) {
	p, err := r.Get(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	intent, err := r.gateway.GetIntent(ctx, p.IntentID)
	if err != nil {
		r.log.Error("fetch payment intent failed", zap.Uint64("payment_id", p.ID), zap.String("intent_id", p.IntentID), zap.Error(err))
		return nil, gatewayFailure(err)
	}
	updated, _, err := r.apply(ctx, p, intent.Status, intent.FailureReason)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updated, nil
}

// apply moves p to status to if that is still a legal step, retrying the
// compare-and-set when another writer got there first.  It reports whether
// this call performed the transition.
func (r *Reconciler) apply(ctx context.Context, p *model.Payment, to model.PaymentStatus, reason string) (*model.Payment, bool, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if !p.Status.CanTransition(to) {
			return p, false, nil
		}
		from := p.Status
		ok, err := r.payments.TransitionPayment(ctx, p.ID, from, r.change(to, reason))
		if err != nil {
			return nil, false, err
		}
		cur, err := r.payments.GetPayment(ctx, p.ID)
		if err != nil {
			return nil, false, err
		}
		if ok {
			r.log.Info("payment status changed",
				zap.Uint64("payment_id", p.ID), zap.Uint64("reservation_id", p.ReservationID),
				zap.String("from", string(from)), zap.String("to", string(to)))
			r.notify(ctx, cur)
			return cur, true, nil
		}
		p = cur
	}
	return p, false, nil
}

// change describes the columns written when entering status to.
func (r *Reconciler) change(to model.PaymentStatus, reason string) repository.PaymentChange {
	ch := repository.PaymentChange{To: to}
	now := r.now()
	switch to {
	case model.PaymentSucceeded:
		ch.PaidAt = &now
		ch.SyncPaid = true
	case model.PaymentRefunded:
		ch.RefundedAt = &now
		ch.SyncPaid = true
	case model.PaymentFailed:
		if strings.TrimSpace(reason) == "" {
			reason = unknownFailure
		}
		ch.FailureReason = &reason
	}
	return ch
}

// notify tells the customer about a settled outcome.  Every failure here is
// logged and dropped.
func (r *Reconciler) notify(ctx context.Context, p *model.Payment) {
	if r.notifier == nil {
		return
	}
	var kind queue.Kind
	switch p.Status {
	case model.PaymentSucceeded:
		kind = queue.KindPaymentSucceeded
	case model.PaymentFailed:
		kind = queue.KindPaymentFailed
	case model.PaymentRefunded:
		kind = queue.KindPaymentRefunded
	default:
		return
	}
	n := queue.PaymentNotification{
		Kind:          kind,
		PaymentID:     p.ID,
		ReservationID: p.ReservationID,
		UserID:        p.UserID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		FailureReason: p.FailureReason,
		OccurredAt:    r.now(),
	}
	u, err := r.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		r.log.Warn("notification skipped: user lookup failed", zap.Uint64("payment_id", p.ID), zap.Error(err))
		return
	}
	n.Email = u.Email
	if det, err := r.ledger.GetReservationDetail(ctx, p.ReservationID); err == nil {
		n.SecretCode = det.SecretCode
		n.SeatNumber = det.SeatNumber
		n.MovieTitle = det.MovieTitle
		n.TheaterName = det.TheaterName
		n.StartsAt = det.StartsAt
	} else {
		r.log.Warn("notification without reservation detail", zap.Uint64("reservation_id", p.ReservationID), zap.Error(err))
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.log.Warn("payment notification failed", zap.Uint64("payment_id", p.ID), zap.Error(err))
	}
}
