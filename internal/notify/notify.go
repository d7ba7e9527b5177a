// Package notify delivers payment outcome notifications.  Delivery is
// strictly best effort: a failed notification is logged and never rolls
// back the payment transition that produced it.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/queue"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, n queue.PaymentNotification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n queue.PaymentNotification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n queue.PaymentNotification) error { return f(ctx, n) }

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	Log *zap.Logger
}

// Notify logs n at info level.
func (l LogNotifier) Notify(_ context.Context, n queue.PaymentNotification) error {
	log := l.Log
	if log == nil {
		log = zap.L()
	}
	log.Info("payment notification",
		zap.String("kind", string(n.Kind)),
		zap.String("email", n.Email),
		zap.Uint64("payment_id", n.PaymentID),
		zap.Uint64("reservation_id", n.ReservationID),
		zap.Int64("amount_cents", n.AmountCents),
		zap.String("currency", n.Currency),
		zap.String("failure_reason", n.FailureReason),
	)
	return nil
}

// QueueNotifier hands notifications to RabbitMQ for the consumer to mail.
type QueueNotifier struct {
	Publisher *queue.Publisher
}

// Notify publishes n.
func (q QueueNotifier) Notify(ctx context.Context, n queue.PaymentNotification) error {
	return q.Publisher.Publish(ctx, n)
}

// DefaultAsyncTimeout bounds each background delivery.
const DefaultAsyncTimeout = 30 * time.Second

// Async runs the wrapped notifier on its own goroutine so callers return
// immediately.  Errors are logged.  Wait blocks until in-flight deliveries
// finish, which lets shutdown drain them.
type Async struct {
	next    Notifier
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next.  A non-positive timeout selects DefaultAsyncTimeout.
func NewAsync(next Notifier, timeout time.Duration, log *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{next: next, log: log, timeout: timeout}
}

// Notify schedules delivery of n and always returns nil.
func (a *Async) Notify(ctx context.Context, n queue.PaymentNotification) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, n); err != nil {
			a.log.Warn("notification delivery failed",
				zap.String("kind", string(n.Kind)),
				zap.Uint64("payment_id", n.PaymentID),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery has returned.
func (a *Async) Wait() { a.wg.Wait() }
