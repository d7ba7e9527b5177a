package notify

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/movie-reservation/internal/queue"
)

func sample(kind queue.Kind) queue.PaymentNotification {
	return queue.PaymentNotification{
		Kind:          kind,
		Email:         "ana@example.com",
		PaymentID:     5,
		ReservationID: 9,
		UserID:        2,
		SecretCode:    "AB12CD34",
		SeatNumber:    12,
		MovieTitle:    "Arrival",
		TheaterName:   "Hall 1",
		StartsAt:      time.Date(2026, 11, 1, 20, 0, 0, 0, time.UTC),
		AmountCents:   1250,
		Currency:      "usd",
		FailureReason: "card declined",
	}
}

func captureMailer() (*Mailer, *[]*gomail.Message) {
	var sent []*gomail.Message
	m := &Mailer{
		from: "tickets@example.com",
		log:  zap.NewNop(),
		send: func(msg *gomail.Message) error { sent = append(sent, msg); return nil },
	}
	return m, &sent
}

func render(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestMailerSucceededEmbedsTicket(t *testing.T) {
	m, sent := captureMailer()
	require.NoError(t, m.Notify(context.Background(), sample(queue.KindPaymentSucceeded)))
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.GetHeader("To"))
	assert.Contains(t, msg.GetHeader("Subject")[0], "Arrival")
	raw := render(t, msg)
	assert.Contains(t, raw, "AB12CD34")
	assert.Contains(t, raw, "12.50 USD")
	assert.Contains(t, raw, "Content-ID: <ticket_qr>")
}

func TestMailerFailedAndRefunded(t *testing.T) {
	m, sent := captureMailer()
	require.NoError(t, m.Notify(context.Background(), sample(queue.KindPaymentFailed)))
	require.NoError(t, m.Notify(context.Background(), sample(queue.KindPaymentRefunded)))
	require.Len(t, *sent, 2)

	failed := render(t, (*sent)[0])
	assert.Contains(t, failed, "card declined")
	assert.NotContains(t, failed, "ticket_qr")
	assert.Contains(t, (*sent)[1].GetHeader("Subject")[0], "Refund")
}

func TestMailerRejects(t *testing.T) {
	m, sent := captureMailer()
	n := sample(queue.KindPaymentSucceeded)
	n.Email = " "
	assert.Error(t, m.Notify(context.Background(), n))
	assert.Error(t, m.Notify(context.Background(), sample("payment.unknown")))
	assert.Empty(t, *sent)

	m.send = func(*gomail.Message) error { return errors.New("535 auth failed") }
	assert.ErrorContains(t, m.Notify(context.Background(), sample(queue.KindPaymentFailed)), "535")
}

func TestAsyncDeliversAndLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var calls atomic.Int32
	next := NotifierFunc(func(ctx context.Context, n queue.PaymentNotification) error {
		calls.Add(1)
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		if n.Kind == queue.KindPaymentFailed {
			return errors.New("boom")
		}
		return nil
	})
	a := NewAsync(next, time.Second, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Notify(ctx, sample(queue.KindPaymentSucceeded)))
	require.NoError(t, a.Notify(ctx, sample(queue.KindPaymentFailed)))
	cancel()
	a.Wait()

	assert.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "notification delivery failed", logs.All()[0].Message)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, LogNotifier{Log: zap.New(core)}.Notify(context.Background(), sample(queue.KindPaymentRefunded)))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "payment.refunded", logs.All()[0].ContextMap()["kind"])
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0.05 EUR", formatMoney(5, "eur"))
	assert.Equal(t, "-1.00 USD", formatMoney(-100, "usd"))
	assert.Equal(t, "RES-9:AB12CD34", TicketPayload(9, "AB12CD34"))
}
