package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/movie-reservation/internal/queue"
	"github.com/iliyamo/movie-reservation/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"money": formatMoney,
}).ParseFS(templateFS, "templates/*.html"))

// qrContentID names the inline ticket QR image referenced by the success
// template.
const qrContentID = "ticket_qr"

// MailConfig holds SMTP settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends notifications as HTML email over SMTP.
type Mailer struct {
	from string
	log  *zap.Logger
	send func(m *gomail.Message) error
}

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg MailConfig, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{
		from: cfg.From,
		log:  log,
		send: func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// Notify renders n and sends it to n.Email.
func (m *Mailer) Notify(ctx context.Context, n queue.PaymentNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Email) == "" {
		return fmt.Errorf("notification %s for payment %d has no recipient", n.Kind, n.PaymentID)
	}
	msg, err := m.compose(n)
	if err != nil {
		return err
	}
	if err := m.send(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.log.Info("payment email sent", zap.String("kind", string(n.Kind)), zap.String("to", n.Email))
	return nil
}

// compose builds the message for n.
func (m *Mailer) compose(n queue.PaymentNotification) (*gomail.Message, error) {
	var name, subject string
	switch n.Kind {
	case queue.KindPaymentSucceeded:
		name = "succeeded.html"
		subject = fmt.Sprintf("Your ticket for %s - reservation #%d", n.MovieTitle, n.ReservationID)
	case queue.KindPaymentFailed:
		name = "failed.html"
		subject = fmt.Sprintf("Payment failed - reservation #%d", n.ReservationID)
	case queue.KindPaymentRefunded:
		name = "refunded.html"
		subject = fmt.Sprintf("Refund issued - reservation #%d", n.ReservationID)
	default:
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, n); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if n.Kind == queue.KindPaymentSucceeded {
		qr, err := utils.GenerateQRCode(TicketPayload(n.ReservationID, n.SecretCode), 256)
		if err != nil {
			// The code is in the body as text, so the mail is still useful.
			m.log.Warn("ticket qr generation failed", zap.Uint64("reservation_id", n.ReservationID), zap.Error(err))
			return msg, nil
		}
		msg.Embed(qrContentID+".png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qr)
			return err
		}), gomail.SetHeader(map[string][]string{
			"Content-Type":        {"image/png"},
			"Content-ID":          {"<" + qrContentID + ">"},
			"Content-Disposition": {"inline"},
		}))
	}
	return msg, nil
}

// TicketPayload is the text encoded in the ticket QR code.  Staff scan it
// and call the verify endpoint with both parts.
func TicketPayload(reservationID uint64, secretCode string) string {
	return fmt.Sprintf("RES-%d:%s", reservationID, secretCode)
}

func formatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
