package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/logger"
	"github.com/iliyamo/movie-reservation/internal/payment"
	"github.com/iliyamo/movie-reservation/internal/response"
)

// maxWebhookBody caps webhook payloads; gateway events are a few KB.
const maxWebhookBody = 64 << 10

// PaymentHandler serves /api/Payment and the gateway webhook.
type PaymentHandler struct {
	Payments *payment.Reconciler
	Timeout  time.Duration
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(r *payment.Reconciler, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{Payments: r, Timeout: timeout}
}

type createIntentReq struct {
	ReservationID uint64 `json:"reservationId" validate:"required,gt=0"`
}

// CreateIntent handles POST /api/Payment/CreatePaymentIntent.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	var req createIntentReq
	if err := bindValid(c, &req); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	res, err := h.Payments.CreateIntent(ctx, uid, req.ReservationID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Payment intent created successfully", res)
}

// Verify handles POST /api/Payment/VerifyPayment/:id.
func (h *PaymentHandler) Verify(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	id, err := pathID(c, "id", "Payment ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Payments.Verify(ctx, uid, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Payment status: "+string(p.Status), p)
}

// Get handles GET /api/Payment/:id.
func (h *PaymentHandler) Get(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	id, err := pathID(c, "id", "Payment ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Payments.Get(ctx, uid, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Payment retrieved successfully", p)
}

// Webhook handles POST /api/Webhook/stripe.  A bad signature is a 400;
// events that match nothing are acknowledged so the gateway stops
// retrying them.  Store failures return 500 to ask for redelivery.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	log := logger.From(c)
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return response.Error(c, apperr.Invalid("unreadable webhook body"))
	}
	if len(body) > maxWebhookBody {
		return response.Error(c, apperr.Invalid("webhook body too large"))
	}
	ev, err := h.Payments.ParseEvent(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Warn("webhook signature rejected", zap.Error(err))
			return response.Fail(c, http.StatusBadRequest, "invalid signature", nil)
		}
		log.Warn("webhook payload rejected", zap.Error(err))
		return response.Fail(c, http.StatusBadRequest, "invalid payload", nil)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Payments.HandleEvent(ctx, ev); err != nil {
		return response.Error(c, err)
	}
	log.Info("webhook processed", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
	return response.OK(c, http.StatusOK, "received", nil)
}
