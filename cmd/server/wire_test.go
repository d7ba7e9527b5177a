package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/config"
	"github.com/iliyamo/movie-reservation/internal/payment"
)

func TestNewGatewayFakeRequiresSecret(t *testing.T) {
	_, err := newGateway(config.PaymentConfig{Gateway: config.GatewayFake}, zap.NewNop())
	assert.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")

	gw, err := newGateway(config.PaymentConfig{Gateway: config.GatewayFake, StripeWebhookSecret: "whsec_dev"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &payment.FakeGateway{}, gw)

	_, err = newGateway(config.PaymentConfig{Gateway: "paypal"}, zap.NewNop())
	assert.Error(t, err)
}
