package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// FakeGateway is an in-process Gateway for development and tests.  Intents
// start in requires_payment and only move when SetStatus is called; events
// are signed with HMAC-SHA256 over the raw payload.
type FakeGateway struct {
	secret []byte

	mu      sync.Mutex
	intents map[string]*Intent
	failure error
}

// NewFakeGateway returns a FakeGateway verifying events with secret.  A
// gateway built with an empty secret rejects every event.
func NewFakeGateway(secret string) *FakeGateway {
	return &FakeGateway{secret: []byte(secret), intents: map[string]*Intent{}}
}

// FailWith makes every gateway call return err until it is called with nil.
func (g *FakeGateway) FailWith(err error) {
	g.mu.Lock()
	g.failure = err
	g.mu.Unlock()
}

func (g *FakeGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failure != nil {
		return nil, g.failure
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Status:       model.PaymentRequiresPayment,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
	}
	g.intents[id] = in
	cp := *in
	return &cp, nil
}

func (g *FakeGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failure != nil {
		return nil, g.failure
	}
	in, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

// SetStatus moves intent id to status as if the customer or an operator
// had acted on it.
func (g *FakeGateway) SetStatus(id string, status model.PaymentStatus, failureReason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	in.Status = status
	in.FailureReason = failureReason
	return nil
}

// fakeEvent is the wire shape of a FakeGateway webhook.
type fakeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		IntentID      string `json:"intent_id"`
		FailureReason string `json:"failure_reason,omitempty"`
	} `json:"data"`
}

// EventPayload builds a webhook body for eventType about intentID.
func EventPayload(eventType, intentID, failureReason string) []byte {
	ev := fakeEvent{ID: "evt_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Type: eventType}
	ev.Data.IntentID = intentID
	ev.Data.FailureReason = failureReason
	b, _ := json.Marshal(ev)
	return b
}

// Sign returns the signature header value for payload.
func (g *FakeGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *FakeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if len(g.secret) == 0 {
		return nil, ErrInvalidSignature
	}
	want, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return nil, ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), want) {
		return nil, ErrInvalidSignature
	}
	var ev fakeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &Event{ID: ev.ID, Type: ev.Type, IntentID: ev.Data.IntentID, FailureReason: ev.Data.FailureReason}, nil
}
