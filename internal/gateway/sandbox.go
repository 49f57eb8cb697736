package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process gateway for local runs without provider keys.
// Refunds are idempotent per receipt like the real provider.
type Sandbox struct {
	mu      sync.Mutex
	refunds map[string]*Refund // keyed by receipt
}

func NewSandbox() *Sandbox {
	return &Sandbox{refunds: make(map[string]*Refund)}
}

func (s *Sandbox) CreateOrder(_ context.Context, amount int64, currency, receipt string, _ map[string]string) (*Order, error) {
	return &Order{
		ID:       "order_" + shortID(),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (s *Sandbox) Refund(_ context.Context, gatewayPaymentID string, amount int64, receipt string, _ map[string]string) (*Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.refunds[receipt]; ok {
		c := *r
		return &c, nil
	}
	r := &Refund{
		ID:        "rfnd_" + shortID(),
		PaymentID: gatewayPaymentID,
		Amount:    amount,
		Status:    "processed",
		Receipt:   receipt,
	}
	s.refunds[receipt] = r
	c := *r
	return &c, nil
}

func (s *Sandbox) FindRefundByReceipt(_ context.Context, gatewayPaymentID, receipt string) (*Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refunds[receipt]
	if !ok || r.PaymentID != gatewayPaymentID {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
