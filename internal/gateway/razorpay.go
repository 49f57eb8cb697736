package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adspace-booking/pkg/apperror"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// orderAPI and paymentAPI are the parts of the razorpay client we use.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	FetchMultipleRefund(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Razorpay struct {
	orders   orderAPI
	payments paymentAPI
	timeout  time.Duration
	log      *zap.Logger
}

func NewRazorpay(keyID, keySecret string, timeout time.Duration, log *zap.Logger) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpay(client.Order, client.Payment, timeout, log)
}

func newRazorpay(orders orderAPI, payments paymentAPI, timeout time.Duration, log *zap.Logger) *Razorpay {
	return &Razorpay{
		orders:   orders,
		payments: payments,
		timeout:  timeout,
		log:      log.With(zap.String("gateway", "razorpay")),
	}
}

func (g *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	data := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := call(ctx, g.timeout, "create order", func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		g.log.Error("Failed to create order", zap.Error(err), zap.String("receipt", receipt))
		return nil, err
	}

	id := stringField(body, "id")
	if id == "" {
		g.log.Error("Order response without id", zap.String("receipt", receipt))
		return nil, apperror.PaymentGateway(fmt.Errorf("receipt %s: %w", receipt, errMissingID), "create order")
	}

	return &Order{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (g *Razorpay) Refund(ctx context.Context, gatewayPaymentID string, amount int64, receipt string, notes map[string]string) (*Refund, error) {
	data := map[string]interface{}{
		"receipt": receipt,
		"speed":   "normal",
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := call(ctx, g.timeout, "refund", func() (map[string]interface{}, error) {
		return g.payments.Refund(gatewayPaymentID, int(amount), data, nil)
	})
	if err != nil {
		g.log.Error("Failed to refund payment", zap.Error(err), zap.String("gateway_payment_id", gatewayPaymentID))
		return nil, err
	}

	refund := refundFromMap(body)
	if refund.ID == "" {
		return nil, apperror.PaymentGateway(fmt.Errorf("payment %s: %w", gatewayPaymentID, errMissingID), "refund")
	}
	if refund.PaymentID == "" {
		refund.PaymentID = gatewayPaymentID
	}
	return refund, nil
}

func (g *Razorpay) FindRefundByReceipt(ctx context.Context, gatewayPaymentID, receipt string) (*Refund, error) {
	body, err := call(ctx, g.timeout, "fetch refunds", func() (map[string]interface{}, error) {
		return g.payments.FetchMultipleRefund(gatewayPaymentID, map[string]interface{}{"count": 100}, nil)
	})
	if err != nil {
		g.log.Warn("Failed to fetch refunds", zap.Error(err), zap.String("gateway_payment_id", gatewayPaymentID))
		return nil, err
	}

	items, _ := body["items"].([]interface{})
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if stringField(m, "receipt") == receipt {
			return refundFromMap(m), nil
		}
	}
	return nil, nil
}

var errMissingID = errors.New("gateway response has no id")

func refundFromMap(m map[string]interface{}) *Refund {
	return &Refund{
		ID:        stringField(m, "id"),
		PaymentID: stringField(m, "payment_id"),
		Amount:    int64Field(m, "amount"),
		Status:    stringField(m, "status"),
		Receipt:   stringField(m, "receipt"),
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// JSON numbers decode as float64.
func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
