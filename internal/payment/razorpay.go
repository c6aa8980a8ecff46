package payment

import (
	"context"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

const defaultTimeout = 15 * time.Second

// razorpayAPI is the subset of the SDK client used here.
type razorpayAPI interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	RefundPayment(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error)
}

type sdkClient struct {
	client *razorpay.Client
}

func (c sdkClient) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return c.client.Order.Create(data, nil)
}

func (c sdkClient) RefundPayment(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error) {
	return c.client.Payment.Refund(paymentID, amount, data, nil)
}

// LateResultFunc receives an SDK response that arrived after the caller gave
// up waiting. The remote side effect may have happened.
type LateResultFunc func(op, ref string, body map[string]interface{}, err error)

type Razorpay struct {
	keyID     string
	keySecret string
	api       razorpayAPI
	timeout   time.Duration
	late      LateResultFunc
}

func logLateResult(op, ref string, body map[string]interface{}, err error) {
	if err != nil {
		log.Warn().Err(err).Str("op", op).Str("ref", ref).Msg("payment: razorpay call failed after timeout")
		return
	}
	log.Error().Str("op", op).Str("ref", ref).Str("gateway_id", stringField(body, "id")).
		Msg("payment: razorpay call completed after timeout, local state needs manual reconciliation")
}

// NewRazorpay returns a gateway backed by the Razorpay SDK. With empty
// credentials every remote call fails with ErrNotConfigured.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	r := &Razorpay{keyID: keyID, keySecret: keySecret, timeout: defaultTimeout, late: logLateResult}
	if keyID != "" && keySecret != "" {
		r.api = sdkClient{client: razorpay.NewClient(keyID, keySecret)}
	}
	return r
}

func (r *Razorpay) Configured() bool {
	return r.api != nil
}

// call runs a blocking SDK request, giving up when ctx is done. A response
// that arrives after that is handed to r.late.
func (r *Razorpay) call(ctx context.Context, op, ref string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}
	ch := make(chan result)
	go func() {
		body, err := fn()
		select {
		case ch <- result{body: body, err: err}:
		case <-ctx.Done():
			if r.late != nil {
				r.late(op, ref, body, err)
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.body, res.err
	}
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	if r.api == nil {
		return nil, ErrNotConfigured
	}

	body, err := r.call(ctx, "create_order", receipt, func() (map[string]interface{}, error) {
		return r.api.CreateOrder(map[string]interface{}{
			"amount":   amount,
			"currency": currency,
			"receipt":  receipt,
		})
	})
	if err != nil {
		log.Error().Err(err).Str("receipt", receipt).Int64("amount", amount).Msg("payment: razorpay order creation failed")
		return nil, apperr.Wrap(apperr.Upstream, ErrGateway.Message, err)
	}

	o := &GatewayOrder{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Status:   stringField(body, "status"),
		Receipt:  stringField(body, "receipt"),
		KeyID:    r.keyID,
	}
	if o.ID == "" {
		return nil, apperr.Wrap(apperr.Upstream, ErrGateway.Message, fmt.Errorf("razorpay response has no order id"))
	}
	return o, nil
}

func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return VerifySignature(r.keySecret, gatewayOrderID, paymentID, signature)
}

func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount int64, reason string) (*Refund, error) {
	if r.api == nil {
		return nil, ErrNotConfigured
	}

	body, err := r.call(ctx, "refund", paymentID, func() (map[string]interface{}, error) {
		return r.api.RefundPayment(paymentID, int(amount), map[string]interface{}{
			"notes": map[string]interface{}{"reason": reason},
		})
	})
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Msg("payment: razorpay refund failed")
		return nil, apperr.Wrap(apperr.Upstream, ErrGateway.Message, err)
	}

	return &Refund{
		ID:        stringField(body, "id"),
		PaymentID: paymentID,
		Amount:    intField(body, "amount"),
		Status:    stringField(body, "status"),
	}, nil
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

// intField handles the float64 that encoding/json produces for numbers.
func intField(body map[string]interface{}, key string) int64 {
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
