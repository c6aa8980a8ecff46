// Package payment adapts the Razorpay API to the operations the order
// workflow needs: creating a gateway order, checking the checkout signature
// and refunding a captured payment.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

var (
	ErrNotConfigured = apperr.New(apperr.Upstream, "payment gateway is not configured")
	ErrGateway       = apperr.New(apperr.Upstream, "payment gateway request failed")
)

// GatewayOrder is the processor's own transaction record.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"keyId"`
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type Gateway interface {
	// CreateOrder registers amount (in minor units) with the processor.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
	// Refund returns amount (minor units, 0 for the full payment).
	Refund(ctx context.Context, paymentID string, amount int64, reason string) (*Refund, error)
}

// Sign computes the checkout signature HMAC-SHA256(orderID|paymentID) as a
// hex string.
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret, gatewayOrderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
