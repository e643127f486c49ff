package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	razorpay "github.com/razorpay/razorpay-go"
)

// GatewayOrder is the provider-side order record created before payment is
// collected.
type GatewayOrder struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
}

type Gateway struct {
	client    *razorpay.Client
	keySecret string
}

func New(keyID, keySecret string) *Gateway {
	return &Gateway{
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
	}
}

// CreateOrder creates a remote gateway order. Amount is in currency units;
// the gateway wants the smallest denomination.
func (g *Gateway) CreateOrder(amount float64, currency, receipt string) (*GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   int64(math.Round(amount * 100)),
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay: create order: missing id in response")
	}

	out := &GatewayOrder{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}
	if c, ok := body["currency"].(string); ok && c != "" {
		out.Currency = c
	}
	if r, ok := body["receipt"].(string); ok && r != "" {
		out.Receipt = r
	}
	return out, nil
}

// VerifySignature checks the HMAC-SHA256 of "orderID|paymentID" under the
// shared key secret against the signature supplied by the gateway callback.
func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, g.keySecret)
}

func VerifySignature(orderID, paymentID, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
