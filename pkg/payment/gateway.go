package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Event statuses reported by the gateway callback.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is one parsed gateway webhook notification.
type Event struct {
	PaymentID     uuid.UUID
	ProviderTxnID string
	Status        string
	Raw           []byte
}

// Gateway abstracts the payment provider's webhook wire format.
type Gateway interface {
	// VerifySignature checks the webhook signature header against the
	// raw request body.
	VerifySignature(payload []byte, signature string) bool
	// ParseEvent decodes the raw body into an Event.
	ParseEvent(payload []byte) (*Event, error)
}

// HMACGateway verifies "sha256=<hex>" signatures computed over the raw
// body with a shared secret, the scheme the platform gateway uses.
type HMACGateway struct {
	secret []byte
}

// NewHMACGateway creates a gateway verifier with the shared secret.
func NewHMACGateway(secret string) *HMACGateway {
	return &HMACGateway{secret: []byte(secret)}
}

func (g *HMACGateway) VerifySignature(payload []byte, signature string) bool {
	parts := strings.Split(signature, "=")
	if len(parts) != 2 || parts[0] != "sha256" {
		return false
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(parts[1]), []byte(expected))
}

func (g *HMACGateway) ParseEvent(payload []byte) (*Event, error) {
	var body struct {
		PaymentID     string `json:"payment_id"`
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}

	paymentID, err := uuid.Parse(body.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment_id %q: %w", body.PaymentID, err)
	}

	status := strings.ToLower(strings.TrimSpace(body.Status))
	switch status {
	case StatusSuccess, StatusFailed:
	default:
		return nil, fmt.Errorf("unknown webhook status %q", body.Status)
	}

	return &Event{
		PaymentID:     paymentID,
		ProviderTxnID: body.TransactionID,
		Status:        status,
		Raw:           payload,
	}, nil
}
