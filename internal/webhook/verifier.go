package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Razorpay-Signature"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingSecret    = errors.New("webhook secret unavailable")
)

// Envelope is the gateway's webhook body.
type Envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Refund struct {
			Entity gateway.RefundResponse `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type Verifier struct {
	secrets    interfaces.SecretsProvider
	secretName string
}

func NewVerifier(secrets interfaces.SecretsProvider, secretName string) *Verifier {
	return &Verifier{secrets: secrets, secretName: secretName}
}

// Verify checks the signature over the exact body bytes. The secret is fetched on
// every call so rotations take effect without a restart.
func (v *Verifier) Verify(ctx context.Context, signature string, body []byte) error {
	secret, err := v.secrets.GetSecret(ctx, v.secretName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSecret, err)
	}
	if secret == "" {
		return ErrMissingSecret
	}

	expected := Sign(secret, body)
	provided := strings.ToLower(strings.TrimSpace(signature))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Decode normalizes the gateway's empty-array sentinels and decodes the envelope.
func Decode(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(gateway.NormalizeBody(body), &env); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if env.Payload.Refund.Entity.ID == "" {
		return nil, errors.New("webhook payload has no refund entity")
	}
	return &env, nil
}
