package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
)

// SignatureTolerance bounds the age of a signed webhook.
const SignatureTolerance = 5 * time.Minute

// Sign produces a signature header for payload, as the processor does.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(ts, payload, secret)
}

func computeSignature(ts string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header. Any v1 entry may match.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if secret == "" || header == "" {
		return domain.ErrInvalidSignature
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return domain.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return domain.ErrStaleWebhook
	}

	want := computeSignature(ts, payload, secret)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(want)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string `json:"id"`
			Object           string `json:"object"`
			PaymentIntent    string `json:"payment_intent"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies and decodes a processor webhook.
func (c *Client) ParseWebhook(payload []byte, header string, now time.Time) (*domain.Event, error) {
	if err := VerifySignature(payload, header, c.cfg.WebhookSecret, now); err != nil {
		return nil, err
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding webhook: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("decoding webhook: missing id or type")
	}

	ev := &domain.Event{ID: env.ID, Type: env.Type, Raw: payload}
	obj := env.Data.Object
	if obj.Object == "payment_intent" || obj.PaymentIntent == "" {
		ev.PaymentIntentID = obj.ID
	} else {
		ev.PaymentIntentID = obj.PaymentIntent
	}
	if obj.LastPaymentError != nil {
		ev.FailureMessage = obj.LastPaymentError.Message
	}
	return ev, nil
}
