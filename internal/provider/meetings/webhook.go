package meetings

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
)

const signatureTolerance = 5 * time.Minute

// Challenge answers the provider's endpoint validation request.
type Challenge struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// Webhook is a decoded notification. Exactly one of Challenge and Event is set.
type Webhook struct {
	Challenge *Challenge
	Event     *domain.Event
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		PlainToken string `json:"plainToken"`
		Object     struct {
			ID json.Number `json:"id"`
		} `json:"object"`
	} `json:"payload"`
}

func hmacHex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign builds the x-zm-signature value for body sent at timestamp.
func Sign(body []byte, timestamp, secret string) string {
	return "v0=" + hmacHex(secret, "v0:"+timestamp+":"+string(body))
}

// VerifySignature checks the x-zm-signature header of a webhook.
func VerifySignature(body []byte, signature, timestamp, secret string, now time.Time) error {
	if secret == "" || signature == "" || timestamp == "" {
		return domain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if age := now.Sub(time.Unix(unix, 0)); age > signatureTolerance || age < -signatureTolerance {
		return domain.ErrInvalidSignature
	}
	if !hmac.Equal([]byte(signature), []byte(Sign(body, timestamp, secret))) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// ParseWebhook decodes a provider notification. Endpoint validation requests
// are answered without a signature; every other event must be signed.
func (c *Client) ParseWebhook(body []byte, signature, timestamp string, now time.Time) (*Webhook, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding webhook: %w", err)
	}

	if env.Event == domain.EventURLValidation {
		plain := strings.TrimSpace(env.Payload.PlainToken)
		if plain == "" || c.cfg.WebhookSecret == "" {
			return nil, domain.ErrInvalidSignature
		}
		return &Webhook{Challenge: &Challenge{
			PlainToken:     plain,
			EncryptedToken: hmacHex(c.cfg.WebhookSecret, plain),
		}}, nil
	}

	if err := VerifySignature(body, signature, timestamp, c.cfg.WebhookSecret, now); err != nil {
		return nil, err
	}
	return &Webhook{Event: &domain.Event{
		Type:      env.Event,
		MeetingID: env.Payload.Object.ID.String(),
	}}, nil
}
