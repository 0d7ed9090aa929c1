package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new notification.
const EnvelopeVersion = 1

// ErrEmptyEnvelope is returned when a stored envelope carries no notice body.
var ErrEmptyEnvelope = errors.New("envelope data is empty")

// PayloadEnvelope wraps every billing notice stored in outbox_events.payload. Source holds
// the Stripe event id that produced the notice.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     string          `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope encodes data and stamps a fresh envelope id.
func NewEnvelope(source string, data any, occurredAt time.Time) (PayloadEnvelope, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode notice: %w", err)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Source:     source,
		Data:       body,
	}, nil
}

// DecodeEnvelope parses a stored payload and rejects envelopes without a body.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	body := bytes.TrimSpace(env.Data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyEnvelope
	}
	return env, nil
}
