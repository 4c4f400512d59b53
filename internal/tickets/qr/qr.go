package qr

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"

	"pos-ticketing/internal/models"
)

var ErrEmptyPayload = errors.New("empty QR payload")

// Encode renders the printable QR image for one ticket. The payload is the
// JSON object {"id":"<ticket id>"}.
func Encode(ticketID string) ([]byte, error) {
	if ticketID == "" {
		return nil, ErrEmptyPayload
	}
	payload, err := json.Marshal(models.QRPayload{ID: ticketID})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(payload), qrcode.Medium, 256)
}

// DecodePayload extracts the ticket ID from a scanned payload. Scanners in
// the field submit either the JSON-wrapped form or the raw ID string, and
// both must verify.
func DecodePayload(scanned string) (string, error) {
	scanned = strings.TrimSpace(scanned)
	if scanned == "" {
		return "", ErrEmptyPayload
	}

	if strings.HasPrefix(scanned, "{") {
		var payload models.QRPayload
		if err := json.Unmarshal([]byte(scanned), &payload); err != nil {
			return "", err
		}
		if payload.ID == "" {
			return "", ErrEmptyPayload
		}
		return payload.ID, nil
	}

	return scanned, nil
}
