package models

import "time"

// QRPayload is the JSON object encoded into a printed ticket's QR code.
// Scanners may also submit the bare ticket ID string.
type QRPayload struct {
	ID string `json:"id"`
}

// VerifyResult is returned to the scanning station after a redemption
// attempt. Unsynced marks a provisional confirmation served from the
// terminal's local echo cache while the batch is still pending sync.
type VerifyResult struct {
	Ticket   *Ticket `json:"ticket"`
	Unsynced bool    `json:"unsynced,omitempty"`
}

// VerifyError is the 400-class response body for used/expired/invalid
// tickets: the reason plus the ticket for operator display.
type VerifyError struct {
	Message string     `json:"message"`
	Ticket  *Ticket    `json:"ticket,omitempty"`
	UsedAt  *time.Time `json:"usedAt,omitempty"`
}

// DayStats is one row of the per-day issuance/redemption report.
type DayStats struct {
	Date     string `json:"date"`
	Issued   int    `json:"issued"`
	Redeemed int    `json:"redeemed"`
	Gross    int    `json:"gross"`
}
