package tickets

import "errors"

var (
	// ErrInvalidBatch marks a malformed issuance batch (empty, or a
	// ticket without an ID). Unlike persistence failures this is not
	// retryable: replaying the same batch can never succeed.
	ErrInvalidBatch = errors.New("invalid ticket batch")

	// ErrTicketNotFound means the ID was never persisted here, possibly
	// because an offline batch has not synced yet. Scanning stations fall
	// back to their local echo cache before declaring the ticket invalid.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrAlreadyUsed is returned on a second redemption attempt. The
	// ticket payload returned alongside carries the original usedAt.
	ErrAlreadyUsed = errors.New("ticket already used")

	// ErrExpired is returned when the ticket's issuance date is not the
	// current venue-local calendar day.
	ErrExpired = errors.New("ticket expired")

	// ErrTicketInvalid is returned for tickets already expired by a prior
	// check.
	ErrTicketInvalid = errors.New("ticket invalid")
)
