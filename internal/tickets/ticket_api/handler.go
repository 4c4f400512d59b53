package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/sse"
	"pos-ticketing/internal/tickets/qr"
	tickets "pos-ticketing/internal/tickets/service"
	"pos-ticketing/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Emitter       *sse.RedemptionEventEmitter
	Logger        *logger.Logger
}

func NewHandler(service *tickets.TicketService, emitter *sse.RedemptionEventEmitter, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: service,
		Emitter:       emitter,
		Logger:        log,
	}
}

// CreateTickets accepts either a single ticket object or an array. POS
// terminals post whole issuance batches here, including offline replays;
// duplicate IDs count as already synced and still get a 201.
func (h *Handler) CreateTickets(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var batch []models.Ticket
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &batch); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid ticket array", err)
			return
		}
	} else {
		var single models.Ticket
		if err := json.Unmarshal(raw, &single); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid ticket object", err)
			return
		}
		batch = []models.Ticket{single}
	}

	// Status classification matters to the POS sync loop: 4xx tells it
	// the batch is malformed and gets discarded, 5xx keeps it queued for
	// retry. A store outage must never surface as 4xx.
	if err := h.TicketService.Record(r.Context(), batch); err != nil {
		if errors.Is(err, tickets.ErrInvalidBatch) {
			h.writeError(w, http.StatusBadRequest, "failed to record tickets", err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to record tickets", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse(
		fmt.Sprintf("recorded %d tickets", len(batch)), nil))
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")

	ticket, err := h.TicketService.Get(r.Context(), id)
	if errors.Is(err, tickets.ErrTicketNotFound) {
		h.writeError(w, http.StatusNotFound, "ticket not found", err)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "lookup failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, ticket)
}

// VerifyTicket runs the redemption state machine. The path segment is
// whatever the scanner read: a raw ticket ID or the JSON-wrapped QR
// payload, both are accepted.
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	scanned := chi.URLParam(r, "ticketID")
	id, err := qr.DecodePayload(scanned)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unreadable QR payload", err)
		return
	}

	ticket, err := h.TicketService.Verify(r.Context(), id)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, models.VerifyResult{Ticket: ticket})
	case errors.Is(err, tickets.ErrTicketNotFound):
		h.writeJSON(w, http.StatusNotFound, models.VerifyError{Message: "ticket not found"})
	case errors.Is(err, tickets.ErrAlreadyUsed):
		h.writeJSON(w, http.StatusBadRequest, models.VerifyError{
			Message: "ticket already used",
			Ticket:  ticket,
			UsedAt:  ticket.UsedAt,
		})
	case errors.Is(err, tickets.ErrExpired):
		h.writeJSON(w, http.StatusBadRequest, models.VerifyError{
			Message: "ticket expired",
			Ticket:  ticket,
		})
	case errors.Is(err, tickets.ErrTicketInvalid):
		h.writeJSON(w, http.StatusBadRequest, models.VerifyError{
			Message: "ticket invalid",
			Ticket:  ticket,
		})
	default:
		h.writeError(w, http.StatusInternalServerError, "verification failed", err)
	}
}

// ClearAll wipes the ticket store. Mounted behind the admin middleware.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.TicketService.ClearAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "clear failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(
		fmt.Sprintf("deleted %d tickets", deleted), map[string]int{"deleted": deleted}))
}

// Stats reports per-day issuance/redemption totals. ?date=YYYY-MM-DD,
// defaulting to the venue-local today.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.TicketService.Stats(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "stats query failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Events streams redemption results to dashboard clients over SSE.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.Emitter.Subscribe(r.Context())
	for ticket := range events {
		data, err := json.Marshal(ticket)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: redemption\ndata: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
	}
	h.writeJSON(w, status, utils.ErrorResponse(message, detail))
}
