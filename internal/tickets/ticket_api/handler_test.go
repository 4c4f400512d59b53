package ticket_api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-ticketing/internal/config"
	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/sse"
	"pos-ticketing/internal/tickets/db"
	tickets "pos-ticketing/internal/tickets/service"
	"pos-ticketing/internal/tickets/ticket_api"
)

type memoryDB struct {
	tickets   map[string]*models.Ticket
	createErr error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{tickets: make(map[string]*models.Ticket)}
}

func (m *memoryDB) CreateTickets(_ context.Context, batch []models.Ticket) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, t := range batch {
		if _, exists := m.tickets[t.ID]; exists {
			continue
		}
		copied := t
		m.tickets[t.ID] = &copied
	}
	return nil
}

func (m *memoryDB) GetTicketByID(_ context.Context, id string) (*models.Ticket, error) {
	ticket, exists := m.tickets[id]
	if !exists {
		return nil, db.ErrTicketNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (m *memoryDB) Transition(_ context.Context, id, from, to string, usedAt *time.Time) (bool, error) {
	ticket, exists := m.tickets[id]
	if !exists || ticket.Status != from {
		return false, nil
	}
	ticket.Status = to
	if usedAt != nil {
		ticket.UsedAt = usedAt
	}
	return true, nil
}

func (m *memoryDB) DeleteAllTickets(_ context.Context) (int, error) {
	n := len(m.tickets)
	m.tickets = make(map[string]*models.Ticket)
	return n, nil
}

func (m *memoryDB) GetTotalTicketsCount(_ context.Context) (int, error) {
	return len(m.tickets), nil
}

func (m *memoryDB) GetDayStats(_ context.Context, date string) (*models.DayStats, error) {
	stats := &models.DayStats{Date: date}
	for _, t := range m.tickets {
		if t.Date == date {
			stats.Issued++
		}
	}
	return stats, nil
}

var frozenNow = func() time.Time {
	return time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC) // 10:30 IST
}

func setupRouter(store *memoryDB) *chi.Mux {
	venue := config.VenueConfig{ComboMultiplier: 6, CouponFaceValue: 100, Timezone: "Asia/Kolkata"}
	log := logger.NewConsoleLogger()
	service := tickets.NewTicketServiceWithClock(store, venue, log, frozenNow)
	emitter := sse.NewRedemptionEventEmitter()
	service.Emitter = emitter
	handler := ticket_api.NewHandler(service, emitter, log)

	r := chi.NewRouter()
	r.Route("/tickets", func(r chi.Router) {
		r.Post("/", handler.CreateTickets)
		r.Get("/stats", handler.Stats)
		r.Get("/{ticketID}", handler.GetTicket)
		r.Post("/{ticketID}/verify", handler.VerifyTicket)
		r.Delete("/clear-all", handler.ClearAll)
	})
	return r
}

func issuedToday(id string) models.Ticket {
	return models.Ticket{
		ID:          id,
		Amount:      150,
		Date:        "2025-03-14",
		Status:      models.StatusValid,
		PaymentMode: models.PaymentCash,
		CreatedBy:   "counter-1",
		CreatedAt:   frozenNow(),
	}
}

func TestPostSingleTicket(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)

	body, _ := json.Marshal(issuedToday("TXN-100"))
	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, store.tickets, 1)
}

func TestPostTicketArray(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)

	batch := []models.Ticket{issuedToday("TXN-101"), issuedToday("TXN-101-R1")}
	body, _ := json.Marshal(batch)
	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, store.tickets, 2)
}

func TestPostDuplicateBatchIs201(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)

	batch := []models.Ticket{issuedToday("TXN-102"), issuedToday("TXN-102-R1")}
	body, _ := json.Marshal(batch)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(string(body)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Len(t, store.tickets, 2)
}

func TestPostStoreOutageIs500(t *testing.T) {
	store := newMemoryDB()
	store.createErr = errors.New("pq: connection refused")
	router := setupRouter(store)

	body, _ := json.Marshal([]models.Ticket{issuedToday("TXN-120")})
	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// 4xx would make the POS sync loop discard the batch as malformed; a
	// persistence failure has to come back as a server error so the
	// terminal keeps it queued.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPostMalformedBatchIs400(t *testing.T) {
	router := setupRouter(newMemoryDB())

	noID := issuedToday("TXN-121")
	noID.ID = ""
	body, _ := json.Marshal([]models.Ticket{noID})
	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTicket(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)
	ticket := issuedToday("TXN-103")
	store.tickets[ticket.ID] = &ticket

	req := httptest.NewRequest(http.MethodGet, "/tickets/TXN-103", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "TXN-103", got.ID)
	assert.Equal(t, 150, got.Amount)
}

func TestGetTicketNotFound(t *testing.T) {
	router := setupRouter(newMemoryDB())

	req := httptest.NewRequest(http.MethodGet, "/tickets/TXN-missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyHappyPathThenConflict(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)
	ticket := issuedToday("TXN-104-R1")
	store.tickets[ticket.ID] = &ticket

	req := httptest.NewRequest(http.MethodPost, "/tickets/TXN-104-R1/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result models.VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.StatusUsed, result.Ticket.Status)

	// Second scan: 400 with the original usedAt for display.
	req = httptest.NewRequest(http.MethodPost, "/tickets/TXN-104-R1/verify", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var verr models.VerifyError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	assert.Equal(t, "ticket already used", verr.Message)
	assert.NotNil(t, verr.UsedAt)
}

func TestVerifyAcceptsQRJSONPayload(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)
	ticket := issuedToday("TXN-105-C1")
	store.tickets[ticket.ID] = &ticket

	payload := url.PathEscape(`{"id":"TXN-105-C1"}`)
	req := httptest.NewRequest(http.MethodPost, "/tickets/"+payload+"/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyExpired(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)
	ticket := issuedToday("TXN-106")
	ticket.Date = "2025-03-13"
	store.tickets[ticket.ID] = &ticket

	req := httptest.NewRequest(http.MethodPost, "/tickets/TXN-106/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var verr models.VerifyError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	assert.Equal(t, "ticket expired", verr.Message)
	assert.Equal(t, models.StatusInvalid, store.tickets["TXN-106"].Status)
}

func TestVerifyNotFound(t *testing.T) {
	router := setupRouter(newMemoryDB())

	req := httptest.NewRequest(http.MethodPost, "/tickets/TXN-nowhere/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearAll(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)
	ticket := issuedToday("TXN-107")
	store.tickets[ticket.ID] = &ticket

	req := httptest.NewRequest(http.MethodDelete, "/tickets/clear-all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.tickets)
}

func TestStats(t *testing.T) {
	store := newMemoryDB()
	router := setupRouter(store)
	ticket := issuedToday("TXN-108")
	store.tickets[ticket.ID] = &ticket

	req := httptest.NewRequest(http.MethodGet, "/tickets/stats?date=2025-03-14", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats models.DayStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Issued)
}
