package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/pos/client"
	"pos-ticketing/internal/pos/queue"
)

// mockStore mimics the central store's idempotent bulk insert: a replayed
// ticket ID is accepted without creating a second row.
type mockStore struct {
	mu       sync.Mutex
	tickets  map[string]models.Ticket
	failNext error
	calls    int
}

func newMockStore() *mockStore {
	return &mockStore{tickets: make(map[string]models.Ticket)}
}

func (s *mockStore) CreateTickets(_ context.Context, batch []models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	for _, t := range batch {
		if _, exists := s.tickets[t.ID]; !exists {
			s.tickets[t.ID] = t
		}
	}
	return nil
}

func (s *mockStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

func testQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, q.Init(context.Background()))
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func sampleBatch(masterID string) []models.Ticket {
	return []models.Ticket{
		{ID: masterID, Amount: 300, Status: models.StatusValid},
		{ID: masterID + "-R1", Amount: 150, Status: models.StatusValid, ParentID: masterID},
		{ID: masterID + "-R2", Amount: 150, Status: models.StatusValid, ParentID: masterID},
	}
}

func TestFlushReplaysPendingBatches(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)
	store := newMockStore()
	m := NewManager(q, store, logger.NewConsoleLogger())

	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-100-000001")))
	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-101-000002")))

	synced, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 6, store.count())

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFlushReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)
	store := newMockStore()
	m := NewManager(q, store, logger.NewConsoleLogger())

	batch := sampleBatch("TXN-102-000003")
	require.NoError(t, q.Enqueue(ctx, batch))

	// First attempt hits a dead link, the batch must survive.
	store.failNext = errors.New("dial tcp: connection refused")
	_, err := m.Flush(ctx)
	assert.Error(t, err)
	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Replay twice, store count must not grow beyond the batch size.
	_, err = m.Flush(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, batch)) // duplicate enqueue, e.g. crash before MarkSynced
	_, err = m.Flush(ctx)
	require.NoError(t, err)

	assert.Equal(t, len(batch), store.count())
}

func TestFlushDiscardsRejectedBatch(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)
	store := newMockStore()
	m := NewManager(q, store, logger.NewConsoleLogger())

	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-103-000004")))
	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-104-000005")))

	// First batch is poison, the second must still go through.
	store.failNext = client.ErrRejected
	synced, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "rejected batch should be discarded, not retried")
}

func TestFlushStopsOnNetworkError(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)
	store := newMockStore()
	m := NewManager(q, store, logger.NewConsoleLogger())

	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-105-000006")))
	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-106-000007")))

	store.failNext = errors.New("i/o timeout")
	synced, err := m.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, synced)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "both batches retained for retry")
	assert.Equal(t, 1, store.calls, "flush stops at first network failure")
}

func TestFlushRetainsBatchDuringStoreOutage(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)

	// Store is up but its database is not: every insert comes back as a
	// server error. The batch must survive for a later flush, only a 4xx
	// may discard it.
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	m := NewManager(q, client.New(srv.URL, time.Second), logger.NewConsoleLogger())
	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-110-000011")))

	status = http.StatusInternalServerError
	synced, err := m.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, synced)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "batch lost on transient store failure")

	// Outage over, the retained batch drains.
	status = http.StatusCreated
	synced, err = m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}

func TestSyncOnePushesSingleBatch(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)
	store := newMockStore()
	m := NewManager(q, store, logger.NewConsoleLogger())

	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-107-000008")))
	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-108-000009")))

	require.NoError(t, m.SyncOne(ctx, "TXN-107-000008-R1"))

	assert.Equal(t, 3, store.count())
	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSyncOneUnknownTicket(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)
	m := NewManager(q, newMockStore(), logger.NewConsoleLogger())

	err := m.SyncOne(ctx, "TXN-999-404404")
	assert.ErrorIs(t, err, queue.ErrNotQueued)
}

func TestWatchFlushesOnOnlineSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := testQueue(t)
	store := newMockStore()
	m := NewManager(q, store, logger.NewConsoleLogger())

	require.NoError(t, q.Enqueue(ctx, sampleBatch("TXN-109-000010")))

	online := make(chan bool)
	done := make(chan struct{})
	go func() {
		m.Watch(ctx, online)
		close(done)
	}()

	online <- false // going offline is not a flush trigger
	online <- true

	deadline := time.After(2 * time.Second)
	for {
		n, err := q.PendingCount(ctx)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue not drained after online signal")
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Equal(t, 3, store.count())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on context cancel")
	}
}
