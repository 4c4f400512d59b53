package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/pos/client"
	"pos-ticketing/internal/pos/queue"
)

// StoreClient is the slice of the store API the sync loop needs.
type StoreClient interface {
	CreateTickets(ctx context.Context, batch []models.Ticket) error
}

// Manager drains the offline queue into the central store. Flushes are
// single-flight: a flush triggered while another is running is a no-op,
// the running one will pick up anything enqueued meanwhile.
type Manager struct {
	Queue  *queue.Queue
	Store  StoreClient
	Logger *logger.Logger

	// RetainSynced controls how long synced batches stay around as a
	// local lookup cache before Prune removes them.
	RetainSynced time.Duration

	flushing int32
}

func NewManager(q *queue.Queue, store StoreClient, log *logger.Logger) *Manager {
	return &Manager{
		Queue:        q,
		Store:        store,
		Logger:       log,
		RetainSynced: 7 * 24 * time.Hour,
	}
}

// Flush replays every pending batch against the store, oldest first.
// Returns the number of batches synced. Stops at the first network
// error: if the link is down there is no point hammering the rest.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	if !atomic.CompareAndSwapInt32(&m.flushing, 0, 1) {
		return 0, nil
	}
	defer atomic.StoreInt32(&m.flushing, 0)

	pending, err := m.Queue.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending batches: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	m.Logger.LogSync("FLUSH", fmt.Sprintf("Replaying %d pending batch(es)", len(pending)))

	synced := 0
	for _, batch := range pending {
		tickets, err := batch.Tickets()
		if err != nil {
			// Unreadable payload, nothing to replay.
			m.Logger.LogSync("DISCARD", fmt.Sprintf("Batch %d (%s): corrupt payload: %v", batch.ID, batch.MasterID, err))
			if derr := m.Queue.Discard(ctx, batch.ID); derr != nil {
				return synced, derr
			}
			continue
		}

		if err := m.Store.CreateTickets(ctx, tickets); err != nil {
			if errors.Is(err, client.ErrRejected) {
				// The store will never accept this batch. Drop it so it
				// cannot block everything behind it.
				m.Logger.LogSync("DISCARD", fmt.Sprintf("Batch %d (%s): rejected by store: %v", batch.ID, batch.MasterID, err))
				if derr := m.Queue.Discard(ctx, batch.ID); derr != nil {
					return synced, derr
				}
				continue
			}
			// Network or server trouble, keep the batch and retry later.
			m.Logger.LogSync("RETRY", fmt.Sprintf("Batch %d (%s): %v", batch.ID, batch.MasterID, err))
			return synced, err
		}

		if err := m.Queue.MarkSynced(ctx, batch.ID); err != nil {
			return synced, err
		}
		synced++
		m.Logger.LogSync("SYNCED", fmt.Sprintf("Batch %d (%s): %d ticket(s)", batch.ID, batch.MasterID, len(tickets)))
	}

	if _, err := m.Queue.Prune(ctx, time.Now().Add(-m.RetainSynced)); err != nil {
		m.Logger.LogSync("PRUNE", fmt.Sprintf("Prune failed: %v", err))
	}

	return synced, nil
}

// SyncOne pushes a single queued batch identified by one of its ticket
// IDs. Used after an offline scan so a provisionally honored ticket
// reaches the store ahead of the regular flush.
func (m *Manager) SyncOne(ctx context.Context, ticketID string) error {
	batch, err := m.Queue.FindPendingByTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	tickets, err := batch.Tickets()
	if err != nil {
		if derr := m.Queue.Discard(ctx, batch.ID); derr != nil {
			return derr
		}
		return fmt.Errorf("corrupt queued batch %d: %w", batch.ID, err)
	}
	if err := m.Store.CreateTickets(ctx, tickets); err != nil {
		if errors.Is(err, client.ErrRejected) {
			if derr := m.Queue.Discard(ctx, batch.ID); derr != nil {
				return derr
			}
		}
		return err
	}
	return m.Queue.MarkSynced(ctx, batch.ID)
}

// Watch flushes whenever the online signal fires with true, until ctx
// is cancelled. The channel carries network-status transitions from
// whatever connectivity probe the terminal runs.
func (m *Manager) Watch(ctx context.Context, online <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-online:
			if !ok {
				return
			}
			if !up {
				continue
			}
			if _, err := m.Flush(ctx); err != nil {
				m.Logger.LogSync("FLUSH", fmt.Sprintf("Flush aborted: %v", err))
			}
		}
	}
}
