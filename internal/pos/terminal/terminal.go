package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/pos/client"
	"pos-ticketing/internal/pos/queue"
	"pos-ticketing/internal/tickets/issuer"
	"pos-ticketing/internal/tickets/qr"
)

// StoreAPI is the slice of the central store the terminal talks to.
type StoreAPI interface {
	CreateTickets(ctx context.Context, batch []models.Ticket) error
	VerifyTicket(ctx context.Context, scanned string) (*models.VerifyResult, error)
}

// Syncer pushes a queued batch ahead of the regular flush cycle.
type Syncer interface {
	SyncOne(ctx context.Context, ticketID string) error
}

// Terminal is one POS station: it issues tickets, prints them, and keeps
// selling through network outages by spooling batches into the local
// queue.
type Terminal struct {
	Engine  *issuer.Engine
	Store   StoreAPI
	Queue   *queue.Queue
	Sync    Syncer
	Printer Printer
	Logger  *logger.Logger

	// syncTimeout bounds the background push after an offline scan.
	syncTimeout time.Duration
}

func New(engine *issuer.Engine, store StoreAPI, q *queue.Queue, syncer Syncer, printer Printer, log *logger.Logger) *Terminal {
	return &Terminal{
		Engine:      engine,
		Store:       store,
		Queue:       q,
		Sync:        syncer,
		Printer:     printer,
		Logger:      log,
		syncTimeout: 10 * time.Second,
	}
}

// Sell runs a sale end to end: issue, print, persist. Printing comes
// first and its failure is only logged; once a customer has paid they
// get tickets no matter what the printer or the network thinks. A
// failed store write spools the batch locally for the sync loop.
func (t *Terminal) Sell(ctx context.Context, cart []models.LineItem, sale issuer.IssueContext) (*issuer.Batch, error) {
	batch, err := t.Engine.Issue(cart, sale)
	if err != nil {
		return nil, err
	}

	if err := t.Printer.PrintBatch(batch); err != nil {
		t.Logger.LogTicket("PRINT", batch.Master.ID, fmt.Sprintf("Print failed: %v", err))
	}

	if err := t.Store.CreateTickets(ctx, batch.All()); err != nil {
		t.Logger.LogTicket("QUEUE", batch.Master.ID, fmt.Sprintf("Store unreachable, spooling locally: %v", err))
		if qerr := t.Queue.Enqueue(ctx, batch.All()); qerr != nil {
			// Both the store and the local disk failed. The sale already
			// happened, surface the loss loudly.
			t.Logger.LogTicket("QUEUE", batch.Master.ID, fmt.Sprintf("FAILED to spool batch: %v", qerr))
			return batch, fmt.Errorf("batch neither persisted nor queued: %w", qerr)
		}
		return batch, nil
	}

	if err := t.Queue.RecordSynced(ctx, batch.All()); err != nil {
		t.Logger.LogTicket("QUEUE", batch.Master.ID, fmt.Sprintf("Local echo failed: %v", err))
	}
	t.Logger.LogTicket("SELL", batch.Master.ID, fmt.Sprintf("%d ticket(s), total %d", len(batch.SubTickets), batch.Master.Amount))
	return batch, nil
}

// Reprint re-runs issuance for the same cart under a fresh transaction
// ID. The original tickets stay valid; reprinting never resends them.
func (t *Terminal) Reprint(ctx context.Context, cart []models.LineItem, sale issuer.IssueContext) (*issuer.Batch, error) {
	return t.Sell(ctx, cart, sale)
}

// Scan verifies a scanned QR payload against the store. When the store
// is unreachable or has not seen the ticket yet, a ticket found pending
// in the local queue is honored provisionally and pushed to the store
// in the background.
func (t *Terminal) Scan(ctx context.Context, payload string) (*models.VerifyResult, error) {
	id, err := qr.DecodePayload(payload)
	if err != nil {
		return nil, err
	}

	result, err := t.Store.VerifyTicket(ctx, id)
	if err == nil {
		return result, nil
	}

	var refused *client.VerifyRefused
	if errors.As(err, &refused) {
		// The store saw the ticket and said no. That answer is final.
		return nil, err
	}

	// Store unreachable or ticket not synced yet, try the local spool.
	ticket, unsynced, lerr := t.Queue.LookupTicket(ctx, id)
	if lerr != nil {
		if errors.Is(lerr, queue.ErrNotQueued) {
			return nil, err
		}
		return nil, lerr
	}

	if unsynced {
		t.Logger.LogTicket("VERIFY", id, "Honored offline, pushing batch to store")
		go t.pushBatch(id)
		return &models.VerifyResult{Ticket: ticket, Unsynced: true}, nil
	}

	// The batch was synced, so the store's answer (or its absence)
	// stands. Returning the original error avoids double redemption
	// through the local cache.
	return nil, err
}

func (t *Terminal) pushBatch(ticketID string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.syncTimeout)
	defer cancel()
	if err := t.Sync.SyncOne(ctx, ticketID); err != nil {
		t.Logger.LogSync("PUSH", fmt.Sprintf("Background push for %s failed: %v", ticketID, err))
	}
}

// PendingCount reports how many batches are waiting for the store.
func (t *Terminal) PendingCount(ctx context.Context) (int, error) {
	return t.Queue.PendingCount(ctx)
}
