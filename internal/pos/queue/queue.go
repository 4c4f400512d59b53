package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"pos-ticketing/internal/models"
)

// Batch states. A batch never regresses once synced.
const (
	StatePending = "pending_local"
	StateSynced  = "synced"
)

var ErrNotQueued = errors.New("ticket not in local queue")

// QueuedBatch is one issuance batch spooled on the terminal's local disk.
// The full batch (master plus sub-tickets) is kept as a JSON blob; the
// queue replays batches whole, never individual rows.
type QueuedBatch struct {
	bun.BaseModel `bun:"table:pending_batches"`

	ID       int64      `bun:"id,pk,autoincrement"`
	MasterID string     `bun:"master_id,notnull"`
	Payload  []byte     `bun:"payload,notnull"`
	State    string     `bun:"state,notnull"`
	QueuedAt time.Time  `bun:"queued_at,notnull"`
	SyncedAt *time.Time `bun:"synced_at,nullzero"`
}

// Tickets unmarshals the batch payload.
func (b *QueuedBatch) Tickets() ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := json.Unmarshal(b.Payload, &tickets); err != nil {
		return nil, fmt.Errorf("decode queued batch %d: %w", b.ID, err)
	}
	return tickets, nil
}

// Queue is the POS terminal's durable offline spool, a single SQLite file
// next to the terminal binary. It doubles as the local echo cache: batches
// that persisted fine are recorded as synced so a scan can fall back to
// them before the server has the data.
type Queue struct {
	Bun *bun.DB
}

// Open opens (or creates) the queue database at path and runs the
// idempotent schema init. ":memory:" works for tests.
func Open(path string) (*Queue, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	q := &Queue{Bun: bun.NewDB(sqldb, sqlitedialect.New())}
	if err := q.Init(context.Background()); err != nil {
		return nil, err
	}
	return q, nil
}

// Init creates the schema. Safe to call repeatedly; startup always calls
// it rather than guarding behind a seeded flag.
func (q *Queue) Init(ctx context.Context) error {
	_, err := q.Bun.NewCreateTable().
		Model((*QueuedBatch)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("init queue schema: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.Bun.Close()
}

func (q *Queue) insert(ctx context.Context, batch []models.Ticket, state string, syncedAt *time.Time) error {
	if len(batch) == 0 {
		return errors.New("empty batch")
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	row := QueuedBatch{
		MasterID: batch[0].ID,
		Payload:  payload,
		State:    state,
		QueuedAt: time.Now(),
		SyncedAt: syncedAt,
	}
	_, err = q.Bun.NewInsert().Model(&row).Exec(ctx)
	return err
}

// Enqueue spools a batch whose immediate persistence failed.
func (q *Queue) Enqueue(ctx context.Context, batch []models.Ticket) error {
	return q.insert(ctx, batch, StatePending, nil)
}

// RecordSynced stores a batch that already persisted, so the echo cache
// covers reprints and scan fallbacks for just-issued tickets too.
func (q *Queue) RecordSynced(ctx context.Context, batch []models.Ticket) error {
	now := time.Now()
	return q.insert(ctx, batch, StateSynced, &now)
}

// Pending returns the batches awaiting replay, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]QueuedBatch, error) {
	var batches []QueuedBatch
	err := q.Bun.NewSelect().
		Model(&batches).
		Where("state = ?", StatePending).
		Order("id ASC").
		Scan(ctx)
	return batches, err
}

// PendingCount is surfaced to the operator as the pending-sync counter.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.Bun.NewSelect().
		Model((*QueuedBatch)(nil)).
		Where("state = ?", StatePending).
		Count(ctx)
}

// MarkSynced flips a batch to synced after a confirmed success response.
// Synced is terminal; the guard on state keeps replays from regressing it.
func (q *Queue) MarkSynced(ctx context.Context, batchID int64) error {
	now := time.Now()
	_, err := q.Bun.NewUpdate().
		Model((*QueuedBatch)(nil)).
		Set("state = ?", StateSynced).
		Set("synced_at = ?", now).
		Where("id = ?", batchID).
		Where("state = ?", StatePending).
		Exec(ctx)
	return err
}

// Discard drops a batch the store rejected as malformed. A poison batch
// must not block every future sync; losing it is the accepted trade-off.
func (q *Queue) Discard(ctx context.Context, batchID int64) error {
	_, err := q.Bun.NewDelete().
		Model((*QueuedBatch)(nil)).
		Where("id = ?", batchID).
		Exec(ctx)
	return err
}

// LookupTicket searches the local echo for a ticket by ID. The second
// return reports whether the owning batch is still pending sync; callers
// mark such confirmations as provisional.
func (q *Queue) LookupTicket(ctx context.Context, ticketID string) (*models.Ticket, bool, error) {
	var batches []QueuedBatch
	err := q.Bun.NewSelect().
		Model(&batches).
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}

	for i := range batches {
		tickets, err := batches[i].Tickets()
		if err != nil {
			continue
		}
		for _, t := range tickets {
			if t.ID == ticketID {
				ticket := t
				return &ticket, batches[i].State == StatePending, nil
			}
		}
	}
	return nil, false, ErrNotQueued
}

// FindPendingByTicket returns the pending batch containing the given
// ticket, for targeted single-batch syncs.
func (q *Queue) FindPendingByTicket(ctx context.Context, ticketID string) (*QueuedBatch, error) {
	batches, err := q.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		tickets, err := batches[i].Tickets()
		if err != nil {
			continue
		}
		for _, t := range tickets {
			if t.ID == ticketID {
				return &batches[i], nil
			}
		}
	}
	return nil, ErrNotQueued
}

// Prune deletes synced echo entries older than the cutoff. Tickets expire
// by calendar day, so yesterday's echo is dead weight.
func (q *Queue) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := q.Bun.NewDelete().
		Model((*QueuedBatch)(nil)).
		Where("state = ?", StateSynced).
		Where("queued_at < ?", olderThan).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
