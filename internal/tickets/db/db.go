package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"pos-ticketing/internal/models"
)

// ErrTicketNotFound is returned when a lookup misses. Callers distinguish
// this from "invalid": the ticket may simply not have synced yet.
var ErrTicketNotFound = errors.New("ticket not found")

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// CreateTickets bulk-inserts a batch. Rows whose ID already exists are
// skipped rather than rejected: a replayed offline batch must count as
// already synced, never as a failure.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().
		Model(&tickets).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Transition performs the atomic compare-and-set on a ticket's status.
// It reports false when the ticket was not in the expected `from` status,
// which is how two concurrent scans of the same QR resolve to exactly one
// success.
func (d *DB) Transition(ctx context.Context, id, from, to string, usedAt *time.Time) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from)
	if usedAt != nil {
		q = q.Set("used_at = ?", *usedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// DeleteAllTickets wipes the store. Privileged administrative operation.
func (d *DB) DeleteAllTickets(ctx context.Context) (int, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("1 = 1").
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
