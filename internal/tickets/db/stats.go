package db

import (
	"context"

	"pos-ticketing/internal/models"
)

// GetTotalTicketsCount returns the total count of tickets in the store.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Count(ctx)
}

// GetDayStats reports issuance and redemption totals for one venue-local
// calendar day. Gross counts master tickets only; sub-tickets are slices
// of revenue already counted on their master.
func (d *DB) GetDayStats(ctx context.Context, date string) (*models.DayStats, error) {
	stats := &models.DayStats{Date: date}

	issued, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("date = ?", date).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Issued = issued

	redeemed, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("date = ?", date).
		Where("status = ?", models.StatusUsed).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Redeemed = redeemed

	err = d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("date = ?", date).
		Where("parent_id IS NULL OR parent_id = ''").
		Scan(ctx, &stats.Gross)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
