package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket statuses. Transitions are monotonic: valid is the only state a
// ticket can leave, used and invalid are terminal.
const (
	StatusValid   = "valid"
	StatusUsed    = "used"
	StatusInvalid = "invalid"
)

// Payment modes accepted at the counter.
const (
	PaymentCash = "cash"
	PaymentUPI  = "upi"
)

// ItemSnapshot is a line item frozen into the ticket record at issuance
// time. It is a denormalized copy, never a live catalog reference.
type ItemSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

// Ticket is the central entity: one master accounting record per sale plus
// N individually scannable sub-tickets, all stored in the same table.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID          string         `bun:"id,pk" json:"id"`
	Amount      int            `bun:"amount,notnull" json:"amount"`
	Date        string         `bun:"date,notnull" json:"date"`
	Items       []ItemSnapshot `bun:"items,type:jsonb" json:"items"`
	Status      string         `bun:"status,notnull" json:"status"`
	Mobile      string         `bun:"mobile" json:"mobile,omitempty"`
	PaymentMode string         `bun:"payment_mode" json:"paymentMode"`
	CreatedBy   string         `bun:"created_by" json:"createdBy"`
	CreatedAt   time.Time      `bun:"created_at,notnull" json:"createdAt"`
	UsedAt      *time.Time     `bun:"used_at,nullzero" json:"usedAt,omitempty"`
	ParentID    string         `bun:"parent_id" json:"parentId,omitempty"`
	IsCoupon    bool           `bun:"is_coupon" json:"isCoupon"`
}
