package issuer

import (
	"errors"
	"fmt"
	"time"

	"pos-ticketing/internal/config"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/utils"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidLineItem = errors.New("line item has invalid quantity or price")
)

// IssueContext carries the sale metadata stamped onto every ticket in a
// batch.
type IssueContext struct {
	Mobile      string
	PaymentMode string
	Operator    string
}

// Batch is the output of one issuance: a master accounting record plus the
// individually scannable sub-tickets. Persistence is the caller's job.
type Batch struct {
	Master     models.Ticket   `json:"master"`
	SubTickets []models.Ticket `json:"subTickets"`
}

// All returns the master followed by the sub-tickets, the order they are
// persisted and printed in.
func (b *Batch) All() []models.Ticket {
	all := make([]models.Ticket, 0, len(b.SubTickets)+1)
	all = append(all, b.Master)
	all = append(all, b.SubTickets...)
	return all
}

// Engine turns a cart into tickets. Aside from ID and timestamp generation
// it is a pure function of its inputs, which is what makes reprinting safe:
// a reprint re-runs issuance under a fresh master ID instead of resending
// the original batch.
type Engine struct {
	venue config.VenueConfig
	loc   *time.Location

	newID func() string
	now   func() time.Time
}

func NewEngine(venue config.VenueConfig) *Engine {
	return &Engine{
		venue: venue,
		loc:   venue.Location(),
		newID: utils.GenerateTransactionID,
		now:   time.Now,
	}
}

// NewEngineWithClock creates an Engine with injected ID and clock sources.
// Primarily used for testing.
func NewEngineWithClock(venue config.VenueConfig, newID func() string, now func() time.Time) *Engine {
	e := NewEngine(venue)
	if newID != nil {
		e.newID = newID
	}
	if now != nil {
		e.now = now
	}
	return e
}

// Issue expands a cart into one master ticket and its sub-tickets. Combo
// lines fan out into quantity x ComboMultiplier coupons, each carrying the
// configured face value rather than a slice of the combo price: the combo
// price buys bulk entries at a discounted implied per-ride rate.
func (e *Engine) Issue(cart []models.LineItem, ctx IssueContext) (*Batch, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range cart {
		if line.Quantity < 1 || line.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidLineItem, line.ProductID)
		}
	}

	issuedAt := e.now()
	date := utils.CalendarDate(issuedAt, e.loc)
	masterID := e.newID()

	snapshot := make([]models.ItemSnapshot, 0, len(cart))
	for _, line := range cart {
		snapshot = append(snapshot, models.ItemSnapshot{
			ID:       line.ProductID,
			Name:     line.Name,
			Price:    line.UnitPrice,
			Quantity: line.Quantity,
		})
	}

	master := models.Ticket{
		ID:          masterID,
		Amount:      models.CartTotal(cart),
		Date:        date,
		Items:       snapshot,
		Status:      models.StatusValid,
		Mobile:      ctx.Mobile,
		PaymentMode: ctx.PaymentMode,
		CreatedBy:   ctx.Operator,
		CreatedAt:   issuedAt,
		IsCoupon:    false,
	}

	var subs []models.Ticket
	// The suffix counter is shared across the whole cart so sub-ticket IDs
	// within one master never collide no matter how many lines contributed.
	index := 0
	for _, line := range cart {
		if line.IsCombo {
			for i := 0; i < line.Quantity*e.venue.ComboMultiplier; i++ {
				index++
				subs = append(subs, e.subTicket(master, line,
					fmt.Sprintf("%s-C%d", masterID, index),
					e.venue.CouponFaceValue, true))
			}
		} else {
			for i := 0; i < line.Quantity; i++ {
				index++
				subs = append(subs, e.subTicket(master, line,
					fmt.Sprintf("%s-R%d", masterID, index),
					line.UnitPrice, false))
			}
		}
	}

	return &Batch{Master: master, SubTickets: subs}, nil
}

func (e *Engine) subTicket(master models.Ticket, line models.LineItem, id string, amount int, coupon bool) models.Ticket {
	return models.Ticket{
		ID:     id,
		Amount: amount,
		Date:   master.Date,
		Items: []models.ItemSnapshot{{
			ID:       line.ProductID,
			Name:     line.Name,
			Price:    amount,
			Quantity: 1,
		}},
		Status:      models.StatusValid,
		Mobile:      master.Mobile,
		PaymentMode: master.PaymentMode,
		CreatedBy:   master.CreatedBy,
		CreatedAt:   master.CreatedAt,
		ParentID:    master.ID,
		IsCoupon:    coupon,
	}
}
