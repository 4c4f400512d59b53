package issuer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pos-ticketing/internal/config"
	"pos-ticketing/internal/models"
)

func testVenue() config.VenueConfig {
	return config.VenueConfig{
		ComboMultiplier: 6,
		CouponFaceValue: 100,
		Timezone:        "Asia/Kolkata",
	}
}

func testEngine() *Engine {
	counter := 0
	newID := func() string {
		counter++
		return fmt.Sprintf("TXN-1700000000-%06d", counter)
	}
	now := func() time.Time {
		return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	}
	return NewEngineWithClock(testVenue(), newID, now)
}

func TestIssueRegularLine(t *testing.T) {
	engine := testEngine()

	cart := []models.LineItem{
		{ProductID: "7", Name: "Giant Wheel", UnitPrice: 150, Quantity: 2},
	}
	batch, err := engine.Issue(cart, IssueContext{
		Mobile:      "9876543210",
		PaymentMode: models.PaymentCash,
		Operator:    "counter-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, 300, batch.Master.Amount)
	assert.False(t, batch.Master.IsCoupon)
	assert.Len(t, batch.SubTickets, 2)

	assert.Equal(t, batch.Master.ID+"-R1", batch.SubTickets[0].ID)
	assert.Equal(t, batch.Master.ID+"-R2", batch.SubTickets[1].ID)
	for _, sub := range batch.SubTickets {
		assert.Equal(t, 150, sub.Amount)
		assert.False(t, sub.IsCoupon)
		assert.Equal(t, batch.Master.ID, sub.ParentID)
	}
}

func TestIssueComboLine(t *testing.T) {
	engine := testEngine()

	cart := []models.LineItem{
		{ProductID: "19", Name: "6-Ride Combo", UnitPrice: 500, Quantity: 1, IsCombo: true},
	}
	batch, err := engine.Issue(cart, IssueContext{PaymentMode: models.PaymentUPI, Operator: "counter-2"})

	assert.NoError(t, err)
	// Master carries the combo's purchase price, not the sum of the coupon
	// face values.
	assert.Equal(t, 500, batch.Master.Amount)
	assert.Len(t, batch.SubTickets, 6)
	for i, sub := range batch.SubTickets {
		assert.Equal(t, fmt.Sprintf("%s-C%d", batch.Master.ID, i+1), sub.ID)
		assert.Equal(t, 100, sub.Amount)
		assert.True(t, sub.IsCoupon)
	}
}

func TestIssueComboQuantityFanOut(t *testing.T) {
	engine := testEngine()

	cart := []models.LineItem{
		{ProductID: "19", Name: "6-Ride Combo", UnitPrice: 500, Quantity: 3, IsCombo: true},
	}
	batch, err := engine.Issue(cart, IssueContext{PaymentMode: models.PaymentCash})

	assert.NoError(t, err)
	assert.Equal(t, 1500, batch.Master.Amount)
	assert.Len(t, batch.SubTickets, 18)
}

func TestIssueMixedCartSharedIndex(t *testing.T) {
	engine := testEngine()

	cart := []models.LineItem{
		{ProductID: "7", Name: "Giant Wheel", UnitPrice: 150, Quantity: 2},
		{ProductID: "19", Name: "6-Ride Combo", UnitPrice: 500, Quantity: 1, IsCombo: true},
		{ProductID: "3", Name: "Bumper Cars", UnitPrice: 80, Quantity: 1},
	}
	batch, err := engine.Issue(cart, IssueContext{PaymentMode: models.PaymentCash})

	assert.NoError(t, err)
	assert.Equal(t, 2*150+500+80, batch.Master.Amount)
	assert.Len(t, batch.SubTickets, 2+6+1)

	// The running index never resets between lines, so every ID is distinct.
	seen := map[string]bool{}
	for _, sub := range batch.SubTickets {
		assert.False(t, seen[sub.ID], "duplicate sub-ticket id %s", sub.ID)
		seen[sub.ID] = true
	}
	assert.Equal(t, batch.Master.ID+"-R1", batch.SubTickets[0].ID)
	assert.Equal(t, batch.Master.ID+"-C3", batch.SubTickets[2].ID)
	assert.Equal(t, batch.Master.ID+"-R9", batch.SubTickets[8].ID)
}

func TestIssueInheritsContext(t *testing.T) {
	engine := testEngine()

	cart := []models.LineItem{
		{ProductID: "7", Name: "Giant Wheel", UnitPrice: 150, Quantity: 1},
	}
	batch, err := engine.Issue(cart, IssueContext{
		Mobile:      "9000000001",
		PaymentMode: models.PaymentUPI,
		Operator:    "counter-3",
	})

	assert.NoError(t, err)
	for _, ticket := range batch.All() {
		assert.Equal(t, "9000000001", ticket.Mobile)
		assert.Equal(t, models.PaymentUPI, ticket.PaymentMode)
		assert.Equal(t, "counter-3", ticket.CreatedBy)
		assert.Equal(t, batch.Master.CreatedAt, ticket.CreatedAt)
		assert.Equal(t, models.StatusValid, ticket.Status)
	}
}

func TestIssueVenueLocalDate(t *testing.T) {
	// 22:30 UTC is already the next calendar day in Asia/Kolkata.
	now := func() time.Time {
		return time.Date(2025, 3, 14, 22, 30, 0, 0, time.UTC)
	}
	engine := NewEngineWithClock(testVenue(), nil, now)

	cart := []models.LineItem{
		{ProductID: "7", Name: "Giant Wheel", UnitPrice: 150, Quantity: 1},
	}
	batch, err := engine.Issue(cart, IssueContext{PaymentMode: models.PaymentCash})

	assert.NoError(t, err)
	assert.Equal(t, "2025-03-15", batch.Master.Date)
}

func TestIssueRejectsEmptyCart(t *testing.T) {
	engine := testEngine()

	_, err := engine.Issue(nil, IssueContext{PaymentMode: models.PaymentCash})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestIssueRejectsBadLineItems(t *testing.T) {
	engine := testEngine()

	_, err := engine.Issue([]models.LineItem{
		{ProductID: "7", UnitPrice: 150, Quantity: 0},
	}, IssueContext{})
	assert.ErrorIs(t, err, ErrInvalidLineItem)

	_, err = engine.Issue([]models.LineItem{
		{ProductID: "7", UnitPrice: -1, Quantity: 1},
	}, IssueContext{})
	assert.ErrorIs(t, err, ErrInvalidLineItem)
}

func TestReissueReproducesShape(t *testing.T) {
	engine := testEngine()

	cart := []models.LineItem{
		{ProductID: "19", Name: "6-Ride Combo", UnitPrice: 500, Quantity: 1, IsCombo: true},
		{ProductID: "7", Name: "Giant Wheel", UnitPrice: 150, Quantity: 2},
	}
	ctx := IssueContext{PaymentMode: models.PaymentCash, Operator: "counter-1"}

	first, err := engine.Issue(cart, ctx)
	assert.NoError(t, err)
	second, err := engine.Issue(cart, ctx)
	assert.NoError(t, err)

	// A reprint gets a fresh master ID but the same count, order and
	// amounts of sub-tickets.
	assert.NotEqual(t, first.Master.ID, second.Master.ID)
	assert.Equal(t, len(first.SubTickets), len(second.SubTickets))
	for i := range first.SubTickets {
		assert.Equal(t, first.SubTickets[i].Amount, second.SubTickets[i].Amount)
		assert.Equal(t, first.SubTickets[i].IsCoupon, second.SubTickets[i].IsCoupon)
	}
}
