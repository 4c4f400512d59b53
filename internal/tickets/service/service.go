package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-ticketing/internal/config"
	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/models"
	"pos-ticketing/internal/tickets/db"
	"pos-ticketing/internal/utils"
)

type DBLayer interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	Transition(ctx context.Context, id, from, to string, usedAt *time.Time) (bool, error)
	DeleteAllTickets(ctx context.Context) (int, error)
	GetTotalTicketsCount(ctx context.Context) (int, error)
	GetDayStats(ctx context.Context, date string) (*models.DayStats, error)
}

// LoyaltyPublisher is the trigger interface for point accrual. Bookkeeping
// beyond the trigger lives in the loyalty service.
type LoyaltyPublisher interface {
	PublishAccrual(ctx context.Context, ticket models.Ticket) error
}

// VerifyLock serializes concurrent scans of the same QR before they reach
// the database. The store's compare-and-set stays the source of truth; the
// lock only cuts duplicate round trips.
type VerifyLock interface {
	Acquire(ctx context.Context, ticketID string) (bool, error)
	Release(ctx context.Context, ticketID string)
}

// RedemptionEmitter broadcasts verification outcomes to dashboard clients.
type RedemptionEmitter interface {
	EmitRedemption(ticket models.Ticket)
}

type TicketService struct {
	DB      DBLayer
	Loyalty LoyaltyPublisher
	Lock    VerifyLock
	Emitter RedemptionEmitter
	Logger  *logger.Logger

	loc *time.Location
	now func() time.Time
}

func NewTicketService(dbLayer DBLayer, venue config.VenueConfig, log *logger.Logger) *TicketService {
	return &TicketService{
		DB:     dbLayer,
		Logger: log,
		loc:    venue.Location(),
		now:    time.Now,
	}
}

// NewTicketServiceWithClock injects the clock. Primarily used for testing
// expiry against fixed dates.
func NewTicketServiceWithClock(dbLayer DBLayer, venue config.VenueConfig, log *logger.Logger, now func() time.Time) *TicketService {
	s := NewTicketService(dbLayer, venue, log)
	if now != nil {
		s.now = now
	}
	return s
}

// Record persists an issued batch. Duplicate IDs inside the store count as
// already synced, so offline replays are safe to repeat. The loyalty
// trigger fires for masters carrying a customer mobile; a publish failure
// is logged, never allowed to fail the sale.
func (s *TicketService) Record(ctx context.Context, batch []models.Ticket) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}
	for _, t := range batch {
		if t.ID == "" {
			return fmt.Errorf("%w: ticket with empty id", ErrInvalidBatch)
		}
	}

	if err := s.DB.CreateTickets(ctx, batch); err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}

	if s.Loyalty != nil {
		for _, t := range batch {
			if t.ParentID == "" && t.Mobile != "" {
				if err := s.Loyalty.PublishAccrual(ctx, t); err != nil {
					s.Logger.Error("LOYALTY", fmt.Sprintf("accrual publish failed for %s: %v", t.ID, err))
				}
			}
		}
	}

	s.Logger.LogTicket("RECORD", batch[0].ID, fmt.Sprintf("persisted batch of %d", len(batch)))
	return nil
}

func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if errors.Is(err, db.ErrTicketNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return ticket, nil
}

// Verify runs the redemption state machine for one scanned ID.
//
// The ticket returned alongside a non-nil error is the current record, for
// operator display: an already-used ticket carries its original usedAt, an
// expired one its issuance date.
func (s *TicketService) Verify(ctx context.Context, id string) (*models.Ticket, error) {
	if s.Lock != nil {
		acquired, err := s.Lock.Acquire(ctx, id)
		if err != nil {
			s.Logger.Warn("VERIFY", fmt.Sprintf("lock unavailable for %s: %v", id, err))
		} else if acquired {
			defer s.Lock.Release(ctx, id)
		}
	}

	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if ticket.Status == models.StatusUsed {
		return ticket, ErrAlreadyUsed
	}

	now := s.now()
	today := utils.CalendarDate(now, s.loc)
	if ticket.Status == models.StatusValid && ticket.Date != today {
		ok, terr := s.DB.Transition(ctx, id, models.StatusValid, models.StatusInvalid, nil)
		if terr != nil {
			return ticket, fmt.Errorf("expire ticket %s: %w", id, terr)
		}
		if !ok {
			// Lost the race to a concurrent scan; re-read for the real
			// terminal state.
			return s.reVerifyTerminal(ctx, id)
		}
		ticket.Status = models.StatusInvalid
		s.Logger.LogTicket("EXPIRE", id, fmt.Sprintf("issued %s, today %s", ticket.Date, today))
		return ticket, ErrExpired
	}

	if ticket.Status == models.StatusInvalid {
		return ticket, ErrTicketInvalid
	}

	usedAt := now
	ok, err := s.DB.Transition(ctx, id, models.StatusValid, models.StatusUsed, &usedAt)
	if err != nil {
		return ticket, fmt.Errorf("redeem ticket %s: %w", id, err)
	}
	if !ok {
		return s.reVerifyTerminal(ctx, id)
	}

	ticket.Status = models.StatusUsed
	ticket.UsedAt = &usedAt
	s.Logger.LogTicket("REDEEM", id, fmt.Sprintf("amount %d", ticket.Amount))
	if s.Emitter != nil {
		s.Emitter.EmitRedemption(*ticket)
	}
	return ticket, nil
}

// reVerifyTerminal reloads a ticket after a lost compare-and-set and maps
// its terminal status to the matching error. Exactly one of two racing
// scanners takes this path.
func (s *TicketService) reVerifyTerminal(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch ticket.Status {
	case models.StatusUsed:
		return ticket, ErrAlreadyUsed
	case models.StatusInvalid:
		return ticket, ErrTicketInvalid
	default:
		return ticket, fmt.Errorf("ticket %s in unexpected status %q after lost transition", id, ticket.Status)
	}
}

// ClearAll wipes the store. Admin only; the handler enforces the role.
func (s *TicketService) ClearAll(ctx context.Context) (int, error) {
	deleted, err := s.DB.DeleteAllTickets(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear tickets: %w", err)
	}
	s.Logger.Warn("TICKET", fmt.Sprintf("cleared %d tickets", deleted))
	return deleted, nil
}

// Stats reports issuance/redemption totals for a venue-local day; an empty
// date means today.
func (s *TicketService) Stats(ctx context.Context, date string) (*models.DayStats, error) {
	if date == "" {
		date = utils.CalendarDate(s.now(), s.loc)
	}
	return s.DB.GetDayStats(ctx, date)
}
