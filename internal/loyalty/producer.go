package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"pos-ticketing/internal/models"
)

// AccrualEvent is published once per master ticket carrying a customer
// mobile. Point bookkeeping downstream is the loyalty service's problem;
// this is only the trigger. A replayed offline batch re-publishes the
// same sale under a fresh EventID, so consumers dedupe accruals by
// TicketID; EventID only identifies the individual publish in logs and
// traces.
type AccrualEvent struct {
	EventID  string    `json:"eventId"`
	TicketID string    `json:"ticketId"`
	Mobile   string    `json:"mobile"`
	Amount   int       `json:"amount"`
	IssuedAt time.Time `json:"issuedAt"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishAccrual streams a point accrual trigger for one sale. Keyed by
// mobile so a customer's accruals land in order on one partition.
func (p *Producer) PublishAccrual(ctx context.Context, ticket models.Ticket) error {
	event := AccrualEvent{
		EventID:  uuid.NewString(),
		TicketID: ticket.ID,
		Mobile:   ticket.Mobile,
		Amount:   ticket.Amount,
		IssuedAt: ticket.CreatedAt,
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal accrual event: %w", err)
	}

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(ticket.Mobile),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
