package sse

import (
	"context"
	"sync"

	"pos-ticketing/internal/models"
)

// RedemptionEventEmitter fans verification outcomes out to connected
// dashboard clients over SSE.
type RedemptionEventEmitter struct {
	clients     []chan models.Ticket
	clientMutex sync.RWMutex
}

func NewRedemptionEventEmitter() *RedemptionEventEmitter {
	return &RedemptionEventEmitter{}
}

// Subscribe adds a dashboard client. The channel closes when the client's
// context is done.
func (e *RedemptionEventEmitter) Subscribe(ctx context.Context) chan models.Ticket {
	clientChan := make(chan models.Ticket, 10)

	e.clientMutex.Lock()
	e.clients = append(e.clients, clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(clientChan)
	}()

	return clientChan
}

// EmitRedemption broadcasts one redeemed ticket to every subscriber.
// Slow clients are skipped rather than allowed to block the verifier.
func (e *RedemptionEventEmitter) EmitRedemption(ticket models.Ticket) {
	e.clientMutex.RLock()
	clients := make([]chan models.Ticket, len(e.clients))
	copy(clients, e.clients)
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- ticket:
		default:
		}
	}
}

func (e *RedemptionEventEmitter) removeClient(target chan models.Ticket) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	for i, c := range e.clients {
		if c == target {
			e.clients = append(e.clients[:i], e.clients[i+1:]...)
			close(c)
			return
		}
	}
}

// SubscriberCount reports connected dashboard clients.
func (e *RedemptionEventEmitter) SubscriberCount() int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients)
}
