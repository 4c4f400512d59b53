package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// VerifyLock is a short-TTL SetNX guard taken around redemption so two
// scanners hitting the same QR serialize before the database. The store's
// compare-and-set remains authoritative; losing this lock never decides a
// redemption by itself.
type VerifyLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewVerifyLock(client *redis.Client, ttl time.Duration) *VerifyLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &VerifyLock{Client: client, TTL: ttl}
}

func (l *VerifyLock) key(ticketID string) string {
	return "verify_lock:" + ticketID
}

// Acquire takes the lock for one ticket ID. A false return means another
// scan of the same ticket is in flight.
func (l *VerifyLock) Acquire(ctx context.Context, ticketID string) (bool, error) {
	return l.Client.SetNX(ctx, l.key(ticketID), 1, l.TTL).Result()
}

// Release drops the lock early; the TTL covers crashed holders.
func (l *VerifyLock) Release(ctx context.Context, ticketID string) {
	_ = l.Client.Del(ctx, l.key(ticketID)).Err()
}
