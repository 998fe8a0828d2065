package redis

import (
	"context"
	"time"
)

// PaymentCache is a fast-path over the processed-payment ledger. A hit
// lets the webhook handler ack a redelivery without opening a database
// transaction. Misses fall through to the authoritative ledger; the
// cache is never the source of truth.
type PaymentCache struct {
	cli RedisClient
	ttl time.Duration
}

func NewPaymentCache(cli RedisClient, ttl time.Duration) *PaymentCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PaymentCache{cli: cli, ttl: ttl}
}

func key(paymentID string) string { return "billing:applied:" + paymentID }

func (c *PaymentCache) Seen(ctx context.Context, paymentID string) bool {
	_, err := c.cli.Get(ctx, key(paymentID))
	return err == nil
}

func (c *PaymentCache) Remember(ctx context.Context, paymentID string) {
	// Best effort; the ledger catches what the cache loses.
	_ = c.cli.Set(ctx, key(paymentID), "1", c.ttl)
}
