// Package redis caches terminal draft status views for polling clients.
package redis

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"

	"github.com/mistika/checkout/internal/checkout/domain"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "mistika:draft_status:"
)

// StatusKey is the hash holding the cached view of one draft.
func StatusKey(draftID string) string {
	return keyPrefix + draftID
}

// StatusCache implements ports.DraftStatusCache on a redis hash per draft.
type StatusCache struct {
	rdb rd.UniversalClient
	ttl time.Duration
}

func NewStatusCache(rdb rd.UniversalClient, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// Get returns nil without error on a cache miss.
func (c *StatusCache) Get(ctx context.Context, draftID string) (*domain.DraftStatusView, error) {
	m, err := c.rdb.HGetAll(ctx, StatusKey(draftID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read draft status: %w", err)
	}
	if len(m) == 0 || m["status"] == "" {
		return nil, nil
	}

	return &domain.DraftStatusView{
		Status:      domain.DraftStatus(m["status"]),
		OrderID:     m["order_id"],
		OrderNumber: m["order_number"],
	}, nil
}

func (c *StatusCache) Put(ctx context.Context, draftID string, view domain.DraftStatusView) error {
	key := StatusKey(draftID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"status", string(view.Status),
		"order_id", view.OrderID,
		"order_number", view.OrderNumber,
	)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write draft status: %w", err)
	}
	return nil
}

// Ping lets readiness checks probe the cache connection.
func (c *StatusCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
