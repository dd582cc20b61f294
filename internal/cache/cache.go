// Package cache keeps read-through copies of committed orders in Redis.
// Redis is never the source of truth: a miss or an error falls back to
// Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/storefront/internal/models"
)

const keyOrder = "storefront:order:%d"

func OrderKey(id int64) string {
	return fmt.Sprintf(keyOrder, id)
}

type Orders interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, bool, error)
	SetOrder(ctx context.Context, order *models.Order) error
}

// Noop never hits.
type Noop struct{}

func (Noop) GetOrder(context.Context, int64) (*models.Order, bool, error) { return nil, false, nil }
func (Noop) SetOrder(context.Context, *models.Order) error                { return nil }

type Redis struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewRedis(rdb redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) GetOrder(ctx context.Context, id int64) (*models.Order, bool, error) {
	data, err := r.rdb.Get(ctx, OrderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached order %d: %w", id, err)
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, false, fmt.Errorf("decode cached order %d: %w", id, err)
	}
	return &order, true, nil
}

func (r *Redis) SetOrder(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %d: %w", order.ID, err)
	}
	if err := r.rdb.Set(ctx, OrderKey(order.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache order %d: %w", order.ID, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
