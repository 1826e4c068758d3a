// Package dedup tracks already-processed webhook events in Redis so that
// provider redeliveries of the same payload become no-ops.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL matches the telemetry retention window: providers stop retrying
// long before a day has passed.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "gateway:webhook:"

type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Filter remembers which webhook events have been applied.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{rdb: rdb, ttl: DefaultTTL}
}

// IsNew returns true when the event key has not been seen before, marking it
// as seen atomically (SETNX) in the same call.
func (f *Filter) IsNew(ctx context.Context, eventKey string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, keyPrefix+eventKey, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}

	return set, nil
}

// Forget drops the seen marker so a retried event is not treated as a
// duplicate. Callers use it when applying the event failed after IsNew.
func (f *Filter) Forget(ctx context.Context, eventKey string) error {
	if err := f.rdb.Del(ctx, keyPrefix+eventKey).Err(); err != nil {
		return fmt.Errorf("dedup DEL: %w", err)
	}

	return nil
}
