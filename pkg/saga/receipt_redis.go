package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snapbuy/snapbuy/pkg/stages"
)

const redisReceiptPrefix = "snapbuy:receipt:"

// RedisReceiptStore persists receipts in Redis so idempotent replay survives
// process restarts and is shared across engine instances.
type RedisReceiptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReceiptStore wraps an existing client. A zero ttl keeps receipts
// until Redis evicts them.
func NewRedisReceiptStore(client *redis.Client, ttl time.Duration) *RedisReceiptStore {
	return &RedisReceiptStore{client: client, ttl: ttl}
}

func (s *RedisReceiptStore) Get(ctx context.Context, key string) (*stages.Receipt, bool, error) {
	data, err := s.client.Get(ctx, redisReceiptPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("receipt lookup: %w", err)
	}
	var receipt stages.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, false, fmt.Errorf("receipt decode: %w", err)
	}
	return &receipt, true, nil
}

func (s *RedisReceiptStore) Put(ctx context.Context, key string, receipt *stages.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("receipt encode: %w", err)
	}
	// SetNX keeps the first write; a concurrent duplicate never overwrites
	// an already settled receipt.
	if err := s.client.SetNX(ctx, redisReceiptPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("receipt store: %w", err)
	}
	return nil
}
