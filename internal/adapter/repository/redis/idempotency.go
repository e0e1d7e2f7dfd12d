package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessingMarker is the placeholder stored while the first request for a key is in flight.
const ProcessingMarker = "processing"

const defaultKeyPrefix = "pointledger:idempotency:"

// claimScript sets the key if absent and otherwise returns what is stored, in one round trip.
var claimScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
	return {1, ''}
end
return {0, redis.call('GET', KEYS[1])}
`)

// releaseScript only drops an in-flight claim; a stored response survives.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// IdempotencyStore caches HTTP responses by Idempotency-Key in Redis.
type IdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client redis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: defaultKeyPrefix,
	}
}

// CheckAndSet claims key for ttl. When the key is already taken it returns
// true and the stored value, which is ProcessingMarker while the owner is still running.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if ttl <= 0 {
		return false, nil, fmt.Errorf("claim idempotency key: ttl must be positive, got %s", ttl)
	}

	value := []byte(ProcessingMarker)
	if response != nil {
		value = response
	}

	res, err := claimScript.Run(ctx, s.client, []string{s.prefix + key}, value, ttl.Milliseconds()).Slice()
	if err != nil {
		return false, nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if len(res) != 2 {
		return false, nil, fmt.Errorf("claim idempotency key: unexpected reply %v", res)
	}

	if claimed, _ := res[0].(int64); claimed == 1 {
		return false, nil, nil
	}

	existing, ok := res[1].(string)
	if !ok {
		return false, nil, errors.New("claim idempotency key: stored value is not a string")
	}
	return true, []byte(existing), nil
}

// Update stores the final response for key.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, response, ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// Release drops an in-flight claim on key so a later request can run again.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + key}, ProcessingMarker).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
