package database

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LookupStatus separates "key absent" from "store down" so callers never
// confuse the two.
type LookupStatus int

const (
	LookupMiss LookupStatus = iota
	LookupHit
	LookupUnavailable
)

func (s LookupStatus) String() string {
	switch s {
	case LookupHit:
		return "hit"
	case LookupMiss:
		return "miss"
	case LookupUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Lookup is the result of a counter read. Err is set only when Status is
// LookupUnavailable.
type Lookup struct {
	Value  int64
	Status LookupStatus
	Err    error
}

func Hit(v int64) Lookup           { return Lookup{Value: v, Status: LookupHit} }
func Miss() Lookup                 { return Lookup{Status: LookupMiss} }
func Unavailable(err error) Lookup { return Lookup{Status: LookupUnavailable, Err: err} }

// releaseLockScript deletes the lock only if we still own it.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Counters is the Redis-backed fast counter store.
type Counters struct {
	client redis.UniversalClient
}

func NewCounters(client redis.UniversalClient) *Counters {
	return &Counters{client: client}
}

// Get reads a counter. A value that does not parse as an integer is reported
// as a miss so the caller repopulates it.
func (c *Counters) Get(ctx context.Context, key string) Lookup {
	v, err := c.client.Get(ctx, key).Int64()
	if err == nil {
		return Hit(v)
	}
	if errors.Is(err, redis.Nil) {
		return Miss()
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return Miss()
	}
	return Unavailable(err)
}

// Set writes value with ttl; ttl of 0 keeps the key forever.
func (c *Counters) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Counters) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	return c.client.IncrBy(ctx, key, amount).Result()
}

func (c *Counters) DecrBy(ctx context.Context, key string, amount int64) (int64, error) {
	return c.client.DecrBy(ctx, key, amount).Result()
}

func (c *Counters) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Counters) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// TryLock takes a SET NX lock that expires after ttl. When the lock is held
// elsewhere acquired is false and err is nil. unlock is safe to call more
// than once and never removes a lock taken over by someone else after expiry.
func (c *Counters) TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, acquired bool, err error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return releaseLockScript.Run(ctx, c.client, []string{key}, token).Err()
	}, true, nil
}
