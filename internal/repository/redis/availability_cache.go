// Package redis caches computed availability. The cache is advisory: every
// failure is logged and reported as a miss, and the store stays the source of
// truth for conflict checks.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const keyPrefix = "medidoc:availability:"

// generationTTL outlives any in-flight availability read by a wide margin.
const generationTTL = 24 * time.Hour

// errStaleGeneration means the day was invalidated after the caller read its
// generation. It is an expected outcome, not a Redis failure.
var errStaleGeneration = errors.New("availability generation moved")

// consecutiveFailuresToTrip opens the breaker; while open, calls skip Redis.
const consecutiveFailuresToTrip = 5

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// AvailabilityCache stores one hash per doctor and date. Each field is a slot
// size and holds the JSON availability computed for it, so one DEL drops every
// variant of the day. A counter key next to the hash is the day's generation;
// Invalidate bumps it in the same MULTI as the DEL.
type AvailabilityCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[string]
	ttl     time.Duration
	log     *zap.Logger
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *AvailabilityCache {
	log = log.Named("availability_cache")

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "redis-availability",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= consecutiveFailuresToTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, redis.Nil) ||
				errors.Is(err, redis.TxFailedErr) ||
				errors.Is(err, errStaleGeneration)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &AvailabilityCache{client: client, breaker: breaker, ttl: ttl, log: log}
}

func (c *AvailabilityCache) Get(ctx context.Context, doctorID uuid.UUID, date time.Time, slotMinutes int) (*appointment.Availability, bool) {
	key := dayKey(doctorID, date)

	raw, err := c.breaker.Execute(func() (string, error) {
		return c.client.HGet(ctx, key, strconv.Itoa(slotMinutes)).Result()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logFailure("get", key, err)
		}
		return nil, false
	}

	var av appointment.Availability
	if err := json.Unmarshal([]byte(raw), &av); err != nil {
		c.log.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &av, true
}

// Generation returns the day's invalidation counter. A day never invalidated
// is at generation 0. ok is false when Redis could not be read, in which case
// the caller must not Set.
func (c *AvailabilityCache) Generation(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, bool) {
	key := generationKey(doctorID, date)

	raw, err := c.breaker.Execute(func() (string, error) {
		return c.client.Get(ctx, key).Result()
	})
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		c.logFailure("generation", key, err)
		return 0, false
	}

	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.log.Warn("unreadable generation counter", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// Set stores av if the day is still at gen. The generation is watched, so an
// Invalidate landing between the check and the write aborts the transaction.
func (c *AvailabilityCache) Set(ctx context.Context, av *appointment.Availability, gen int64) {
	key := dayKey(av.DoctorID, av.Date)
	genKey := generationKey(av.DoctorID, av.Date)

	payload, err := json.Marshal(av)
	if err != nil {
		c.log.Error("encoding availability", zap.String("key", key), zap.Error(err))
		return
	}

	_, err = c.breaker.Execute(func() (string, error) {
		return "", c.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, genKey).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if current != gen {
				return errStaleGeneration
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, key, strconv.Itoa(av.SlotMinutes), payload)
				p.Expire(ctx, key, c.ttl)
				return nil
			})
			return err
		}, genKey)
	})
	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("dropping availability computed before an invalidation",
			zap.String("key", key), zap.Int64("generation", gen))
	default:
		c.logFailure("set", key, err)
	}
}

// Invalidate drops every cached slot size for the doctor and date and moves
// the day to a new generation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	key := dayKey(doctorID, date)
	genKey := generationKey(doctorID, date)

	_, err := c.breaker.Execute(func() (string, error) {
		_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.Incr(ctx, genKey)
			p.Expire(ctx, genKey, generationTTL)
			return nil
		})
		return "", err
	})
	if err != nil {
		// Entries expire after the TTL even when the delete is lost.
		c.logFailure("invalidate", key, err)
	}
}

func (c *AvailabilityCache) logFailure(op, key string, err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Debug("cache bypassed", zap.String("op", op), zap.String("key", key), zap.Error(err))
		return
	}
	c.log.Warn("cache operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
}

func dayKey(doctorID uuid.UUID, date time.Time) string {
	return keyPrefix + doctorID.String() + ":" + appointment.NormalizeDate(date).Format(appointment.DateLayout)
}

func generationKey(doctorID uuid.UUID, date time.Time) string {
	return dayKey(doctorID, date) + ":gen"
}
