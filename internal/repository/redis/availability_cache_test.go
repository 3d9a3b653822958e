package redis

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDayKey(t *testing.T) {
	doctorID := uuid.MustParse("0b7d3c1e-2f4a-4e8b-9c5d-6a7b8c9d0e1f")
	late := time.Date(2026, time.May, 4, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "medidoc:availability:0b7d3c1e-2f4a-4e8b-9c5d-6a7b8c9d0e1f:2026-05-04", dayKey(doctorID, late))
	assert.Equal(t, "medidoc:availability:0b7d3c1e-2f4a-4e8b-9c5d-6a7b8c9d0e1f:2026-05-04:gen", generationKey(doctorID, late))
}

func TestAvailabilityCache_FailuresAreMisses(t *testing.T) {
	cache := NewAvailabilityCache(unreachableClient(t), time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()
	doctorID := uuid.New()
	day := time.Date(2026, time.May, 4, 0, 0, 0, 0, time.UTC)

	assert.NotPanics(t, func() {
		cache.Set(ctx, &appointment.Availability{DoctorID: doctorID, Date: day, SlotMinutes: 30}, 0)
		cache.Invalidate(ctx, doctorID, day)
	})

	av, ok := cache.Get(ctx, doctorID, day, 30)
	assert.False(t, ok)
	assert.Nil(t, av)

	_, ok = cache.Generation(ctx, doctorID, day)
	assert.False(t, ok, "an unreadable generation must not allow a Set")
}

func TestAvailabilityCache_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	cache := NewAvailabilityCache(unreachableClient(t), time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	for range consecutiveFailuresToTrip {
		_, ok := cache.Get(ctx, uuid.New(), time.Now(), 30)
		assert.False(t, ok)
	}
	assert.Equal(t, gobreaker.StateOpen, cache.breaker.State())

	// Open breaker short-circuits without touching the network.
	start := time.Now()
	_, ok := cache.Get(ctx, uuid.New(), time.Now(), 30)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestBreaker_StaleGenerationIsNotAFailure(t *testing.T) {
	cache := NewAvailabilityCache(unreachableClient(t), time.Minute, zaptest.NewLogger(t))

	_, err := cache.breaker.Execute(func() (string, error) { return "", errStaleGeneration })
	assert.ErrorIs(t, err, errStaleGeneration)

	for range consecutiveFailuresToTrip {
		_, _ = cache.breaker.Execute(func() (string, error) { return "", redis.TxFailedErr })
	}
	assert.Equal(t, gobreaker.StateClosed, cache.breaker.State())
}
