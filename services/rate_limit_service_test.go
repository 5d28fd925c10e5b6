package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitService_UnderLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewRateLimitService(db)

	mock.ExpectIncr("rate_limit:user-1").SetVal(3)
	mock.ExpectExpire("rate_limit:user-1", time.Hour).SetVal(true)

	allowed, retryAfter, err := svc.CheckLimit(context.Background(), "user-1", 5, time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitService_OverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewRateLimitService(db)

	mock.ExpectIncr("rate_limit:user-1").SetVal(6)
	mock.ExpectExpire("rate_limit:user-1", time.Hour).SetVal(true)
	mock.ExpectTTL("rate_limit:user-1").SetVal(42 * time.Minute)

	allowed, retryAfter, err := svc.CheckLimit(context.Background(), "user-1", 5, time.Hour)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 42*time.Minute, retryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalRateLimiter(t *testing.T) {
	limiter := NewLocalRateLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.CheckLimit(ctx, "ip-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, retryAfter, err := limiter.CheckLimit(ctx, "ip-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	// Separate keys do not share a window.
	allowed, _, err = limiter.CheckLimit(ctx, "ip-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
