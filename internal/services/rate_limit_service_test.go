package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitTest(t *testing.T) (*RateLimitService, *time.Time) {
	t.Helper()
	clock := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimitService(RateLimitConfig{
		MaxEmailFailures: 3,
		EmailWindow:      10 * time.Minute,
		MaxIPFailures:    5,
		IPWindow:         time.Hour,
	})
	limiter.now = func() time.Time { return clock }
	return limiter, &clock
}

func TestCheckLogin_NoFailures(t *testing.T) {
	limiter, _ := setupRateLimitTest(t)
	assert.NoError(t, limiter.CheckLogin("rider@example.com", "192.168.1.1"))
}

func TestCheckLogin_EmailExceeded(t *testing.T) {
	limiter, clock := setupRateLimitTest(t)

	for i := 0; i < 3; i++ {
		limiter.RecordFailure("Rider@Example.com", "")
		*clock = clock.Add(time.Minute)
	}

	err := limiter.CheckLogin("rider@example.com", "192.168.1.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRateLimited))

	var limited *RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, "email", limited.Type)
	assert.Equal(t, time.Date(2030, 1, 1, 12, 10, 0, 0, time.UTC), limited.RetryAfter)

	assert.NoError(t, limiter.CheckLogin("other@example.com", "192.168.1.1"))
}

func TestCheckLogin_WindowSlides(t *testing.T) {
	limiter, clock := setupRateLimitTest(t)

	for i := 0; i < 3; i++ {
		limiter.RecordFailure("rider@example.com", "")
	}
	require.Error(t, limiter.CheckLogin("rider@example.com", ""))

	*clock = clock.Add(10*time.Minute + time.Second)
	assert.NoError(t, limiter.CheckLogin("rider@example.com", ""))
}

func TestCheckLogin_IPExceeded(t *testing.T) {
	limiter, _ := setupRateLimitTest(t)

	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io", "e@x.io"} {
		limiter.RecordFailure(email, "10.0.0.1")
	}

	var limited *RateLimitError
	require.ErrorAs(t, limiter.CheckLogin("f@x.io", "10.0.0.1"), &limited)
	assert.Equal(t, "ip", limited.Type)
	assert.NoError(t, limiter.CheckLogin("f@x.io", "10.0.0.2"))
}

func TestResetEmailAndCleanup(t *testing.T) {
	limiter, clock := setupRateLimitTest(t)

	for i := 0; i < 3; i++ {
		limiter.RecordFailure("rider@example.com", "10.0.0.1")
	}
	limiter.ResetEmail("RIDER@example.com")
	assert.NoError(t, limiter.CheckLogin("rider@example.com", ""))

	assert.Equal(t, 0, limiter.CleanupExpired())
	*clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 1, limiter.CleanupExpired())
}

func TestLoginThrottling(t *testing.T) {
	service, _, _ := setupAuthTest(t)
	limiter, _ := setupRateLimitTest(t)
	service.UseRateLimiter(limiter)
	ctx := context.Background()
	_, err := service.Register(ctx, registerRequest(), testClient)
	require.NoError(t, err)

	good := models.LoginRequest{Email: "ayse@example.com", Password: "secret1"}
	bad := models.LoginRequest{Email: "ayse@example.com", Password: "wrong-password"}

	for i := 0; i < 2; i++ {
		_, err := service.Login(ctx, bad, testClient)
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}
	_, err = service.Login(ctx, good, testClient)
	require.NoError(t, err, "a success resets the account counter")

	for i := 0; i < 3; i++ {
		_, err := service.Login(ctx, bad, testClient)
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}
	_, err = service.Login(ctx, good, testClient)
	assert.ErrorIs(t, err, models.ErrRateLimited)
}
