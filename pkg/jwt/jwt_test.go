package jwt

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-key-for-testing-purposes"
	testRefreshSecret = "test-refresh-secret-key-for-testing-purposes"
	testEmail         = "nimal@example.com"
)

func newTestService() *Service {
	return NewService(testAccessSecret, testRefreshSecret, time.Hour, 24*time.Hour)
}

func TestNewService(t *testing.T) {
	service := newTestService()

	assert.NotNil(t, service)
	assert.Equal(t, testAccessSecret, service.accessSecret)
	assert.Equal(t, testRefreshSecret, service.refreshSecret)
	assert.Equal(t, time.Hour, service.AccessTokenExpiry())
	assert.Equal(t, 24*time.Hour, service.RefreshTokenExpiry())
}

func TestGenerateAccessToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, testEmail, true)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, testEmail, claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestGenerateRefreshToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateRefreshToken(userID, testEmail)
	require.NoError(t, err)

	claims, err := service.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, testEmail, claims.Email)
	assert.False(t, claims.IsAdmin)
	assert.Equal(t, RefreshToken, claims.TokenType)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	first, err := service.GenerateRefreshToken(userID, testEmail)
	require.NoError(t, err)
	second, err := service.GenerateRefreshToken(userID, testEmail)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestValidateToken_Rejections(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	access, err := service.GenerateAccessToken(userID, testEmail, false)
	require.NoError(t, err)
	refresh, err := service.GenerateRefreshToken(userID, testEmail)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := service.ValidateAccessToken("invalid.token.here")
		assert.Error(t, err)
	})

	t.Run("wrong access secret", func(t *testing.T) {
		other := NewService("wrong-secret", testRefreshSecret, time.Hour, time.Hour)
		_, err := other.ValidateAccessToken(access)
		assert.Error(t, err)
	})

	t.Run("wrong refresh secret", func(t *testing.T) {
		other := NewService(testAccessSecret, "wrong-secret", time.Hour, time.Hour)
		_, err := other.ValidateRefreshToken(refresh)
		assert.Error(t, err)
	})

	t.Run("refresh token used as access token", func(t *testing.T) {
		same := NewService(testAccessSecret, testAccessSecret, time.Hour, time.Hour)
		token, err := same.GenerateRefreshToken(userID, testEmail)
		require.NoError(t, err)

		_, err = same.ValidateAccessToken(token)
		assert.ErrorContains(t, err, "invalid token type")
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := Claims{
			UserID:    userID,
			TokenType: AccessToken,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := service.claims(userID, testEmail, AccessToken, time.Hour)
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})
}

func TestExpiredToken(t *testing.T) {
	expired := NewService(testAccessSecret, testRefreshSecret, -time.Hour, time.Hour)

	token, err := expired.GenerateAccessToken(uuid.New(), testEmail, false)
	require.NoError(t, err)

	_, err = expired.ValidateAccessToken(token)
	require.Error(t, err)
	assert.True(t, IsExpired(err))
}

func TestIsExpired_OtherErrors(t *testing.T) {
	_, err := newTestService().ValidateAccessToken("invalid.token.here")
	require.Error(t, err)
	assert.False(t, IsExpired(err))
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service := newTestService()

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := service.GenerateAccessToken(uuid.New(), testEmail, false)
			if err != nil {
				errs <- err
				return
			}
			if _, err := service.ValidateAccessToken(token); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	assert.Empty(t, errs)
}
