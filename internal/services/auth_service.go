package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/utils"
	"github.com/smarttransit/seat-reservation-backend/pkg/jwt"
	"github.com/smarttransit/seat-reservation-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

// ClientInfo describes the device behind an unauthenticated request
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// AuthService handles passenger accounts and token issuance
type AuthService struct {
	users      UserStore
	tokens     RefreshTokenStore
	jwtService *jwt.Service
	validator  *validator.RegistrationValidator
	audit      *AuditService
	logger     *logrus.Logger
	bcryptCost int
	limiter    *RateLimitService
}

// NewAuthService creates a new auth service
func NewAuthService(
	users UserStore,
	tokens RefreshTokenStore,
	jwtService *jwt.Service,
	audit *AuditService,
	logger *logrus.Logger,
	bcryptCost int,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtService: jwtService,
		validator:  validator.NewRegistrationValidator(),
		audit:      audit,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

// UseRateLimiter throttles failed logins through limiter; nil disables it
func (s *AuthService) UseRateLimiter(limiter *RateLimitService) {
	s.limiter = limiter
}

// Register creates a passenger account. New accounts are never admins.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, client ClientInfo) (*models.User, error) {
	reg, err := s.validator.Validate(req.Email, req.Password, req.FullName, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        reg.Email,
		PasswordHash: string(hash),
		FullName:     reg.FullName,
		Phone:        reg.Phone,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.LogRegistration(ctx, user, client.IPAddress, client.UserAgent)
	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login verifies the password and issues an access and a refresh token
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, client ClientInfo) (*models.LoginResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.CheckLogin(req.Email, client.IPAddress); err != nil {
			s.logger.WithFields(logrus.Fields{
				"email": req.Email,
				"ip":    client.IPAddress,
			}).Warn("Login throttled")
			return nil, err
		}
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		s.loginFailed(req.Email, client)
		s.audit.LogLogin(ctx, nil, req.Email, client.IPAddress, client.UserAgent, false)
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.loginFailed(req.Email, client)
		s.audit.LogLogin(ctx, &user.ID, user.Email, client.IPAddress, client.UserAgent, false)
		return nil, models.ErrInvalidCredentials
	}
	if s.limiter != nil {
		s.limiter.ResetEmail(req.Email)
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	device := utils.ParseUserAgent(client.UserAgent)
	expiresAt := time.Now().Add(s.jwtService.RefreshTokenExpiry())
	if err := s.tokens.StoreRefreshToken(ctx, user.ID, refreshToken, device.DeviceType, client.IPAddress, client.UserAgent, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	s.audit.LogLogin(ctx, &user.ID, user.Email, client.IPAddress, client.UserAgent, true)
	return s.response(user, accessToken, refreshToken), nil
}

// PruneLoginFailures drops login failure counters older than every window
func (s *AuthService) PruneLoginFailures() int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.CleanupExpired()
}

func (s *AuthService) loginFailed(email string, client ClientInfo) {
	if s.limiter != nil {
		s.limiter.RecordFailure(email, client.IPAddress)
	}
}

// Refresh issues a new access token for a live refresh token. The access
// token reflects the user's current admin flag.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*models.LoginResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	stored, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if stored == nil || stored.Revoked || time.Now().After(stored.ExpiresAt) || stored.UserID != claims.UserID {
		s.audit.LogTokenRefresh(ctx, claims.UserID, client.IPAddress, client.UserAgent, false)
		return nil, models.ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, models.ErrInvalidToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if err := s.tokens.UpdateLastUsed(ctx, refreshToken); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update refresh token last use")
	}

	s.audit.LogTokenRefresh(ctx, user.ID, client.IPAddress, client.UserAgent, true)
	return s.response(user, accessToken, refreshToken), nil
}

// Logout revokes one refresh token of the session's user, or all of them
func (s *AuthService) Logout(ctx context.Context, session *models.Session, refreshToken string, logoutAll bool) error {
	if session == nil {
		return models.ErrNotAuthenticated
	}

	if logoutAll {
		if err := s.tokens.RevokeAllUserTokens(ctx, session.UserID); err != nil {
			return fmt.Errorf("failed to revoke tokens: %w", err)
		}
	} else {
		if refreshToken == "" {
			return fmt.Errorf("%w: refresh_token is required", models.ErrInvalidInput)
		}
		stored, err := s.tokens.GetRefreshToken(ctx, refreshToken)
		if err != nil {
			return fmt.Errorf("failed to load refresh token: %w", err)
		}
		if stored == nil || stored.UserID != session.UserID {
			return models.ErrInvalidToken
		}
		if err := s.tokens.RevokeToken(ctx, refreshToken); err != nil {
			return err
		}
	}

	s.audit.LogLogout(ctx, session, logoutAll)
	return nil
}

// Profile returns the session's user
func (s *AuthService) Profile(ctx context.Context, session *models.Session) (*models.User, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// CleanupExpiredTokens drops expired and revoked refresh tokens
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanupExpiredTokens(ctx)
}

func (s *AuthService) response(user *models.User, accessToken, refreshToken string) *models.LoginResponse {
	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		TokenType:    "Bearer",
		User:         user,
	}
}
