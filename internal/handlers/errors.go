package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/middleware"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorMapping struct {
	target error
	status int
	name   string
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{models.ErrNotAuthenticated, http.StatusUnauthorized, "unauthorized", "NOT_AUTHENTICATED"},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "INVALID_CREDENTIALS"},
	{models.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "INVALID_TOKEN"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden", "FORBIDDEN"},
	{models.ErrNotFound, http.StatusNotFound, "not_found", "NOT_FOUND"},
	{models.ErrSeatUnavailable, http.StatusConflict, "seat_unavailable", "SEAT_UNAVAILABLE"},
	{models.ErrGenderConflict, http.StatusConflict, "gender_conflict", "GENDER_CONFLICT"},
	{models.ErrEmailTaken, http.StatusConflict, "email_taken", "EMAIL_TAKEN"},
	{models.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "RATE_LIMITED"},
	{models.ErrInvalidInput, http.StatusBadRequest, "invalid_input", "INVALID_INPUT"},
}

// respondError writes the JSON error for err. Unknown errors are logged and
// reported as a bare 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var limited *services.RateLimitError
	if errors.As(err, &limited) {
		seconds := int(math.Ceil(time.Until(limited.RetryAfter).Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, ErrorResponse{Error: m.name, Message: err.Error(), Code: m.code})
			return
		}
	}

	fields := logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}
	if userCtx, ok := middleware.GetUserContext(c); ok {
		fields["user_id"] = userCtx.UserID
	}
	logger.WithError(err).WithFields(fields).Error("Request failed")
	_ = c.Error(err)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
	})
}

// respondBindError reports a malformed request body
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_input",
		Message: "Invalid request body: " + err.Error(),
		Code:    "INVALID_INPUT",
	})
}

// uuidParam parses a path parameter, writing a 400 when it is malformed
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "Invalid " + name + ": must be a UUID",
			Code:    "INVALID_INPUT",
		})
		return uuid.Nil, false
	}
	return id, true
}
