package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// RateLimitConfig bounds failed login attempts
type RateLimitConfig struct {
	MaxEmailFailures int           // failures per account
	EmailWindow      time.Duration // window for the account limit
	MaxIPFailures    int           // failures per client IP
	IPWindow         time.Duration // window for the IP limit
}

// DefaultRateLimitConfig returns the default login limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailFailures: 5,
		EmailWindow:      15 * time.Minute,
		MaxIPFailures:    20,
		IPWindow:         time.Hour,
	}
}

// RateLimitError is returned while a login key is locked out
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Unwrap lets callers match the lockout with errors.Is(err, models.ErrRateLimited)
func (e *RateLimitError) Unwrap() error {
	return models.ErrRateLimited
}

// RateLimitService counts failed logins per email and per client IP inside
// a sliding window. Counters live in process memory.
type RateLimitService struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	failures map[string][]time.Time
	now      func() time.Time
}

// NewRateLimitService creates a limiter with the given limits
func NewRateLimitService(cfg RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		cfg:      cfg,
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func emailKey(email string) string { return "email:" + strings.ToLower(strings.TrimSpace(email)) }
func ipKey(ip string) string       { return "ip:" + ip }

// CheckLogin returns a *RateLimitError when either the email or the IP has
// used up its failures
func (s *RateLimitService) CheckLogin(email, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if email != "" {
		if retryAfter, limited := s.limitedLocked(emailKey(email), s.cfg.MaxEmailFailures, s.cfg.EmailWindow, now); limited {
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed logins for this account. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "email",
			}
		}
	}
	if ip != "" {
		if retryAfter, limited := s.limitedLocked(ipKey(ip), s.cfg.MaxIPFailures, s.cfg.IPWindow, now); limited {
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed logins from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}
	return nil
}

// limitedLocked prunes the key to its window and reports whether it is at
// the limit. retryAfter is when the oldest counted failure leaves the window.
func (s *RateLimitService) limitedLocked(key string, max int, window time.Duration, now time.Time) (time.Time, bool) {
	if max <= 0 {
		return time.Time{}, false
	}
	recent := prune(s.failures[key], now.Add(-window))
	if len(recent) == 0 {
		delete(s.failures, key)
		return time.Time{}, false
	}
	s.failures[key] = recent
	if len(recent) < max {
		return time.Time{}, false
	}
	return recent[len(recent)-max].Add(window), true
}

// RecordFailure counts one failed login against the email and the IP
func (s *RateLimitService) RecordFailure(email, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if email != "" {
		s.failures[emailKey(email)] = append(s.failures[emailKey(email)], now)
	}
	if ip != "" {
		s.failures[ipKey(ip)] = append(s.failures[ipKey(ip)], now)
	}
}

// ResetEmail forgets the account's failures after a successful login
func (s *RateLimitService) ResetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, emailKey(email))
}

// CleanupExpired drops keys with no failure inside the longest window and
// returns how many were removed
func (s *RateLimitService) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxWindow := s.cfg.IPWindow
	if s.cfg.EmailWindow > maxWindow {
		maxWindow = s.cfg.EmailWindow
	}
	cutoff := s.now().Add(-maxWindow)

	removed := 0
	for key, times := range s.failures {
		if recent := prune(times, cutoff); len(recent) == 0 {
			delete(s.failures, key)
			removed++
		} else {
			s.failures[key] = recent
		}
	}
	return removed
}

// prune drops timestamps at or before cutoff; times are in append order
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
