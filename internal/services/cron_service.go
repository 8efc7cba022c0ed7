package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/config"
	"github.com/smarttransit/seat-reservation-backend/internal/metrics"
)

const auditLogRetention = 90 * 24 * time.Hour

// CleanupResult reports what one maintenance run removed
type CleanupResult struct {
	TripsPurged   int64 `json:"trips_purged"`
	HoldsPurged   int   `json:"holds_purged"`
	TokensRemoved int64 `json:"tokens_removed"`
	AuditRemoved  int64 `json:"audit_logs_removed"`
}

// CronService manages scheduled maintenance jobs
type CronService struct {
	cron      *cron.Cron
	cfg       config.MaintenanceConfig
	trips     TripStore
	selection *SelectionService
	auth      *AuthService
	audit     *AuditService
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	mu      sync.Mutex
	started bool
	now     func() time.Time
}

// NewCronService creates a new CronService
func NewCronService(
	cfg config.MaintenanceConfig,
	trips TripStore,
	selection *SelectionService,
	auth *AuthService,
	audit *AuditService,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		trips:     trips,
		selection: selection,
		auth:      auth,
		audit:     audit,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the jobs and starts the scheduler
func (s *CronService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	// second minute hour day month weekday
	if _, err := s.cron.AddFunc(s.cfg.TripCleanupSpec, s.cleanupJob); err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.HoldPurgeSpec, s.purgeHoldsJob); err != nil {
		return fmt.Errorf("failed to schedule hold purge job: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.logger.WithFields(logrus.Fields{
		"cleanup_schedule":    s.cfg.TripCleanupSpec,
		"hold_purge_schedule": s.cfg.HoldPurgeSpec,
		"retention_days":      s.cfg.TripRetentionDays,
	}).Info("Cron service started")
	return nil
}

// Stop waits for running jobs to finish
func (s *CronService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Cron service stopped")
}

func (s *CronService) cleanupJob() {
	if _, err := s.RunCleanupNow(context.Background()); err != nil {
		s.logger.WithError(err).Error("[CRON] Cleanup failed")
	}
}

func (s *CronService) purgeHoldsJob() {
	purged, err := s.selection.PurgeExpiredHolds(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Hold purge failed")
		return
	}
	if purged > 0 {
		s.logger.WithField("holds_purged", purged).Debug("[CRON] Purged expired holds")
	}
	s.auth.PruneLoginFailures()
}

// RunCleanupNow purges departed trips past retention, expired holds, stale
// refresh tokens and old audit logs. Later steps still run when one fails;
// the first error is returned.
func (s *CronService) RunCleanupNow(ctx context.Context) (*CleanupResult, error) {
	started := s.now()
	result := &CleanupResult{}
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	cutoff := started.AddDate(0, 0, -s.cfg.TripRetentionDays)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	trips, err := s.trips.DeletePastTrips(ctx, cutoff)
	if err != nil {
		record(fmt.Errorf("failed to purge trips: %w", err))
	} else {
		result.TripsPurged = trips
		s.metrics.TripsPurged.Add(float64(trips))
	}

	holds, err := s.selection.PurgeExpiredHolds(ctx)
	record(err)
	result.HoldsPurged = holds

	tokens, err := s.auth.CleanupExpiredTokens(ctx)
	if err != nil {
		record(fmt.Errorf("failed to cleanup tokens: %w", err))
	}
	result.TokensRemoved = tokens

	audits, err := s.audit.CleanupOldAuditLogs(ctx, auditLogRetention)
	record(err)
	result.AuditRemoved = audits

	s.logger.WithFields(logrus.Fields{
		"trips_purged":   result.TripsPurged,
		"holds_purged":   result.HoldsPurged,
		"tokens_removed": result.TokensRemoved,
		"audit_removed":  result.AuditRemoved,
		"cutoff":         cutoff.Format("2006-01-02"),
		"duration":       time.Since(started).String(),
	}).Info("[CRON] Cleanup finished")

	return result, firstErr
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	s.mu.Lock()
	running := s.started
	s.mu.Unlock()

	return map[string]interface{}{
		"running":        running,
		"job_count":      len(entries),
		"retention_days": s.cfg.TripRetentionDays,
		"jobs":           jobs,
	}
}
