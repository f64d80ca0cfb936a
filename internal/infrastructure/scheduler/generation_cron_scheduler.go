package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/masjid/backend/internal/application/billing"
	"github.com/masjid/backend/internal/domain/billing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cronTickerInterval is the interval at which the cron scheduler checks for execution
const cronTickerInterval = 1 * time.Minute

// Run statuses recorded for generation runs
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// InvoiceGenerator is the slice of the generation service the scheduler needs
type InvoiceGenerator interface {
	GenerateForPeriod(ctx context.Context, period billing.Period) (*appbilling.GenerationResult, error)
}

// GenerationCronSchedulerConfig holds configuration for the cron-based generation scheduler
type GenerationCronSchedulerConfig struct {
	// Enabled indicates if the cron scheduler is enabled
	Enabled bool
	// CronDay is the day of month (1-28) to run the monthly generation
	CronDay int
	// CronHour is the hour (0-23) to run the monthly generation
	CronHour int
	// CronMinute is the minute (0-59) to run the monthly generation
	CronMinute int
	// MonthlyCronSchedule is the cron expression (parsed to extract day/hour/minute)
	MonthlyCronSchedule string
	// JobTimeout is the maximum time a single generation run can take
	JobTimeout time.Duration
}

// DefaultGenerationCronSchedulerConfig returns default cron scheduler configuration
// Defaults to running at 2:00 AM on the first of every month
func DefaultGenerationCronSchedulerConfig() GenerationCronSchedulerConfig {
	return GenerationCronSchedulerConfig{
		Enabled:             true,
		CronDay:             1,
		CronHour:            2, // 2 AM
		CronMinute:          0, // 0 minutes
		MonthlyCronSchedule: "0 2 1 * *",
		JobTimeout:          10 * time.Minute,
	}
}

// ParseCronSchedule parses a cron expression "minute hour day * *" to extract
// the day of month, hour and minute. Returns defaults (1st at 2:00) if parsing
// fails or the expression is empty. The day is capped at 28 so the run happens
// every month, February included.
func ParseCronSchedule(cronExpr string) (day, hour, minute int, err error) {
	// Default values
	day = 1
	hour = 2
	minute = 0

	if cronExpr == "" {
		return day, hour, minute, nil
	}

	// Use strings.Fields for simple whitespace splitting
	parts := strings.Fields(cronExpr)

	if len(parts) < 3 {
		return day, hour, minute, nil
	}

	// Parse minute
	if parts[0] != "*" {
		if val, parseErr := parseIntOrDefault(parts[0], 0); parseErr == nil {
			minute = val
		}
	}

	// Parse hour
	if parts[1] != "*" {
		if val, parseErr := parseIntOrDefault(parts[1], 2); parseErr == nil {
			hour = val
		}
	}

	// Parse day of month
	if parts[2] != "*" {
		if val, parseErr := parseIntOrDefault(parts[2], 1); parseErr == nil {
			day = val
		}
	}

	// Validate ranges
	if minute < 0 || minute > 59 {
		return 1, 2, 0, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 1, 2, 0, fmt.Errorf("hour must be 0-23, got %d", hour)
	}
	if day < 1 || day > 28 {
		return 1, 2, 0, fmt.Errorf("day of month must be 1-28, got %d", day)
	}

	return day, hour, minute, nil
}

// parseIntOrDefault parses an int string or returns default
func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" || s == "*" {
		return defaultVal, nil
	}
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return defaultVal, ErrInvalidConfig
		}
		val = val*10 + int(c-'0')
	}
	return val, nil
}

// GenerationRunRecord represents a record of a scheduled generation run
type GenerationRunRecord struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Period      string     `gorm:"column:period;size:7;not null"`
	Status      string     `gorm:"column:status;size:20"`
	Error       string     `gorm:"column:error;type:text"`
	Generated   int        `gorm:"column:generated"`
	Skipped     int        `gorm:"column:skipped"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (GenerationRunRecord) TableName() string {
	return "generation_runs"
}

// GenerationRunRepository handles persistence of generation run records
type GenerationRunRepository struct {
	db *gorm.DB
}

// NewGenerationRunRepository creates a new GenerationRunRepository
func NewGenerationRunRepository(db *gorm.DB) *GenerationRunRepository {
	return &GenerationRunRepository{db: db}
}

// RecordRunStart records the start of a generation run
func (r *GenerationRunRepository) RecordRunStart(ctx context.Context, period billing.Period) (uuid.UUID, error) {
	now := time.Now()
	record := &GenerationRunRecord{
		ID:        uuid.New(),
		Period:    string(period),
		Status:    RunStatusRunning,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

// RecordRunComplete records the completion of a generation run
func (r *GenerationRunRepository) RecordRunComplete(ctx context.Context, runID uuid.UUID, generated, skipped int, success bool, errMsg string) error {
	now := time.Now()
	status := RunStatusSuccess
	if !success {
		status = RunStatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&GenerationRunRecord{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":       status,
			"error":        errMsg,
			"generated":    generated,
			"skipped":      skipped,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// GetLastRun gets the most recent run for a period
func (r *GenerationRunRepository) GetLastRun(ctx context.Context, period billing.Period) (*GenerationRunRecord, error) {
	var record GenerationRunRecord
	if err := r.db.WithContext(ctx).
		Where("period = ?", string(period)).
		Order("started_at DESC").
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GenerationCronScheduler runs monthly invoice generation on a cron schedule
type GenerationCronScheduler struct {
	config    GenerationCronSchedulerConfig
	generator InvoiceGenerator
	runRepo   *GenerationRunRepository
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Last execution tracking
	lastRunAt *time.Time
	nextRunAt *time.Time
}

// NewGenerationCronScheduler creates a new cron-based generation scheduler
func NewGenerationCronScheduler(
	config GenerationCronSchedulerConfig,
	generator InvoiceGenerator,
	runRepo *GenerationRunRepository,
	logger *zap.Logger,
) *GenerationCronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationCronScheduler{
		config:    config,
		generator: generator,
		runRepo:   runRepo,
		logger:    logger,
	}
}

// Start starts the cron scheduler
func (s *GenerationCronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Calculate next run time
	s.calculateNextRunTime()

	// Start the cron ticker
	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Generation cron scheduler started",
		zap.Int("cron_day", s.config.CronDay),
		zap.Int("cron_hour", s.config.CronHour),
		zap.Int("cron_minute", s.config.CronMinute),
		zap.Timep("next_run_at", s.nextRunAt),
	)

	return nil
}

// Stop stops the cron scheduler
func (s *GenerationCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	// Cancel the cron loop
	if s.cancel != nil {
		s.cancel()
	}

	// Wait for cron loop to finish
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Generation cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Generation cron scheduler stop timed out")
		return ctx.Err()
	}
}

// cronLoop runs the main cron loop
func (s *GenerationCronScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	// Use a ticker that checks every minute for cron execution
	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.runGeneration(ctx, billing.CurrentPeriod())
				s.calculateNextRunTime()
			}
		}
	}
}

// shouldRun checks if the cron should run at the given time
func (s *GenerationCronScheduler) shouldRun(now time.Time) bool {
	return now.Day() == s.config.CronDay &&
		now.Hour() == s.config.CronHour &&
		now.Minute() == s.config.CronMinute
}

// calculateNextRunTime calculates the next run time
func (s *GenerationCronScheduler) calculateNextRunTime() {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), s.config.CronDay, s.config.CronHour, s.config.CronMinute, 0, 0, now.Location())

	// If we've already passed this month's run time, schedule for next month
	if now.After(next) {
		next = next.AddDate(0, 1, 0)
	}

	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// runGeneration runs invoice generation for the given period
func (s *GenerationCronScheduler) runGeneration(ctx context.Context, period billing.Period) {
	s.logger.Info("Starting scheduled invoice generation", zap.String("period", string(period)))

	now := time.Now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	// Record run start
	var runID uuid.UUID
	if s.runRepo != nil {
		var recordErr error
		runID, recordErr = s.runRepo.RecordRunStart(ctx, period)
		if recordErr != nil {
			s.logger.Warn("Failed to record generation run start",
				zap.String("period", string(period)),
				zap.Error(recordErr),
			)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if s.config.JobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	result, err := s.generator.GenerateForPeriod(runCtx, period)
	if err != nil {
		s.logger.Error("Scheduled invoice generation failed",
			zap.String("period", string(period)),
			zap.Error(err),
		)
		if s.runRepo != nil && runID != uuid.Nil {
			generated, skipped := 0, 0
			if result != nil {
				generated, skipped = result.Generated, result.Skipped
			}
			_ = s.runRepo.RecordRunComplete(ctx, runID, generated, skipped, false, err.Error())
		}
		return
	}

	s.logger.Info("Scheduled invoice generation completed",
		zap.String("period", string(period)),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)

	if s.runRepo != nil && runID != uuid.Nil {
		errMsg := ""
		if len(result.Errors) > 0 {
			errMsg = fmt.Sprintf("%d members failed", len(result.Errors))
		}
		_ = s.runRepo.RecordRunComplete(ctx, runID, result.Generated, result.Skipped, len(result.Errors) == 0, errMsg)
	}
}

// TriggerManualRun triggers a manual generation run for the current period
// Note: Uses background context to avoid premature cancellation when HTTP request completes
func (s *GenerationCronScheduler) TriggerManualRun(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	// Use background context to prevent premature cancellation when HTTP request completes
	go s.runGeneration(context.Background(), billing.CurrentPeriod())
	return nil
}

// TriggerPeriod triggers a generation run for a specific period (backfill)
func (s *GenerationCronScheduler) TriggerPeriod(ctx context.Context, period billing.Period) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	if !period.IsValid() {
		return billing.ErrInvalidPeriod
	}

	go s.runGeneration(context.Background(), period)
	return nil
}

// GetStatus returns the current status of the cron scheduler
func (s *GenerationCronScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":       s.config.Enabled,
		"is_running":    s.isRunning,
		"cron_day":      s.config.CronDay,
		"cron_hour":     s.config.CronHour,
		"cron_minute":   s.config.CronMinute,
		"cron_schedule": "Monthly",
		"last_run_at":   s.lastRunAt,
		"next_run_at":   s.nextRunAt,
	}
}

// GetNextRunAt returns when the next scheduled run will occur
func (s *GenerationCronScheduler) GetNextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// GetLastRunAt returns when the last run occurred
func (s *GenerationCronScheduler) GetLastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}
