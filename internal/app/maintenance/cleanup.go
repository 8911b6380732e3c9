package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stayloop/pulse/internal/models"
	"github.com/stayloop/pulse/pkg/logger"
)

const defaultSchedule = "@daily"

// Sweeper purges read notifications past their retention window on a cron
// schedule. A retention of zero days disables purging entirely: read
// notifications are kept forever unless the user deletes them.
type Sweeper struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	retentionDays int
	schedule      string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper. retentionDays <= 0 leaves it dormant.
func NewSweeper(db *gorm.DB, retentionDays int, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		db:            db,
		now:           time.Now,
		log:           logger.WithModule("maintenance"),
		retentionDays: retentionDays,
		schedule:      defaultSchedule,
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return sweeper
}

// Enabled reports whether the sweeper has any work to schedule.
func (s *Sweeper) Enabled() bool {
	return s.db != nil && s.retentionDays > 0
}

// Start registers the sweep job and launches the scheduler.
func (s *Sweeper) Start() error {
	if !s.Enabled() {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("notification sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and returns a context that completes once any
// in-flight job has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce executes every maintenance job immediately, aggregating failures.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	var errs error
	errs = multierr.Append(errs, s.purgeRead(ctx))
	errs = multierr.Append(errs, s.logBacklog(ctx))
	return errs
}

// purgeRead removes read notifications older than the retention window.
func (s *Sweeper) purgeRead(ctx context.Context) error {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)

	result := s.db.WithContext(ctx).
		Where("is_read = ? AND read_at IS NOT NULL AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.log.Info("purged read notifications",
			zap.Int64("count", result.RowsAffected),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}

// logBacklog records the unread backlog so operators can spot users whose
// notifications are piling up without being seen.
func (s *Sweeper) logBacklog(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		return err
	}

	s.log.Info("unread notification backlog", zap.Int64("total", count))
	return nil
}
