package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stayloop/pulse/internal/models"
	"github.com/stayloop/pulse/pkg/logger"
	"github.com/stayloop/pulse/pkg/metrics"
)

// Store performs durable CRUD against the notification table.
//
// Every operation catches remote-call errors at this boundary, logs them, and
// returns a neutral failure value (false, nil, or an empty slice). Callers
// must treat a falsy/empty result as the only failure signal; no error detail
// crosses this boundary.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock overrides the clock used for read timestamps, primarily for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a notification store.
func NewStore(db *gorm.DB, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, errors.New("notify: store requires a database handle")
	}

	store := &Store{
		db:  db,
		log: logger.WithModule("notify.store"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// FetchAll returns every notification addressed to the user, newest first.
// On any failure the error is logged and an empty slice is returned.
func (s *Store) FetchAll(ctx context.Context, userID string) []models.Notification {
	rows := []models.Notification{}
	if userID == "" {
		return rows
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		s.fail("fetch_all", err, zap.String("user_id", userID))
		return []models.Notification{}
	}

	return rows
}

// Get loads a single notification by id. Returns nil when missing or on failure.
func (s *Store) Get(ctx context.Context, id string) *models.Notification {
	if id == "" {
		return nil
	}

	var row models.Notification
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail("get", err, zap.String("id", id))
		}
		return nil
	}
	return &row
}

// CountUnread returns the number of unread notifications for the user, or 0 on failure.
func (s *Store) CountUnread(ctx context.Context, userID string) int64 {
	if userID == "" {
		return 0
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		s.fail("count_unread", err, zap.String("user_id", userID))
		return 0
	}
	return count
}

// Create inserts a new record with is_read=false and server-assigned
// id/created_at, returning the persisted record or nil on failure.
func (s *Store) Create(ctx context.Context, n *models.Notification) *models.Notification {
	if n == nil {
		return nil
	}

	record := *n
	record.IsRead = false
	record.ReadAt = nil
	if record.Type == "" {
		record.Type = models.TypeInfo
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.fail("create", err, zap.String("user_id", record.UserID))
		return nil
	}

	metrics.NotificationsCreated.WithLabelValues(string(record.Type)).Inc()
	return &record
}

// MarkRead flips exactly one record to read. Already-read records are left
// untouched so the read transition stays monotone.
func (s *Store) MarkRead(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		s.fail("mark_read", err, zap.String("id", id))
		return false
	}
	return true
}

// MarkAllRead flips every currently-unread record owned by the user.
// Reapplying has no effect on already-read records.
func (s *Store) MarkAllRead(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		s.fail("mark_all_read", err, zap.String("user_id", userID))
		return false
	}
	return true
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}

	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Notification{}).Error; err != nil {
		s.fail("delete", err, zap.String("id", id))
		return false
	}
	return true
}

func (s *Store) fail(operation string, err error, fields ...zap.Field) {
	metrics.StoreFailures.WithLabelValues(operation).Inc()
	s.log.Error("store call failed", append(fields, zap.String("operation", operation), zap.Error(err))...)
}
