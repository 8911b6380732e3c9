package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/stayloop/pulse/internal/models"
	"github.com/stayloop/pulse/internal/notify"
	"github.com/stayloop/pulse/internal/realtime"
	apperrors "github.com/stayloop/pulse/pkg/errors"
	"github.com/stayloop/pulse/pkg/validator"
)

// CreateNotificationInput defines attributes required to create a notification.
// UserID, Title, and Message are rejected before any persistence attempt when
// missing; Type defaults to info when omitted.
type CreateNotificationInput struct {
	UserID            string         `json:"user_id" validate:"required"`
	Title             string         `json:"title" validate:"required,max=255"`
	Message           string         `json:"message" validate:"required"`
	Type              string         `json:"type" validate:"omitempty,oneof=info success warning error"`
	RelatedEntityType string         `json:"related_entity_type" validate:"omitempty,max=64"`
	RelatedEntityID   string         `json:"related_entity_id"`
	Metadata          map[string]any `json:"metadata"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Offset int
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification   *models.Notification `json:"notification,omitempty"`
	NotificationID string               `json:"notification_id,omitempty"`
}

// NotificationService is the create-notification entry point consumed by the
// rest of the platform, and the façade the HTTP layer talks to. Writes go
// through the store, then fan out to the in-process bridge and the websocket
// hub so both attached feeds and remote dashboard clients see the insert.
type NotificationService struct {
	store  *notify.Store
	bridge *notify.Bridge
	hub    *realtime.Hub
}

// NewNotificationService constructs a NotificationService. The hub is optional.
func NewNotificationService(store *notify.Store, bridge *notify.Bridge, hub *realtime.Hub) (*NotificationService, error) {
	if store == nil {
		return nil, errors.New("notification service: store is required")
	}
	if bridge == nil {
		return nil, errors.New("notification service: bridge is required")
	}
	return &NotificationService{store: store, bridge: bridge, hub: hub}, nil
}

// Create validates the input, persists a new unread notification, and
// publishes the insert event to live subscribers.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.Title = strings.TrimSpace(input.Title)
	input.Message = strings.TrimSpace(input.Message)

	if err := validator.ValidateStruct(&input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	notificationType := models.NotificationType(strings.TrimSpace(input.Type))
	if notificationType == "" {
		notificationType = models.TypeInfo
	}

	record := models.Notification{
		UserID:            input.UserID,
		Title:             input.Title,
		Message:           input.Message,
		Type:              notificationType,
		RelatedEntityType: strings.TrimSpace(input.RelatedEntityType),
		RelatedEntityID:   strings.TrimSpace(input.RelatedEntityID),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(data)
	}

	persisted := s.store.Create(ctx, &record)
	if persisted == nil {
		return nil, apperrors.ErrInternalServer
	}

	s.bridge.Publish(*persisted)
	s.broadcast(persisted.UserID, "notification.created", &NotificationEventPayload{
		Notification: persisted,
	})

	return persisted, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
// A store failure surfaces as an empty page, matching the store contract.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) []models.Notification {
	rows := s.store.FetchAll(ctx, input.UserID)

	offset := input.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []models.Notification{}
	}
	rows = rows[offset:]

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) int64 {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead flips one notification owned by the user to read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	record, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return err
	}

	if !s.store.MarkRead(ctx, notificationID) {
		return apperrors.ErrInternalServer
	}

	s.broadcast(userID, "notification.read", &NotificationEventPayload{
		NotificationID: record.ID,
	})
	return nil
}

// MarkAllRead flips every unread notification owned by the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if !s.store.MarkAllRead(ctx, userID) {
		return apperrors.ErrInternalServer
	}

	s.broadcast(userID, "notification.read_all", nil)
	return nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	record, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return err
	}

	if !s.store.Delete(ctx, notificationID) {
		return apperrors.ErrInternalServer
	}

	s.broadcast(userID, "notification.deleted", &NotificationEventPayload{
		NotificationID: record.ID,
	})
	return nil
}

// owned loads a notification and checks the caller owns it.
func (s *NotificationService) owned(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	record := s.store.Get(ctx, notificationID)
	if record == nil {
		return nil, apperrors.ErrNotFound
	}
	if record.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return record, nil
}

func (s *NotificationService) broadcast(userID, event string, payload *NotificationEventPayload) {
	if s.hub == nil {
		return
	}
	message := realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  event,
	}
	if payload != nil {
		message.Data = payload
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, message)
}
