package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType controls presentation severity on the dashboard.
type NotificationType string

// The four recognised notification types.
const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeWarning NotificationType = "warning"
	TypeError   NotificationType = "error"
)

// Valid reports whether the type is one of the four recognised values.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Notification represents a persisted, user-addressed event record.
type Notification struct {
	BaseModel

	UserID  string           `gorm:"type:uuid;index;not null" json:"user_id"`
	Title   string           `gorm:"type:varchar(255);not null" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	Type    NotificationType `gorm:"type:varchar(32);default:'info'" json:"type"`

	// Optional pointer to the domain object the notification concerns
	// (a post, a campaign, a team). Informational only; referential
	// integrity is not enforced here.
	RelatedEntityType string `gorm:"type:varchar(64)" json:"related_entity_type,omitempty"`
	RelatedEntityID   string `gorm:"type:uuid" json:"related_entity_id,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
