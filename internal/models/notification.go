package models

import "time"

// NotificationAudience scopes who receives a notification.
type NotificationAudience string

const (
	AudienceAll      NotificationAudience = "all"
	AudienceStudents NotificationAudience = "students"
	AudienceTeachers NotificationAudience = "teachers"
	AudienceSpecific NotificationAudience = "specific"
)

// Valid returns true for a supported audience value.
func (a NotificationAudience) Valid() bool {
	switch a {
	case AudienceAll, AudienceStudents, AudienceTeachers, AudienceSpecific:
		return true
	default:
		return false
	}
}

// NotificationType marks the severity of a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
)

// Notification is a message delivered to one user or an audience. The
// low-attendance sweep writes warning notifications through this model.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	Audience    NotificationAudience `db:"audience" json:"audience"`
	RecipientID *string              `db:"recipient_id" json:"recipient_id,omitempty"`
	Message     string               `db:"message" json:"message"`
	Type        NotificationType     `db:"type" json:"type"`
	Read        bool                 `db:"read" json:"read"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	RecipientID string
	Audience    []NotificationAudience
	Unread      *bool
	Page        int
	PageSize    int
}
