package domain

import "time"

// NotificationKind classifies a notification and its toast.
type NotificationKind string

// Notification kinds.
const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
)

// Valid reports whether k is one of the notification kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotifySuccess, NotifyError, NotifyInfo, NotifyWarning:
		return true
	}
	return false
}

// MaxNotifications bounds the retained notification history.
const MaxNotifications = 5

// NotificationRecord is one entry of the user-facing notification history.
type NotificationRecord struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
}
