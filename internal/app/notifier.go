package app

import (
	"sync"
	"time"

	"insightdeck/internal/domain"

	"github.com/google/uuid"
)

// Toaster displays a transient notification.
type Toaster interface {
	Show(kind domain.NotificationKind, title, description string)
}

// Notifier keeps a short history of user-facing notifications and fires a
// toast for each one raised through Success, Error, Info or Warning.
type Notifier struct {
	toaster Toaster
	now     func() time.Time

	mu      sync.Mutex
	history []domain.NotificationRecord
	unread  int
}

// NewNotifier creates a Notifier. A nil toaster records without displaying.
func NewNotifier(toaster Toaster) *Notifier {
	return &Notifier{toaster: toaster, now: time.Now}
}

// Add prepends rec to the history, keeping the newest MaxNotifications
// records, and increments the unread count. Missing ID and Timestamp are
// filled in; an unknown kind is recorded as info.
func (n *Notifier) Add(rec domain.NotificationRecord) domain.NotificationRecord {
	if !rec.Kind.Valid() {
		rec.Kind = domain.NotifyInfo
	}
	if rec.ID == "" {
		rec.ID = newNotificationID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = n.now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	history := make([]domain.NotificationRecord, 0, domain.MaxNotifications)
	history = append(history, rec)
	for _, r := range n.history {
		if len(history) == domain.MaxNotifications {
			break
		}
		history = append(history, r)
	}
	n.history = history
	n.unread++
	return rec
}

// ToastOption configures a toast.
type ToastOption func(*domain.NotificationRecord)

// WithDescription sets the secondary text of a toast.
func WithDescription(desc string) ToastOption {
	return func(r *domain.NotificationRecord) { r.Description = desc }
}

// Success shows a success toast and records it.
func (n *Notifier) Success(message string, opts ...ToastOption) domain.NotificationRecord {
	return n.toast(domain.NotifySuccess, message, opts)
}

// Error shows an error toast and records it.
func (n *Notifier) Error(message string, opts ...ToastOption) domain.NotificationRecord {
	return n.toast(domain.NotifyError, message, opts)
}

// Info shows an informational toast and records it.
func (n *Notifier) Info(message string, opts ...ToastOption) domain.NotificationRecord {
	return n.toast(domain.NotifyInfo, message, opts)
}

// Warning shows a warning toast and records it.
func (n *Notifier) Warning(message string, opts ...ToastOption) domain.NotificationRecord {
	return n.toast(domain.NotifyWarning, message, opts)
}

func (n *Notifier) toast(kind domain.NotificationKind, message string, opts []ToastOption) domain.NotificationRecord {
	rec := domain.NotificationRecord{Kind: kind, Title: message}
	for _, opt := range opts {
		opt(&rec)
	}
	if n.toaster != nil {
		n.toaster.Show(kind, rec.Title, rec.Description)
	}
	return n.Add(rec)
}

// MarkAllAsRead resets the unread count. History is unchanged.
func (n *Notifier) MarkAllAsRead() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unread = 0
}

// History returns the retained records, newest first.
func (n *Notifier) History() []domain.NotificationRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationRecord, len(n.history))
	copy(out, n.history)
	return out
}

// Unread returns the number of records added since the last MarkAllAsRead.
func (n *Notifier) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}

func newNotificationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
