// Package terminal renders notifications as one-line toasts on a terminal.
package terminal

import (
	"fmt"
	"io"
	"sync"

	"insightdeck/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	successColor = lipgloss.Color("#8BC34A")
	errorColor   = lipgloss.Color("#e53935")
	warningColor = lipgloss.Color("#FFC107")
	infoColor    = lipgloss.Color("#2196F3")
	mutedColor   = lipgloss.Color("#8a94a6")
)

var icons = map[domain.NotificationKind]string{
	domain.NotifySuccess: "✓",
	domain.NotifyError:   "✗",
	domain.NotifyWarning: "!",
	domain.NotifyInfo:    "i",
}

// Toaster writes styled toasts to a writer. Colors are dropped when the
// writer is not a color terminal.
type Toaster struct {
	mu     sync.Mutex
	w      io.Writer
	kinds  map[domain.NotificationKind]lipgloss.Style
	detail lipgloss.Style
}

// NewToaster creates a Toaster writing to w.
func NewToaster(w io.Writer) *Toaster {
	r := lipgloss.NewRenderer(w)
	kind := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().Foreground(c).Bold(true)
	}
	return &Toaster{
		w: w,
		kinds: map[domain.NotificationKind]lipgloss.Style{
			domain.NotifySuccess: kind(successColor),
			domain.NotifyError:   kind(errorColor),
			domain.NotifyWarning: kind(warningColor),
			domain.NotifyInfo:    kind(infoColor),
		},
		detail: r.NewStyle().Foreground(mutedColor),
	}
}

// Show prints one toast.
func (t *Toaster) Show(kind domain.NotificationKind, title, description string) {
	style, ok := t.kinds[kind]
	if !ok {
		style = t.kinds[domain.NotifyInfo]
	}
	icon := icons[kind]
	if icon == "" {
		icon = icons[domain.NotifyInfo]
	}

	line := style.Render(icon + " " + title)
	if description != "" {
		line += " " + t.detail.Render(description)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}
