// Package memory contains an in-memory notifier for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Notifier stores delivered notifications for inspection.
type Notifier struct {
	mu    sync.RWMutex
	notes []audit.Notification
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the notification.
func (n *Notifier) Notify(_ context.Context, note audit.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

// Notifications returns the recorded notifications.
func (n *Notifier) Notifications() []audit.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]audit.Notification, len(n.notes))
	copy(out, n.notes)
	return out
}
