// Package notify sends best-effort desktop notifications for call events via
// the freedesktop notify-send tool. Notification failures never affect the
// call pipeline; they are logged at debug level and dropped.
package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

const sendTimeout = 2 * time.Second

// Notifier posts desktop notifications. The zero value is a disabled
// notifier; use New to create an enabled one.
type Notifier struct {
	enabled bool
}

// New creates a Notifier. When enabled is false every Send is a no-op, so
// callers never need to branch on configuration.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// Send posts a notification with the given title and body. Failures (missing
// notify-send binary, no notification daemon) are logged and ignored.
func (n *Notifier) Send(title, body string) {
	if n == nil || !n.enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "notify-send", title, body)
	if err := cmd.Run(); err != nil {
		slog.Debug("desktop notification failed", "title", title, "error", err)
	}
}
