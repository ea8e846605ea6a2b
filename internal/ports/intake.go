package ports

import (
	"context"

	"github.com/limitwatch/limitwatch/internal/core"
)

// NotificationIntake defines the interface for receiving platform notifications
type NotificationIntake interface {
	// ProcessNotification classifies a notification and stores the resulting
	// alert. A nil alert with nil error means the notification was dropped as
	// irrelevant.
	ProcessNotification(ctx context.Context, userID string, n *core.Notification) (*core.ClassifiedAlert, error)

	// Start starts the intake service
	Start() error

	// Stop stops the intake service
	Stop() error
}
