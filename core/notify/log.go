package notify

import (
	"context"

	"github.com/kilianp07/volunteer/core/logger"
)

// LogNotifier writes announcements to a logger. It is the fallback channel
// when no broker is configured.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) PostMessage(_ context.Context, msg Message) error {
	logger.OrNop(n.Log).Debugw(msg.Text, map[string]any{
		"category": string(msg.Category),
		"subject":  msg.Subject.String(),
		"name":     msg.DisplayName,
	})
	return nil
}
