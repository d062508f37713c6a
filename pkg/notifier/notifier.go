// Package notifier provides desktop notifications for pipeline outcomes
package notifier

import (
	"fmt"
	"strings"

	"github.com/gen2brain/beeep"

	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

// PipelineNotifier surfaces noteworthy run outcomes on the operator's
// desktop. A disabled notifier swallows every call.
type PipelineNotifier struct {
	enabled bool
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
}

// New creates a new pipeline notifier
func New(config Config, log logger.Logger) *PipelineNotifier {
	return &PipelineNotifier{
		enabled: config.Enabled,
		logger:  log,
	}
}

// NotifyBlocked notifies that a run produced a block decision
func (n *PipelineNotifier) NotifyBlocked(event types.EventType, reason string) {
	if !n.enabled {
		return
	}

	title := "🪝 Wisp: Blocked"
	message := fmt.Sprintf("%s blocked: %s", event, reason)

	n.send(title, message)
}

// NotifyAborted notifies that a stop-strategy failure aborted a run
func (n *PipelineNotifier) NotifyAborted(event types.EventType, handlerID string) {
	if !n.enabled {
		return
	}

	title := "🪝 Wisp: Pipeline Aborted"
	message := fmt.Sprintf("%s aborted by handler %s", event, handlerID)

	n.send(title, message)
}

// NotifyRunFailure notifies that handlers failed without aborting the run
func (n *PipelineNotifier) NotifyRunFailure(event types.EventType, failed []string) {
	if !n.enabled || len(failed) == 0 {
		return
	}

	title := "⚠️ Wisp: Handler Failures"
	message := fmt.Sprintf("%s: %s failed", event, strings.Join(failed, ", "))

	n.send(title, message)
}

func (n *PipelineNotifier) send(title, message string) {
	// beeep picks the platform backend (notify-send, toast, NSUserNotification)
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}
