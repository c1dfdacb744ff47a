package workflow

import (
	"context"
	"errors"
	"strings"

	"intake/internal/logging"
	"intake/internal/queue"
	"intake/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base).With(logging.String(logging.FieldComponent, "workflow-manager"))

	status := services.FailureStatus(stageErr)
	message := failureMessage(stageName, stageErr)
	if status == queue.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.String("resolved_status", string(status)),
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldAlert, "stage_failure"),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	if status == queue.StatusReview {
		m.notifyReviewNeeded(ctx, item, message)
	} else {
		m.notifyStageError(ctx, stageName, item, stageErr)
	}
	m.checkQueueCompletion(ctx)
}

// failureMessage turns a stage error into the operator-facing message stored
// on the item. The sentinel marker prefix is stripped: the queue status
// already carries the classification.
func failureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		if stageName != "" {
			return stageName + " failed without error detail"
		}
		return "workflow failed without error detail"
	}
	message := strings.TrimSpace(stageErr.Error())
	for _, marker := range []error{
		services.ErrValidation,
		services.ErrConfiguration,
		services.ErrNotFound,
		services.ErrExternalTool,
		services.ErrTimeout,
		services.ErrTransient,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimSpace(strings.TrimPrefix(message, prefix))
			break
		}
	}
	if message == "" {
		return failureMessage(stageName, nil)
	}
	return message
}
