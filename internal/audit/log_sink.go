package audit

import (
	"context"

	"go.uber.org/zap"
)

// allEventTypes keeps RegisterLogSink in sync with the event_types
// constants.
var allEventTypes = []EventType{
	EventAuthRejected,
	EventPermissionDenied,
	EventPermissionGranted,
	EventPermissionRevoked,
	EventRateLimited,
	EventTokenRefreshed,
	EventMFAEnrolled,
	EventMFAEnabled,
	EventMFARejected,
	EventMFABackupUsed,
}

// RegisterLogSink subscribes a structured-log writer for every event
// type, making the audit trail visible in the service log without a
// dedicated store.
func RegisterLogSink(dispatcher Dispatcher, logger *zap.Logger) {
	handler := func(_ context.Context, event Event) error {
		logger.Info("audit event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Time("timestamp", event.Timestamp),
			zap.Any("details", event.Details),
		)
		return nil
	}
	for _, eventType := range allEventTypes {
		dispatcher.Subscribe(eventType, handler)
	}
}
