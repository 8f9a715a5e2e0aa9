package audit

import (
	"context"
	"log/slog"
)

// LogStore writes events to a structured logger. It is the default sink when
// no broker is configured.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"outcome", event.Outcome,
		"visitor_id", event.VisitorID,
		"policy_hash", event.PolicyHash,
		"request_id", event.RequestID,
		"reason", event.Reason,
		"timestamp", event.Timestamp,
	)
	return nil
}
