package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/events"
)

// SessionAudit writes every session lifecycle event to the log.
type SessionAudit struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	stops      []func()
}

// StartSessionAudit registers audit handlers on dispatcher. Stop removes them.
func StartSessionAudit(dispatcher events.Dispatcher, logger *zap.Logger) *SessionAudit {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &SessionAudit{dispatcher: dispatcher, logger: logger.Named("audit")}
	if dispatcher == nil {
		return a
	}
	a.stops = append(a.stops,
		dispatcher.Subscribe(events.EventSessionChanged, a.handleChanged),
		dispatcher.Subscribe(events.EventSessionLoggedOut, a.handleLoggedOut),
		dispatcher.Subscribe(events.EventSessionMFARequired, a.handleMFARequired),
		dispatcher.Subscribe(events.EventSessionRefreshFailed, a.handleRefreshFailed),
	)
	return a
}

// Stop unsubscribes every handler.
func (a *SessionAudit) Stop() {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
}

func (a *SessionAudit) handleChanged(_ context.Context, event events.Event) error {
	a.logger.Debug("SessionChanged", zap.String("event_id", event.ID), zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}

func (a *SessionAudit) handleLoggedOut(_ context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("event_id", event.ID), zap.String("user_id", event.UserID)}
	if p, ok := event.Payload.(events.LoggedOutPayload); ok {
		fields = append(fields, zap.String("reason", p.Reason))
		if p.BackendError != "" {
			fields = append(fields, zap.String("backend_error", p.BackendError))
		}
	}
	a.logger.Info("SessionLoggedOut", fields...)
	return nil
}

func (a *SessionAudit) handleMFARequired(_ context.Context, event events.Event) error {
	// The email is the only identity known at this point.
	a.logger.Info("SessionMFARequired", zap.String("event_id", event.ID), zap.Any("payload", event.Payload))
	return nil
}

func (a *SessionAudit) handleRefreshFailed(_ context.Context, event events.Event) error {
	a.logger.Warn("SessionRefreshFailed", zap.String("event_id", event.ID), zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}
