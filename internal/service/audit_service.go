package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/authkit/session-auth/internal/events"
	"github.com/authkit/session-auth/internal/observability"
)

// AuditService writes auth events to the audit log and counts them.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleUserRegistered)
	a.dispatcher.Subscribe(events.EventUserLoggedIn, a.handleUserLoggedIn)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventUserLoggedOut, a.handleUserLoggedOut)
}

func (a *AuditService) handleUserRegistered(_ context.Context, event events.Event) error {
	a.record(event)
	a.logger.Info("UserRegistered", a.fields(event)...)
	return nil
}

func (a *AuditService) handleUserLoggedIn(_ context.Context, event events.Event) error {
	a.record(event)
	a.logger.Info("UserLoggedIn", a.fields(event)...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	a.record(event)
	fields := a.fields(event)
	if payload, ok := event.Payload.(events.LoginFailedPayload); ok {
		fields = append(fields, zap.String("reason", string(payload.Reason)))
	}
	a.logger.Warn("LoginFailed", fields...)
	return nil
}

func (a *AuditService) handleUserLoggedOut(_ context.Context, event events.Event) error {
	a.record(event)
	a.logger.Info("UserLoggedOut", a.fields(event)...)
	return nil
}

func (a *AuditService) record(event events.Event) {
	a.metrics.RecordEvent(string(event.Type))
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.Time("timestamp", event.Timestamp),
	}
}
