package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/queue"
)

// EventRecorder counts published lifecycle events.
type EventRecorder interface {
	RecordLifecycleEvent(eventType string)
}

// NotificationService forwards lifecycle events to the message broker so that
// downstream notifiers (email, SMS, push) can react to them.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  queue.Publisher
	recorder   EventRecorder
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, publisher queue.Publisher, recorder EventRecorder, logger *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = queue.NoopPublisher{}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		recorder:   recorder,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.forward)
	}
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	n.logger.Info("complaint event",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.Int64("complain_id", event.ComplaintID),
		zap.Any("payload", event.Payload))
	if n.recorder != nil {
		n.recorder.RecordLifecycleEvent(string(event.Type))
	}
	// Detached so a finished HTTP request does not cancel the broker publish.
	if err := n.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		n.logger.Error("publish complaint event",
			zap.String("event_type", string(event.Type)),
			zap.Int64("complain_id", event.ComplaintID),
			zap.Error(err))
		return err
	}
	return nil
}
