// Package services wires the engine's modules into the operations exposed
// to the scheduler and the HTTP API.
package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
	"github.com/sonicagent/engine/internal/events"
)

// EventNotifier is the default notification sink: every notification is
// logged at a level matching its severity and published on the event bus
// for delivery channels to pick up.
type EventNotifier struct {
	events *events.Manager
	log    zerolog.Logger
}

// NewEventNotifier creates a new event-bridging notifier
func NewEventNotifier(eventManager *events.Manager, log zerolog.Logger) *EventNotifier {
	return &EventNotifier{
		events: eventManager,
		log:    log.With().Str("service", "notifier").Logger(),
	}
}

// Notify publishes the notification. Never blocks and never fails the
// caller; notifications are advisory.
func (n *EventNotifier) Notify(_ context.Context, notification domain.Notification) {
	event := n.log.Info()
	switch notification.Type {
	case domain.NotifyError:
		event = n.log.Error()
	case domain.NotifyWarning:
		event = n.log.Warn()
	}
	event.
		Str("title", notification.Title).
		Str("message", notification.Message).
		Msg("Notification")

	n.events.EmitTyped(events.NotificationSent, "notifier", &events.NotificationData{
		NotificationType: string(notification.Type),
		Title:            notification.Title,
		Message:          notification.Message,
		Link:             notification.Link,
	})
}
