package worker

import (
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/notification"
)

// NotificationWorker owns the async event pipeline that feeds notifications.
type NotificationWorker struct {
	dispatcher *events.AsyncDispatcher
	service    *notification.Service
	logger     *zap.Logger
}

// NewNotificationWorker wires the notification service to the dispatcher.
func NewNotificationWorker(dispatcher *events.AsyncDispatcher, service *notification.Service, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{dispatcher: dispatcher, service: service, logger: logger}
}

// Start registers notification handlers and launches the dispatcher workers.
func (w *NotificationWorker) Start() {
	if w == nil || w.dispatcher == nil {
		return
	}
	if w.service != nil {
		w.service.RegisterHandlers(w.dispatcher)
	}
	w.dispatcher.Start()
	w.logger.Info("notification worker started")
}

// Stop drains queued events and waits for in-flight deliveries.
func (w *NotificationWorker) Stop() {
	if w == nil || w.dispatcher == nil {
		return
	}
	w.dispatcher.Stop()
	w.logger.Info("notification worker stopped")
}
