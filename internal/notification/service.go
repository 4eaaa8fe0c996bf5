package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/observability"
)

// Service handles emitting notifications for domain events.
type Service struct {
	resolver *RecipientResolver
	renderer *Renderer
	sender   Sender
	logger   *zap.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
}

// Dependencies bundles collaborators for the notification service.
type Dependencies struct {
	Resolver    *RecipientResolver
	Renderer    *Renderer
	Sender      Sender
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	SendTimeout time.Duration
}

// NewService creates the service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = NewRenderer("")
	}
	timeout := deps.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		resolver: deps.Resolver,
		renderer: renderer,
		sender:   deps.Sender,
		logger:   logger,
		metrics:  deps.Metrics,
		timeout:  timeout,
	}
}

// RegisterHandlers subscribes to every ticket event.
func (n *Service) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketClosed,
		events.EventTicketMessageAdded,
		events.EventParticipantAdded,
	} {
		dispatcher.Subscribe(t, n.Handle)
	}
}

// Handle resolves recipients, renders and sends one event. Failures are
// logged and counted; the returned error is always nil.
func (n *Service) Handle(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
	}

	ticket, recipients, err := n.resolver.Resolve(ctx, event.TicketID, event.Audience, event.ActorID)
	if err != nil {
		n.fail(event, "resolve recipients", err, fields)
		return nil
	}
	if recipients.Empty() {
		n.metrics.RecordNotification(string(event.Type), "skipped")
		n.logger.Debug("no notification recipients", fields...)
		return nil
	}

	msg, err := n.renderer.Render(event, ticket)
	if err != nil {
		n.fail(event, "render notification", err, fields)
		return nil
	}
	msg.To, msg.Cc = recipients.To, recipients.Cc
	if len(msg.To) == 0 {
		msg.To, msg.Cc = msg.Cc[:1], msg.Cc[1:]
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sender.Send(sendCtx, msg); err != nil {
		n.fail(event, "send notification", err, fields)
		return nil
	}
	n.metrics.RecordNotification(string(event.Type), "sent")
	n.logger.Debug("notification sent", append(fields, zap.Int("to", len(msg.To)), zap.Int("cc", len(msg.Cc)))...)
	return nil
}

func (n *Service) fail(event events.Event, stage string, err error, fields []zap.Field) {
	n.metrics.RecordNotification(string(event.Type), "failed")
	n.logger.Warn(stage, append(fields, zap.Error(err))...)
}
