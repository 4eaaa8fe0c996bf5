package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/notification"
	"github.com/corpnet/helpdesk/internal/repository/memory"
)

type captureSender struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (s *captureSender) Send(_ context.Context, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func TestNotificationWorkerDeliversQueuedEventsBeforeStopping(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	dir.AddUser(domain.User{ID: "creator", Email: "creator@corp.example", Active: true})
	dir.AddUser(domain.User{ID: "tech", Email: "tech@corp.example", Active: true})

	repos := store.Repositories()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	assignee := "tech"
	ticket := &domain.Ticket{
		TicketNumber:         "SUP-2025-0001",
		Title:                "Printer jammed",
		Status:               domain.TicketStatusOpen,
		Priority:             domain.TicketPriorityMedium,
		TicketTypeID:         "sup",
		CreatedBy:            "creator",
		AssignedTo:           &assignee,
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	sender := &captureSender{}
	svc := notification.NewService(notification.Dependencies{
		Resolver: notification.NewRecipientResolver(repos.Tickets, repos.Participants, dir),
		Sender:   sender,
		Logger:   zap.NewNop(),
	})
	dispatcher := events.NewAsyncDispatcher(2, 16, zap.NewNop(), nil)
	w := NewNotificationWorker(dispatcher, svc, zap.NewNop())
	w.Start()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   "creator",
		Timestamp: now,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Title:        ticket.Title,
			Priority:     ticket.Priority,
		},
	}))
	w.Stop()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"tech@corp.example"}, sender.sent[0].To)
	assert.Empty(t, sender.sent[0].Cc)

	assert.ErrorIs(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketUpdated}), events.ErrDispatcherStopped)
}

func TestNotificationWorkerNilSafe(t *testing.T) {
	var w *NotificationWorker
	w.Start()
	w.Stop()

	empty := NewNotificationWorker(nil, nil, nil)
	empty.Start()
	empty.Stop()
}
