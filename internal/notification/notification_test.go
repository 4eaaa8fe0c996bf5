package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/observability"
	"github.com/corpnet/helpdesk/internal/repository"
	"github.com/corpnet/helpdesk/internal/repository/memory"
)

type fixture struct {
	repos    repository.Repositories
	dir      *memory.Directory
	resolver *RecipientResolver
	ticket   *domain.Ticket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	for _, u := range []domain.User{
		{ID: "creator", Email: "creator@corp.example", Active: true},
		{ID: "assignee", Email: "assignee@corp.example", Active: true},
		{ID: "collab", Email: "Collab@corp.example", Active: true},
		{ID: "observer", Email: "not-an-email", Active: true},
		{ID: "muted", Email: "muted@corp.example", Active: true},
		{ID: "gone", Email: "gone@corp.example", Active: true},
	} {
		dir.AddUser(u)
	}

	repos := store.Repositories()
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	assignee := "assignee"
	ticket := &domain.Ticket{
		TicketNumber:         "SUP-2025-0001",
		Title:                "VPN down",
		Status:               domain.TicketStatusOpen,
		Priority:             domain.TicketPriorityHigh,
		TicketTypeID:         "sup",
		CreatedBy:            "creator",
		AssignedTo:           &assignee,
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	add := func(userID string, role domain.ParticipantRole) *domain.TicketParticipant {
		p := domain.NewParticipant(ticket.ID, userID, role, "creator", now)
		require.NoError(t, repos.Participants.Create(ctx, p))
		return p
	}
	add("creator", domain.RoleCreator)
	add("assignee", domain.RoleAssignee)
	add("collab", domain.RoleCollaborator)
	add("observer", domain.RoleObserver)
	muted := add("muted", domain.RoleObserver)
	muted.ReceiveNotifications = false
	require.NoError(t, repos.Participants.Update(ctx, muted))
	gone := add("gone", domain.RoleCollaborator)
	gone.RemovedAt = &now
	require.NoError(t, repos.Participants.Update(ctx, gone))

	return &fixture{
		repos:    repos,
		dir:      dir,
		resolver: NewRecipientResolver(repos.Tickets, repos.Participants, dir),
		ticket:   ticket,
	}
}

func TestBuildRecipientsAddressesAssigneeAndCopiesParticipants(t *testing.T) {
	f := newFixture(t)

	got, err := f.resolver.BuildRecipients(context.Background(), f.ticket.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"assignee@corp.example"}, got.To)
	assert.Equal(t, []string{"Collab@corp.example"}, got.Cc)
}

func TestBuildRecipientsNeverIncludesExcludedActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, actor := range []string{"creator", "assignee", "collab"} {
		got, err := f.resolver.BuildRecipients(ctx, f.ticket.ID, actor)
		require.NoError(t, err)
		actorUser, err := f.dir.FindByID(ctx, actor)
		require.NoError(t, err)
		for _, addr := range append(append([]string{}, got.To...), got.Cc...) {
			assert.NotEqual(t, normalize(actorUser.Email), normalize(addr), "actor %s", actor)
			assert.NotEqual(t, "not-an-email", addr)
		}
	}

	got, err := f.resolver.BuildRecipients(ctx, f.ticket.ID, "assignee")
	require.NoError(t, err)
	assert.Equal(t, []string{"creator@corp.example"}, got.To)
}

func TestBuildRecipientsDropsAddressSharedWithActor(t *testing.T) {
	f := newFixture(t)
	f.dir.AddUser(domain.User{ID: "alias", Email: "COLLAB@corp.example", Active: true})

	got, err := f.resolver.BuildRecipients(context.Background(), f.ticket.ID, "alias")
	require.NoError(t, err)
	assert.Empty(t, got.Cc)
}

func TestBuildRecipientsRespectsDisabledNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ticket.NotificationsEnabled = false
	require.NoError(t, f.repos.Tickets.Update(ctx, f.ticket))

	got, err := f.resolver.BuildRecipients(ctx, f.ticket.ID, "")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestResolveWithAudienceTargetsOnlyThoseUsers(t *testing.T) {
	f := newFixture(t)

	_, got, err := f.resolver.Resolve(context.Background(), f.ticket.ID, []string{"assignee"}, "creator")
	require.NoError(t, err)
	assert.Equal(t, []string{"assignee@corp.example"}, got.To)
	assert.Empty(t, got.Cc)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestServiceSendsRenderedNotification(t *testing.T) {
	f := newFixture(t)
	sender := &recordingSender{}
	metrics := observability.NewMetrics()
	svc := NewService(Dependencies{
		Resolver: f.resolver,
		Renderer: NewRenderer("https://helpdesk.example.com"),
		Sender:   sender,
		Metrics:  metrics,
	})
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc.RegisterHandlers(dispatcher)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketClosed,
		TicketID: f.ticket.ID,
		ActorID:  "assignee",
		Audience: []string{"creator"},
		Payload:  events.TicketClosedPayload{TicketNumber: "SUP-2025-0001", Resolution: "Rebooted the **gateway**"},
	}))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"creator@corp.example"}, msg.To)
	assert.Equal(t, "[SUP-2025-0001] Ticket closed", msg.Subject)
	assert.Contains(t, msg.TextBody, "Rebooted the **gateway**")
	assert.Contains(t, msg.HTMLBody, "<strong>gateway</strong>")
	assert.Equal(t, int64(1), metrics.Snapshot()["notifications|ticket_closed|sent"])
}

func TestServiceSwallowsSendFailures(t *testing.T) {
	f := newFixture(t)
	metrics := observability.NewMetrics()
	svc := NewService(Dependencies{
		Resolver: f.resolver,
		Sender:   &recordingSender{err: errors.New("relay refused")},
		Metrics:  metrics,
	})

	err := svc.Handle(context.Background(), events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: f.ticket.ID,
		ActorID:  "collab",
		Payload:  events.TicketMessageAddedPayload{BodyPreview: "any update?"},
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Snapshot()["notifications|ticket_message_added|failed"])
}

func TestServicePromotesCcWhenNoPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ticket.AssignedTo = nil
	require.NoError(t, f.repos.Tickets.Update(ctx, f.ticket))
	sender := &recordingSender{}
	svc := NewService(Dependencies{Resolver: f.resolver, Sender: sender})

	require.NoError(t, svc.Handle(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: f.ticket.ID,
		ActorID:  "creator",
		Payload:  events.TicketUpdatedPayload{},
	}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"assignee@corp.example"}, sender.sent[0].To)
	assert.Equal(t, []string{"Collab@corp.example"}, sender.sent[0].Cc)
}
