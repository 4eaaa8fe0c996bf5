package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/locker"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/repository"
	"github.com/corpnet/helpdesk/internal/repository/memory"
)

const (
	userCreator  = "u-creator"
	userAlice    = "u-alice"
	userBob      = "u-bob"
	userCarol    = "u-carol"
	userManager  = "u-manager"
	userAdmin    = "u-admin"
	userOutsider = "u-outsider"

	typeSupport = "type-sup"
	typeNetwork = "type-net"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// stepClock advances one second per reading so orderings are deterministic.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fixture struct {
	store        *memory.Store
	dir          *memory.Directory
	dispatcher   *recordingDispatcher
	tickets      *TicketService
	participants *ParticipantService
	messages     *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	manager := userManager
	for _, u := range []domain.User{
		{ID: userCreator, Email: "creator@corp.example", DisplayName: "Chris Creator", RoleName: "employee", Active: true},
		{ID: userAlice, Email: "alice@corp.example", DisplayName: "Alice", RoleName: "technician", ManagerID: &manager, Active: true},
		{ID: userBob, Email: "bob@corp.example", DisplayName: "Bob", RoleName: "technician", Active: true},
		{ID: userCarol, Email: "carol@corp.example", DisplayName: "Carol", RoleName: "employee", Active: true},
		{ID: userManager, Email: "manager@corp.example", DisplayName: "Morgan", RoleName: "manager", Active: true},
		{ID: userAdmin, Email: "admin@corp.example", DisplayName: "Ada", RoleName: "admin", Active: true},
		{ID: userOutsider, Email: "outsider@corp.example", DisplayName: "Otto", RoleName: "employee", Active: true},
	} {
		dir.AddUser(u)
	}
	bob := userBob
	dir.AddType(domain.TicketType{ID: typeSupport, Code: "SUP", Name: "Support", IsActive: true})
	dir.AddType(domain.TicketType{ID: typeNetwork, Code: "NET", Name: "Network", DefaultAssigneeID: &bob, IsActive: true})
	dir.AddType(domain.TicketType{ID: "type-old", Code: "OLD", Name: "Retired", IsActive: false})
	dir.AddDepartment(domain.Department{ID: "dep-it", Name: "IT", IsActive: true})

	resolver, err := permission.NewCapabilityResolver("", nil)
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	clock := &stepClock{cur: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)}
	deps := Dependencies{
		Tx:          store,
		Repos:       store.Repositories(),
		Users:       dir,
		TicketTypes: dir.TicketTypes(),
		Departments: dir.Departments(),
		Locker:      locker.NewKeyedMutex(0),
		Dispatcher:  dispatcher,
		Visibility:  resolver,
		Now:         clock.Now,
	}
	tickets := NewTicketService(deps)
	return &fixture{
		store:        store,
		dir:          dir,
		dispatcher:   dispatcher,
		tickets:      tickets,
		participants: NewParticipantService(deps),
		messages:     NewMessageService(deps),
	}
}

func (f *fixture) createTicket(t *testing.T, actorID string, input CreateTicketInput) *domain.Ticket {
	t.Helper()
	if input.Title == "" {
		input.Title = "VPN drops every hour"
	}
	if input.TicketTypeID == "" {
		input.TicketTypeID = typeSupport
	}
	view, err := f.tickets.Create(context.Background(), input, actorID)
	require.NoError(t, err)
	return view.Ticket
}

func (f *fixture) participant(t *testing.T, ticketID, userID string) *domain.TicketParticipant {
	t.Helper()
	p, err := f.store.Repositories().Participants.Get(context.Background(), ticketID, userID)
	require.NoError(t, err)
	return p
}

func (f *fixture) ticket(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Repositories().Tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) history(t *testing.T, ticketID string) []domain.TicketHistory {
	t.Helper()
	entries, err := f.store.Repositories().History.ListByTicket(context.Background(), ticketID, repository.MaxPageSize, 0)
	require.NoError(t, err)
	return entries
}

func activeWithRole(t *testing.T, repos repository.Repositories, ticketID string, role domain.ParticipantRole) []string {
	t.Helper()
	rows, err := repos.Participants.ListByTicket(context.Background(), ticketID, true)
	require.NoError(t, err)
	var ids []string
	for _, p := range rows {
		if p.Role == role {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func historyActions(entries []domain.TicketHistory) []domain.HistoryAction {
	out := make([]domain.HistoryAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func strPtr(v string) *string { return &v }
