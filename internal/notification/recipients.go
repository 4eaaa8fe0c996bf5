// Package notification turns ticket events into best-effort email notifications.
package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/repository"
)

// Recipients is the address set for one notification.
type Recipients struct {
	To []string
	Cc []string
}

// Empty reports whether nobody would receive the notification.
func (r Recipients) Empty() bool {
	return len(r.To) == 0 && len(r.Cc) == 0
}

// RecipientResolver computes notification addresses from ticket and participant state.
type RecipientResolver struct {
	tickets      repository.TicketRepository
	participants repository.ParticipantRepository
	users        repository.UserDirectory
	validate     *validator.Validate
}

// NewRecipientResolver constructs the resolver.
func NewRecipientResolver(tickets repository.TicketRepository, participants repository.ParticipantRepository, users repository.UserDirectory) *RecipientResolver {
	return &RecipientResolver{
		tickets:      tickets,
		participants: participants,
		users:        users,
		validate:     validator.New(),
	}
}

// BuildRecipients addresses the assignee (or, failing that, the creator) and
// copies every other active participant that receives notifications.
// The excluded actor never appears in either set; invalid addresses are dropped.
func (r *RecipientResolver) BuildRecipients(ctx context.Context, ticketID, excludeActorID string) (Recipients, error) {
	_, recipients, err := r.Resolve(ctx, ticketID, nil, excludeActorID)
	return recipients, err
}

// Resolve loads the ticket and its recipients. A non-empty audience replaces
// participant-based resolution with exactly those users.
func (r *RecipientResolver) Resolve(ctx context.Context, ticketID string, audience []string, excludeActorID string) (*domain.Ticket, Recipients, error) {
	ticket, err := r.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, Recipients{}, err
	}
	if !ticket.NotificationsEnabled {
		return ticket, Recipients{}, nil
	}

	participants, err := r.participants.ListByTicket(ctx, ticketID, true)
	if err != nil {
		return nil, Recipients{}, err
	}
	rows := make(map[string]domain.TicketParticipant, len(participants))
	for _, p := range participants {
		rows[p.UserID] = p
	}
	wants := func(userID string) bool {
		p, ok := rows[userID]
		return !ok || p.ReceiveNotifications
	}

	b := newAddressBook(r.validate)
	if excludeActorID != "" {
		if actor, err := r.lookup(ctx, excludeActorID); err != nil {
			return nil, Recipients{}, err
		} else if actor != nil {
			b.exclude(actor.Email)
		}
	}

	if len(audience) > 0 {
		for _, userID := range audience {
			if userID == excludeActorID || !wants(userID) {
				continue
			}
			u, err := r.lookup(ctx, userID)
			if err != nil {
				return nil, Recipients{}, err
			}
			if u != nil {
				b.addTo(u.Email)
			}
		}
		return ticket, b.recipients(), nil
	}

	primary := ""
	if ticket.AssignedTo != nil && *ticket.AssignedTo != excludeActorID && wants(*ticket.AssignedTo) {
		if u, err := r.lookup(ctx, *ticket.AssignedTo); err != nil {
			return nil, Recipients{}, err
		} else if u != nil && b.valid(u.Email) {
			primary = u.Email
		}
	}
	if primary == "" && ticket.CreatedBy != excludeActorID && wants(ticket.CreatedBy) {
		if u, err := r.lookup(ctx, ticket.CreatedBy); err != nil {
			return nil, Recipients{}, err
		} else if u != nil {
			primary = u.Email
		}
	}
	b.addTo(primary)

	for _, p := range participants {
		if p.UserID == ticket.CreatedBy || ticket.IsAssignedTo(p.UserID) {
			continue
		}
		if p.UserID == excludeActorID || !p.ReceiveNotifications {
			continue
		}
		u, err := r.lookup(ctx, p.UserID)
		if err != nil {
			return nil, Recipients{}, err
		}
		if u != nil {
			b.addCc(u.Email)
		}
	}
	return ticket, b.recipients(), nil
}

// lookup returns nil for users missing from the directory.
func (r *RecipientResolver) lookup(ctx context.Context, userID string) (*domain.User, error) {
	u, err := r.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

type addressBook struct {
	validate *validator.Validate
	seen     map[string]struct{}
	excluded map[string]struct{}
	to       []string
	cc       []string
}

func newAddressBook(v *validator.Validate) *addressBook {
	return &addressBook{
		validate: v,
		seen:     map[string]struct{}{},
		excluded: map[string]struct{}{},
	}
}

func (b *addressBook) valid(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr != "" && b.validate.Var(addr, "required,email") == nil
}

func (b *addressBook) exclude(addr string) {
	if key := normalize(addr); key != "" {
		b.excluded[key] = struct{}{}
	}
}

func (b *addressBook) accept(addr string) (string, bool) {
	addr = strings.TrimSpace(addr)
	if !b.valid(addr) {
		return "", false
	}
	key := normalize(addr)
	if _, ok := b.excluded[key]; ok {
		return "", false
	}
	if _, ok := b.seen[key]; ok {
		return "", false
	}
	b.seen[key] = struct{}{}
	return addr, true
}

func (b *addressBook) addTo(addr string) {
	if a, ok := b.accept(addr); ok {
		b.to = append(b.to, a)
	}
}

func (b *addressBook) addCc(addr string) {
	if a, ok := b.accept(addr); ok {
		b.cc = append(b.cc, a)
	}
}

func (b *addressBook) recipients() Recipients {
	return Recipients{To: b.to, Cc: b.cc}
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
