package service

import (
	"context"
	"fmt"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/repository"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// ParticipantService manages who takes part in a ticket and with which rights.
type ParticipantService struct {
	*core
	tickets *TicketService
}

// ParticipantPatch overrides role defaults; nil fields are left unchanged.
// A role change resets flags to the new role's defaults before overrides apply.
type ParticipantPatch struct {
	Role                 *domain.ParticipantRole
	CanComment           *bool
	CanEdit              *bool
	CanClose             *bool
	CanAssign            *bool
	ReceiveNotifications *bool
}

// NewParticipantService constructs the service.
func NewParticipantService(deps Dependencies) *ParticipantService {
	c := newCore(deps)
	return &ParticipantService{core: c, tickets: &TicketService{core: c}}
}

// EnsureParticipant admits userID idempotently: an active row is left as is,
// a removed one is reactivated with role defaults. CREATOR cannot be granted
// here, and ASSIGNEE goes through assignment so ticket.AssignedTo follows.
func (s *ParticipantService) EnsureParticipant(ctx context.Context, ticketID, userID string, role domain.ParticipantRole, addedBy string) (*domain.TicketParticipant, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if role == domain.RoleCreator {
		return nil, apperrors.NewInvalidState("use ownership transfer to change the creator", map[string]any{"user_id": userID})
	}
	var (
		out          *domain.TicketParticipant
		previous     *string
		assigned     bool
		ticketNumber string
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		existing, err := participantRow(ctx, repos, ticketID, userID)
		if err != nil {
			return err
		}
		if role != domain.RoleAssignee || existing.Active() {
			out, _, err = s.ensureParticipant(ctx, repos, ticketID, userID, role, addedBy)
			return err
		}
		ticketNumber = ticket.TicketNumber
		previous, assigned, err = s.assign(ctx, repos, ticket, userID, addedBy)
		if err != nil {
			return err
		}
		if assigned {
			if err := s.tickets.recordAssignment(ctx, repos, ticket, previous, addedBy); err != nil {
				return err
			}
		}
		out, err = participantRow(ctx, repos, ticketID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if assigned {
		s.publishAssigned(ctx, ticketID, ticketNumber, userID, previous, addedBy)
	}
	return out, nil
}

// AddParticipant explicitly admits a user. Only the creator or assignee may
// do so; adding someone as ASSIGNEE reassigns the ticket.
func (s *ParticipantService) AddParticipant(ctx context.Context, ticketID, userID string, role domain.ParticipantRole, actorID string) (*domain.TicketParticipant, error) {
	if role == "" {
		role = domain.RoleCollaborator
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if role == domain.RoleCreator {
		return nil, apperrors.NewValidationError("use ownership transfer to change the creator", map[string]any{"role": role})
	}
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if role == domain.RoleAssignee {
		if _, err := s.tickets.AssignTicket(ctx, ticketID, userID, actorID); err != nil {
			return nil, err
		}
		return s.activeParticipant(ctx, ticketID, userID)
	}

	var (
		added        *domain.TicketParticipant
		ticketNumber string
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		actor, err := participantRow(ctx, repos, ticketID, actorID)
		if err != nil {
			return err
		}
		if !permission.CanManageParticipants(actor) {
			return apperrors.NewAccessDenied("only the creator or assignee may add participants")
		}
		existing, err := participantRow(ctx, repos, ticketID, userID)
		if err != nil {
			return err
		}
		if existing.Active() {
			return apperrors.NewInvalidState("user is already a participant", map[string]any{"user_id": userID})
		}
		added, _, err = s.ensureParticipant(ctx, repos, ticketID, userID, role, actorID)
		if err != nil {
			return err
		}
		ticketNumber = ticket.TicketNumber
		return s.history(ctx, repos, ticketID, actorID, domain.HistoryParticipantAdded, nil,
			map[string]any{"userId": userID, "role": role}, fmt.Sprintf("participant added as %s", role))
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventParticipantAdded,
		TicketID: ticketID,
		ActorID:  actorID,
		Audience: []string{userID},
		Payload:  events.ParticipantAddedPayload{TicketNumber: ticketNumber, UserID: userID, Role: role},
	})
	return added, nil
}

// UpdateParticipant changes a participant's role and permission overrides.
// Only the creator may do so.
func (s *ParticipantService) UpdateParticipant(ctx context.Context, ticketID, userID string, patch ParticipantPatch, actorID string) (*domain.TicketParticipant, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *patch.Role})
	}

	var (
		updated      *domain.TicketParticipant
		previous     *string
		assigned     bool
		ticketNumber string
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, target, err := s.loadForCreator(ctx, repos, ticketID, userID, actorID)
		if err != nil {
			return err
		}
		ticketNumber = ticket.TicketNumber
		before := participantValues(target)
		if patch.Role != nil && *patch.Role != target.Role {
			if err := checkRoleChange(ticket, target, *patch.Role); err != nil {
				return err
			}
			if *patch.Role == domain.RoleAssignee {
				previous, assigned, err = s.assign(ctx, repos, ticket, userID, actorID)
				if err != nil {
					return err
				}
				if assigned {
					if err := s.tickets.recordAssignment(ctx, repos, ticket, previous, actorID); err != nil {
						return err
					}
				}
				if target, err = participantRow(ctx, repos, ticketID, userID); err != nil {
					return err
				}
			} else {
				target.SetRole(*patch.Role)
			}
		}
		applyOverrides(target, patch)
		if err := repos.Participants.Update(ctx, target); err != nil {
			return apperrors.NewInternalError(err)
		}
		updated = target
		return s.history(ctx, repos, ticketID, actorID, domain.HistoryUpdated, before, participantValues(target), "participant updated")
	})
	if err != nil {
		return nil, err
	}
	if assigned {
		s.publishAssigned(ctx, ticketID, ticketNumber, userID, previous, actorID)
	}
	return updated, nil
}

// ChangeRole switches a participant's role. The creator's role is immutable,
// promoting to ASSIGNEE reassigns the ticket, and the current assignee cannot
// be demoted without reassigning first.
func (s *ParticipantService) ChangeRole(ctx context.Context, ticketID, userID string, role domain.ParticipantRole, actorID string) (*domain.TicketParticipant, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if role == domain.RoleCreator {
		return nil, apperrors.NewInvalidState("use ownership transfer to change the creator", nil)
	}

	var (
		updated      *domain.TicketParticipant
		previous     *string
		assigned     bool
		ticketNumber string
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, target, err := s.loadForCreator(ctx, repos, ticketID, userID, actorID)
		if err != nil {
			return err
		}
		if target.Role == role {
			updated = target
			return nil
		}
		if err := checkRoleChange(ticket, target, role); err != nil {
			return err
		}
		ticketNumber = ticket.TicketNumber
		if role == domain.RoleAssignee {
			previous, assigned, err = s.assign(ctx, repos, ticket, userID, actorID)
			if err != nil {
				return err
			}
			if assigned {
				if err := s.tickets.recordAssignment(ctx, repos, ticket, previous, actorID); err != nil {
					return err
				}
			}
			updated, err = participantRow(ctx, repos, ticketID, userID)
			return err
		}
		before := participantValues(target)
		target.SetRole(role)
		if err := repos.Participants.Update(ctx, target); err != nil {
			return apperrors.NewInternalError(err)
		}
		updated = target
		return s.history(ctx, repos, ticketID, actorID, domain.HistoryUpdated, before, participantValues(target),
			fmt.Sprintf("participant role changed to %s", role))
	})
	if err != nil {
		return nil, err
	}
	if assigned {
		s.publishAssigned(ctx, ticketID, ticketNumber, userID, previous, actorID)
	}
	return updated, nil
}

// RemoveParticipant logically removes a participant. The creator and the
// current assignee cannot be removed.
func (s *ParticipantService) RemoveParticipant(ctx context.Context, ticketID, userID, actorID string) error {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, target, err := s.loadForCreator(ctx, repos, ticketID, userID, actorID)
		if err != nil {
			return err
		}
		if target.Role == domain.RoleCreator || permission.IsCreator(ticket, userID) {
			return apperrors.NewInvalidState("the creator cannot be removed", map[string]any{"user_id": userID})
		}
		if permission.IsAssignee(ticket, userID) {
			return apperrors.NewInvalidState("reassign the ticket before removing its assignee", map[string]any{"user_id": userID})
		}
		now := s.now()
		target.RemovedAt = &now
		if err := repos.Participants.Update(ctx, target); err != nil {
			return apperrors.NewInternalError(err)
		}
		return s.history(ctx, repos, ticketID, actorID, domain.HistoryParticipantRemoved,
			map[string]any{"userId": userID, "role": target.Role}, nil, "participant removed")
	})
}

// TransferOwnership hands the CREATOR role to newOwnerID. The previous creator
// stays on as COLLABORATOR, or ASSIGNEE while still assigned. A new owner who
// was the assignee is unassigned.
func (s *ParticipantService) TransferOwnership(ctx context.Context, ticketID, newOwnerID, actorID string) (*domain.TicketView, error) {
	if _, err := s.requireUser(ctx, newOwnerID); err != nil {
		return nil, err
	}
	var (
		oldSnap, newSnap map[string]any
		ticketNumber     string
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		if !permission.IsCreator(ticket, actorID) {
			return apperrors.NewAccessDenied("only the creator may transfer ownership")
		}
		if newOwnerID == actorID {
			return apperrors.NewInvalidState("user already owns this ticket", map[string]any{"user_id": newOwnerID})
		}
		now := s.now()
		oldSnap = ticket.Snapshot()
		oldSnap["createdBy"] = ticket.CreatedBy

		previous, err := participantRow(ctx, repos, ticketID, actorID)
		if err != nil {
			return err
		}
		if previous != nil {
			if ticket.IsAssignedTo(actorID) {
				previous.SetRole(domain.RoleAssignee)
			} else {
				previous.SetRole(domain.RoleCollaborator)
			}
			previous.RemovedAt = nil
			if err := repos.Participants.Update(ctx, previous); err != nil {
				return apperrors.NewInternalError(err)
			}
		}

		owner, err := participantRow(ctx, repos, ticketID, newOwnerID)
		if err != nil {
			return err
		}
		if owner == nil {
			if err := repos.Participants.Create(ctx, domain.NewParticipant(ticketID, newOwnerID, domain.RoleCreator, actorID, now)); err != nil {
				return mapRepoError(err, "participant", nil)
			}
		} else {
			if !owner.Active() {
				owner.RemovedAt = nil
				owner.JoinedAt = now
			}
			owner.SetRole(domain.RoleCreator)
			if err := repos.Participants.Update(ctx, owner); err != nil {
				return apperrors.NewInternalError(err)
			}
		}

		if ticket.IsAssignedTo(newOwnerID) {
			ticket.AssignedTo = nil
		}
		ticket.CreatedBy = newOwnerID
		ticket.UpdatedAt = now
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		newSnap = ticket.Snapshot()
		newSnap["createdBy"] = ticket.CreatedBy
		ticketNumber = ticket.TicketNumber
		return s.history(ctx, repos, ticketID, actorID, domain.HistoryUpdated, oldSnap, newSnap, "ownership transferred")
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.TicketUpdatedPayload{TicketNumber: ticketNumber, Old: oldSnap, New: newSnap},
	})
	return s.refreshedView(ctx, ticketID)
}

// ListParticipants returns the active participants of a ticket the actor may see.
func (s *ParticipantService) ListParticipants(ctx context.Context, ticketID, actorID string) ([]domain.TicketParticipant, error) {
	ticket, err := loadTicket(ctx, s.repos, ticketID, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireView(ctx, s.repos, ticket, actorID); err != nil {
		return nil, err
	}
	out, err := s.repos.Participants.ListByTicket(ctx, ticketID, true)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return out, nil
}

// loadForCreator loads the ticket and target row, requiring actorID to hold
// the CREATOR role and the target to be active.
func (s *ParticipantService) loadForCreator(ctx context.Context, repos repository.Repositories, ticketID, userID, actorID string) (*domain.Ticket, *domain.TicketParticipant, error) {
	ticket, err := loadTicket(ctx, repos, ticketID, true)
	if err != nil {
		return nil, nil, err
	}
	actor, err := participantRow(ctx, repos, ticketID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !permission.IsCreatorRole(actor) {
		return nil, nil, apperrors.NewAccessDenied("only the creator may manage participants")
	}
	target, err := participantRow(ctx, repos, ticketID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !target.Active() {
		return nil, nil, apperrors.NewNotFound("participant", map[string]any{"ticket_id": ticketID, "user_id": userID})
	}
	return ticket, target, nil
}

func (s *ParticipantService) activeParticipant(ctx context.Context, ticketID, userID string) (*domain.TicketParticipant, error) {
	p, err := participantRow(ctx, s.repos, ticketID, userID)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, apperrors.NewNotFound("participant", map[string]any{"ticket_id": ticketID, "user_id": userID})
	}
	return p, nil
}

func (s *ParticipantService) publishAssigned(ctx context.Context, ticketID, ticketNumber, userID string, previous *string, actorID string) {
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		ActorID:  actorID,
		Audience: []string{userID},
		Payload: events.TicketAssignedPayload{
			TicketNumber:       ticketNumber,
			AssigneeID:         userID,
			PreviousAssigneeID: previous,
		},
	})
}

func checkRoleChange(ticket *domain.Ticket, target *domain.TicketParticipant, role domain.ParticipantRole) error {
	if target.Role == domain.RoleCreator {
		return apperrors.NewInvalidState("the creator's role cannot be changed", map[string]any{"user_id": target.UserID})
	}
	if role == domain.RoleCreator {
		return apperrors.NewInvalidState("use ownership transfer to change the creator", nil)
	}
	if role != domain.RoleAssignee && ticket.IsAssignedTo(target.UserID) {
		return apperrors.NewInvalidState("reassign the ticket before changing its assignee's role", map[string]any{"user_id": target.UserID})
	}
	return nil
}

func applyOverrides(p *domain.TicketParticipant, patch ParticipantPatch) {
	if patch.CanComment != nil {
		p.CanComment = *patch.CanComment
	}
	if patch.CanEdit != nil {
		p.CanEdit = *patch.CanEdit
	}
	if patch.CanClose != nil {
		p.CanClose = *patch.CanClose
	}
	if patch.CanAssign != nil {
		p.CanAssign = *patch.CanAssign
	}
	if patch.ReceiveNotifications != nil {
		p.ReceiveNotifications = *patch.ReceiveNotifications
	}
}

func participantValues(p *domain.TicketParticipant) map[string]any {
	return map[string]any{
		"userId":               p.UserID,
		"role":                 p.Role,
		"canComment":           p.CanComment,
		"canEdit":              p.CanEdit,
		"canClose":             p.CanClose,
		"canAssign":            p.CanAssign,
		"receiveNotifications": p.ReceiveNotifications,
	}
}
