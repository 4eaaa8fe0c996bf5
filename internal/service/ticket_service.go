package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/repository"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	*core
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title                string
	Description          string
	Priority             domain.TicketPriority
	TicketTypeID         string
	AssignedTo           *string
	DepartmentID         *string
	ParentTicketID       *string
	DueDate              *time.Time
	EstimatedHours       *float64
	Tags                 []string
	IsUrgent             bool
	IsInternal           bool
	NotificationsEnabled *bool
	CustomFields         map[string]any
	ParticipantIDs       []string
}

// UpdateTicketInput is a partial update; nil fields are left unchanged.
// An empty DepartmentID or ParentTicketID clears the field.
type UpdateTicketInput struct {
	Title                *string
	Description          *string
	Status               *domain.TicketStatus
	Priority             *domain.TicketPriority
	TicketTypeID         *string
	DepartmentID         *string
	ParentTicketID       *string
	DueDate              *time.Time
	EstimatedHours       *float64
	ActualHours          *float64
	Tags                 *[]string
	IsUrgent             *bool
	IsInternal           *bool
	NotificationsEnabled *bool
	CustomFields         map[string]any
	Resolution           *string
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{core: newCore(deps)}
}

// Create opens a ticket, admits its creator, assignee and collaborators and
// numbers it within its type and year.
func (s *TicketService) Create(ctx context.Context, input CreateTicketInput, actorID string) (*domain.TicketView, error) {
	if _, err := s.requireUser(ctx, actorID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	ticketType, err := s.ticketType(ctx, input.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if input.DepartmentID != nil {
		if err := s.checkDepartment(ctx, *input.DepartmentID); err != nil {
			return nil, err
		}
	}
	if input.ParentTicketID != nil {
		if _, err := loadTicket(ctx, s.repos, *input.ParentTicketID, false); err != nil {
			return nil, err
		}
	}
	assignee, err := s.initialAssignee(ctx, input.AssignedTo, ticketType)
	if err != nil {
		return nil, err
	}
	collaborators := make([]string, 0, len(input.ParticipantIDs))
	for _, id := range input.ParticipantIDs {
		if _, err := s.requireUser(ctx, id); err != nil {
			return nil, err
		}
		collaborators = append(collaborators, id)
	}

	now := s.now()
	notifications := true
	if input.NotificationsEnabled != nil {
		notifications = *input.NotificationsEnabled
	}
	ticket := &domain.Ticket{
		Title:                title,
		Description:          strings.TrimSpace(input.Description),
		Status:               domain.TicketStatusOpen,
		Priority:             priority,
		TicketTypeID:         ticketType.ID,
		CreatedBy:            actorID,
		AssignedTo:           assignee,
		DepartmentID:         input.DepartmentID,
		ParentTicketID:       input.ParentTicketID,
		DueDate:              input.DueDate,
		EstimatedHours:       input.EstimatedHours,
		Tags:                 domain.NormalizeTags(input.Tags),
		IsUrgent:             input.IsUrgent,
		IsInternal:           input.IsInternal,
		NotificationsEnabled: notifications,
		CustomFields:         domain.CloneMap(input.CustomFields),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		seq, err := repos.Sequences.Next(ctx, ticketType.Code, now.Year())
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		ticket.TicketNumber = domain.FormatTicketNumber(ticketType.Code, now.Year(), seq)
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("ticket number already taken, retry", map[string]any{"ticket_number": ticket.TicketNumber})
			}
			return apperrors.NewInternalError(err)
		}
		if _, _, err := s.ensureParticipant(ctx, repos, ticket.ID, actorID, domain.RoleCreator, actorID); err != nil {
			return err
		}
		if assignee != nil {
			if _, _, err := s.ensureParticipant(ctx, repos, ticket.ID, *assignee, domain.RoleAssignee, actorID); err != nil {
				return err
			}
		}
		for _, id := range collaborators {
			if _, _, err := s.ensureParticipant(ctx, repos, ticket.ID, id, domain.RoleCollaborator, actorID); err != nil {
				return err
			}
		}
		if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryCreated, nil, ticket.Snapshot(), "ticket created"); err != nil {
			return err
		}
		return s.systemMessage(ctx, repos, ticket.ID, actorID, fmt.Sprintf("Ticket %s created", ticket.TicketNumber), nil)
	})
	if err != nil {
		return nil, err
	}

	evts := []events.Event{{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Title:        ticket.Title,
			Priority:     ticket.Priority,
		},
	}}
	if assignee != nil && *assignee != actorID {
		evts = append(evts, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Audience: []string{*assignee},
			Payload:  events.TicketAssignedPayload{TicketNumber: ticket.TicketNumber, AssigneeID: *assignee},
		})
	}
	s.publishAll(ctx, evts)

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("actor_id", actorID))
	return s.refreshedView(ctx, ticket.ID)
}

// Get returns the ticket view when the actor may see it.
func (s *TicketService) Get(ctx context.Context, id, actorID string) (*domain.TicketView, error) {
	ticket, err := loadTicket(ctx, s.repos, id, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireView(ctx, s.repos, ticket, actorID); err != nil {
		return nil, err
	}
	return s.view(ctx, ticket)
}

// List returns the tickets the actor's visibility capability allows.
// filter.Scope is always replaced.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter, actorID string) ([]domain.Ticket, int, error) {
	actor, err := s.requireUser(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, 0, apperrors.NewValidationError("invalid status filter", map[string]any{"status": st})
		}
	}
	for _, p := range filter.Priorities {
		if !p.Valid() {
			return nil, 0, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": p})
		}
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	filter.Scope = scope
	tickets, total, err := s.repos.Tickets.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewInternalError(err)
	}
	return tickets, total, nil
}

// Update applies a partial update. A status change runs the terminal
// timestamp side effects and adds a SYSTEM message.
func (s *TicketService) Update(ctx context.Context, id string, patch UpdateTicketInput, actorID string) (*domain.TicketView, error) {
	if err := s.validatePatch(ctx, patch); err != nil {
		return nil, err
	}

	var (
		oldSnap, newSnap map[string]any
		oldStatus        domain.TicketStatus
		statusChanged    bool
		ticketNumber     string
	)
	err := s.mutate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		participant, err := participantRow(ctx, repos, ticket.ID, actorID)
		if err != nil {
			return err
		}
		if !permission.CanAccess(participant, ticket, actorID) {
			return apperrors.NewAccessDenied("you are not a participant of this ticket")
		}
		if !permission.CanEdit(participant, ticket, actorID) {
			return apperrors.NewAccessDenied("you may not edit this ticket")
		}

		now := s.now()
		oldSnap = ticket.Snapshot()
		oldStatus = ticket.Status
		applyPatch(ticket, patch)
		if patch.Status != nil {
			statusChanged = ticket.ApplyStatus(*patch.Status, now)
		}
		ticket.UpdatedAt = now
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
		}
		newSnap = ticket.Snapshot()
		ticketNumber = ticket.TicketNumber
		if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryUpdated, oldSnap, newSnap, "ticket updated"); err != nil {
			return err
		}
		if statusChanged {
			return s.systemMessage(ctx, repos, ticket.ID, actorID,
				fmt.Sprintf("Status changed from %s to %s", oldStatus, ticket.Status),
				map[string]any{"oldStatus": oldStatus, "newStatus": ticket.Status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evts := []events.Event{{
		Type:     events.EventTicketUpdated,
		TicketID: id,
		ActorID:  actorID,
		Payload:  events.TicketUpdatedPayload{TicketNumber: ticketNumber, Old: oldSnap, New: newSnap},
	}}
	if statusChanged {
		evts = append(evts, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: id,
			ActorID:  actorID,
			Payload: events.TicketStatusChangedPayload{
				TicketNumber: ticketNumber,
				OldStatus:    oldStatus,
				NewStatus:    *patch.Status,
			},
		})
	}
	s.publishAll(ctx, evts)
	return s.refreshedView(ctx, id)
}

// AssignTicket makes assigneeID the single assignee, removing the previous
// holder's ASSIGNEE row. Assigning the current assignee again is a no-op.
func (s *TicketService) AssignTicket(ctx context.Context, id, assigneeID, actorID string) (*domain.TicketView, error) {
	if _, err := s.requireUser(ctx, assigneeID); err != nil {
		return nil, err
	}

	var (
		previous     *string
		changed      bool
		ticketNumber string
	)
	err := s.mutate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		participant, err := participantRow(ctx, repos, ticket.ID, actorID)
		if err != nil {
			return err
		}
		if !permission.CanAssign(participant, ticket, actorID) {
			return apperrors.NewAccessDenied("you may not assign this ticket")
		}
		ticketNumber = ticket.TicketNumber
		previous, changed, err = s.assign(ctx, repos, ticket, assigneeID, actorID)
		if err != nil || !changed {
			return err
		}
		return s.recordAssignment(ctx, repos, ticket, previous, actorID)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: id,
			ActorID:  actorID,
			Audience: []string{assigneeID},
			Payload: events.TicketAssignedPayload{
				TicketNumber:       ticketNumber,
				AssigneeID:         assigneeID,
				PreviousAssigneeID: previous,
			},
		})
	}
	return s.refreshedView(ctx, id)
}

func (s *TicketService) recordAssignment(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, previous *string, actorID string) error {
	oldValues := map[string]any{"assignedTo": nil}
	if previous != nil {
		oldValues["assignedTo"] = *previous
	}
	assignee := *ticket.AssignedTo
	if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryAssigned, oldValues, map[string]any{"assignedTo": assignee}, "ticket assigned"); err != nil {
		return err
	}
	name := assignee
	if u := s.findUser(ctx, assignee); u != nil && u.DisplayName != "" {
		name = u.DisplayName
	}
	return s.systemMessage(ctx, repos, ticket.ID, actorID, fmt.Sprintf("Ticket assigned to %s", name),
		map[string]any{"assignedTo": assignee})
}

// UnassignTicket clears the assignee and removes its ASSIGNEE row.
func (s *TicketService) UnassignTicket(ctx context.Context, id, actorID string) (*domain.TicketView, error) {
	var (
		previous     *string
		ticketNumber string
		oldSnap      map[string]any
		newSnap      map[string]any
	)
	err := s.mutate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		participant, err := participantRow(ctx, repos, ticket.ID, actorID)
		if err != nil {
			return err
		}
		if !permission.CanAssign(participant, ticket, actorID) {
			return apperrors.NewAccessDenied("you may not assign this ticket")
		}
		if ticket.AssignedTo == nil {
			return nil
		}
		previous = ticket.AssignedTo
		ticketNumber = ticket.TicketNumber
		oldSnap = ticket.Snapshot()
		if err := s.dropAssigneeRow(ctx, repos, ticket.ID, *previous); err != nil {
			return err
		}
		ticket.AssignedTo = nil
		ticket.UpdatedAt = s.now()
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
		}
		newSnap = ticket.Snapshot()
		if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryUnassigned,
			map[string]any{"assignedTo": *previous}, map[string]any{"assignedTo": nil}, "ticket unassigned"); err != nil {
			return err
		}
		return s.systemMessage(ctx, repos, ticket.ID, actorID, "Ticket unassigned", map[string]any{"previousAssignee": *previous})
	})
	if err != nil {
		return nil, err
	}
	if previous != nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: id,
			ActorID:  actorID,
			Payload:  events.TicketUpdatedPayload{TicketNumber: ticketNumber, Old: oldSnap, New: newSnap},
		})
	}
	return s.refreshedView(ctx, id)
}

// CloseTicket closes the ticket with a resolution. Timestamps already set by
// an earlier close are kept.
func (s *TicketService) CloseTicket(ctx context.Context, id, resolution, actorID string) (*domain.TicketView, error) {
	resolution = strings.TrimSpace(resolution)
	var (
		creatorID    string
		ticketNumber string
	)
	err := s.mutate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		participant, err := participantRow(ctx, repos, ticket.ID, actorID)
		if err != nil {
			return err
		}
		if !permission.CanClose(participant, ticket, actorID) {
			return apperrors.NewAccessDenied("you may not close this ticket")
		}

		now := s.now()
		oldValues := map[string]any{"status": ticket.Status, "resolution": derefOrNil(ticket.Resolution)}
		ticket.ApplyStatus(domain.TicketStatusClosed, now)
		if ticket.ClosedAt == nil {
			ticket.ClosedAt = &now
		}
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
		ticket.Resolution = &resolution
		ticket.UpdatedAt = now
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
		}
		creatorID, ticketNumber = ticket.CreatedBy, ticket.TicketNumber
		newValues := map[string]any{"status": ticket.Status, "resolution": resolution, "closedAt": *ticket.ClosedAt}
		if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryClosed, oldValues, newValues, "ticket closed"); err != nil {
			return err
		}
		content := "Ticket closed"
		if resolution != "" {
			content += ": " + resolution
		}
		return s.systemMessage(ctx, repos, ticket.ID, actorID, content, map[string]any{"resolution": resolution})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: id,
		ActorID:  actorID,
		Audience: []string{creatorID},
		Payload:  events.TicketClosedPayload{TicketNumber: ticketNumber, Resolution: resolution},
	})
	return s.refreshedView(ctx, id)
}

// ReopenTicket moves a finished ticket back to OPEN and clears its closing timestamps.
func (s *TicketService) ReopenTicket(ctx context.Context, id, actorID string) (*domain.TicketView, error) {
	var (
		oldStatus    domain.TicketStatus
		ticketNumber string
	)
	err := s.mutate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		participant, err := participantRow(ctx, repos, ticket.ID, actorID)
		if err != nil {
			return err
		}
		if !permission.CanClose(participant, ticket, actorID) {
			return apperrors.NewAccessDenied("you may not reopen this ticket")
		}
		if !ticket.Status.Terminal() {
			return apperrors.NewInvalidState("ticket is not closed", map[string]any{"status": ticket.Status})
		}
		oldStatus, ticketNumber = ticket.Status, ticket.TicketNumber
		now := s.now()
		ticket.ApplyStatus(domain.TicketStatusOpen, now)
		ticket.ResolvedAt = nil
		ticket.UpdatedAt = now
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
		}
		if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryReopened,
			map[string]any{"status": oldStatus}, map[string]any{"status": ticket.Status}, "ticket reopened"); err != nil {
			return err
		}
		return s.systemMessage(ctx, repos, ticket.ID, actorID, "Ticket reopened", nil)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: id,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticketNumber,
			OldStatus:    oldStatus,
			NewStatus:    domain.TicketStatusOpen,
		},
	})
	return s.refreshedView(ctx, id)
}

// Remove hard-deletes a ticket. Only its creator may do so; the DELETED
// history entry outlives the ticket.
func (s *TicketService) Remove(ctx context.Context, id, actorID string) error {
	err := s.mutate(ctx, id, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		if !permission.IsCreator(ticket, actorID) {
			return apperrors.NewAccessDenied("only the creator may remove this ticket")
		}
		if err := s.history(ctx, repos, ticket.ID, actorID, domain.HistoryDeleted, ticket.Snapshot(), nil, "ticket deleted"); err != nil {
			return err
		}
		if err := repos.Messages.DeleteByTicket(ctx, ticket.ID); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := repos.Participants.DeleteByTicket(ctx, ticket.ID); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := repos.Tickets.Delete(ctx, ticket.ID); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("ticket removed", zap.String("ticket_id", id), zap.String("actor_id", actorID))
	return nil
}

// ListHistory returns the audit trail, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, id, actorID string, limit, offset int) ([]domain.TicketHistory, error) {
	ticket, err := loadTicket(ctx, s.repos, id, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireView(ctx, s.repos, ticket, actorID); err != nil {
		return nil, err
	}
	entries, err := s.repos.History.ListByTicket(ctx, id, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

func (s *TicketService) ticketType(ctx context.Context, id string) (*domain.TicketType, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("ticket type is required", map[string]any{"field": "ticketTypeId"})
	}
	t, err := s.types.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "ticket type", map[string]any{"ticket_type_id": id})
	}
	if !t.IsActive {
		return nil, apperrors.NewValidationError("ticket type is inactive", map[string]any{"ticket_type_id": id})
	}
	if strings.TrimSpace(t.Code) == "" {
		return nil, apperrors.NewValidationError("ticket type has no code", map[string]any{"ticket_type_id": id})
	}
	return t, nil
}

func (s *TicketService) checkDepartment(ctx context.Context, id string) error {
	if s.departments == nil {
		return nil
	}
	dep, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "department", map[string]any{"department_id": id})
	}
	if !dep.IsActive {
		return apperrors.NewValidationError("department is inactive", map[string]any{"department_id": id})
	}
	return nil
}

// initialAssignee prefers an explicit assignee, then the type's default
// assignee when that user still exists and is active.
func (s *TicketService) initialAssignee(ctx context.Context, explicit *string, ticketType *domain.TicketType) (*string, error) {
	if explicit != nil && *explicit != "" {
		if _, err := s.requireUser(ctx, *explicit); err != nil {
			return nil, err
		}
		id := *explicit
		return &id, nil
	}
	if ticketType.DefaultAssigneeID == nil {
		return nil, nil
	}
	u := s.findUser(ctx, *ticketType.DefaultAssigneeID)
	if u == nil || !u.Active {
		s.logger.Warn("default assignee unavailable",
			zap.String("ticket_type_id", ticketType.ID),
			zap.String("user_id", *ticketType.DefaultAssigneeID))
		return nil, nil
	}
	id := u.ID
	return &id, nil
}

func (s *TicketService) validatePatch(ctx context.Context, patch UpdateTicketInput) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": *patch.Status})
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
	}
	if patch.TicketTypeID != nil {
		if _, err := s.ticketType(ctx, *patch.TicketTypeID); err != nil {
			return err
		}
	}
	if patch.DepartmentID != nil && *patch.DepartmentID != "" {
		if err := s.checkDepartment(ctx, *patch.DepartmentID); err != nil {
			return err
		}
	}
	if patch.ParentTicketID != nil && *patch.ParentTicketID != "" {
		if _, err := loadTicket(ctx, s.repos, *patch.ParentTicketID, false); err != nil {
			return err
		}
	}
	return nil
}

// applyPatch copies every field except Status, which goes through ApplyStatus.
func applyPatch(t *domain.Ticket, p UpdateTicketInput) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.TicketTypeID != nil {
		t.TicketTypeID = *p.TicketTypeID
	}
	if p.DepartmentID != nil {
		t.DepartmentID = emptyToNil(*p.DepartmentID)
	}
	if p.ParentTicketID != nil {
		if *p.ParentTicketID == t.ID {
			t.ParentTicketID = nil
		} else {
			t.ParentTicketID = emptyToNil(*p.ParentTicketID)
		}
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = p.EstimatedHours
	}
	if p.ActualHours != nil {
		t.ActualHours = p.ActualHours
	}
	if p.Tags != nil {
		t.Tags = domain.NormalizeTags(*p.Tags)
	}
	if p.IsUrgent != nil {
		t.IsUrgent = *p.IsUrgent
	}
	if p.IsInternal != nil {
		t.IsInternal = *p.IsInternal
	}
	if p.NotificationsEnabled != nil {
		t.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.CustomFields != nil {
		t.CustomFields = domain.CloneMap(p.CustomFields)
	}
	if p.Resolution != nil {
		t.Resolution = p.Resolution
	}
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
