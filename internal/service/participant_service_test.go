package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

func TestEnsureParticipantIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{})

	first, err := f.participants.EnsureParticipant(ctx, ticket.ID, userCarol, domain.RoleObserver, userCreator)
	require.NoError(t, err)
	second, err := f.participants.EnsureParticipant(ctx, ticket.ID, userCarol, domain.RoleCollaborator, userCreator)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.RoleObserver, second.Role)

	rows, err := f.store.Repositories().Participants.ListByTicket(ctx, ticket.ID, false)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestEnsureParticipantKeepsCreatorAndAssigneeInvariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{})
	repos := f.store.Repositories()

	_, err := f.participants.EnsureParticipant(ctx, ticket.ID, userAlice, domain.RoleCreator, userBob)
	assert.True(t, apperrors.IsInvalidState(err))
	assert.Equal(t, []string{userCreator}, activeWithRole(t, repos, ticket.ID, domain.RoleCreator))

	f.dispatcher.reset()
	row, err := f.participants.EnsureParticipant(ctx, ticket.ID, userBob, domain.RoleAssignee, userCreator)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssignee, row.Role)

	assigned := f.ticket(t, ticket.ID).AssignedTo
	require.NotNil(t, assigned)
	assert.Equal(t, userBob, *assigned)
	assert.Equal(t, []string{userBob}, activeWithRole(t, repos, ticket.ID, domain.RoleAssignee))
	assert.Len(t, f.dispatcher.ofType(events.EventTicketAssigned), 1)

	again, err := f.participants.EnsureParticipant(ctx, ticket.ID, userBob, domain.RoleAssignee, userCreator)
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)
	assert.Len(t, f.dispatcher.ofType(events.EventTicketAssigned), 1)
}

func TestAddParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userAlice)})
	f.dispatcher.reset()

	added, err := f.participants.AddParticipant(ctx, ticket.ID, userCarol, "", userAlice)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCollaborator, added.Role)
	assert.True(t, added.CanComment)
	assert.False(t, added.CanEdit)

	_, err = f.participants.AddParticipant(ctx, ticket.ID, userCarol, domain.RoleObserver, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	_, err = f.participants.AddParticipant(ctx, ticket.ID, userBob, domain.RoleObserver, userCarol)
	assert.True(t, apperrors.IsAccessDenied(err))

	_, err = f.participants.AddParticipant(ctx, ticket.ID, userBob, domain.RoleCreator, userCreator)
	assert.True(t, apperrors.IsValidation(err))

	added = f.participant(t, ticket.ID, userCarol)
	require.NotNil(t, added.AddedBy)
	assert.Equal(t, userAlice, *added.AddedBy)

	notified := f.dispatcher.ofType(events.EventParticipantAdded)
	require.Len(t, notified, 1)
	assert.Equal(t, []string{userCarol}, notified[0].Audience)

	entries := f.history(t, ticket.ID)
	assert.Equal(t, domain.HistoryParticipantAdded, entries[len(entries)-1].Action)
}

func TestAddParticipantAsAssigneeReassigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userAlice)})

	added, err := f.participants.AddParticipant(ctx, ticket.ID, userBob, domain.RoleAssignee, userCreator)
	require.NoError(t, err)

	assert.Equal(t, domain.RoleAssignee, added.Role)
	assert.Equal(t, userBob, *f.ticket(t, ticket.ID).AssignedTo)
	assert.Equal(t, []string{userBob}, activeWithRole(t, f.store.Repositories(), ticket.ID, domain.RoleAssignee))
}

func TestRemovedParticipantIsReactivated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{ParticipantIDs: []string{userCarol}})

	require.NoError(t, f.participants.RemoveParticipant(ctx, ticket.ID, userCarol, userCreator))
	removed := f.participant(t, ticket.ID, userCarol)
	assert.False(t, removed.Active())

	readded, err := f.participants.AddParticipant(ctx, ticket.ID, userCarol, domain.RoleReviewer, userCreator)
	require.NoError(t, err)
	assert.Equal(t, removed.ID, readded.ID)
	assert.True(t, readded.Active())
	assert.Equal(t, domain.RoleReviewer, readded.Role)
}

func TestRemoveParticipantGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userAlice), ParticipantIDs: []string{userCarol}})

	err := f.participants.RemoveParticipant(ctx, ticket.ID, userCreator, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	err = f.participants.RemoveParticipant(ctx, ticket.ID, userAlice, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	err = f.participants.RemoveParticipant(ctx, ticket.ID, userCarol, userAlice)
	assert.True(t, apperrors.IsAccessDenied(err))

	err = f.participants.RemoveParticipant(ctx, ticket.ID, userBob, userCreator)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, f.participants.RemoveParticipant(ctx, ticket.ID, userCarol, userCreator))
	entries := f.history(t, ticket.ID)
	assert.Equal(t, domain.HistoryParticipantRemoved, entries[len(entries)-1].Action)
}

func TestUpdateParticipantOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{ParticipantIDs: []string{userCarol}})
	no := false

	updated, err := f.participants.UpdateParticipant(ctx, ticket.ID, userCarol, ParticipantPatch{CanComment: &no}, userCreator)
	require.NoError(t, err)
	assert.False(t, updated.CanComment)
	assert.Equal(t, domain.RoleCollaborator, updated.Role)

	_, err = f.messages.PostMessage(ctx, ticket.ID, userCarol, PostMessageInput{Content: "hello"})
	assert.True(t, apperrors.IsAccessDenied(err))

	yes := true
	observer := domain.RoleObserver
	updated, err = f.participants.UpdateParticipant(ctx, ticket.ID, userCarol, ParticipantPatch{Role: &observer, CanEdit: &yes}, userCreator)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleObserver, updated.Role)
	assert.False(t, updated.CanComment, "role change resets flags to the role defaults")
	assert.True(t, updated.CanEdit)

	_, err = f.participants.UpdateParticipant(ctx, ticket.ID, userCarol, ParticipantPatch{CanEdit: &no}, userCarol)
	assert.True(t, apperrors.IsAccessDenied(err))
}

func TestUpdateParticipantPromotesToAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userAlice), ParticipantIDs: []string{userBob}})
	f.dispatcher.reset()
	assignee := domain.RoleAssignee

	updated, err := f.participants.UpdateParticipant(ctx, ticket.ID, userBob, ParticipantPatch{Role: &assignee}, userCreator)
	require.NoError(t, err)

	assert.Equal(t, domain.RoleAssignee, updated.Role)
	assert.Equal(t, userBob, *f.ticket(t, ticket.ID).AssignedTo)
	assert.Equal(t, []string{userBob}, activeWithRole(t, f.store.Repositories(), ticket.ID, domain.RoleAssignee))
	assert.Len(t, f.dispatcher.ofType(events.EventTicketAssigned), 1)
}

func TestChangeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userAlice), ParticipantIDs: []string{userCarol}})

	changed, err := f.participants.ChangeRole(ctx, ticket.ID, userCarol, domain.RoleApprover, userCreator)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleApprover, changed.Role)
	assert.True(t, changed.CanClose)

	_, err = f.participants.ChangeRole(ctx, ticket.ID, userCreator, domain.RoleObserver, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	_, err = f.participants.ChangeRole(ctx, ticket.ID, userCarol, domain.RoleCreator, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	_, err = f.participants.ChangeRole(ctx, ticket.ID, userAlice, domain.RoleObserver, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	_, err = f.participants.ChangeRole(ctx, ticket.ID, userCarol, domain.RoleObserver, userAlice)
	assert.True(t, apperrors.IsAccessDenied(err))

	promoted, err := f.participants.ChangeRole(ctx, ticket.ID, userCarol, domain.RoleAssignee, userCreator)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssignee, promoted.Role)
	assert.Equal(t, userCarol, *f.ticket(t, ticket.ID).AssignedTo)
	assert.False(t, f.participant(t, ticket.ID, userAlice).Active())
	assert.Equal(t, []string{userCreator}, activeWithRole(t, f.store.Repositories(), ticket.ID, domain.RoleCreator))
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userAlice)})

	_, err := f.participants.TransferOwnership(ctx, ticket.ID, userCarol, userAlice)
	assert.True(t, apperrors.IsAccessDenied(err))

	_, err = f.participants.TransferOwnership(ctx, ticket.ID, userCreator, userCreator)
	assert.True(t, apperrors.IsInvalidState(err))

	view, err := f.participants.TransferOwnership(ctx, ticket.ID, userAlice, userCreator)
	require.NoError(t, err)

	assert.Equal(t, userAlice, view.Ticket.CreatedBy)
	assert.Nil(t, view.Ticket.AssignedTo)
	assert.Equal(t, domain.RoleCreator, f.participant(t, ticket.ID, userAlice).Role)
	assert.Equal(t, domain.RoleCollaborator, f.participant(t, ticket.ID, userCreator).Role)
	repos := f.store.Repositories()
	assert.Equal(t, []string{userAlice}, activeWithRole(t, repos, ticket.ID, domain.RoleCreator))
	assert.Empty(t, activeWithRole(t, repos, ticket.ID, domain.RoleAssignee))

	entries := f.history(t, ticket.ID)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.HistoryUpdated, last.Action)
	assert.Equal(t, userCreator, last.OldValues["createdBy"])
	assert.Equal(t, userAlice, last.NewValues["createdBy"])
}

func TestTransferOwnershipKeepsAssignedFormerCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{AssignedTo: strPtr(userCreator)})

	view, err := f.participants.TransferOwnership(ctx, ticket.ID, userCarol, userCreator)
	require.NoError(t, err)

	assert.Equal(t, userCreator, *view.Ticket.AssignedTo)
	assert.Equal(t, domain.RoleAssignee, f.participant(t, ticket.ID, userCreator).Role)
	assert.Equal(t, domain.RoleCreator, f.participant(t, ticket.ID, userCarol).Role)
}

func TestListParticipantsHidesRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userCreator, CreateTicketInput{ParticipantIDs: []string{userCarol, userBob}})
	require.NoError(t, f.participants.RemoveParticipant(ctx, ticket.ID, userBob, userCreator))

	rows, err := f.participants.ListParticipants(ctx, ticket.ID, userCarol)
	require.NoError(t, err)
	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.UserID)
	}
	assert.ElementsMatch(t, []string{userCreator, userCarol}, ids)

	_, err = f.participants.ListParticipants(ctx, ticket.ID, userOutsider)
	assert.True(t, apperrors.IsAccessDenied(err))
}
