package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseTicketNumber(t *testing.T) {
	assert.Equal(t, "SUP-2025-0001", FormatTicketNumber("sup", 2025, 1))
	assert.Equal(t, "NET-2026-12345", FormatTicketNumber("NET", 2026, 12345))

	seq, ok := ParseTicketSequence("SUP-2025-0042")
	require.True(t, ok)
	assert.Equal(t, 42, seq)

	for _, bad := range []string{"", "SUP-2025-", "SUP", "SUP-2025-abc"} {
		_, ok := ParseTicketSequence(bad)
		assert.False(t, ok, bad)
	}
}

func TestApplyStatusSideEffects(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	ticket := &Ticket{Status: TicketStatusOpen}

	assert.False(t, ticket.ApplyStatus(TicketStatusOpen, now))

	require.True(t, ticket.ApplyStatus(TicketStatusResolved, now))
	require.NotNil(t, ticket.ResolvedAt)
	assert.Nil(t, ticket.ClosedAt)

	require.True(t, ticket.ApplyStatus(TicketStatusClosed, later))
	assert.Equal(t, now, *ticket.ResolvedAt, "resolvedAt is only set once")
	assert.Equal(t, later, *ticket.ClosedAt)

	require.True(t, ticket.ApplyStatus(TicketStatusInProgress, later))
	assert.Nil(t, ticket.ClosedAt)

	cancelled := &Ticket{Status: TicketStatusOnHold}
	require.True(t, cancelled.ApplyStatus(TicketStatusCancelled, now))
	assert.NotNil(t, cancelled.ClosedAt)
	assert.Nil(t, cancelled.ResolvedAt)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"printer", "vpn"}, NormalizeTags([]string{" vpn", "printer", "", "vpn "}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestCloneIsIndependent(t *testing.T) {
	assignee := "u-1"
	ticket := &Ticket{AssignedTo: &assignee, Tags: []string{"a"}, CustomFields: map[string]any{"k": "v"}}

	cp := ticket.Clone()
	*cp.AssignedTo = "u-2"
	cp.Tags[0] = "b"
	cp.CustomFields["k"] = "w"

	assert.Equal(t, "u-1", *ticket.AssignedTo)
	assert.Equal(t, "a", ticket.Tags[0])
	assert.Equal(t, "v", ticket.CustomFields["k"])
}

func TestParticipantRoleDefaults(t *testing.T) {
	p := NewParticipant("t-1", "u-1", RoleObserver, "", time.Now())
	assert.Nil(t, p.AddedBy)
	assert.False(t, p.CanComment)
	assert.True(t, p.ReceiveNotifications)

	p.SetRole(RoleCreator)
	assert.Equal(t, Permissions{CanComment: true, CanEdit: true, CanClose: true, CanAssign: true, ReceiveNotifications: true}, p.Permissions)

	assert.False(t, ParticipantRole("OWNER").Valid())
	var missing *TicketParticipant
	assert.False(t, missing.Active())
}
