package domain

import "time"

// ParticipantRole scopes a user's involvement in one ticket.
type ParticipantRole string

const (
	RoleCreator      ParticipantRole = "CREATOR"
	RoleAssignee     ParticipantRole = "ASSIGNEE"
	RoleCollaborator ParticipantRole = "COLLABORATOR"
	RoleObserver     ParticipantRole = "OBSERVER"
	RoleApprover     ParticipantRole = "APPROVER"
	RoleReviewer     ParticipantRole = "REVIEWER"
)

// Valid reports whether the role is a known value.
func (r ParticipantRole) Valid() bool {
	_, ok := defaultPermissions[r]
	return ok
}

// Permissions is the overridable flag set carried by a participant.
type Permissions struct {
	CanComment           bool
	CanEdit              bool
	CanClose             bool
	CanAssign            bool
	ReceiveNotifications bool
}

var defaultPermissions = map[ParticipantRole]Permissions{
	RoleCreator:      {CanComment: true, CanEdit: true, CanClose: true, CanAssign: true, ReceiveNotifications: true},
	RoleAssignee:     {CanComment: true, CanEdit: true, CanClose: true, ReceiveNotifications: true},
	RoleCollaborator: {CanComment: true, ReceiveNotifications: true},
	RoleObserver:     {ReceiveNotifications: true},
	RoleApprover:     {CanComment: true, CanClose: true, ReceiveNotifications: true},
	RoleReviewer:     {CanComment: true, ReceiveNotifications: true},
}

// DefaultPermissions returns the role-derived flag defaults.
func DefaultPermissions(role ParticipantRole) Permissions {
	return defaultPermissions[role]
}

// TicketParticipant is a user admitted to a ticket with a role.
type TicketParticipant struct {
	ID        string
	TicketID  string
	UserID    string
	Role      ParticipantRole
	Permissions
	AddedBy   *string
	JoinedAt  time.Time
	RemovedAt *time.Time
}

// Active reports whether the participant has not been removed.
func (p *TicketParticipant) Active() bool {
	return p != nil && p.RemovedAt == nil
}

// SetRole switches the role and resets flags to that role's defaults.
func (p *TicketParticipant) SetRole(role ParticipantRole) {
	p.Role = role
	p.Permissions = DefaultPermissions(role)
}

// NewParticipant builds a participant carrying the role defaults.
func NewParticipant(ticketID, userID string, role ParticipantRole, addedBy string, now time.Time) *TicketParticipant {
	p := &TicketParticipant{
		TicketID: ticketID,
		UserID:   userID,
		JoinedAt: now,
	}
	if addedBy != "" {
		p.AddedBy = &addedBy
	}
	p.SetRole(role)
	return p
}
