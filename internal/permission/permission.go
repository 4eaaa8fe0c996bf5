// Package permission holds the participant-scoped checks that gate ticket
// operations. All functions are pure; callers load the participant row.
package permission

import "github.com/corpnet/helpdesk/internal/domain"

// IsParticipant reports whether p is an active participant row.
func IsParticipant(p *domain.TicketParticipant) bool {
	return p.Active()
}

// IsCreator reports whether actorID owns the ticket.
func IsCreator(t *domain.Ticket, actorID string) bool {
	return t != nil && t.CreatedBy == actorID
}

// IsAssignee reports whether actorID is the current assignee.
func IsAssignee(t *domain.Ticket, actorID string) bool {
	return t != nil && t.IsAssignedTo(actorID)
}

// CanAccess gates every participant-scoped read or write.
func CanAccess(p *domain.TicketParticipant, t *domain.Ticket, actorID string) bool {
	return IsParticipant(p) || IsCreator(t, actorID) || IsAssignee(t, actorID)
}

func CanEdit(p *domain.TicketParticipant, t *domain.Ticket, actorID string) bool {
	return (IsParticipant(p) && p.CanEdit) || IsCreator(t, actorID)
}

func CanAssign(p *domain.TicketParticipant, t *domain.Ticket, actorID string) bool {
	return (IsParticipant(p) && p.CanAssign) || IsCreator(t, actorID)
}

func CanClose(p *domain.TicketParticipant, t *domain.Ticket, actorID string) bool {
	return (IsParticipant(p) && p.CanClose) || IsCreator(t, actorID) || IsAssignee(t, actorID)
}

// CanComment requires an existing participant row with comment rights.
func CanComment(p *domain.TicketParticipant) bool {
	return IsParticipant(p) && p.CanComment
}

// CanManageParticipants allows explicit admission by the creator or assignee.
func CanManageParticipants(p *domain.TicketParticipant) bool {
	return IsParticipant(p) && (p.Role == domain.RoleCreator || p.Role == domain.RoleAssignee)
}

// IsCreatorRole reports whether p holds the CREATOR role.
func IsCreatorRole(p *domain.TicketParticipant) bool {
	return IsParticipant(p) && p.Role == domain.RoleCreator
}

// CanSeeMessage hides internal messages from non-participants.
func CanSeeMessage(p *domain.TicketParticipant, msg *domain.TicketMessage) bool {
	if msg == nil {
		return false
	}
	return !msg.IsInternal || IsParticipant(p)
}
