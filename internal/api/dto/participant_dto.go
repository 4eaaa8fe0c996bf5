package dto

import (
	"time"

	"github.com/corpnet/helpdesk/internal/domain"
)

// AddParticipantRequest payload. An empty role admits a COLLABORATOR.
type AddParticipantRequest struct {
	UserID string                 `json:"user_id" validate:"required"`
	Role   domain.ParticipantRole `json:"role" validate:"omitempty,oneof=ASSIGNEE COLLABORATOR OBSERVER APPROVER REVIEWER"`
}

// UpdateParticipantRequest overrides role defaults; omitted fields are unchanged.
type UpdateParticipantRequest struct {
	Role                 *domain.ParticipantRole `json:"role" validate:"omitempty,oneof=ASSIGNEE COLLABORATOR OBSERVER APPROVER REVIEWER"`
	CanComment           *bool                   `json:"can_comment"`
	CanEdit              *bool                   `json:"can_edit"`
	CanClose             *bool                   `json:"can_close"`
	CanAssign            *bool                   `json:"can_assign"`
	ReceiveNotifications *bool                   `json:"receive_notifications"`
}

// ChangeRoleRequest payload.
type ChangeRoleRequest struct {
	Role domain.ParticipantRole `json:"role" validate:"required"`
}

// TransferOwnershipRequest payload.
type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id" validate:"required"`
}

// ParticipantResponse is a participant row.
type ParticipantResponse struct {
	ID                   string                 `json:"id"`
	UserID               string                 `json:"user_id"`
	Role                 domain.ParticipantRole `json:"role"`
	CanComment           bool                   `json:"can_comment"`
	CanEdit              bool                   `json:"can_edit"`
	CanClose             bool                   `json:"can_close"`
	CanAssign            bool                   `json:"can_assign"`
	ReceiveNotifications bool                   `json:"receive_notifications"`
	AddedBy              *string                `json:"added_by"`
	JoinedAt             time.Time              `json:"joined_at"`
}
