package dto

import (
	"time"

	"github.com/corpnet/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title                string                `json:"title" validate:"required,max=255"`
	Description          string                `json:"description"`
	Priority             domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	TicketTypeID         string                `json:"ticket_type_id" validate:"required"`
	AssignedTo           *string               `json:"assigned_to"`
	DepartmentID         *string               `json:"department_id"`
	ParentTicketID       *string               `json:"parent_ticket_id"`
	DueDate              *time.Time            `json:"due_date"`
	EstimatedHours       *float64              `json:"estimated_hours" validate:"omitempty,gte=0"`
	Tags                 []string              `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsUrgent             bool                  `json:"is_urgent"`
	IsInternal           bool                  `json:"is_internal"`
	NotificationsEnabled *bool                 `json:"notifications_enabled"`
	CustomFields         map[string]any        `json:"custom_fields"`
	ParticipantIDs       []string              `json:"participant_ids"`
}

// UpdateTicketRequest is a partial update; omitted fields are unchanged.
type UpdateTicketRequest struct {
	Title                *string                `json:"title" validate:"omitempty,max=255"`
	Description          *string                `json:"description"`
	Status               *domain.TicketStatus   `json:"status"`
	Priority             *domain.TicketPriority `json:"priority"`
	TicketTypeID         *string                `json:"ticket_type_id"`
	DepartmentID         *string                `json:"department_id"`
	ParentTicketID       *string                `json:"parent_ticket_id"`
	DueDate              *time.Time             `json:"due_date"`
	EstimatedHours       *float64               `json:"estimated_hours" validate:"omitempty,gte=0"`
	ActualHours          *float64               `json:"actual_hours" validate:"omitempty,gte=0"`
	Tags                 *[]string              `json:"tags"`
	IsUrgent             *bool                  `json:"is_urgent"`
	IsInternal           *bool                  `json:"is_internal"`
	NotificationsEnabled *bool                  `json:"notifications_enabled"`
	CustomFields         map[string]any         `json:"custom_fields"`
	Resolution           *string                `json:"resolution"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Resolution string `json:"resolution" validate:"max=5000"`
}

// TicketListQuery captures query filters for the listing endpoint.
type TicketListQuery struct {
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	TicketTypeID   *string
	DepartmentID   *string
	AssignedTo     *string
	CreatedBy      *string
	ParentTicketID *string
	Tag            *string
	IsUrgent       *bool
	Search         *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Page           int
	PageSize       int
}

// TicketResponse is the ticket representation used by every endpoint.
type TicketResponse struct {
	ID                   string                `json:"id"`
	TicketNumber         string                `json:"ticket_number"`
	Title                string                `json:"title"`
	Description          string                `json:"description"`
	Status               domain.TicketStatus   `json:"status"`
	Priority             domain.TicketPriority `json:"priority"`
	TicketTypeID         string                `json:"ticket_type_id"`
	CreatedBy            string                `json:"created_by"`
	AssignedTo           *string               `json:"assigned_to"`
	DepartmentID         *string               `json:"department_id"`
	ParentTicketID       *string               `json:"parent_ticket_id"`
	DueDate              *time.Time            `json:"due_date"`
	ResolvedAt           *time.Time            `json:"resolved_at"`
	ClosedAt             *time.Time            `json:"closed_at"`
	EstimatedHours       *float64              `json:"estimated_hours"`
	ActualHours          *float64              `json:"actual_hours"`
	Tags                 []string              `json:"tags"`
	IsUrgent             bool                  `json:"is_urgent"`
	IsInternal           bool                  `json:"is_internal"`
	NotificationsEnabled bool                  `json:"notifications_enabled"`
	CustomFields         map[string]any        `json:"custom_fields,omitempty"`
	Resolution           *string               `json:"resolution"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// UserSummaryResponse is the joined user shape.
type UserSummaryResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// DepartmentResponse is the joined department shape.
type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Creator      *UserSummaryResponse  `json:"creator"`
	Assignee     *UserSummaryResponse  `json:"assignee"`
	Department   *DepartmentResponse   `json:"department"`
	Participants []ParticipantResponse `json:"participants"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Items    []TicketResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	ID          string               `json:"id"`
	UserID      *string              `json:"user_id"`
	Action      domain.HistoryAction `json:"action"`
	OldValues   map[string]any       `json:"old_values,omitempty"`
	NewValues   map[string]any       `json:"new_values,omitempty"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"created_at"`
}
