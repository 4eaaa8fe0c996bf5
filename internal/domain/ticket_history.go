package domain

import "time"

// HistoryAction captures what changed in a history entry.
type HistoryAction string

const (
	HistoryCreated            HistoryAction = "CREATED"
	HistoryUpdated            HistoryAction = "UPDATED"
	HistoryStatusChanged      HistoryAction = "STATUS_CHANGED"
	HistoryAssigned           HistoryAction = "ASSIGNED"
	HistoryUnassigned         HistoryAction = "UNASSIGNED"
	HistoryParticipantAdded   HistoryAction = "PARTICIPANT_ADDED"
	HistoryParticipantRemoved HistoryAction = "PARTICIPANT_REMOVED"
	HistoryPriorityChanged    HistoryAction = "PRIORITY_CHANGED"
	HistoryDueDateChanged     HistoryAction = "DUE_DATE_CHANGED"
	HistoryDepartmentChanged  HistoryAction = "DEPARTMENT_CHANGED"
	HistoryTypeChanged        HistoryAction = "TYPE_CHANGED"
	HistoryResolved           HistoryAction = "RESOLVED"
	HistoryClosed             HistoryAction = "CLOSED"
	HistoryReopened           HistoryAction = "REOPENED"
	HistoryDeleted            HistoryAction = "DELETED"
)

// RequestMeta is optional caller metadata attached to history entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string
	TicketID    string
	UserID      *string
	Action      HistoryAction
	OldValues   map[string]any
	NewValues   map[string]any
	Description string
	IPAddress   *string
	UserAgent   *string
	CreatedAt   time.Time
}
