package repository

import (
	"context"
	"errors"
	"time"

	"github.com/corpnet/helpdesk/internal/domain"
)

var (
	// ErrNotFound is returned when a keyed lookup has no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)

// TicketScope restricts listings to what an actor may see. A nil scope or
// All=true means no restriction; otherwise a ticket matches when it was
// created by CreatorID or is assigned to one of AssigneeIDs.
type TicketScope struct {
	All         bool
	CreatorID   string
	AssigneeIDs []string
}

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Scope          *TicketScope
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	TicketTypeID   *string
	DepartmentID   *string
	AssignedTo     *string
	CreatedBy      *string
	ParentTicketID *string
	Tag            *string
	IsUrgent       *bool
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// Page sizes shared by every store.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// NormalizePage applies the default page size, caps it at MaxPageSize and
// clamps negative offsets.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and locks its row for the enclosing transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

// ParticipantRepository manages ticket participants.
type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.TicketParticipant) error
	Update(ctx context.Context, participant *domain.TicketParticipant) error
	// Get returns the (ticket, user) row including logically removed ones.
	Get(ctx context.Context, ticketID, userID string) (*domain.TicketParticipant, error)
	ListByTicket(ctx context.Context, ticketID string, activeOnly bool) ([]domain.TicketParticipant, error)
	DeleteByTicket(ctx context.Context, ticketID string) error
}

// MessageRepository manages ticket thread messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	Update(ctx context.Context, msg *domain.TicketMessage) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.TicketMessage, error)
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error)
	// ListUnread returns messages with no receipt from userID and not sent by userID.
	ListUnread(ctx context.Context, ticketID, userID string, includeInternal bool) ([]domain.TicketMessage, error)
	DeleteByTicket(ctx context.Context, ticketID string) error
}

// MessageReadRepository stores read receipts.
type MessageReadRepository interface {
	// MarkRead is idempotent; it reports whether a new receipt was created.
	MarkRead(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
}

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.TicketAttachment) error
	ListByMessage(ctx context.Context, messageID string) ([]domain.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error)
}

// HistoryRepository stores append-only audit entries.
type HistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error)
}

// SequenceRepository hands out ticket number sequences.
type SequenceRepository interface {
	// Next atomically increments and returns the sequence for (typeCode, year).
	// The first call for a key seeds from the highest existing ticket number.
	Next(ctx context.Context, typeCode string, year int) (int, error)
}

// UserDirectory is the read-only view of the intranet user directory.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// ListReports returns the IDs of users whose manager is managerID.
	ListReports(ctx context.Context, managerID string) ([]string, error)
}

// TicketTypeCatalog resolves ticket categories.
type TicketTypeCatalog interface {
	FindByID(ctx context.Context, id string) (*domain.TicketType, error)
}

// DepartmentRepository resolves departments for ticket views.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
}

// Repositories groups the stores a mutation works against.
type Repositories struct {
	Tickets      TicketRepository
	Participants ParticipantRepository
	Messages     MessageRepository
	Reads        MessageReadRepository
	Attachments  AttachmentRepository
	History      HistoryRepository
	Sequences    SequenceRepository
}

// TxManager runs fn with repositories bound to one transaction. Writes made
// through repos are committed only when fn returns nil.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
