package domain

import "time"

// MessageType differentiates thread entries.
type MessageType string

const (
	MessageTypeComment      MessageType = "COMMENT"
	MessageTypeSystem       MessageType = "SYSTEM"
	MessageTypeAttachment   MessageType = "ATTACHMENT"
	MessageTypeStatusChange MessageType = "STATUS_CHANGE"
	MessageTypeAssignment   MessageType = "ASSIGNMENT"
	MessageTypeEscalation   MessageType = "ESCALATION"
)

// Valid reports whether the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeComment, MessageTypeSystem, MessageTypeAttachment,
		MessageTypeStatusChange, MessageTypeAssignment, MessageTypeEscalation:
		return true
	}
	return false
}

// TicketMessage captures communications in a ticket thread.
type TicketMessage struct {
	ID          string
	TicketID    string
	SenderID    string
	Content     string
	Type        MessageType
	IsInternal  bool
	IsEdited    bool
	Metadata    map[string]any
	ReplyToID   *string
	EditedBy    *string
	EditedAt    *time.Time
	Attachments []TicketAttachment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketMessageRead is a read receipt for one user and message.
type TicketMessageRead struct {
	MessageID string
	UserID    string
	ReadAt    time.Time
}

// TicketAttachment stores metadata for a file linked to a ticket.
// File bytes live in an external attachment store keyed by StoragePath.
type TicketAttachment struct {
	ID           string
	TicketID     string
	MessageID    *string
	UploadedByID string
	FileName     string
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	Checksum     *string
	IsVisible    bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
}
