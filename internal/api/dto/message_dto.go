package dto

import (
	"html"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/corpnet/helpdesk/internal/domain"
)

// CreateMessageRequest payload. Attachments reference files already stored.
type CreateMessageRequest struct {
	Content     string                    `json:"content" validate:"max=20000"`
	Type        domain.MessageType        `json:"type" validate:"omitempty,oneof=COMMENT ATTACHMENT STATUS_CHANGE ASSIGNMENT ESCALATION"`
	IsInternal  bool                      `json:"is_internal"`
	ReplyToID   *string                   `json:"reply_to_id"`
	Metadata    map[string]any            `json:"metadata"`
	Attachments []AttachmentUploadRequest `json:"attachments" validate:"omitempty,max=10,dive"`
}

// AttachmentUploadRequest is the metadata of one stored file.
type AttachmentUploadRequest struct {
	FileName    string  `json:"file_name" validate:"required,max=255"`
	StoragePath string  `json:"storage_path" validate:"required"`
	MimeType    string  `json:"mime_type"`
	SizeBytes   int64   `json:"size_bytes" validate:"gte=0"`
	Checksum    *string `json:"checksum"`
}

// UpdateMessageRequest payload.
type UpdateMessageRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// TicketMessageResponse represents a thread message. Content is stored as
// sanitized HTML, so "a < b" reads back as "a &lt; b"; ContentText carries the
// same message as plain text with markup removed and entities decoded.
type TicketMessageResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	SenderID    string               `json:"sender_id"`
	Content     string               `json:"content"`
	ContentText string               `json:"content_text"`
	Type        domain.MessageType   `json:"type"`
	IsInternal  bool                 `json:"is_internal"`
	IsEdited    bool                 `json:"is_edited"`
	ReplyToID   *string              `json:"reply_to_id"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	EditedAt    *time.Time           `json:"edited_at"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StoragePath string `json:"storage_path"`
}

var textPolicy = bluemonday.StrictPolicy()

// PlainText strips every tag from stored message HTML and decodes entities.
func PlainText(content string) string {
	return html.UnescapeString(textPolicy.Sanitize(content))
}
