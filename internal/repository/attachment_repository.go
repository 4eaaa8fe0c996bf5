package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/corpnet/helpdesk/internal/domain"
)

const attachmentColumns = `id, ticket_id, message_id, uploaded_by_id, file_name, storage_path, mime_type,
               size_bytes, checksum, is_visible, deleted_at, created_at`

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.TicketAttachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_attachments (id, ticket_id, message_id, uploaded_by_id, file_name, storage_path,
            mime_type, size_bytes, checksum, is_visible, deleted_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Exec(ctx, query,
		attachment.ID,
		attachment.TicketID,
		attachment.MessageID,
		attachment.UploadedByID,
		attachment.FileName,
		attachment.StoragePath,
		attachment.MimeType,
		attachment.SizeBytes,
		attachment.Checksum,
		attachment.IsVisible,
		attachment.DeletedAt,
		attachment.CreatedAt,
	)
	return mapError(err)
}

func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments
        WHERE message_id=$1 AND deleted_at IS NULL ORDER BY created_at ASC`
	return r.list(ctx, query, messageID)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments
        WHERE ticket_id=$1 AND deleted_at IS NULL ORDER BY created_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *attachmentRepository) list(ctx context.Context, query string, arg string) ([]domain.TicketAttachment, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		var attachment domain.TicketAttachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.MessageID,
			&attachment.UploadedByID,
			&attachment.FileName,
			&attachment.StoragePath,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.Checksum,
			&attachment.IsVisible,
			&attachment.DeletedAt,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
