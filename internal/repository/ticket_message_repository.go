package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corpnet/helpdesk/internal/domain"
)

const messageColumns = `m.id, m.ticket_id, m.sender_id, m.content, m.type, m.is_internal, m.is_edited,
               m.metadata, m.reply_to_id, m.edited_by, m.edited_at, m.created_at, m.updated_at`

type ticketMessageRepository struct {
	db DBTX
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(db DBTX) MessageRepository {
	return &ticketMessageRepository{db: db}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_messages (id, ticket_id, sender_id, content, type, is_internal, is_edited,
            metadata, reply_to_id, edited_by, edited_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.SenderID,
		msg.Content,
		msg.Type,
		msg.IsInternal,
		msg.IsEdited,
		msg.Metadata,
		msg.ReplyToID,
		msg.EditedBy,
		msg.EditedAt,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	return mapError(err)
}

func (r *ticketMessageRepository) Update(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        UPDATE ticket_messages SET content=$1, is_internal=$2, is_edited=$3, metadata=$4,
            edited_by=$5, edited_at=$6, updated_at=$7
        WHERE id=$8`
	return execOne(ctx, r.db, query,
		msg.Content,
		msg.IsInternal,
		msg.IsEdited,
		msg.Metadata,
		msg.EditedBy,
		msg.EditedAt,
		msg.UpdatedAt,
		msg.ID,
	)
}

func (r *ticketMessageRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, r.db, `DELETE FROM ticket_messages WHERE id=$1`, id)
}

func (r *ticketMessageRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ticket_messages WHERE ticket_id=$1`, ticketID)
	return mapError(err)
}

func (r *ticketMessageRepository) GetByID(ctx context.Context, id string) (*domain.TicketMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM ticket_messages m WHERE m.id=$1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return msg, nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM ticket_messages m WHERE m.ticket_id=$1`
	if !includeInternal {
		query += ` AND m.is_internal = FALSE`
	}
	query += ` ORDER BY m.created_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *ticketMessageRepository) ListUnread(ctx context.Context, ticketID, userID string, includeInternal bool) ([]domain.TicketMessage, error) {
	query := `SELECT ` + messageColumns + `
        FROM ticket_messages m
        WHERE m.ticket_id=$1 AND m.sender_id <> $2
          AND NOT EXISTS (SELECT 1 FROM ticket_message_reads r WHERE r.message_id = m.id AND r.user_id = $2)`
	if !includeInternal {
		query += ` AND m.is_internal = FALSE`
	}
	query += ` ORDER BY m.created_at ASC`
	return r.list(ctx, query, ticketID, userID)
}

func (r *ticketMessageRepository) list(ctx context.Context, query string, args ...any) ([]domain.TicketMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.TicketMessage, error) {
	var msg domain.TicketMessage
	if err := row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderID,
		&msg.Content,
		&msg.Type,
		&msg.IsInternal,
		&msg.IsEdited,
		&msg.Metadata,
		&msg.ReplyToID,
		&msg.EditedBy,
		&msg.EditedAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

type messageReadRepository struct {
	db DBTX
}

// NewMessageReadRepository builds repository.
func NewMessageReadRepository(db DBTX) MessageReadRepository {
	return &messageReadRepository{db: db}
}

func (r *messageReadRepository) MarkRead(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	const query = `
        INSERT INTO ticket_message_reads (message_id, user_id, read_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (message_id, user_id) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query, messageID, userID, at)
	if err != nil {
		return false, mapError(err)
	}
	return cmd.RowsAffected() > 0, nil
}
