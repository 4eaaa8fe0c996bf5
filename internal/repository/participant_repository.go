package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corpnet/helpdesk/internal/domain"
)

const participantColumns = `id, ticket_id, user_id, role, can_comment, can_edit, can_close, can_assign,
               receive_notifications, added_by, joined_at, removed_at`

type participantRepository struct {
	db DBTX
}

// NewParticipantRepository builds repository.
func NewParticipantRepository(db DBTX) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(ctx context.Context, p *domain.TicketParticipant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_participants (id, ticket_id, user_id, role, can_comment, can_edit, can_close,
            can_assign, receive_notifications, added_by, joined_at, removed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.TicketID,
		p.UserID,
		p.Role,
		p.CanComment,
		p.CanEdit,
		p.CanClose,
		p.CanAssign,
		p.ReceiveNotifications,
		p.AddedBy,
		p.JoinedAt,
		p.RemovedAt,
	)
	return mapError(err)
}

func (r *participantRepository) Update(ctx context.Context, p *domain.TicketParticipant) error {
	const query = `
        UPDATE ticket_participants SET role=$1, can_comment=$2, can_edit=$3, can_close=$4, can_assign=$5,
            receive_notifications=$6, added_by=$7, joined_at=$8, removed_at=$9
        WHERE ticket_id=$10 AND user_id=$11`
	return execOne(ctx, r.db, query,
		p.Role,
		p.CanComment,
		p.CanEdit,
		p.CanClose,
		p.CanAssign,
		p.ReceiveNotifications,
		p.AddedBy,
		p.JoinedAt,
		p.RemovedAt,
		p.TicketID,
		p.UserID,
	)
}

func (r *participantRepository) Get(ctx context.Context, ticketID, userID string) (*domain.TicketParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM ticket_participants WHERE ticket_id=$1 AND user_id=$2`
	p, err := scanParticipant(r.db.QueryRow(ctx, query, ticketID, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *participantRepository) ListByTicket(ctx context.Context, ticketID string, activeOnly bool) ([]domain.TicketParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM ticket_participants WHERE ticket_id=$1`
	if activeOnly {
		query += ` AND removed_at IS NULL`
	}
	query += ` ORDER BY joined_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *participantRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ticket_participants WHERE ticket_id=$1`, ticketID)
	return mapError(err)
}

func scanParticipant(row pgx.Row) (*domain.TicketParticipant, error) {
	var p domain.TicketParticipant
	if err := row.Scan(
		&p.ID,
		&p.TicketID,
		&p.UserID,
		&p.Role,
		&p.CanComment,
		&p.CanEdit,
		&p.CanClose,
		&p.CanAssign,
		&p.ReceiveNotifications,
		&p.AddedBy,
		&p.JoinedAt,
		&p.RemovedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
