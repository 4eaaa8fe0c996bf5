package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/corpnet/helpdesk/internal/domain"
)

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) HistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_history (id, ticket_id, user_id, action, old_values, new_values, description,
            ip_address, user_agent, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Exec(ctx, query,
		history.ID,
		history.TicketID,
		history.UserID,
		history.Action,
		history.OldValues,
		history.NewValues,
		history.Description,
		history.IPAddress,
		history.UserAgent,
		history.CreatedAt,
	)
	return mapError(err)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	limit, offset = NormalizePage(limit, offset)
	const query = `
        SELECT id, ticket_id, user_id, action, old_values, new_values, description, ip_address, user_agent, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.UserID,
			&history.Action,
			&history.OldValues,
			&history.NewValues,
			&history.Description,
			&history.IPAddress,
			&history.UserAgent,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
