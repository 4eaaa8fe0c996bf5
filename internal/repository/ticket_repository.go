package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corpnet/helpdesk/internal/domain"
)

const ticketColumns = `id, ticket_number, title, description, status, priority, ticket_type_id,
               created_by, assigned_to, department_id, parent_ticket_id, due_date, resolved_at, closed_at,
               estimated_hours, actual_hours, tags, is_urgent, is_internal, notifications_enabled,
               custom_fields, resolution, created_at, updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO tickets (id, ticket_number, title, description, status, priority, ticket_type_id,
            created_by, assigned_to, department_id, parent_ticket_id, due_date, resolved_at, closed_at,
            estimated_hours, actual_hours, tags, is_urgent, is_internal, notifications_enabled,
            custom_fields, resolution, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.TicketTypeID,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.DepartmentID,
		ticket.ParentTicketID,
		ticket.DueDate,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.EstimatedHours,
		ticket.ActualHours,
		ticket.Tags,
		ticket.IsUrgent,
		ticket.IsInternal,
		ticket.NotificationsEnabled,
		ticket.CustomFields,
		ticket.Resolution,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, ticket_type_id=$5,
            created_by=$6, assigned_to=$7, department_id=$8, parent_ticket_id=$9, due_date=$10,
            resolved_at=$11, closed_at=$12, estimated_hours=$13, actual_hours=$14, tags=$15,
            is_urgent=$16, is_internal=$17, notifications_enabled=$18, custom_fields=$19,
            resolution=$20, updated_at=$21
        WHERE id=$22`
	return execOne(ctx, r.db, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.TicketTypeID,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.DepartmentID,
		ticket.ParentTicketID,
		ticket.DueDate,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.EstimatedHours,
		ticket.ActualHours,
		ticket.Tags,
		ticket.IsUrgent,
		ticket.IsInternal,
		ticket.NotificationsEnabled,
		ticket.CustomFields,
		ticket.Resolution,
		ticket.UpdatedAt,
		ticket.ID,
	)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, r.db, `DELETE FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if s := filter.Scope; s != nil && !s.All {
		args = append(args, s.CreatorID)
		scope := fmt.Sprintf("created_by=$%d", len(args))
		if len(s.AssigneeIDs) > 0 {
			args = append(args, s.AssigneeIDs)
			scope = fmt.Sprintf("(%s OR assigned_to = ANY($%d))", scope, len(args))
		}
		clauses = append(clauses, scope)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	eq := func(column string, val *string) {
		if val != nil {
			args = append(args, *val)
			clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
		}
	}
	eq("ticket_type_id", filter.TicketTypeID)
	eq("department_id", filter.DepartmentID)
	eq("assigned_to", filter.AssignedTo)
	eq("created_by", filter.CreatedBy)
	eq("parent_ticket_id", filter.ParentTicketID)
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if filter.IsUrgent != nil {
		args = append(args, *filter.IsUrgent)
		clauses = append(clauses, fmt.Sprintf("is_urgent=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(ticket_number) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.TicketTypeID,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.DepartmentID,
		&ticket.ParentTicketID,
		&ticket.DueDate,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.EstimatedHours,
		&ticket.ActualHours,
		&ticket.Tags,
		&ticket.IsUrgent,
		&ticket.IsInternal,
		&ticket.NotificationsEnabled,
		&ticket.CustomFields,
		&ticket.Resolution,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
