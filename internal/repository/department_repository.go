package repository

import (
	"context"

	"github.com/corpnet/helpdesk/internal/domain"
)

type departmentRepository struct {
	db DBTX
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DBTX) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	const query = `SELECT id, name, is_active FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.db.QueryRow(ctx, query, id).Scan(&dept.ID, &dept.Name, &dept.IsActive); err != nil {
		return nil, mapError(err)
	}
	return &dept, nil
}

type ticketTypeCatalog struct {
	db DBTX
}

// NewTicketTypeCatalog builds the catalog over the ticket_types table.
func NewTicketTypeCatalog(db DBTX) TicketTypeCatalog {
	return &ticketTypeCatalog{db: db}
}

func (r *ticketTypeCatalog) FindByID(ctx context.Context, id string) (*domain.TicketType, error) {
	const query = `SELECT id, code, name, default_assignee_id, is_active FROM ticket_types WHERE id=$1`
	var tt domain.TicketType
	if err := r.db.QueryRow(ctx, query, id).Scan(&tt.ID, &tt.Code, &tt.Name, &tt.DefaultAssigneeID, &tt.IsActive); err != nil {
		return nil, mapError(err)
	}
	return &tt, nil
}
