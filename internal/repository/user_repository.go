package repository

import (
	"context"

	"github.com/corpnet/helpdesk/internal/domain"
)

// userDirectory reads the intranet directory tables. Directory CRUD is owned
// by another subsystem; this side only reads.
type userDirectory struct {
	db DBTX
}

// NewUserDirectory returns a Postgres-backed implementation.
func NewUserDirectory(db DBTX) UserDirectory {
	return &userDirectory{db: db}
}

func (r *userDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT u.id, u.email, u.display_name, COALESCE(ro.name, ''), u.manager_id, u.department_id, u.is_active
        FROM users u LEFT JOIN roles ro ON ro.id = u.role_id
        WHERE u.id=$1`

	var user domain.User
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.RoleName,
		&user.ManagerID,
		&user.DepartmentID,
		&user.Active,
	); err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (r *userDirectory) ListReports(ctx context.Context, managerID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users WHERE manager_id=$1`, managerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
