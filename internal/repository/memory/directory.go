package memory

import (
	"context"
	"sync"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/repository"
)

// Directory is an in-memory user directory with ticket types and departments.
type Directory struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	order       []string
	types       map[string]domain.TicketType
	departments map[string]domain.Department
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:       make(map[string]domain.User),
		types:       make(map[string]domain.TicketType),
		departments: make(map[string]domain.Department),
	}
}

// AddUser inserts or replaces a user.
func (d *Directory) AddUser(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.ID]; !ok {
		d.order = append(d.order, u.ID)
	}
	d.users[u.ID] = u
}

// AddType inserts or replaces a ticket type.
func (d *Directory) AddType(t domain.TicketType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.types[t.ID] = t
}

// AddDepartment inserts or replaces a department.
func (d *Directory) AddDepartment(dep domain.Department) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.departments[dep.ID] = dep
}

func (d *Directory) FindByID(_ context.Context, id string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (d *Directory) ListReports(_ context.Context, managerID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for _, id := range d.order {
		u := d.users[id]
		if u.ManagerID != nil && *u.ManagerID == managerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// TicketTypes exposes the catalog side of the directory.
func (d *Directory) TicketTypes() repository.TicketTypeCatalog {
	return typeCatalog{d}
}

// Departments exposes the department side of the directory.
func (d *Directory) Departments() repository.DepartmentRepository {
	return departmentLookup{d}
}

type typeCatalog struct{ d *Directory }

func (c typeCatalog) FindByID(_ context.Context, id string) (*domain.TicketType, error) {
	c.d.mu.RLock()
	defer c.d.mu.RUnlock()
	t, ok := c.d.types[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

type departmentLookup struct{ d *Directory }

func (l departmentLookup) GetByID(_ context.Context, id string) (*domain.Department, error) {
	l.d.mu.RLock()
	defer l.d.mu.RUnlock()
	dep, ok := l.d.departments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &dep, nil
}

var _ repository.UserDirectory = (*Directory)(nil)
