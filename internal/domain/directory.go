package domain

// User is the directory view of a person, owned by the intranet directory.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	RoleName     string
	ManagerID    *string
	DepartmentID *string
	Active       bool
}

// Summary returns the compact form embedded in ticket views.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

// UserSummary is the joined user shape returned with tickets.
type UserSummary struct {
	ID          string
	DisplayName string
	Email       string
}

// TicketType is a category tickets are raised against.
type TicketType struct {
	ID                string
	Code              string
	Name              string
	DefaultAssigneeID *string
	IsActive          bool
}

// Department represents a high-level organizational unit.
type Department struct {
	ID       string
	Name     string
	IsActive bool
}

// TicketView is the full read model returned by lifecycle operations.
type TicketView struct {
	Ticket       *Ticket
	Creator      *UserSummary
	Assignee     *UserSummary
	Department   *Department
	Participants []TicketParticipant
}
