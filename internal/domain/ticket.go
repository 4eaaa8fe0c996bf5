package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "OPEN"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusFollowUp        TicketStatus = "FOLLOW_UP"
	TicketStatusWaitingResponse TicketStatus = "WAITING_RESPONSE"
	TicketStatusOnHold          TicketStatus = "ON_HOLD"
	TicketStatusResolved        TicketStatus = "RESOLVED"
	TicketStatusCompleted       TicketStatus = "COMPLETED"
	TicketStatusClosed          TicketStatus = "CLOSED"
	TicketStatusCancelled       TicketStatus = "CANCELLED"
)

var ticketStatuses = map[TicketStatus]struct{}{
	TicketStatusOpen:            {},
	TicketStatusInProgress:      {},
	TicketStatusFollowUp:        {},
	TicketStatusWaitingResponse: {},
	TicketStatusOnHold:          {},
	TicketStatusResolved:        {},
	TicketStatusCompleted:       {},
	TicketStatusClosed:          {},
	TicketStatusCancelled:       {},
}

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatuses[s]
	return ok
}

// Terminal reports whether the status ends active work on a ticket.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketStatusResolved, TicketStatusCompleted, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityUrgent   TicketPriority = "URGENT"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID                   string
	TicketNumber         string
	Title                string
	Description          string
	Status               TicketStatus
	Priority             TicketPriority
	TicketTypeID         string
	CreatedBy            string
	AssignedTo           *string
	DepartmentID         *string
	ParentTicketID       *string
	DueDate              *time.Time
	ResolvedAt           *time.Time
	ClosedAt             *time.Time
	EstimatedHours       *float64
	ActualHours          *float64
	Tags                 []string
	IsUrgent             bool
	IsInternal           bool
	NotificationsEnabled bool
	CustomFields         map[string]any
	Resolution           *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// Snapshot captures the scalar fields recorded in history entries.
// Custom fields and relations are intentionally not part of it.
func (t *Ticket) Snapshot() map[string]any {
	return map[string]any{
		"id":           t.ID,
		"ticketNumber": t.TicketNumber,
		"title":        t.Title,
		"description":  t.Description,
		"status":       t.Status,
		"priority":     t.Priority,
		"assignedTo":   derefString(t.AssignedTo),
		"departmentId": derefString(t.DepartmentID),
	}
}

// Clone returns a deep copy safe to mutate independently.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.AssignedTo = cloneString(t.AssignedTo)
	cp.DepartmentID = cloneString(t.DepartmentID)
	cp.ParentTicketID = cloneString(t.ParentTicketID)
	cp.Resolution = cloneString(t.Resolution)
	cp.DueDate = cloneTime(t.DueDate)
	cp.ResolvedAt = cloneTime(t.ResolvedAt)
	cp.ClosedAt = cloneTime(t.ClosedAt)
	cp.EstimatedHours = cloneFloat(t.EstimatedHours)
	cp.ActualHours = cloneFloat(t.ActualHours)
	cp.Tags = append([]string(nil), t.Tags...)
	cp.CustomFields = CloneMap(t.CustomFields)
	return &cp
}

// ApplyStatus moves the ticket to next and applies the side effects keyed by
// the target status. It reports whether the status actually changed.
func (t *Ticket) ApplyStatus(next TicketStatus, now time.Time) bool {
	if t.Status == next {
		return false
	}
	prev := t.Status
	t.Status = next
	switch next {
	case TicketStatusResolved, TicketStatusCompleted:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	case TicketStatusClosed:
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	case TicketStatusCancelled:
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
	default:
		if prev.Terminal() {
			t.ClosedAt = nil
		}
	}
	return true
}

// NormalizeTags trims, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TicketNumberPrefix returns the "{code}-{year}-" prefix shared by a sequence.
func TicketNumberPrefix(typeCode string, year int) string {
	return fmt.Sprintf("%s-%d-", strings.ToUpper(typeCode), year)
}

// FormatTicketNumber renders {typeCode}-{year}-{seq:04d}.
func FormatTicketNumber(typeCode string, year, seq int) string {
	return fmt.Sprintf("%s%04d", TicketNumberPrefix(typeCode, year), seq)
}

// ParseTicketSequence extracts the trailing sequence of a ticket number.
func ParseTicketSequence(number string) (int, bool) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, false
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// CloneMap copies a JSON-like map one level deep.
func CloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func derefString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
