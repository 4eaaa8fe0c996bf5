package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/repository"
)

type ticketRepo struct{ v *view }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.v.do(func(st *state) error {
		if ticket.ID == "" {
			ticket.ID = uuid.NewString()
		}
		for _, t := range st.tickets {
			if t.ID == ticket.ID || t.TicketNumber == ticket.TicketNumber {
				return repository.ErrDuplicate
			}
		}
		st.tickets = append(st.tickets, ticket.Clone())
		return nil
	})
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.v.do(func(st *state) error {
		for i, t := range st.tickets {
			if t.ID == ticket.ID {
				st.tickets[i] = ticket.Clone()
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *ticketRepo) Delete(_ context.Context, id string) error {
	return r.v.do(func(st *state) error {
		for i, t := range st.tickets {
			if t.ID == id {
				st.tickets = append(st.tickets[:i:i], st.tickets[i+1:]...)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(func(st *state) error {
		for _, t := range st.tickets {
			if t.ID == id {
				out = t.Clone()
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions already hold the store mutex.
func (r *ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	var matched []domain.Ticket
	err := r.v.do(func(st *state) error {
		for i := len(st.tickets) - 1; i >= 0; i-- {
			t := st.tickets[i]
			if matchTicket(t, filter) {
				matched = append(matched, *t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)
	if offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func matchTicket(t *domain.Ticket, f repository.TicketFilter) bool {
	if s := f.Scope; s != nil && !s.All {
		visible := t.CreatedBy == s.CreatorID
		for _, id := range s.AssigneeIDs {
			if t.IsAssignedTo(id) {
				visible = true
				break
			}
		}
		if !visible {
			return false
		}
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.TicketTypeID != nil && t.TicketTypeID != *f.TicketTypeID {
		return false
	}
	if f.DepartmentID != nil && (t.DepartmentID == nil || *t.DepartmentID != *f.DepartmentID) {
		return false
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.ParentTicketID != nil && (t.ParentTicketID == nil || *t.ParentTicketID != *f.ParentTicketID) {
		return false
	}
	if f.Tag != nil && !containsString(t.Tags, *f.Tag) {
		return false
	}
	if f.IsUrgent != nil && t.IsUrgent != *f.IsUrgent {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.TicketNumber), term) {
			return false
		}
	}
	return true
}

type participantRepo struct{ v *view }

func (r *participantRepo) Create(_ context.Context, p *domain.TicketParticipant) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.participants {
			if existing.TicketID == p.TicketID && existing.UserID == p.UserID {
				return repository.ErrDuplicate
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		cp := *p
		st.participants = append(st.participants, &cp)
		return nil
	})
}

func (r *participantRepo) Update(_ context.Context, p *domain.TicketParticipant) error {
	return r.v.do(func(st *state) error {
		for i, existing := range st.participants {
			if existing.TicketID == p.TicketID && existing.UserID == p.UserID {
				cp := *p
				cp.ID = existing.ID
				st.participants[i] = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *participantRepo) Get(_ context.Context, ticketID, userID string) (*domain.TicketParticipant, error) {
	var out *domain.TicketParticipant
	err := r.v.do(func(st *state) error {
		for _, p := range st.participants {
			if p.TicketID == ticketID && p.UserID == userID {
				cp := *p
				out = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *participantRepo) ListByTicket(_ context.Context, ticketID string, activeOnly bool) ([]domain.TicketParticipant, error) {
	var out []domain.TicketParticipant
	err := r.v.do(func(st *state) error {
		for _, p := range st.participants {
			if p.TicketID != ticketID || (activeOnly && !p.Active()) {
				continue
			}
			out = append(out, *p)
		}
		return nil
	})
	return out, err
}

func (r *participantRepo) DeleteByTicket(_ context.Context, ticketID string) error {
	return r.v.do(func(st *state) error {
		kept := st.participants[:0:0]
		for _, p := range st.participants {
			if p.TicketID != ticketID {
				kept = append(kept, p)
			}
		}
		st.participants = kept
		return nil
	})
}

type messageRepo struct{ v *view }

func cloneMessage(m *domain.TicketMessage) *domain.TicketMessage {
	cp := *m
	cp.Metadata = domain.CloneMap(m.Metadata)
	cp.Attachments = nil
	return &cp
}

func (r *messageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	return r.v.do(func(st *state) error {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		st.messages = append(st.messages, cloneMessage(msg))
		return nil
	})
}

func (r *messageRepo) Update(_ context.Context, msg *domain.TicketMessage) error {
	return r.v.do(func(st *state) error {
		for i, m := range st.messages {
			if m.ID == msg.ID {
				st.messages[i] = cloneMessage(msg)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *messageRepo) Delete(_ context.Context, id string) error {
	return r.v.do(func(st *state) error {
		for i, m := range st.messages {
			if m.ID == id {
				st.messages = append(st.messages[:i:i], st.messages[i+1:]...)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *messageRepo) DeleteByTicket(_ context.Context, ticketID string) error {
	return r.v.do(func(st *state) error {
		kept := st.messages[:0:0]
		removed := make(map[string]struct{})
		for _, m := range st.messages {
			if m.TicketID != ticketID {
				kept = append(kept, m)
				continue
			}
			removed[m.ID] = struct{}{}
		}
		st.messages = kept
		for key := range st.reads {
			if _, ok := removed[key.messageID]; ok {
				delete(st.reads, key)
			}
		}
		attachments := st.attachments[:0:0]
		for _, a := range st.attachments {
			if a.TicketID != ticketID {
				attachments = append(attachments, a)
			}
		}
		st.attachments = attachments
		return nil
	})
}

func (r *messageRepo) GetByID(_ context.Context, id string) (*domain.TicketMessage, error) {
	var out *domain.TicketMessage
	err := r.v.do(func(st *state) error {
		for _, m := range st.messages {
			if m.ID == id {
				out = cloneMessage(m)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *messageRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	err := r.v.do(func(st *state) error {
		for _, m := range st.messages {
			if m.TicketID == ticketID && (includeInternal || !m.IsInternal) {
				out = append(out, *cloneMessage(m))
			}
		}
		return nil
	})
	return out, err
}

func (r *messageRepo) ListUnread(_ context.Context, ticketID, userID string, includeInternal bool) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	err := r.v.do(func(st *state) error {
		for _, m := range st.messages {
			if m.TicketID != ticketID || m.SenderID == userID || (!includeInternal && m.IsInternal) {
				continue
			}
			if _, read := st.reads[readKey{m.ID, userID}]; read {
				continue
			}
			out = append(out, *cloneMessage(m))
		}
		return nil
	})
	return out, err
}

type readRepo struct{ v *view }

func (r *readRepo) MarkRead(_ context.Context, messageID, userID string, at time.Time) (bool, error) {
	created := false
	err := r.v.do(func(st *state) error {
		key := readKey{messageID, userID}
		if _, ok := st.reads[key]; ok {
			return nil
		}
		st.reads[key] = at
		created = true
		return nil
	})
	return created, err
}

type attachmentRepo struct{ v *view }

func (r *attachmentRepo) Create(_ context.Context, a *domain.TicketAttachment) error {
	return r.v.do(func(st *state) error {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		cp := *a
		st.attachments = append(st.attachments, &cp)
		return nil
	})
}

func (r *attachmentRepo) ListByMessage(_ context.Context, messageID string) ([]domain.TicketAttachment, error) {
	return r.list(func(a *domain.TicketAttachment) bool {
		return a.MessageID != nil && *a.MessageID == messageID
	})
}

func (r *attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	return r.list(func(a *domain.TicketAttachment) bool { return a.TicketID == ticketID })
}

func (r *attachmentRepo) list(match func(*domain.TicketAttachment) bool) ([]domain.TicketAttachment, error) {
	var out []domain.TicketAttachment
	err := r.v.do(func(st *state) error {
		for _, a := range st.attachments {
			if a.DeletedAt == nil && match(a) {
				out = append(out, *a)
			}
		}
		return nil
	})
	return out, err
}

type historyRepo struct{ v *view }

func (r *historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	return r.v.do(func(st *state) error {
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		st.history = append(st.history, *h)
		return nil
	})
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	err := r.v.do(func(st *state) error {
		for _, h := range st.history {
			if h.TicketID == ticketID {
				out = append(out, h)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	limit, offset = repository.NormalizePage(limit, offset)
	if offset >= len(out) {
		return []domain.TicketHistory{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type sequenceRepo struct{ v *view }

// Next seeds a fresh (code, year) key from the highest stored ticket number,
// falling back to zero when none parses.
func (r *sequenceRepo) Next(_ context.Context, typeCode string, year int) (int, error) {
	var next int
	err := r.v.do(func(st *state) error {
		key := seqKey{strings.ToUpper(typeCode), year}
		current, ok := st.sequences[key]
		if !ok {
			prefix := domain.TicketNumberPrefix(typeCode, year)
			for _, t := range st.tickets {
				if !strings.HasPrefix(t.TicketNumber, prefix) {
					continue
				}
				if seq, parsed := domain.ParseTicketSequence(t.TicketNumber); parsed && seq > current {
					current = seq
				}
			}
		}
		next = current + 1
		st.sequences[key] = next
		return nil
	})
	return next, err
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
