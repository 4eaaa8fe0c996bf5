// Package memory is an in-process transactional implementation of the ticket
// repositories. It backs tests and single-node deployments without Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/repository"
)

type state struct {
	tickets      []*domain.Ticket
	participants []*domain.TicketParticipant
	messages     []*domain.TicketMessage
	reads        map[readKey]time.Time
	attachments  []*domain.TicketAttachment
	history      []domain.TicketHistory
	sequences    map[seqKey]int
}

type readKey struct{ messageID, userID string }

type seqKey struct {
	code string
	year int
}

func newState() *state {
	return &state{
		reads:     make(map[readKey]time.Time),
		sequences: make(map[seqKey]int),
	}
}

// clone copies the slices and maps so a failed transaction can be rolled back.
// Entities are replaced, never mutated in place, so pointer reuse is safe.
func (s *state) clone() *state {
	cp := &state{
		tickets:      append([]*domain.Ticket(nil), s.tickets...),
		participants: append([]*domain.TicketParticipant(nil), s.participants...),
		messages:     append([]*domain.TicketMessage(nil), s.messages...),
		reads:        make(map[readKey]time.Time, len(s.reads)),
		attachments:  append([]*domain.TicketAttachment(nil), s.attachments...),
		history:      append([]domain.TicketHistory(nil), s.history...),
		sequences:    make(map[seqKey]int, len(s.sequences)),
	}
	for k, v := range s.reads {
		cp.reads[k] = v
	}
	for k, v := range s.sequences {
		cp.sequences[k] = v
	}
	return cp
}

// Store holds every ticket entity behind one mutex.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Repositories returns auto-locking repositories for reads outside a transaction.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(false)
}

// WithinTx serializes fn against every other store access and restores the
// previous state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	if err := fn(ctx, s.bind(true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) bind(inTx bool) repository.Repositories {
	v := &view{store: s, inTx: inTx}
	return repository.Repositories{
		Tickets:      &ticketRepo{v},
		Participants: &participantRepo{v},
		Messages:     &messageRepo{v},
		Reads:        &readRepo{v},
		Attachments:  &attachmentRepo{v},
		History:      &historyRepo{v},
		Sequences:    &sequenceRepo{v},
	}
}

type view struct {
	store *Store
	inTx  bool
}

func (v *view) do(fn func(st *state) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.state)
}

var (
	_ repository.TxManager = (*Store)(nil)
)
