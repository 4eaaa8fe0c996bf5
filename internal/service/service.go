package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/locker"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/repository"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// Dependencies bundles the collaborators shared by the ticket services.
type Dependencies struct {
	// Tx runs multi-row mutations atomically.
	Tx repository.TxManager
	// Repos serves reads outside a transaction.
	Repos       repository.Repositories
	Users       repository.UserDirectory
	TicketTypes repository.TicketTypeCatalog
	Departments repository.DepartmentRepository
	// Locker must be shared by every service built from these dependencies;
	// nil falls back to a process-local mutex per service.
	Locker      locker.Locker
	Dispatcher  events.Dispatcher
	Visibility  *permission.CapabilityResolver
	Logger      *zap.Logger
	Now         func() time.Time
}

// core holds the mutation pipeline every service shares: per-ticket lock,
// transaction, then event publication once the lock is released.
type core struct {
	tx          repository.TxManager
	repos       repository.Repositories
	users       repository.UserDirectory
	types       repository.TicketTypeCatalog
	departments repository.DepartmentRepository
	locks       locker.Locker
	dispatcher  events.Dispatcher
	visibility  *permission.CapabilityResolver
	logger      *zap.Logger
	now         func() time.Time
}

func newCore(deps Dependencies) *core {
	c := &core{
		tx:          deps.Tx,
		repos:       deps.Repos,
		users:       deps.Users,
		types:       deps.TicketTypes,
		departments: deps.Departments,
		locks:       deps.Locker,
		dispatcher:  deps.Dispatcher,
		visibility:  deps.Visibility,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if c.locks == nil {
		c.locks = locker.NewKeyedMutex(0)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type requestMetaKey struct{}

// WithRequestMeta attaches caller metadata recorded on history entries.
func WithRequestMeta(ctx context.Context, meta domain.RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMeta(ctx context.Context) domain.RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(domain.RequestMeta)
	return meta
}

// mutate serializes fn against other mutations of the same ticket and runs
// it in one transaction. The lock is released when mutate returns.
func (c *core) mutate(ctx context.Context, ticketID string, fn func(ctx context.Context, repos repository.Repositories) error) error {
	release, err := c.locks.Acquire(ctx, locker.TicketKey(ticketID))
	if err != nil {
		return err
	}
	defer release()
	return c.tx.WithinTx(ctx, fn)
}

func (c *core) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func (c *core) publishAll(ctx context.Context, evts []events.Event) {
	for _, e := range evts {
		c.publish(ctx, e)
	}
}

// loadTicket reads a ticket with its row lock when repos are transactional.
func loadTicket(ctx context.Context, repos repository.Repositories, id string, forUpdate bool) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if forUpdate {
		ticket, err = repos.Tickets.GetForUpdate(ctx, id)
	} else {
		ticket, err = repos.Tickets.GetByID(ctx, id)
	}
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// participantRow returns the (ticket, user) row or nil when there is none.
// Logically removed rows are returned; permission checks treat them as absent.
func participantRow(ctx context.Context, repos repository.Repositories, ticketID, userID string) (*domain.TicketParticipant, error) {
	p, err := repos.Participants.Get(ctx, ticketID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return p, nil
}

func (c *core) requireUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required", nil)
	}
	u, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	return u, nil
}

// findUser is requireUser without the not-found error.
func (c *core) findUser(ctx context.Context, userID string) *domain.User {
	if userID == "" {
		return nil
	}
	u, err := c.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.logger.Warn("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return u
}

// ensureParticipant admits userID with role defaults. An active row is left
// untouched; a removed row is reactivated with the requested role.
func (c *core) ensureParticipant(ctx context.Context, repos repository.Repositories, ticketID, userID string, role domain.ParticipantRole, addedBy string) (*domain.TicketParticipant, bool, error) {
	existing, err := participantRow(ctx, repos, ticketID, userID)
	if err != nil {
		return nil, false, err
	}
	now := c.now()
	if existing != nil {
		if existing.Active() {
			return existing, false, nil
		}
		existing.SetRole(role)
		existing.RemovedAt = nil
		existing.JoinedAt = now
		if addedBy != "" {
			existing.AddedBy = &addedBy
		}
		if err := repos.Participants.Update(ctx, existing); err != nil {
			return nil, false, apperrors.NewInternalError(err)
		}
		return existing, true, nil
	}
	p := domain.NewParticipant(ticketID, userID, role, addedBy, now)
	if err := repos.Participants.Create(ctx, p); err != nil {
		return nil, false, mapRepoError(err, "participant", nil)
	}
	return p, true, nil
}

// assign moves ticket to assigneeID, keeping the single ASSIGNEE row in step
// with ticket.AssignedTo. It reports the previous assignee and whether anything changed.
func (c *core) assign(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, assigneeID, actorID string) (*string, bool, error) {
	now := c.now()
	previous := ticket.AssignedTo
	if ticket.IsAssignedTo(assigneeID) {
		if _, _, err := c.ensureParticipant(ctx, repos, ticket.ID, assigneeID, domain.RoleAssignee, actorID); err != nil {
			return previous, false, err
		}
		return previous, false, nil
	}

	row, err := participantRow(ctx, repos, ticket.ID, assigneeID)
	if err != nil {
		return nil, false, err
	}
	switch {
	case row == nil:
		if _, _, err := c.ensureParticipant(ctx, repos, ticket.ID, assigneeID, domain.RoleAssignee, actorID); err != nil {
			return nil, false, err
		}
	case row.Role == domain.RoleCreator:
		// the creator keeps its role; ticket.AssignedTo alone marks it assignee
	default:
		row.SetRole(domain.RoleAssignee)
		if !row.Active() {
			row.RemovedAt = nil
			row.JoinedAt = now
		}
		if err := repos.Participants.Update(ctx, row); err != nil {
			return nil, false, apperrors.NewInternalError(err)
		}
	}

	if previous != nil {
		if err := c.dropAssigneeRow(ctx, repos, ticket.ID, *previous); err != nil {
			return nil, false, err
		}
	}

	ticket.AssignedTo = &assigneeID
	ticket.UpdatedAt = now
	if err := repos.Tickets.Update(ctx, ticket); err != nil {
		return nil, false, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}
	return previous, true, nil
}

// dropAssigneeRow logically removes userID's ASSIGNEE row. Other roles are kept.
func (c *core) dropAssigneeRow(ctx context.Context, repos repository.Repositories, ticketID, userID string) error {
	row, err := participantRow(ctx, repos, ticketID, userID)
	if err != nil || row == nil || !row.Active() || row.Role != domain.RoleAssignee {
		return err
	}
	now := c.now()
	row.RemovedAt = &now
	if err := repos.Participants.Update(ctx, row); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (c *core) history(ctx context.Context, repos repository.Repositories, ticketID, actorID string, action domain.HistoryAction, oldValues, newValues map[string]any, description string) error {
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		Action:      action,
		OldValues:   oldValues,
		NewValues:   newValues,
		Description: description,
		CreatedAt:   c.now(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	meta := requestMeta(ctx)
	if meta.IPAddress != "" {
		entry.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		entry.UserAgent = &meta.UserAgent
	}
	if err := repos.History.Create(ctx, entry); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// systemMessage appends an immutable SYSTEM entry to the thread, read by its sender.
func (c *core) systemMessage(ctx context.Context, repos repository.Repositories, ticketID, actorID, content string, metadata map[string]any) error {
	now := c.now()
	msg := &domain.TicketMessage{
		TicketID:  ticketID,
		SenderID:  actorID,
		Content:   content,
		Type:      domain.MessageTypeSystem,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Messages.Create(ctx, msg); err != nil {
		return apperrors.NewInternalError(err)
	}
	if _, err := repos.Reads.MarkRead(ctx, msg.ID, actorID, now); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// canView applies participation first, then the actor's visibility capability.
// Internal tickets are visible to participants, the creator and the assignee only.
func (c *core) canView(ctx context.Context, ticket *domain.Ticket, participant *domain.TicketParticipant, actorID string) (bool, error) {
	if permission.CanAccess(participant, ticket, actorID) {
		return true, nil
	}
	if ticket.IsInternal {
		return false, nil
	}
	actor := c.findUser(ctx, actorID)
	if actor == nil {
		return false, nil
	}
	switch c.visibility.Resolve(actor.RoleName) {
	case permission.CapabilityViewAll:
		return true, nil
	case permission.CapabilityViewSubordinates:
		if ticket.AssignedTo == nil {
			return false, nil
		}
		reports, err := c.users.ListReports(ctx, actorID)
		if err != nil {
			return false, apperrors.NewInternalError(err)
		}
		for _, id := range reports {
			if ticket.IsAssignedTo(id) {
				return true, nil
			}
		}
	}
	return false, nil
}

// requireView loads the actor's participant row and enforces canView.
func (c *core) requireView(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, actorID string) (*domain.TicketParticipant, error) {
	participant, err := participantRow(ctx, repos, ticket.ID, actorID)
	if err != nil {
		return nil, err
	}
	ok, err := c.canView(ctx, ticket, participant, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewAccessDenied("you do not have access to this ticket")
	}
	return participant, nil
}

// scope builds the listing restriction for the actor's capability.
func (c *core) scope(ctx context.Context, actor *domain.User) (*repository.TicketScope, error) {
	switch c.visibility.Resolve(actor.RoleName) {
	case permission.CapabilityViewAll:
		return &repository.TicketScope{All: true}, nil
	case permission.CapabilityViewSubordinates:
		reports, err := c.users.ListReports(ctx, actor.ID)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		return &repository.TicketScope{CreatorID: actor.ID, AssigneeIDs: append([]string{actor.ID}, reports...)}, nil
	case permission.CapabilityViewAssigned:
		return &repository.TicketScope{CreatorID: actor.ID, AssigneeIDs: []string{actor.ID}}, nil
	default:
		return &repository.TicketScope{CreatorID: actor.ID}, nil
	}
}

// view joins the ticket with its creator, assignee, department and active participants.
func (c *core) view(ctx context.Context, ticket *domain.Ticket) (*domain.TicketView, error) {
	participants, err := c.repos.Participants.ListByTicket(ctx, ticket.ID, true)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	v := &domain.TicketView{
		Ticket:       ticket,
		Creator:      c.findUser(ctx, ticket.CreatedBy).Summary(),
		Participants: participants,
	}
	if ticket.AssignedTo != nil {
		v.Assignee = c.findUser(ctx, *ticket.AssignedTo).Summary()
	}
	if ticket.DepartmentID != nil && c.departments != nil {
		dep, err := c.departments.GetByID(ctx, *ticket.DepartmentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		v.Department = dep
	}
	return v, nil
}

func (c *core) refreshedView(ctx context.Context, ticketID string) (*domain.TicketView, error) {
	ticket, err := loadTicket(ctx, c.repos, ticketID, false)
	if err != nil {
		return nil, err
	}
	return c.view(ctx, ticket)
}

// mapRepoError converts store sentinels into domain errors.
func mapRepoError(err error, resource string, details map[string]any) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(fmt.Sprintf("%s already exists", resource), details)
	default:
		return apperrors.NewInternalError(err)
	}
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
