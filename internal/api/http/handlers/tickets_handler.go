package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/corpnet/helpdesk/internal/api/dto"
	"github.com/corpnet/helpdesk/internal/auth"
	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/repository"
	"github.com/corpnet/helpdesk/internal/service"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	input := service.CreateTicketInput{
		Title:                req.Title,
		Description:          req.Description,
		Priority:             req.Priority,
		TicketTypeID:         req.TicketTypeID,
		AssignedTo:           req.AssignedTo,
		DepartmentID:         req.DepartmentID,
		ParentTicketID:       req.ParentTicketID,
		DueDate:              req.DueDate,
		EstimatedHours:       req.EstimatedHours,
		Tags:                 req.Tags,
		IsUrgent:             req.IsUrgent,
		IsInternal:           req.IsInternal,
		NotificationsEnabled: req.NotificationsEnabled,
		CustomFields:         req.CustomFields,
		ParticipantIDs:       req.ParticipantIDs,
	}
	view, err := h.service.Create(requestContext(c), input, actorID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketDetail(view)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	query := parseTicketQuery(c)
	filter := repository.TicketFilter{
		Statuses:       query.Statuses,
		Priorities:     query.Priorities,
		TicketTypeID:   query.TicketTypeID,
		DepartmentID:   query.DepartmentID,
		AssignedTo:     query.AssignedTo,
		CreatedBy:      query.CreatedBy,
		ParentTicketID: query.ParentTicketID,
		Tag:            query.Tag,
		IsUrgent:       query.IsUrgent,
		SearchTerm:     query.Search,
		CreatedFrom:    query.CreatedFrom,
		CreatedTo:      query.CreatedTo,
		Limit:          query.PageSize,
		Offset:         (query.Page - 1) * query.PageSize,
	}
	tickets, total, err := h.service.List(c.UserContext(), filter, actorID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:    items,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	patch := service.UpdateTicketInput{
		Title:                req.Title,
		Description:          req.Description,
		Status:               req.Status,
		Priority:             req.Priority,
		TicketTypeID:         req.TicketTypeID,
		DepartmentID:         req.DepartmentID,
		ParentTicketID:       req.ParentTicketID,
		DueDate:              req.DueDate,
		EstimatedHours:       req.EstimatedHours,
		ActualHours:          req.ActualHours,
		Tags:                 req.Tags,
		IsUrgent:             req.IsUrgent,
		IsInternal:           req.IsInternal,
		NotificationsEnabled: req.NotificationsEnabled,
		CustomFields:         req.CustomFields,
		Resolution:           req.Resolution,
	}
	view, err := h.service.Update(requestContext(c), c.Params("id"), patch, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	view, err := h.service.AssignTicket(requestContext(c), c.Params("id"), req.AssigneeID, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// UnassignTicket POST /tickets/:id/unassign.
func (h *TicketsHandler) UnassignTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	view, err := h.service.UnassignTicket(requestContext(c), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.CloseTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		if err := dto.Validate(&req); err != nil {
			return err
		}
	}
	view, err := h.service.CloseTicket(requestContext(c), c.Params("id"), req.Resolution, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	view, err := h.service.ReopenTicket(requestContext(c), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	if err := h.service.Remove(requestContext(c), c.Params("id"), actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), 50)
	offset := parseNonNegative(c.Query("offset"))
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"), actorID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// requestContext carries caller address and agent into audit entries.
func requestContext(c *fiber.Ctx) context.Context {
	return service.WithRequestMeta(c.UserContext(), domain.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{}
	for _, part := range splitCSV(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(strings.ToUpper(part)))
	}
	for _, part := range splitCSV(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(strings.ToUpper(part)))
	}
	query.TicketTypeID = optionalQuery(c, "ticket_type_id")
	query.DepartmentID = optionalQuery(c, "department_id")
	query.AssignedTo = optionalQuery(c, "assigned_to")
	query.CreatedBy = optionalQuery(c, "created_by")
	query.ParentTicketID = optionalQuery(c, "parent_ticket_id")
	query.Tag = optionalQuery(c, "tag")
	query.Search = optionalQuery(c, "search")
	if raw := c.Query("is_urgent"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			query.IsUrgent = &v
		}
	}
	query.CreatedFrom = parseTime(c.Query("created_from"))
	query.CreatedTo = parseTime(c.Query("created_to"))
	query.Page = parseInt(c.Query("page"), 1)
	query.PageSize = parseInt(c.Query("page_size"), defaultPageSize)
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	return query
}

func splitCSV(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseNonNegative(val string) int {
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.TicketResponse{
		ID:                   ticket.ID,
		TicketNumber:         ticket.TicketNumber,
		Title:                ticket.Title,
		Description:          ticket.Description,
		Status:               ticket.Status,
		Priority:             ticket.Priority,
		TicketTypeID:         ticket.TicketTypeID,
		CreatedBy:            ticket.CreatedBy,
		AssignedTo:           ticket.AssignedTo,
		DepartmentID:         ticket.DepartmentID,
		ParentTicketID:       ticket.ParentTicketID,
		DueDate:              ticket.DueDate,
		ResolvedAt:           ticket.ResolvedAt,
		ClosedAt:             ticket.ClosedAt,
		EstimatedHours:       ticket.EstimatedHours,
		ActualHours:          ticket.ActualHours,
		Tags:                 tags,
		IsUrgent:             ticket.IsUrgent,
		IsInternal:           ticket.IsInternal,
		NotificationsEnabled: ticket.NotificationsEnabled,
		CustomFields:         ticket.CustomFields,
		Resolution:           ticket.Resolution,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
}

func ticketDetail(view *domain.TicketView) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(view.Ticket),
		Creator:        userSummary(view.Creator),
		Assignee:       userSummary(view.Assignee),
		Participants:   participantResponses(view.Participants),
	}
	if view.Department != nil {
		resp.Department = &dto.DepartmentResponse{ID: view.Department.ID, Name: view.Department.Name}
	}
	return resp
}

func userSummary(u *domain.UserSummary) *dto.UserSummaryResponse {
	if u == nil {
		return nil
	}
	return &dto.UserSummaryResponse{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

func historyResponses(entries []domain.TicketHistory) []dto.HistoryResponse {
	resp := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryResponse{
			ID:          entry.ID,
			UserID:      entry.UserID,
			Action:      entry.Action,
			OldValues:   entry.OldValues,
			NewValues:   entry.NewValues,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
