package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/corpnet/helpdesk/internal/api/dto"
	"github.com/corpnet/helpdesk/internal/auth"
	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/service"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// ParticipantsHandler manages who takes part in a ticket.
type ParticipantsHandler struct {
	service *service.ParticipantService
}

// NewParticipantsHandler constructs handler.
func NewParticipantsHandler(participantService *service.ParticipantService) *ParticipantsHandler {
	return &ParticipantsHandler{service: participantService}
}

// ListParticipants GET /tickets/:id/participants.
func (h *ParticipantsHandler) ListParticipants(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	participants, err := h.service.ListParticipants(c.UserContext(), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": participantResponses(participants)})
}

// AddParticipant POST /tickets/:id/participants.
func (h *ParticipantsHandler) AddParticipant(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.AddParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	role := req.Role
	if role == "" {
		role = domain.RoleCollaborator
	}
	participant, err := h.service.AddParticipant(requestContext(c), c.Params("id"), req.UserID, role, actorID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": participantResponse(participant)})
}

// UpdateParticipant PATCH /tickets/:id/participants/:userId.
func (h *ParticipantsHandler) UpdateParticipant(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	patch := service.ParticipantPatch{
		Role:                 req.Role,
		CanComment:           req.CanComment,
		CanEdit:              req.CanEdit,
		CanClose:             req.CanClose,
		CanAssign:            req.CanAssign,
		ReceiveNotifications: req.ReceiveNotifications,
	}
	participant, err := h.service.UpdateParticipant(requestContext(c), c.Params("id"), c.Params("userId"), patch, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": participantResponse(participant)})
}

// ChangeRole PUT /tickets/:id/participants/:userId/role.
func (h *ParticipantsHandler) ChangeRole(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	participant, err := h.service.ChangeRole(requestContext(c), c.Params("id"), c.Params("userId"), req.Role, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": participantResponse(participant)})
}

// RemoveParticipant DELETE /tickets/:id/participants/:userId.
func (h *ParticipantsHandler) RemoveParticipant(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveParticipant(requestContext(c), c.Params("id"), c.Params("userId"), actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TransferOwnership POST /tickets/:id/transfer.
func (h *ParticipantsHandler) TransferOwnership(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.TransferOwnershipRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	view, err := h.service.TransferOwnership(requestContext(c), c.Params("id"), req.NewOwnerID, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

func participantResponses(participants []domain.TicketParticipant) []dto.ParticipantResponse {
	resp := make([]dto.ParticipantResponse, 0, len(participants))
	for i := range participants {
		resp = append(resp, participantResponse(&participants[i]))
	}
	return resp
}

func participantResponse(p *domain.TicketParticipant) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ID:                   p.ID,
		UserID:               p.UserID,
		Role:                 p.Role,
		CanComment:           p.CanComment,
		CanEdit:              p.CanEdit,
		CanClose:             p.CanClose,
		CanAssign:            p.CanAssign,
		ReceiveNotifications: p.ReceiveNotifications,
		AddedBy:              p.AddedBy,
		JoinedAt:             p.JoinedAt,
	}
}
