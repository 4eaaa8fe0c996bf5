package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/corpnet/helpdesk/internal/api/dto"
	"github.com/corpnet/helpdesk/internal/auth"
	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/service"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// MessagesHandler serves the ticket conversation thread.
type MessagesHandler struct {
	service *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messageService *service.MessageService) *MessagesHandler {
	return &MessagesHandler{service: messageService}
}

// PostMessage POST /tickets/:id/messages.
func (h *MessagesHandler) PostMessage(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	input := service.PostMessageInput{
		Content:    req.Content,
		Type:       req.Type,
		IsInternal: req.IsInternal,
		ReplyToID:  req.ReplyToID,
		Metadata:   req.Metadata,
	}

	var msg *domain.TicketMessage
	if len(req.Attachments) > 0 {
		attachments := make([]service.AttachmentInput, 0, len(req.Attachments))
		for _, att := range req.Attachments {
			attachments = append(attachments, service.AttachmentInput{
				FileName:    att.FileName,
				StoragePath: att.StoragePath,
				MimeType:    att.MimeType,
				SizeBytes:   att.SizeBytes,
				Checksum:    att.Checksum,
			})
		}
		msg, err = h.service.PostMessageWithAttachments(c.UserContext(), c.Params("id"), actorID, input, attachments)
	} else {
		msg, err = h.service.PostMessage(c.UserContext(), c.Params("id"), actorID, input)
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// ListMessages GET /tickets/:id/messages.
func (h *MessagesHandler) ListMessages(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	messages, err := h.service.ListMessages(c.UserContext(), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketMessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, messageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkAllRead POST /tickets/:id/messages/read.
func (h *MessagesHandler) MarkAllRead(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	count, err := h.service.MarkAllRead(c.UserContext(), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": count}})
}

// UnreadCount GET /tickets/:id/messages/unread-count.
func (h *MessagesHandler) UnreadCount(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	count, err := h.service.UnreadCount(c.UserContext(), c.Params("id"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// GetMessage GET /messages/:messageId.
func (h *MessagesHandler) GetMessage(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	msg, err := h.service.GetMessage(c.UserContext(), c.Params("messageId"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponse(msg)})
}

// UpdateMessage PATCH /messages/:messageId.
func (h *MessagesHandler) UpdateMessage(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	msg, err := h.service.UpdateMessage(c.UserContext(), c.Params("messageId"), req.Content, actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponse(msg)})
}

// DeleteMessage DELETE /messages/:messageId.
func (h *MessagesHandler) DeleteMessage(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveMessage(c.UserContext(), c.Params("messageId"), actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkRead POST /messages/:messageId/read.
func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	actorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	created, err := h.service.MarkRead(c.UserContext(), c.Params("messageId"), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"created": created}})
}

func messageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			ID:          att.ID,
			FileName:    att.FileName,
			MimeType:    att.MimeType,
			SizeBytes:   att.SizeBytes,
			StoragePath: att.StoragePath,
		})
	}
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		TicketID:    msg.TicketID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		ContentText: dto.PlainText(msg.Content),
		Type:        msg.Type,
		IsInternal:  msg.IsInternal,
		IsEdited:    msg.IsEdited,
		ReplyToID:   msg.ReplyToID,
		Metadata:    msg.Metadata,
		EditedAt:    msg.EditedAt,
		Attachments: attachments,
		CreatedAt:   msg.CreatedAt,
	}
}
