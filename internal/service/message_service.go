package service

import (
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/repository"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// MessageService manages ticket threads and read receipts.
type MessageService struct {
	*core
	policy *bluemonday.Policy
}

// PostMessageInput describes a new thread entry.
type PostMessageInput struct {
	Content    string
	Type       domain.MessageType
	IsInternal bool
	ReplyToID  *string
	Metadata   map[string]any
}

// AttachmentInput is the metadata of a file already stored by the caller.
type AttachmentInput struct {
	FileName    string
	StoragePath string
	MimeType    string
	SizeBytes   int64
	Checksum    *string
}

// NewMessageService constructs the service.
func NewMessageService(deps Dependencies) *MessageService {
	return &MessageService{core: newCore(deps), policy: bluemonday.UGCPolicy()}
}

// PostMessage appends a message from a participant allowed to comment.
func (s *MessageService) PostMessage(ctx context.Context, ticketID, actorID string, input PostMessageInput) (*domain.TicketMessage, error) {
	return s.post(ctx, ticketID, actorID, input, nil, false)
}

// PostMessageWithAttachments posts a message with file metadata. An actor who
// can see the ticket but is not yet a participant joins as COLLABORATOR.
func (s *MessageService) PostMessageWithAttachments(ctx context.Context, ticketID, actorID string, input PostMessageInput, attachments []AttachmentInput) (*domain.TicketMessage, error) {
	for i, a := range attachments {
		if strings.TrimSpace(a.FileName) == "" || strings.TrimSpace(a.StoragePath) == "" {
			return nil, apperrors.NewValidationError("attachment requires a file name and storage path", map[string]any{"index": i})
		}
		if a.SizeBytes < 0 {
			return nil, apperrors.NewValidationError("attachment size cannot be negative", map[string]any{"index": i})
		}
	}
	return s.post(ctx, ticketID, actorID, input, attachments, true)
}

func (s *MessageService) post(ctx context.Context, ticketID, actorID string, input PostMessageInput, attachments []AttachmentInput, autoAdmit bool) (*domain.TicketMessage, error) {
	msgType := input.Type
	if msgType == "" {
		msgType = domain.MessageTypeComment
	}
	if !msgType.Valid() || msgType == domain.MessageTypeSystem {
		return nil, apperrors.NewValidationError("invalid message type", map[string]any{"type": msgType})
	}
	content := s.sanitize(input.Content)
	if content == "" && len(attachments) == 0 {
		return nil, apperrors.NewValidationError("message content is required", map[string]any{"field": "content"})
	}

	var (
		msg          *domain.TicketMessage
		ticketNumber string
		admitted     bool
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		ticketNumber = ticket.TicketNumber
		participant, err := participantRow(ctx, repos, ticketID, actorID)
		if err != nil {
			return err
		}
		if autoAdmit && !participant.Active() {
			if ok, err := s.canView(ctx, ticket, participant, actorID); err != nil {
				return err
			} else if !ok {
				return apperrors.NewAccessDenied("you do not have access to this ticket")
			}
			if participant, admitted, err = s.ensureParticipant(ctx, repos, ticketID, actorID, domain.RoleCollaborator, actorID); err != nil {
				return err
			}
			if admitted {
				if err := s.history(ctx, repos, ticketID, actorID, domain.HistoryParticipantAdded, nil,
					map[string]any{"userId": actorID, "role": domain.RoleCollaborator}, "participant joined by posting"); err != nil {
					return err
				}
			}
		}
		if !permission.CanComment(participant) {
			return apperrors.NewAccessDenied("you may not comment on this ticket")
		}
		if input.ReplyToID != nil && *input.ReplyToID != "" {
			parent, err := repos.Messages.GetByID(ctx, *input.ReplyToID)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && parent.TicketID != ticketID) {
				return apperrors.NewValidationError("reply target must belong to the same ticket", map[string]any{"reply_to_id": *input.ReplyToID})
			}
			if err != nil {
				return apperrors.NewInternalError(err)
			}
		}

		now := s.now()
		msg = &domain.TicketMessage{
			TicketID:   ticketID,
			SenderID:   actorID,
			Content:    content,
			Type:       msgType,
			IsInternal: input.IsInternal,
			Metadata:   domain.CloneMap(input.Metadata),
			ReplyToID:  emptyPtrToNil(input.ReplyToID),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repos.Messages.Create(ctx, msg); err != nil {
			return apperrors.NewInternalError(err)
		}
		for _, a := range attachments {
			messageID := msg.ID
			record := &domain.TicketAttachment{
				TicketID:     ticketID,
				MessageID:    &messageID,
				UploadedByID: actorID,
				FileName:     strings.TrimSpace(a.FileName),
				StoragePath:  a.StoragePath,
				MimeType:     a.MimeType,
				SizeBytes:    a.SizeBytes,
				Checksum:     a.Checksum,
				IsVisible:    true,
				CreatedAt:    now,
			}
			if err := repos.Attachments.Create(ctx, record); err != nil {
				return apperrors.NewInternalError(err)
			}
			msg.Attachments = append(msg.Attachments, *record)
		}
		if _, err := repos.Reads.MarkRead(ctx, msg.ID, actorID, now); err != nil {
			return apperrors.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inferStatus(ctx, ticketID, actorID)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload: events.TicketMessageAddedPayload{
			TicketNumber: ticketNumber,
			MessageID:    msg.ID,
			MessageType:  msg.Type,
			IsInternal:   msg.IsInternal,
			BodyPreview:  stringPreview(msg.Content, 280),
		},
	})
	return msg, nil
}

// inferStatus moves the ticket to FOLLOW_UP when its assignee posts and to
// IN_PROGRESS when its creator posts. Failures are logged only.
func (s *MessageService) inferStatus(ctx context.Context, ticketID, senderID string) {
	var (
		oldStatus, newStatus domain.TicketStatus
		ticketNumber         string
	)
	err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		switch {
		case ticket.IsAssignedTo(senderID):
			newStatus = domain.TicketStatusFollowUp
		case ticket.CreatedBy == senderID:
			newStatus = domain.TicketStatusInProgress
		default:
			return nil
		}
		oldStatus, ticketNumber = ticket.Status, ticket.TicketNumber
		now := s.now()
		if !ticket.ApplyStatus(newStatus, now) {
			newStatus = ""
			return nil
		}
		ticket.UpdatedAt = now
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		return s.history(ctx, repos, ticketID, senderID, domain.HistoryStatusChanged,
			map[string]any{"status": oldStatus}, map[string]any{"status": newStatus}, "status inferred from message")
	})
	if err != nil {
		s.logger.Warn("status inference failed",
			zap.String("ticket_id", ticketID),
			zap.String("actor_id", senderID),
			zap.Error(err))
		return
	}
	if newStatus == "" {
		return
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		ActorID:  senderID,
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticketNumber,
			OldStatus:    oldStatus,
			NewStatus:    newStatus,
			Inferred:     true,
		},
	})
}

// UpdateMessage edits a message. Only its sender may, and never a SYSTEM message.
func (s *MessageService) UpdateMessage(ctx context.Context, messageID, content, actorID string) (*domain.TicketMessage, error) {
	msg, err := s.ownMessage(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	content = s.sanitize(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message content is required", map[string]any{"field": "content"})
	}
	err = s.mutate(ctx, msg.TicketID, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Messages.GetByID(ctx, messageID)
		if err != nil {
			return mapRepoError(err, "message", map[string]any{"message_id": messageID})
		}
		now := s.now()
		current.Content = content
		current.IsEdited = true
		current.EditedBy = &actorID
		current.EditedAt = &now
		current.UpdatedAt = now
		if err := repos.Messages.Update(ctx, current); err != nil {
			return mapRepoError(err, "message", map[string]any{"message_id": messageID})
		}
		msg = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RemoveMessage deletes a message. Only its sender may, and never a SYSTEM message.
func (s *MessageService) RemoveMessage(ctx context.Context, messageID, actorID string) error {
	msg, err := s.ownMessage(ctx, messageID, actorID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, msg.TicketID, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Messages.Delete(ctx, messageID); err != nil {
			return mapRepoError(err, "message", map[string]any{"message_id": messageID})
		}
		return nil
	})
}

func (s *MessageService) ownMessage(ctx context.Context, messageID, actorID string) (*domain.TicketMessage, error) {
	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, mapRepoError(err, "message", map[string]any{"message_id": messageID})
	}
	if msg.Type == domain.MessageTypeSystem {
		return nil, apperrors.NewInvalidState("system messages cannot be modified", map[string]any{"message_id": messageID})
	}
	if msg.SenderID != actorID {
		return nil, apperrors.NewAccessDenied("only the sender may modify this message")
	}
	return msg, nil
}

// MarkRead records that the actor has seen a message. It reports whether a
// new receipt was created.
func (s *MessageService) MarkRead(ctx context.Context, messageID, actorID string) (bool, error) {
	msg, err := s.GetMessage(ctx, messageID, actorID)
	if err != nil {
		return false, err
	}
	created, err := s.repos.Reads.MarkRead(ctx, msg.ID, actorID, s.now())
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return created, nil
}

// MarkAllRead marks every unread message visible to the actor and returns how
// many receipts were created.
func (s *MessageService) MarkAllRead(ctx context.Context, ticketID, actorID string) (int, error) {
	ticket, err := loadTicket(ctx, s.repos, ticketID, false)
	if err != nil {
		return 0, err
	}
	participant, err := s.requireView(ctx, s.repos, ticket, actorID)
	if err != nil {
		return 0, err
	}
	count := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		unread, err := repos.Messages.ListUnread(ctx, ticketID, actorID, participant.Active())
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		now := s.now()
		for _, m := range unread {
			created, err := repos.Reads.MarkRead(ctx, m.ID, actorID, now)
			if err != nil {
				return apperrors.NewInternalError(err)
			}
			if created {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UnreadCount counts messages the actor has not read and did not send.
func (s *MessageService) UnreadCount(ctx context.Context, ticketID, actorID string) (int, error) {
	ticket, err := loadTicket(ctx, s.repos, ticketID, false)
	if err != nil {
		return 0, err
	}
	participant, err := s.requireView(ctx, s.repos, ticket, actorID)
	if err != nil {
		return 0, err
	}
	unread, err := s.repos.Messages.ListUnread(ctx, ticketID, actorID, participant.Active())
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	return len(unread), nil
}

// ListMessages returns the thread in posting order. Internal messages are
// omitted for non-participants.
func (s *MessageService) ListMessages(ctx context.Context, ticketID, actorID string) ([]domain.TicketMessage, error) {
	ticket, err := loadTicket(ctx, s.repos, ticketID, false)
	if err != nil {
		return nil, err
	}
	participant, err := s.requireView(ctx, s.repos, ticket, actorID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ListByTicket(ctx, ticketID, participant.Active())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	attachments, err := s.repos.Attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	byMessage := make(map[string][]domain.TicketAttachment)
	for _, a := range attachments {
		if a.MessageID != nil && a.IsVisible {
			byMessage[*a.MessageID] = append(byMessage[*a.MessageID], a)
		}
	}
	for i := range msgs {
		msgs[i].Attachments = byMessage[msgs[i].ID]
	}
	return msgs, nil
}

// GetMessage returns one message. Internal messages require participation.
func (s *MessageService) GetMessage(ctx context.Context, messageID, actorID string) (*domain.TicketMessage, error) {
	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, mapRepoError(err, "message", map[string]any{"message_id": messageID})
	}
	ticket, err := loadTicket(ctx, s.repos, msg.TicketID, false)
	if err != nil {
		return nil, err
	}
	participant, err := participantRow(ctx, s.repos, ticket.ID, actorID)
	if err != nil {
		return nil, err
	}
	if !permission.CanSeeMessage(participant, msg) {
		return nil, apperrors.NewAccessDenied("internal messages are visible to participants only")
	}
	if ok, err := s.canView(ctx, ticket, participant, actorID); err != nil {
		return nil, err
	} else if !ok {
		return nil, apperrors.NewAccessDenied("you do not have access to this ticket")
	}
	attachments, err := s.repos.Attachments.ListByMessage(ctx, msg.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	msg.Attachments = attachments
	return msg, nil
}

func (s *MessageService) sanitize(content string) string {
	return strings.TrimSpace(s.policy.Sanitize(content))
}

func emptyPtrToNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
