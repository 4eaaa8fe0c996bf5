package notification

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
)

// Renderer builds subject and bodies for ticket events.
type Renderer struct {
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	baseURL string
}

func NewRenderer(baseURL string) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy:  bluemonday.UGCPolicy(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Render returns the message for event without recipients.
func (r *Renderer) Render(event events.Event, ticket *domain.Ticket) (Message, error) {
	subject, body := r.compose(event, ticket)
	if r.baseURL != "" {
		body += fmt.Sprintf("\n\n[Open ticket](%s/tickets/%s)", r.baseURL, ticket.ID)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return Message{}, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return Message{
		Subject:  subject,
		TextBody: body,
		HTMLBody: r.policy.Sanitize(buf.String()),
	}, nil
}

func (r *Renderer) compose(event events.Event, ticket *domain.Ticket) (string, string) {
	number := ticket.TicketNumber
	switch p := event.Payload.(type) {
	case events.TicketCreatedPayload:
		return fmt.Sprintf("[%s] New ticket: %s", number, ticket.Title),
			fmt.Sprintf("Ticket **%s** was created with priority %s.\n\n%s", number, p.Priority, ticket.Description)
	case events.TicketUpdatedPayload:
		return fmt.Sprintf("[%s] Ticket updated", number),
			fmt.Sprintf("Ticket **%s** was updated.\n\n%s", number, describeChanges(p.Old, p.New))
	case events.TicketStatusChangedPayload:
		return fmt.Sprintf("[%s] Status changed to %s", number, p.NewStatus),
			fmt.Sprintf("Ticket **%s** moved from %s to **%s**.", number, p.OldStatus, p.NewStatus)
	case events.TicketAssignedPayload:
		return fmt.Sprintf("[%s] Ticket assigned to you", number),
			fmt.Sprintf("Ticket **%s** (%s) has been assigned to you.", number, ticket.Title)
	case events.TicketClosedPayload:
		body := fmt.Sprintf("Ticket **%s** (%s) has been closed.", number, ticket.Title)
		if strings.TrimSpace(p.Resolution) != "" {
			body += "\n\n**Resolution:**\n\n" + p.Resolution
		}
		return fmt.Sprintf("[%s] Ticket closed", number), body
	case events.TicketMessageAddedPayload:
		return fmt.Sprintf("[%s] New comment", number),
			fmt.Sprintf("A new comment was posted on **%s**:\n\n> %s", number, p.BodyPreview)
	case events.ParticipantAddedPayload:
		return fmt.Sprintf("[%s] You were added to a ticket", number),
			fmt.Sprintf("You were added to ticket **%s** (%s) as %s.", number, ticket.Title, strings.ToLower(string(p.Role)))
	default:
		return fmt.Sprintf("[%s] Ticket activity", number),
			fmt.Sprintf("There is new activity on ticket **%s**.", number)
	}
}

func describeChanges(old, next map[string]any) string {
	var lines []string
	for _, key := range []string{"title", "description", "status", "priority", "assignedTo", "departmentId"} {
		before, after := fmt.Sprint(old[key]), fmt.Sprint(next[key])
		if before == after {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s → %s", key, before, after))
	}
	if len(lines) == 0 {
		return "No tracked fields changed."
	}
	return strings.Join(lines, "\n")
}
