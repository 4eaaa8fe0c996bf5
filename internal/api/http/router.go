package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/corpnet/helpdesk/internal/api/http/handlers"
	"github.com/corpnet/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Participants   *handlers.ParticipantsHandler
	Messages       *handlers.MessagesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/stats", cfg.Health.Stats)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireActiveUser())

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/unassign", cfg.Tickets.UnassignTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	tickets.Get("/:id/participants", cfg.Participants.ListParticipants)
	tickets.Post("/:id/participants", cfg.Participants.AddParticipant)
	tickets.Patch("/:id/participants/:userId", cfg.Participants.UpdateParticipant)
	tickets.Put("/:id/participants/:userId/role", cfg.Participants.ChangeRole)
	tickets.Delete("/:id/participants/:userId", cfg.Participants.RemoveParticipant)
	tickets.Post("/:id/transfer", cfg.Participants.TransferOwnership)

	tickets.Get("/:id/messages", cfg.Messages.ListMessages)
	tickets.Post("/:id/messages", cfg.Messages.PostMessage)
	tickets.Post("/:id/messages/read", cfg.Messages.MarkAllRead)
	tickets.Get("/:id/messages/unread-count", cfg.Messages.UnreadCount)

	messages := api.Group("/messages")
	messages.Get("/:messageId", cfg.Messages.GetMessage)
	messages.Patch("/:messageId", cfg.Messages.UpdateMessage)
	messages.Delete("/:messageId", cfg.Messages.DeleteMessage)
	messages.Post("/:messageId/read", cfg.Messages.MarkRead)
}
