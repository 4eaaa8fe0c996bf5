package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/api/dto"
	"github.com/corpnet/helpdesk/internal/api/http/handlers"
	"github.com/corpnet/helpdesk/internal/auth"
	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/locker"
	"github.com/corpnet/helpdesk/internal/observability"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/repository/memory"
	"github.com/corpnet/helpdesk/internal/service"
)

type apiFixture struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	dir.AddUser(domain.User{ID: "emp", Email: "emp@corp.example", DisplayName: "Employee", RoleName: "employee", Active: true})
	dir.AddUser(domain.User{ID: "tech", Email: "tech@corp.example", DisplayName: "Tech", RoleName: "technician", Active: true})
	dir.AddUser(domain.User{ID: "stranger", Email: "stranger@corp.example", RoleName: "employee", Active: true})
	dir.AddUser(domain.User{ID: "former", Email: "former@corp.example", RoleName: "employee", Active: false})
	dir.AddType(domain.TicketType{ID: "type-sup", Code: "SUP", Name: "Support", IsActive: true})

	visibility, err := permission.NewCapabilityResolver("", zap.NewNop())
	require.NoError(t, err)

	deps := service.Dependencies{
		Tx:          store,
		Repos:       store.Repositories(),
		Users:       dir,
		TicketTypes: dir.TicketTypes(),
		Departments: dir.Departments(),
		Locker:      locker.NewKeyedMutex(0),
		Dispatcher:  events.NewInMemoryDispatcher(zap.NewNop()),
		Visibility:  visibility,
		Logger:      zap.NewNop(),
	}
	tokens := auth.NewTokenManager("test-secret", "helpdesk-test", 5)

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", metrics,
			handlers.Dependency{Name: "postgres"},
			handlers.Dependency{Name: "cache", Pinger: failingPinger{}},
		),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(deps)),
		Participants:   handlers.NewParticipantsHandler(service.NewParticipantService(deps)),
		Messages:       handlers.NewMessagesHandler(service.NewMessageService(deps)),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, dir),
	})
	return &apiFixture{app: app, tokens: tokens}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if userID != "" {
		token, _, err := f.tokens.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeData[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return envelope.Data
}

func decodeError(t *testing.T, raw []byte) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func (f *apiFixture) createTicket(t *testing.T, userID string) dto.TicketDetailResponse {
	t.Helper()
	status, raw := f.do(t, fiber.MethodPost, "/api/v1/tickets", userID, map[string]any{
		"title":          "Laptop will not boot",
		"description":    "Black screen after update",
		"ticket_type_id": "type-sup",
		"tags":           []string{"hardware", "hardware"},
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	return decodeData[dto.TicketDetailResponse](t, raw)
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, raw := f.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	body := decodeError(t, raw)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "disabled", body.Error.Details["postgres"])
	assert.Equal(t, "unavailable", body.Error.Details["cache"])

	status, raw = f.do(t, fiber.MethodGet, "/health/stats", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	counters := decodeData[map[string]int64](t, raw)
	assert.Equal(t, int64(1), counters["requests|/health/ready|GET|503"])
}

func TestErrorsCarryRequestID(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/tickets", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "trace-42", resp.Header.Get("X-Request-ID"))

	var body struct {
		Error struct {
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "trace-42", body.Error.RequestID)

	status, _ := f.do(t, fiber.MethodGet, "/no/such/route", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAPIRejectsMissingAndInvalidTokens(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, fiber.MethodGet, "/api/v1/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, raw).Error.Code)

	status, _ = f.do(t, fiber.MethodGet, "/api/v1/tickets", "ghost", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, raw = f.do(t, fiber.MethodGet, "/api/v1/tickets", "former", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "ACCESS_DENIED", decodeError(t, raw).Error.Code)
}

func TestCreateTicketOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	ticket := f.createTicket(t, "emp")
	assert.True(t, strings.HasPrefix(ticket.TicketNumber, "SUP-"))
	assert.True(t, strings.HasSuffix(ticket.TicketNumber, "-0001"))
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, []string{"hardware"}, ticket.Tags)
	require.NotNil(t, ticket.Creator)
	assert.Equal(t, "Employee", ticket.Creator.DisplayName)
	require.Len(t, ticket.Participants, 1)
	assert.Equal(t, domain.RoleCreator, ticket.Participants[0].Role)
}

func TestCreateTicketValidationErrorsNameFields(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, fiber.MethodPost, "/api/v1/tickets", "emp", map[string]any{
		"description": "no title",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	body := decodeError(t, raw)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Contains(t, body.Error.Details, "title")
	assert.Contains(t, body.Error.Details, "ticket_type_id")
}

func TestTicketVisibilityOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	ticket := f.createTicket(t, "emp")

	status, _ := f.do(t, fiber.MethodGet, "/api/v1/tickets/"+ticket.ID, "stranger", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = f.do(t, fiber.MethodGet, "/api/v1/tickets/does-not-exist", "emp", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw := f.do(t, fiber.MethodGet, "/api/v1/tickets", "stranger", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, decodeData[dto.TicketListResponse](t, raw).Total)

	status, raw = f.do(t, fiber.MethodGet, "/api/v1/tickets?status=open", "emp", nil)
	require.Equal(t, fiber.StatusOK, status)
	list := decodeData[dto.TicketListResponse](t, raw)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Page)
}

func TestAssignCloseAndHistoryOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	ticket := f.createTicket(t, "emp")
	base := "/api/v1/tickets/" + ticket.ID

	status, raw := f.do(t, fiber.MethodPost, base+"/assign", "emp", map[string]any{"assignee_id": "tech"})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assigned := decodeData[dto.TicketDetailResponse](t, raw)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "tech", *assigned.AssignedTo)
	require.NotNil(t, assigned.Assignee)
	assert.Equal(t, "tech@corp.example", assigned.Assignee.Email)

	status, raw = f.do(t, fiber.MethodPost, base+"/close", "tech", map[string]any{"resolution": "Replaced disk"})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	closed := decodeData[dto.TicketDetailResponse](t, raw)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	status, raw = f.do(t, fiber.MethodGet, base+"/history", "emp", nil)
	require.Equal(t, fiber.StatusOK, status)
	actions := make([]domain.HistoryAction, 0)
	for _, h := range decodeData[[]dto.HistoryResponse](t, raw) {
		actions = append(actions, h.Action)
	}
	assert.Contains(t, actions, domain.HistoryCreated)
	assert.Contains(t, actions, domain.HistoryClosed)
}

func TestMessagesOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	ticket := f.createTicket(t, "emp")
	base := "/api/v1/tickets/" + ticket.ID

	status, raw := f.do(t, fiber.MethodPost, base+"/messages", "emp", map[string]any{
		"content": "Still broken <script>alert(1)</script>",
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	msg := decodeData[dto.TicketMessageResponse](t, raw)
	assert.Equal(t, domain.MessageTypeComment, msg.Type)
	assert.NotContains(t, msg.Content, "<script>")

	status, _ = f.do(t, fiber.MethodPost, base+"/messages", "stranger", map[string]any{"content": "hi"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw = f.do(t, fiber.MethodPatch, "/api/v1/messages/"+msg.ID, "emp", map[string]any{"content": "uptime < 5 min & falling"})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	edited := decodeData[dto.TicketMessageResponse](t, raw)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "uptime &lt; 5 min &amp; falling", edited.Content)
	assert.Equal(t, "uptime < 5 min & falling", edited.ContentText)

	status, raw = f.do(t, fiber.MethodGet, base+"/messages", "emp", nil)
	require.Equal(t, fiber.StatusOK, status)
	messages := decodeData[[]dto.TicketMessageResponse](t, raw)
	require.NotEmpty(t, messages)
	assert.Equal(t, msg.ID, messages[len(messages)-1].ID)

	status, _ = f.do(t, fiber.MethodDelete, "/api/v1/messages/"+msg.ID, "emp", nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestParticipantsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	ticket := f.createTicket(t, "emp")
	base := "/api/v1/tickets/" + ticket.ID

	status, raw := f.do(t, fiber.MethodPost, base+"/participants", "emp", map[string]any{"user_id": "tech"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	added := decodeData[dto.ParticipantResponse](t, raw)
	assert.Equal(t, domain.RoleCollaborator, added.Role)
	assert.True(t, added.CanComment)

	status, raw = f.do(t, fiber.MethodPost, base+"/participants", "emp", map[string]any{"user_id": "tech", "role": "OWNER"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, decodeError(t, raw).Error.Details, "role")

	status, raw = f.do(t, fiber.MethodGet, base+"/participants", "tech", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decodeData[[]dto.ParticipantResponse](t, raw), 2)

	status, _ = f.do(t, fiber.MethodDelete, base+"/participants/tech", "emp", nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = f.do(t, fiber.MethodGet, base+"/participants", "tech", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}
