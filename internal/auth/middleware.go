package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/repository"
	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	// ActorIDKey holds the authenticated user id; the request logger reads it.
	ActorIDKey = "actor_id"
)

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// AuthMiddleware validates bearer tokens and loads principals from the directory.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserDirectory
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if errors.Is(err, ErrTokenExpired) {
		return apperrors.NewUnauthorized("token expired")
	}
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.FindByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.NewInternalError(err)
	}

	c.Locals(principalKey, &Principal{User: user})
	c.Locals(ActorIDKey, user.ID)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.User != nil
}

// ActorID returns the authenticated user id or an Unauthorized error.
func ActorID(c *fiber.Ctx) (string, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	return principal.User.ID, nil
}
