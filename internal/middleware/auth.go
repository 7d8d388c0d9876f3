package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
)

// SessionCookie is the authorizer session cookie name
const SessionCookie = "cookie_session"

const userIDKey = "userID"

// SessionValidator resolves a session cookie to a user id for the given roles
type SessionValidator interface {
	ValidateSession(requestProtocol, requestHost, cookie string, roles []string) (string, error)
}

// AuthAdmin validates that the request has admin role authorization.
// A nil validator leaves the route open.
func AuthAdmin(v SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, v, []string{"admin"}, "authorization.admin")
	}
}

// AuthUser validates that the request has user role authorization.
// A nil validator leaves the route open.
func AuthUser(v SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, v, []string{"user"}, "authorization.user")
	}
}

// UserID returns the authenticated user id, empty when there is none
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, v SessionValidator, roles []string, errorType string) error {
	if v == nil {
		return c.Next()
	}

	// Get session cookie
	session := c.Cookies(SessionCookie)
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Authorizer cookie %q not found", SessionCookie),
			Type:    errorType,
		}
	}

	// Validate session
	userID, err := v.ValidateSession(c.Protocol(), c.Hostname(), session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	c.Locals(userIDKey, userID)

	return c.Next()
}
