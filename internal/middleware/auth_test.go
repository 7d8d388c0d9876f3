package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	userID string
	err    error
	roles  []string
	cookie string
}

func (f *fakeValidator) ValidateSession(_, _, cookie string, roles []string) (string, error) {
	f.cookie = cookie
	f.roles = roles
	return f.userID, f.err
}

func authApp(guard fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorFromError})
	app.Get("/", guard, func(c *fiber.Ctx) error {
		return c.SendString("user=" + UserID(c))
	})
	return app
}

func TestAuthNilValidatorIsOpen(t *testing.T) {
	resp, err := authApp(AuthAdmin(nil)).Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMissingCookie(t *testing.T) {
	v := &fakeValidator{userID: "u1"}
	resp, err := authApp(AuthUser(v)).Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, v.cookie)
}

func TestAuthInvalidSession(t *testing.T) {
	v := &fakeValidator{err: errors.New("expired")}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookie+"=abc")

	resp, err := authApp(AuthAdmin(v)).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, []string{"admin"}, v.roles)
}

func TestAuthValidSessionStoresUser(t *testing.T) {
	v := &fakeValidator{userID: "u1"}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookie+"=abc")

	resp, err := authApp(AuthUser(v)).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", v.cookie)
	assert.Equal(t, []string{"user"}, v.roles)

	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "user=u1", string(body[:n]))
}
