package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
)

// SupportedMajorVersion is the API major version this service speaks
const SupportedMajorVersion = "1"

// VersionMiddleware parses the X-Api-Version header and stores it in context.
// Requests for another major version are refused.
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := c.Get("X-Api-Version", "1.0.0")

		// Support version aliases
		switch version {
		case "1", "1.0":
			version = "1.0.0"
		}

		if major := strings.SplitN(strings.TrimPrefix(version, "v"), ".", 2)[0]; major != SupportedMajorVersion {
			return &types.CustomError{
				Code:    fiber.StatusBadRequest,
				Message: "Unsupported API version " + version,
				Type:    "version",
			}
		}

		// Store version in context
		c.Locals("apiVersion", version)

		return c.Next()
	}
}
