package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(ErrorResponseStruct{
		Status:    status,
		Message:   message,
		Ok:        false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		URL:       c.OriginalURL(),
		Type:      errorType,
	})
}

// ErrorFromError sends the error response for any error. CustomError keeps
// its code, kind and field messages; anything else is a 500.
func ErrorFromError(c *fiber.Ctx, err error) error {
	if ce, ok := types.AsCustomError(err); ok {
		return c.Status(ce.Code).JSON(ErrorResponseStruct{
			Status:    ce.Code,
			Message:   ce.Message,
			Ok:        false,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			URL:       c.OriginalURL(),
			Type:      ce.Type,
			Fields:    ce.Fields,
		})
	}

	if fe, ok := err.(*fiber.Error); ok {
		return ErrorResponse(c, fe.Message, fe.Code, "")
	}

	return ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "unknown")
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusNotFound, types.KindNotFound)
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Ok        bool              `json:"ok"`
	Timestamp string            `json:"timestamp"`
	URL       string            `json:"url"`
	Type      string            `json:"type,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ListResponseStruct defines the schema for paginated list responses
type ListResponseStruct struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

// ListResponse sends one page of a list
func ListResponse(c *fiber.Ctx, items interface{}, total int64, page, perPage int) error {
	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return c.Status(fiber.StatusOK).JSON(ListResponseStruct{
		Items:      items,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	})
}
