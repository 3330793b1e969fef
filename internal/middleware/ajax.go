package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// RequireAJAX only lets XMLHttpRequest POSTs through; anything else gets a 405.
// It also switches error rendering to the {success:false, error} shape.
func RequireAJAX() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(ajaxLocal, true)
		if c.Method() != fiber.MethodPost || !c.XHR() {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(models.AjaxErrorResponse{
				Success: false,
				Error:   "Invalid request",
			})
		}
		return c.Next()
	}
}
