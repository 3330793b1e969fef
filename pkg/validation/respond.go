package validation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// Respond writes a 400 with the Laravel-style {message, errors} body.
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ValidationErrorResponse{
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Field builds a single-field error map, e.g. Field("name", "This field is required").
func Field(name, msg string) map[string][]string {
	return map[string][]string{name: {msg}}
}
