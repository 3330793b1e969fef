package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/logger"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

const ajaxLocal = "ajax"

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is the global Fiber error handler. Domain errors map through
// their kind, fiber errors keep their status, anything else is a 500.
// Routes behind RequireAJAX answer with {success:false, error}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"
	stable := ""

	var ae *apperr.Error
	var fe *fiber.Error
	switch {
	case errors.As(err, &ae):
		code = apperr.HTTPStatus(ae.Kind)
		stable = ae.Code
		if code < fiber.StatusInternalServerError || ae.Kind == apperr.KindTransaction {
			msg = ae.Message
		}
		if ae.Kind == apperr.KindValidation && len(ae.Fields) > 0 && !isAJAX(c) {
			return validation.Respond(c, ae.Fields)
		}
	case errors.As(err, &fe):
		code = fe.Code
		if strings.TrimSpace(fe.Message) != "" {
			msg = fe.Message
		}
	}
	if stable == "" {
		stable = httpCodeToString(code)
	}

	if code >= fiber.StatusInternalServerError {
		logger.Ctx(c).Error("request failed", zap.Error(err))
	}

	if isAJAX(c) {
		return c.Status(code).JSON(models.AjaxErrorResponse{Success: false, Error: ajaxMessage(ae, msg)})
	}
	return c.Status(code).JSON(models.ErrorResponse{
		Code:    stable,
		Error:   true,
		Message: msg,
	})
}

func ajaxMessage(ae *apperr.Error, msg string) string {
	if ae != nil && len(ae.Fields) > 0 {
		for _, msgs := range ae.Fields {
			if len(msgs) > 0 {
				return msgs[0]
			}
		}
	}
	return msg
}

func isAJAX(c *fiber.Ctx) bool {
	v, _ := c.Locals(ajaxLocal).(bool)
	return v
}
