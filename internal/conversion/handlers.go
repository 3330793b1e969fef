package conversion

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler { return &Handler{engine: engine} }

// ConvertLead godoc
// @Summary      Convert a lead into a customer
// @Description  Creates or reuses the customer named after the company, upserts the contact, moves notes and quotes and marks the lead won.
// @Tags         conversion
// @Produce      json
// @Param        id   path  int  true  "lead id"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /leads/{id}/convert [post]
func (h *Handler) ConvertLead(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	customerID, err := h.engine.ConvertLead(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"lead_id": id, "customer_id": customerID})
}

// ConfirmQuote godoc
// @Summary      Confirm a quote
// @Description  Marks the quote won and creates one project with an active budget per service line, plus draft payments.
// @Tags         conversion
// @Produce      json
// @Param        id   path  int  true  "quote id"
// @Success      200  {object}  Confirmation
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /quotes/{id}/confirm [post]
func (h *Handler) ConfirmQuote(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	conf, err := h.engine.ConfirmQuote(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(conf)
}
