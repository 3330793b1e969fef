package workflow

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
)

type Handler struct {
	ctl *Controller
}

func NewHandler(ctl *Controller) *Handler { return &Handler{ctl: ctl} }

type statusReq struct {
	LeadID    uint   `json:"lead_id" form:"lead_id"`
	QuoteID   uint   `json:"quote_id" form:"quote_id"`
	NewStatus string `json:"new_status" form:"new_status"`
}

// UpdateStatus godoc
// @Summary      Move a lead or quote to another kanban column
// @Description  AJAX only. Answers with the new per-status counts of the board.
// @Tags         workflow
// @Accept       json
// @Produce      json
// @Param        payload  body  statusReq  true  "lead_id or quote_id, new_status"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  models.AjaxErrorResponse
// @Failure      404  {object}  models.AjaxErrorResponse
// @Failure      405  {object}  models.AjaxErrorResponse
// @Failure      409  {object}  models.AjaxErrorResponse
// @Router       /leads/status [post]
// @Router       /quotes/status [post]
func (h *Handler) UpdateStatus(e Entity) fiber.Handler {
	idKey := string(e) + "_id"
	return func(c *fiber.Ctx) error {
		var in statusReq
		if err := c.BodyParser(&in); err != nil {
			return apperr.Validation("Invalid request")
		}
		id := in.LeadID
		if e == EntityQuote {
			id = in.QuoteID
		}
		if id == 0 {
			return apperr.Validation("Missing " + idKey)
		}

		tr, err := h.ctl.UpdateStatus(c.UserContext(), e, id, in.NewStatus)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success":       true,
			idKey:           tr.ID,
			"old_status":    tr.OldStatus,
			"new_status":    tr.NewStatus,
			"status_counts": tr.Counts,
		})
	}
}
