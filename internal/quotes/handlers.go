package quotes

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/notes"
	"github.com/aldoetobex/smb-crm-backend/internal/workflow"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

type Handler struct {
	svc   *Service
	notes *notes.Service
	ctl   *workflow.Controller
}

func NewHandler(db *gorm.DB, ctl *workflow.Controller) *Handler {
	return &Handler{svc: NewService(db), notes: notes.NewService(db), ctl: ctl}
}

// Save godoc
// @Summary      Create (id 0) or update a quote with its lines
// @Description  Payments reference service lines by position in this submission or by quote_service_id.
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "quote id, 0 creates"
// @Param        payload  body  SaveInput  true  "quote"
// @Success      200  {object}  models.Quote
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /quotes/{id} [post]
func (h *Handler) Save(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in SaveInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	q, err := h.svc.Save(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if id == 0 {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(q)
}

// SaveLines godoc
// @Summary      Replace the service and payment lines of a quote
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        id       path  int    true  "quote id"
// @Param        payload  body  Lines  true  "lines"
// @Success      200  {object}  models.Quote
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /quotes/{id}/lines [put]
func (h *Handler) SaveLines(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in Lines
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	q, err := h.svc.SaveLines(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(q)
}

// Detail godoc
// @Summary      Quote detail with totals and pinned note
// @Tags         quotes
// @Produce      json
// @Param        id   path  int  true  "quote id"
// @Success      200  {object}  Detail
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	d, err := h.svc.Detail(c.UserContext(), id)
	if err != nil {
		return err
	}
	tagged, err := h.notes.Tagged(c.UserContext(), models.SubjectRef{Type: models.SubjectQuote, ID: id})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"quote": d, "tagged_note": tagged})
}

// Kanban godoc
// @Summary      Quotes grouped by status with counts
// @Tags         quotes
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /quotes/kanban [get]
func (h *Handler) Kanban(c *fiber.Ctx) error {
	board, err := h.svc.Board(c.UserContext())
	if err != nil {
		return err
	}
	counts, err := h.ctl.Counts(c.UserContext(), workflow.EntityQuote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"statuses":      workflow.Statuses(workflow.EntityQuote),
		"columns":       board,
		"status_counts": counts,
	})
}

// formRow echoes the form position of a row the page is about to insert.
func formRow(c *fiber.Ctx) error {
	idx, err := strconv.Atoi(c.Query("form_index"))
	if err != nil || idx < 0 {
		return apperr.ValidationFields(validation.Field("form_index", "Must be a non-negative integer"))
	}
	return c.JSON(fiber.Map{
		"form_index":  idx,
		"form_prefix": c.Query("form_prefix"),
		"row_number":  idx + 1,
	})
}

// ServiceRow godoc
// @Summary      Position data for a new service line row
// @Tags         quotes
// @Produce      json
// @Param        form_index   query  int     true   "row index"
// @Param        form_prefix  query  string  false  "form prefix"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /quotes/service-row [get]
func (h *Handler) ServiceRow(c *fiber.Ctx) error { return formRow(c) }

// PaymentRow godoc
// @Summary      Position data for a new payment row
// @Tags         quotes
// @Produce      json
// @Param        form_index   query  int     true   "row index"
// @Param        form_prefix  query  string  false  "form prefix"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /quotes/payment-row [get]
func (h *Handler) PaymentRow(c *fiber.Ctx) error { return formRow(c) }

// Delete godoc
// @Summary      Delete a quote with its lines, notes and tasks
// @Tags         quotes
// @Param        id   path  int  true  "quote id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MassDelete godoc
// @Summary      Delete several quotes
// @Tags         quotes
// @Accept       json
// @Param        payload  body  models.MassDeleteRequest  true  "comma separated ids"
// @Success      200  {object}  models.MassDeleteResponse
// @Router       /quotes/mass-delete [post]
func (h *Handler) MassDelete(c *fiber.Ctx) error {
	var in models.MassDeleteRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	ids, err := utils.ParseIDList(in.IDs)
	if err != nil {
		return err
	}
	deleted, missing, err := h.svc.MassDelete(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return c.JSON(models.MassDeleteResponse{Deleted: deleted, Missing: missing, Fallback: in.Fallback})
}
