package payments

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct{ svc *Service }

func NewHandler(db *gorm.DB, m *metrics.Metrics) *Handler { return &Handler{svc: NewService(db, m)} }

// Save godoc
// @Summary      Create (id 0) or update a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "payment id, 0 creates"
// @Param        payload  body  SaveInput  true  "payment"
// @Success      200  {object}  models.Payment
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/{id} [post]
func (h *Handler) Save(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in SaveInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	p, err := h.svc.Save(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if id == 0 {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(p)
}

// UpdateStatus godoc
// @Summary      Change a payment's status
// @Description  billed records invoice data, paid records receipt data; dates default to now.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id       path  int          true  "payment id"
// @Param        payload  body  StatusInput  true  "status and documents"
// @Success      200  {object}  models.Payment
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/{id}/status [post]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in StatusInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	p, err := h.svc.UpdateStatus(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// Detail godoc
// @Summary      Payment with number and VAT
// @Tags         payments
// @Produce      json
// @Param        id   path  int  true  "payment id"
// @Success      200  {object}  Line
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(lineOf(*p))
}

// ListForProject godoc
// @Summary      Payments of a project
// @Tags         payments
// @Produce      json
// @Param        id   path  int  true  "project id"
// @Success      200  {array}   Line
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects/{id}/payments [get]
func (h *Handler) ListForProject(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	lines, err := h.svc.ListForProject(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(lines)
}

// Delete godoc
// @Summary      Delete a payment
// @Tags         payments
// @Param        id   path  int  true  "payment id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/{id} [delete]
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
// @Summary      Delete several payments
// @Tags         payments
// @Accept       json
// @Param        payload  body  models.MassDeleteRequest  true  "comma separated ids"
// @Success      200  {object}  models.MassDeleteResponse
// @Router       /payments/mass-delete [post]
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
