package budgets

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc *Service
	agg *Aggregator
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{svc: NewService(db), agg: NewAggregator(db)}
}

type addReq struct {
	Qty decimal.Decimal `json:"qty"`
}

// Save godoc
// @Summary      Create (id 0) or update a project budget
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "budget id, 0 creates"
// @Param        payload  body  SaveInput  true  "budget"
// @Success      200  {object}  models.ProjectBudget
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /budgets/{id} [post]
func (h *Handler) Save(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in SaveInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	b, err := h.svc.Save(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if id == 0 {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(b)
}

// Activate godoc
// @Summary      Make a budget the project's active budget
// @Tags         budgets
// @Param        id   path  int  true  "budget id"
// @Success      200  {object}  models.ProjectBudget
// @Failure      404  {object}  models.ErrorResponse
// @Router       /budgets/{id}/activate [post]
func (h *Handler) Activate(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	b, err := h.svc.Activate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

// Add godoc
// @Summary      Top up a budget's quantity
// @Tags         budgets
// @Accept       json
// @Param        id       path  int     true  "budget id"
// @Param        payload  body  addReq  true  "qty to add"
// @Success      200  {object}  models.ProjectBudget
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /budgets/{id}/add [post]
func (h *Handler) Add(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in addReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	b, err := h.svc.AddToBudget(c.UserContext(), id, in.Qty)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

// Delete godoc
// @Summary      Delete a budget
// @Tags         budgets
// @Param        id   path  int  true  "budget id"
// @Success      200  {object}  models.ProjectBudget
// @Router       /budgets/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	b, err := h.svc.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": b.ID, "project_id": b.ProjectID})
}

// ProjectBudget godoc
// @Summary      Budget, usage and remaining hours of a project
// @Tags         budgets
// @Produce      json
// @Param        id   path  int  true  "project id"
// @Success      200  {object}  ProjectSummary
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects/{id}/budget [get]
func (h *Handler) ProjectBudget(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	sum, err := h.agg.ProjectSummary(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

// CustomerSummary godoc
// @Summary      Quote, project and payment rollups of a customer
// @Tags         budgets
// @Produce      json
// @Param        id   path  int  true  "customer id"
// @Success      200  {object}  CustomerSummary
// @Failure      404  {object}  models.ErrorResponse
// @Router       /customers/{id}/summary [get]
func (h *Handler) CustomerSummary(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	sum, err := h.agg.CustomerSummary(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}
