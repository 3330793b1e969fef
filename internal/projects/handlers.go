package projects

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/budgets"
	"github.com/aldoetobex/smb-crm-backend/internal/notes"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc   *Service
	notes *notes.Service
	agg   *budgets.Aggregator
}

func NewHandler(db *gorm.DB, m *metrics.Metrics) *Handler {
	return &Handler{svc: NewService(db, m), notes: notes.NewService(db), agg: budgets.NewAggregator(db)}
}

// Create godoc
// @Summary      Create project for a customer
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Project payload"
// @Success      201  {object}  models.Project
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	p, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// Detail godoc
// @Summary      Project detail with budget summary and pinned note
// @Tags         projects
// @Produce      json
// @Param        id   path  int  true  "project id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	p, err := h.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	summary, err := h.agg.ProjectSummary(ctx, id)
	if err != nil {
		return err
	}
	tagged, err := h.notes.Tagged(ctx, models.SubjectRef{Type: models.SubjectProject, ID: id})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"project": p, "summary": summary, "tagged_note": tagged})
}

type statusReq struct {
	Status string `json:"status" form:"status"`
}

// UpdateStatus godoc
// @Summary      Change project status
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "project id"
// @Param        payload  body  statusReq  true  "open|completed|canceled|onHold"
// @Success      200  {object}  models.Project
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects/{id}/status [post]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in statusReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	p, err := h.svc.UpdateStatus(c.UserContext(), id, in.Status)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// MassDelete godoc
// @Summary      Delete several projects
// @Tags         projects
// @Accept       json
// @Param        payload  body  models.MassDeleteRequest  true  "comma separated ids"
// @Success      200  {object}  models.MassDeleteResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /projects/mass-delete [post]
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
