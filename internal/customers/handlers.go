package customers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/budgets"
	"github.com/aldoetobex/smb-crm-backend/internal/contacts"
	"github.com/aldoetobex/smb-crm-backend/internal/notes"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc      *Service
	notes    *notes.Service
	contacts *contacts.Service
	agg      *budgets.Aggregator
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		svc:      NewService(db),
		notes:    notes.NewService(db),
		contacts: contacts.NewService(db),
		agg:      budgets.NewAggregator(db),
	}
}

// Create godoc
// @Summary      Create customer
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Customer payload"
// @Success      201  {object}  models.Customer
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /customers [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	cust, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(cust)
}

// Detail godoc
// @Summary      Customer detail: pinned note, contacts, projects and money summary
// @Tags         customers
// @Produce      json
// @Param        id   path  int  true  "customer id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  models.ErrorResponse
// @Router       /customers/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	cust, err := h.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	tagged, err := h.notes.Tagged(ctx, models.SubjectRef{Type: models.SubjectCustomer, ID: id})
	if err != nil {
		return err
	}
	people, err := h.contacts.ListForCustomer(ctx, id)
	if err != nil {
		return err
	}
	projects, err := h.svc.Projects(ctx, id)
	if err != nil {
		return err
	}
	summary, err := h.agg.CustomerSummary(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"customer":    cust,
		"tagged_note": tagged,
		"contacts":    people,
		"projects":    projects,
		"summary":     summary,
	})
}

// MassDelete godoc
// @Summary      Delete several customers with their projects
// @Tags         customers
// @Accept       json
// @Param        payload  body  models.MassDeleteRequest  true  "comma separated ids"
// @Success      200  {object}  models.MassDeleteResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /customers/mass-delete [post]
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
