package leads

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/budgets"
	"github.com/aldoetobex/smb-crm-backend/internal/notes"
	"github.com/aldoetobex/smb-crm-backend/internal/workflow"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc   *Service
	notes *notes.Service
	agg   *budgets.Aggregator
	ctl   *workflow.Controller
}

func NewHandler(db *gorm.DB, ctl *workflow.Controller) *Handler {
	return &Handler{
		svc:   NewService(db),
		notes: notes.NewService(db),
		agg:   budgets.NewAggregator(db),
		ctl:   ctl,
	}
}

// Create godoc
// @Summary      Create lead
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Lead payload"
// @Success      201  {object}  models.Lead
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /leads [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	lead, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(lead)
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

// List godoc
// @Summary      List leads
// @Tags         leads
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "status filter"
// @Param        q         query string false "search name, company or email"
// @Success      200  {object}  Page
// @Router       /leads [get]
func (h *Handler) List(c *fiber.Ctx) error {
	page, size := parsePage(c)
	res, err := h.svc.List(c.UserContext(), ListQuery{
		Page:     page,
		PageSize: size,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   c.Query("q"),
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Kanban godoc
// @Summary      Leads grouped by status with counts
// @Tags         leads
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /leads/kanban [get]
func (h *Handler) Kanban(c *fiber.Ctx) error {
	board, err := h.svc.Board(c.UserContext())
	if err != nil {
		return err
	}
	counts, err := h.ctl.Counts(c.UserContext(), workflow.EntityLead)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"statuses":      workflow.Statuses(workflow.EntityLead),
		"columns":       board,
		"status_counts": counts,
	})
}

// Detail godoc
// @Summary      Lead detail with pinned note and quote totals
// @Tags         leads
// @Produce      json
// @Param        id   path  int  true  "lead id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  models.ErrorResponse
// @Router       /leads/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	lead, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	ref := models.SubjectRef{Type: models.SubjectLead, ID: id}
	tagged, err := h.notes.Tagged(c.UserContext(), ref)
	if err != nil {
		return err
	}
	quotes, err := h.agg.QuoteRollup(c.UserContext(), ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"lead": lead, "tagged_note": tagged, "quotes": quotes})
}

// MassDelete godoc
// @Summary      Delete several leads with everything attached to them
// @Tags         leads
// @Accept       json
// @Param        payload  body  models.MassDeleteRequest  true  "comma separated ids"
// @Success      200  {object}  models.MassDeleteResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /leads/mass-delete [post]
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

type sourceReq struct {
	Name string `json:"name" form:"name"`
}

// CreateSource godoc
// @Summary      Quick-create a lead source from the lead form
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        payload  body  sourceReq  true  "name"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  models.AjaxErrorResponse
// @Failure      405  {object}  models.AjaxErrorResponse
// @Failure      409  {object}  models.AjaxErrorResponse
// @Router       /lead-sources/quick [post]
func (h *Handler) CreateSource(c *fiber.Ctx) error {
	var in sourceReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	src, err := h.svc.CreateSource(c.UserContext(), in.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "id": src.ID, "name": src.Name})
}

// Sources godoc
// @Summary      List lead sources
// @Tags         leads
// @Produce      json
// @Success      200  {array}  models.LeadSource
// @Router       /lead-sources [get]
func (h *Handler) Sources(c *fiber.Ctx) error {
	list, err := h.svc.Sources(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}
