package services

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc *Service
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{svc: NewService(db)} }

// Create godoc
// @Summary      Add a catalog service
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Service payload"
// @Success      201  {object}  models.Service
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /services [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	srv, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(srv)
}

// List godoc
// @Summary      Catalog services
// @Tags         services
// @Produce      json
// @Success      200  {array}  models.Service
// @Router       /services [get]
func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// Info godoc
// @Summary      Default qty and price of a service
// @Tags         services
// @Produce      json
// @Param        id   path  int  true  "service id"
// @Success      200  {object}  Defaults
// @Failure      404  {object}  models.ErrorResponse
// @Router       /services/{id} [get]
func (h *Handler) Info(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	d, err := h.svc.Info(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(d)
}
