package contacts

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/notes"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/sanitize"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc   *Service
	notes *notes.Service
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{svc: NewService(db), notes: notes.NewService(db)}
}

// Create godoc
// @Summary      Create contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Contact payload"
// @Success      201  {object}  models.Contact
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /contacts [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if cid := c.Params("id"); cid != "" {
		id, err := utils.ParseID(cid)
		if err != nil {
			return err
		}
		in.CustomerID = &id
	}
	contact, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// Detail godoc
// @Summary      Contact detail with pinned note
// @Tags         contacts
// @Produce      json
// @Param        id   path  int  true  "contact id"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  models.ErrorResponse
// @Router       /contacts/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	contact, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	tagged, err := h.notes.Tagged(c.UserContext(), models.SubjectRef{Type: models.SubjectContact, ID: id})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"contact":      contact,
		"full_name":    contact.FullName(),
		"phone_number": sanitize.PhoneNumber(contact.Phone),
		"tagged_note":  tagged,
	})
}

// ListForCustomer godoc
// @Summary      Contacts of a customer
// @Tags         contacts
// @Produce      json
// @Param        id   path  int  true  "customer id"
// @Success      200  {array}   models.Contact
// @Router       /customers/{id}/contacts [get]
func (h *Handler) ListForCustomer(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	list, err := h.svc.ListForCustomer(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// SetMain godoc
// @Summary      Make a contact the customer's main contact
// @Tags         contacts
// @Param        id   path  int  true  "contact id"
// @Success      200  {object}  models.Contact
// @Failure      404  {object}  models.ErrorResponse
// @Router       /contacts/{id}/main [post]
func (h *Handler) SetMain(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	contact, err := h.svc.SetMain(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(contact)
}

// MassDelete godoc
// @Summary      Delete several contacts
// @Tags         contacts
// @Accept       json
// @Param        payload  body  models.MassDeleteRequest  true  "comma separated ids"
// @Success      200  {object}  models.MassDeleteResponse
// @Router       /contacts/mass-delete [post]
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
