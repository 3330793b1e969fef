package notes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

type Handler struct {
	svc *Service
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{svc: NewService(db)} }

type submitReq struct {
	Note string `json:"note"`
}

// List returns the notes of the subject in :id, newest first.
// @Summary      List notes of a subject
// @Tags         notes
// @Produce      json
// @Param        id   path  int  true  "subject id"
// @Success      200  {array}   models.Note
// @Failure      404  {object}  models.ErrorResponse
// @Router       /{subject}/{id}/notes [get]
func (h *Handler) List(t models.SubjectType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := utils.ParseID(c.Params("id"))
		if err != nil {
			return err
		}
		notes, err := h.svc.List(c.UserContext(), models.SubjectRef{Type: t, ID: id})
		if err != nil {
			return err
		}
		return c.JSON(notes)
	}
}

// Submit attaches a note to the subject in :id.
// @Summary      Add a note to a subject
// @Tags         notes
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "subject id"
// @Param        payload  body  submitReq  true  "note text"
// @Success      201  {object}  models.Note
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /{subject}/{id}/notes [post]
func (h *Handler) Submit(t models.SubjectType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := utils.ParseID(c.Params("id"))
		if err != nil {
			return err
		}
		var in submitReq
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
		note, err := h.svc.Add(c.UserContext(), models.SubjectRef{Type: t, ID: id}, in.Note)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(note)
	}
}

// Delete godoc
// @Summary      Delete a note
// @Tags         notes
// @Param        id   path  int  true  "note id"
// @Success      200  {object}  models.SubjectRef
// @Failure      404  {object}  models.ErrorResponse
// @Router       /notes/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	ref, err := h.svc.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(ref)
}

// Tag godoc
// @Summary      Toggle the pinned note of a subject
// @Tags         notes
// @Param        id   path  int  true  "note id"
// @Success      200  {object}  models.Note
// @Failure      404  {object}  models.ErrorResponse
// @Router       /notes/{id}/tag [post]
func (h *Handler) Tag(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	note, err := h.svc.Tag(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(note)
}
