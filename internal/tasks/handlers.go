package tasks

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

// List returns the tasks of the subject in :id with their logged hours.
// @Summary      List tasks of a subject
// @Tags         tasks
// @Produce      json
// @Param        id   path  int  true  "subject id"
// @Success      200  {array}   Line
// @Failure      404  {object}  models.ErrorResponse
// @Router       /{subject}/{id}/tasks [get]
func (h *Handler) List(t models.SubjectType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := utils.ParseID(c.Params("id"))
		if err != nil {
			return err
		}
		lines, err := h.svc.List(c.UserContext(), models.SubjectRef{Type: t, ID: id})
		if err != nil {
			return err
		}
		return c.JSON(lines)
	}
}

// Create attaches a task to the subject in :id.
// @Summary      Add a task to a subject
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "subject id"
// @Param        payload  body  SaveInput  true  "task"
// @Success      201  {object}  models.Task
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /{subject}/{id}/tasks [post]
func (h *Handler) Create(t models.SubjectType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := utils.ParseID(c.Params("id"))
		if err != nil {
			return err
		}
		var in SaveInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
		task, err := h.svc.Create(c.UserContext(), models.SubjectRef{Type: t, ID: id}, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(task)
	}
}

// Update godoc
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id       path  int        true  "task id"
// @Param        payload  body  SaveInput  true  "task"
// @Success      200  {object}  models.Task
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tasks/{id} [post]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	var in SaveInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	task, err := h.svc.Update(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// Complete godoc
// @Summary      Mark a task done (?reopen=1 reopens it)
// @Tags         tasks
// @Param        id      path   int   true   "task id"
// @Param        reopen  query  bool  false  "reopen instead"
// @Success      200  {object}  models.Task
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tasks/{id}/complete [post]
func (h *Handler) Complete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	task, err := h.svc.SetCompleted(c.UserContext(), id, !c.QueryBool("reopen"))
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// Delete godoc
// @Summary      Delete a task and its timesheets
// @Tags         tasks
// @Param        id   path  int  true  "task id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tasks/{id} [delete]
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

// Timesheets godoc
// @Summary      Timesheets of a task
// @Tags         tasks
// @Produce      json
// @Param        id   path  int  true  "task id"
// @Success      200  {array}   models.Timesheet
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tasks/{id}/timesheets [get]
func (h *Handler) Timesheets(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	list, err := h.svc.Timesheets(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// SaveTimesheet godoc
// @Summary      Create (tsid 0) or update a timesheet of a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id       path  int             true  "task id"
// @Param        tsid     path  int             true  "timesheet id, 0 creates"
// @Param        payload  body  TimesheetInput  true  "timesheet"
// @Success      200  {object}  models.Timesheet
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tasks/{id}/timesheets/{tsid} [post]
func (h *Handler) SaveTimesheet(c *fiber.Ctx) error {
	taskID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	id, err := utils.ParseID(c.Params("tsid"))
	if err != nil {
		return err
	}
	var in TimesheetInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	ts, err := h.svc.SaveTimesheet(c.UserContext(), taskID, id, in)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if id == 0 {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(ts)
}

// DeleteTimesheet godoc
// @Summary      Delete a timesheet
// @Tags         tasks
// @Param        id   path  int  true  "timesheet id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /timesheets/{id} [delete]
func (h *Handler) DeleteTimesheet(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTimesheet(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
