package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/budgets"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

type TimesheetInput struct {
	Date        *time.Time      `json:"date"`
	Hours       decimal.Decimal `json:"hours" validate:"gt=0,lte=24"`
	Description string          `json:"description"`
	IsBilled    bool            `json:"is_billed"`
}

// SaveTimesheet creates (id 0) or updates a timesheet of taskID. A new
// timesheet on a project task is charged to the project's active budget at
// that moment; later budget changes do not move it.
func (s *Service) SaveTimesheet(ctx context.Context, taskID, id uint, in TimesheetInput) (*models.Timesheet, error) {
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	date := time.Now()
	if in.Date != nil && !in.Date.IsZero() {
		date = *in.Date
	}

	var ts models.Timesheet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, taskID).Error; err != nil {
			return apperr.FromGorm(err, "task", taskID)
		}

		if id != 0 {
			if err := tx.Where("id = ? AND task_id = ?", id, taskID).First(&ts).Error; err != nil {
				return apperr.FromGorm(err, "timesheet", id)
			}
			ts.Date, ts.Hours, ts.Description, ts.IsBilled = date, in.Hours, strings.TrimSpace(in.Description), in.IsBilled
			return tx.Model(&ts).Select("date", "hours", "description", "is_billed", "updated_at").Updates(&ts).Error
		}

		ts = models.Timesheet{
			Date:        date,
			Hours:       in.Hours,
			Description: strings.TrimSpace(in.Description),
			IsBilled:    in.IsBilled,
			TaskID:      task.ID,
		}
		if task.SubjectType == models.SubjectProject {
			active, err := budgets.NewAggregator(tx).ActiveBudget(ctx, task.SubjectID)
			if err != nil {
				return err
			}
			if active != nil {
				ts.BudgetID = &active.ID
			}
		}
		return tx.Create(&ts).Error
	})
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// Timesheets lists the timesheets of a task, most recent work first.
func (s *Service) Timesheets(ctx context.Context, taskID uint) ([]models.Timesheet, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	out := []models.Timesheet{}
	err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("date DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *Service) DeleteTimesheet(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Timesheet{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("timesheet", id)
	}
	return nil
}
