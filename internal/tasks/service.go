// Package tasks manages to-dos on any subject and the timesheets logged on them.
package tasks

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

type Service struct {
	db    *gorm.DB
	store *association.Store
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, store: association.NewStore(db)}
}

type SaveInput struct {
	Title       string         `json:"title" validate:"required,max=250"`
	Description string         `json:"description"`
	Urgency     models.Urgency `json:"urgency" validate:"urgency"`
}

func (in *SaveInput) check() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return apperr.ValidationFields(errs)
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	return nil
}

// Create attaches a new task to ref.
func (s *Service) Create(ctx context.Context, ref models.SubjectRef, in SaveInput) (*models.Task, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	task := &models.Task{Title: in.Title, Description: in.Description, Urgency: in.Urgency}
	if _, err := s.store.Attach(ctx, ref, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Update(ctx context.Context, id uint, in SaveInput) (*models.Task, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			return apperr.FromGorm(err, "task", id)
		}
		task.Title, task.Description, task.Urgency = in.Title, in.Description, in.Urgency
		return tx.Model(&task).Select("title", "description", "urgency", "updated_at").Updates(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// SetCompleted marks a task done or reopens it.
func (s *Service) SetCompleted(ctx context.Context, id uint, done bool) (*models.Task, error) {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update("is_completed", done)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("task", id)
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "task", id)
	}
	return &task, nil
}

// Delete removes a task and its timesheets.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.Delete(ctx, association.KindTask, id)
}

// Line is a task with the hours logged on it.
type Line struct {
	models.Task
	ReportedHours decimal.Decimal `json:"reported_hours"`
	BilledHours   decimal.Decimal `json:"billed_hours"`
}

// List returns the tasks of ref, newest first, with their hour totals.
func (s *Service) List(ctx context.Context, ref models.SubjectRef) ([]Line, error) {
	if err := s.store.Exists(ctx, ref); err != nil {
		return nil, err
	}
	list, err := association.List[models.Task](ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(list))
	if len(list) == 0 {
		return out, nil
	}

	ids := make([]uint, len(list))
	for i, t := range list {
		ids[i] = t.ID
	}
	var rows []struct {
		TaskID   uint
		Reported decimal.Decimal
		Billed   decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Model(&models.Timesheet{}).
		Select("task_id, COALESCE(SUM(hours), 0) AS reported, "+
			"COALESCE(SUM(CASE WHEN is_billed THEN hours ELSE 0 END), 0) AS billed").
		Where("task_id IN ?", ids).
		Group("task_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	type totals struct{ reported, billed decimal.Decimal }
	byTask := make(map[uint]totals, len(rows))
	for _, r := range rows {
		byTask[r.TaskID] = totals{r.Reported.Round(2), r.Billed.Round(2)}
	}
	for _, t := range list {
		tt, ok := byTask[t.ID]
		if !ok {
			tt = totals{decimal.Zero, decimal.Zero}
		}
		out = append(out, Line{Task: t, ReportedHours: tt.reported, BilledHours: tt.billed})
	}
	return out, nil
}
