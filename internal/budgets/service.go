package budgets

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

// Service is the write side for project budgets.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type SaveInput struct {
	Name      string          `json:"name" validate:"required,max=255"`
	Qty       decimal.Decimal `json:"qty" validate:"gte=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	ProjectID uint            `json:"project_id"`
}

func lockBudget(tx *gorm.DB, id uint) (*models.ProjectBudget, error) {
	var b models.ProjectBudget
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "budget", id)
	}
	return &b, nil
}

func lockProject(tx *gorm.DB, id uint) error {
	var p models.Project
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&p, id).Error; err != nil {
		return apperr.FromGorm(err, "project", id)
	}
	return nil
}

// Activate makes budgetID the project's only active budget. The project row is
// locked so concurrent activations on one project queue up; the flip itself is
// a single UPDATE over all of the project's budgets.
func (s *Service) Activate(ctx context.Context, budgetID uint) (*models.ProjectBudget, error) {
	var b *models.ProjectBudget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if b, err = lockBudget(tx, budgetID); err != nil {
			return err
		}
		if err := lockProject(tx, b.ProjectID); err != nil {
			return err
		}
		if err := tx.Model(&models.ProjectBudget{}).
			Where("project_id = ?", b.ProjectID).
			Update("is_active", gorm.Expr("(id = ?)", b.ID)).Error; err != nil {
			return err
		}
		b.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// AddToBudget tops up a budget's quantity in place. The addition happens in
// SQL on the decimal column.
func (s *Service) AddToBudget(ctx context.Context, budgetID uint, delta decimal.Decimal) (*models.ProjectBudget, error) {
	if !delta.IsPositive() {
		return nil, apperr.ValidationFields(validation.Field("qty", "Must be greater than 0"))
	}
	if !delta.Equal(delta.Round(2)) {
		return nil, apperr.ValidationFields(validation.Field("qty", "At most 2 decimal places"))
	}

	var b models.ProjectBudget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ProjectBudget{}).Where("id = ?", budgetID).
			Update("qty", gorm.Expr("qty + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("budget", budgetID)
		}
		return tx.First(&b, budgetID).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Save creates (id 0) or updates a budget. A new budget becomes active only
// when its project has no active budget yet.
func (s *Service) Save(ctx context.Context, id uint, in SaveInput) (*models.ProjectBudget, error) {
	in.Name = strings.TrimSpace(in.Name)
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}

	var b models.ProjectBudget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id == 0 {
			if in.ProjectID == 0 {
				return apperr.ValidationFields(validation.Field("project_id", "This field is required"))
			}
			if err := lockProject(tx, in.ProjectID); err != nil {
				return err
			}
			var active int64
			if err := tx.Model(&models.ProjectBudget{}).
				Where("project_id = ? AND is_active = ?", in.ProjectID, true).
				Count(&active).Error; err != nil {
				return err
			}
			b = models.ProjectBudget{
				Name:      in.Name,
				Qty:       in.Qty,
				Price:     in.Price,
				IsActive:  active == 0,
				ProjectID: in.ProjectID,
			}
			return tx.Create(&b).Error
		}

		existing, err := lockBudget(tx, id)
		if err != nil {
			return err
		}
		b = *existing
		b.Name, b.Qty, b.Price = in.Name, in.Qty, in.Price
		return tx.Model(&b).Updates(map[string]any{"name": b.Name, "qty": b.Qty, "price": b.Price}).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a budget; its timesheets stay and lose the budget reference.
func (s *Service) Delete(ctx context.Context, id uint) (*models.ProjectBudget, error) {
	var b models.ProjectBudget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return apperr.FromGorm(err, "budget", id)
		}
		if err := tx.Model(&models.Timesheet{}).Where("budget_id = ?", id).Update("budget_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ProjectBudget{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
