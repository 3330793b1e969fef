// Package services is the read-mostly catalog quotes and projects price from.
package services

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/sanitize"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type CreateInput struct {
	Name           string          `json:"name" validate:"required,max=255"`
	BudgetType     string          `json:"budget_type" validate:"omitempty,oneof=fix hourly"`
	IsSubscription bool            `json:"is_subscription"`
	DefaultQty     uint            `json:"default_qty"`
	DefaultPrice   decimal.Decimal `json:"default_price" validate:"gte=0"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Service, error) {
	in.Name = sanitize.NormalizeName(in.Name)
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	bt := models.BudgetType(in.BudgetType)
	if bt == "" {
		bt = models.BudgetFix
	}
	qty := in.DefaultQty
	if qty == 0 {
		qty = 1
	}
	srv := &models.Service{
		Name:           in.Name,
		BudgetType:     bt,
		IsSubscription: in.IsSubscription,
		DefaultQty:     qty,
		DefaultPrice:   in.DefaultPrice.Round(2),
	}
	if err := s.db.WithContext(ctx).Create(srv).Error; err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *Service) List(ctx context.Context) ([]models.Service, error) {
	out := []models.Service{}
	err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

// Defaults is what the quote form pre-fills when a service is picked.
type Defaults struct {
	ID         uint              `json:"id"`
	Name       string            `json:"name"`
	BudgetType models.BudgetType `json:"budget_type"`
	Qty        uint              `json:"qty"`
	Price      decimal.Decimal   `json:"price"`
}

func (s *Service) Info(ctx context.Context, id uint) (*Defaults, error) {
	var srv models.Service
	if err := s.db.WithContext(ctx).First(&srv, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "service", id)
	}
	return &Defaults{
		ID:         srv.ID,
		Name:       srv.Name,
		BudgetType: srv.BudgetType,
		Qty:        srv.DefaultQty,
		Price:      srv.DefaultPrice,
	}, nil
}
