// Package payments manages the billable installments of projects.
package payments

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

type Service struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, m *metrics.Metrics) *Service { return &Service{db: db, metrics: m} }

type SaveInput struct {
	Name      string          `json:"name" validate:"required,max=255"`
	Qty       decimal.Decimal `json:"qty" validate:"gt=0,lte=99.99"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	ProjectID *uint           `json:"project_id"`
}

// StatusInput moves a payment along draft → billed → paid. Invoice fields
// apply when billing, receipt fields when marking paid.
type StatusInput struct {
	Status        string     `json:"status"`
	InvoiceNumber string     `json:"invoice_number" validate:"max=20"`
	InvoiceLink   string     `json:"invoice_link" validate:"omitempty,url,max=255"`
	InvoiceDate   *time.Time `json:"invoice_date"`
	ReceiptNumber string     `json:"receipt_number" validate:"max=20"`
	ReceiptLink   string     `json:"receipt_link" validate:"omitempty,url,max=255"`
	ReceiptDate   *time.Time `json:"receipt_date"`
}

// Save creates (id 0) or updates a payment. The service is taken from the
// payment's project.
func (s *Service) Save(ctx context.Context, id uint, in SaveInput) (*models.Payment, error) {
	in.Name = strings.TrimSpace(in.Name)
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}

	var p models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var serviceID *uint
		if in.ProjectID != nil {
			var project models.Project
			if err := tx.Select("id", "service_id").First(&project, *in.ProjectID).Error; err != nil {
				return apperr.FromGorm(err, "project", *in.ProjectID)
			}
			serviceID = project.ServiceID
		}

		if id == 0 {
			p = models.Payment{
				Name:      in.Name,
				Qty:       in.Qty,
				Price:     in.Price,
				ProjectID: in.ProjectID,
				ServiceID: serviceID,
				Status:    models.PayDraft,
			}
			return tx.Create(&p).Error
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return apperr.FromGorm(err, "payment", id)
		}
		p.Name, p.Qty, p.Price, p.ProjectID, p.ServiceID = in.Name, in.Qty, in.Price, in.ProjectID, serviceID
		return tx.Model(&p).Select("name", "qty", "price", "project_id", "service_id", "updated_at").Updates(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus writes a new status and the matching invoice or receipt data.
func (s *Service) UpdateStatus(ctx context.Context, id uint, in StatusInput) (*models.Payment, error) {
	status := strings.TrimSpace(in.Status)
	if !slices.Contains(models.PayStatuses, status) {
		return nil, apperr.InvalidStatus(status)
	}
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}

	var (
		p   models.Payment
		old models.PayStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return apperr.FromGorm(err, "payment", id)
		}
		old = p.Status

		fields := map[string]any{"status": status}
		now := time.Now()
		switch models.PayStatus(status) {
		case models.PayBilled:
			fields["invoice_number"] = strings.TrimSpace(in.InvoiceNumber)
			fields["invoice_link"] = strings.TrimSpace(in.InvoiceLink)
			fields["invoice_date"] = dateOr(in.InvoiceDate, now)
		case models.PayPaid:
			fields["receipt_number"] = strings.TrimSpace(in.ReceiptNumber)
			fields["receipt_link"] = strings.TrimSpace(in.ReceiptLink)
			fields["receipt_date"] = dateOr(in.ReceiptDate, now)
		}
		if err := tx.Model(&p).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(&p, id).Error
	})
	if err != nil {
		return nil, err
	}

	utils.LogStatusChange(ctx, s.db, "payment", id, "status_changed", string(old), status, "")
	s.metrics.ObserveTransition("payment", status)
	return &p, nil
}

func dateOr(d *time.Time, fallback time.Time) time.Time {
	if d == nil || d.IsZero() {
		return fallback
	}
	return *d
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "payment", id)
	}
	return &p, nil
}

// Line is a payment with its computed amounts.
type Line struct {
	models.Payment
	Number   string          `json:"number"`
	Total    decimal.Decimal `json:"total"`
	VAT      decimal.Decimal `json:"vat"`
	TotalVAT decimal.Decimal `json:"total_with_vat"`
}

func lineOf(p models.Payment) Line {
	total := p.TotalPrice()
	vat, gross := models.WithVAT(total)
	return Line{Payment: p, Number: p.Number(), Total: total, VAT: vat, TotalVAT: gross}
}

// ListForProject returns a project's payments in creation order.
func (s *Service) ListForProject(ctx context.Context, projectID uint) ([]Line, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("project", projectID)
	}
	var rows []models.Payment
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(rows))
	for _, p := range rows {
		out = append(out, lineOf(p))
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Payment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("payment", id)
	}
	return nil
}

// MassDelete deletes every id independently; missing ids are reported, not fatal.
func (s *Service) MassDelete(ctx context.Context, ids []uint) (deleted, missing []uint, err error) {
	return utils.DeleteEach(ctx, ids, s.Delete)
}
