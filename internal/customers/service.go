// Package customers manages the accounts that own projects and contacts.
package customers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/sanitize"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

type Service struct {
	db    *gorm.DB
	store *association.Store
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, store: association.NewStore(db)}
}

type CreateInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	LegalID      string `json:"legal_id" validate:"max=30"`
	Description  string `json:"description"`
	Website      string `json:"website" validate:"omitempty,url,max=255"`
	LeadSourceID *uint  `json:"lead_source_id"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Customer, error) {
	in.Name = sanitize.NormalizeName(in.Name)
	in.Website = strings.TrimSpace(in.Website)
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	cust := &models.Customer{
		Name:         in.Name,
		LegalID:      strings.TrimSpace(in.LegalID),
		Description:  strings.TrimSpace(in.Description),
		Website:      in.Website,
		LeadSourceID: in.LeadSourceID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cust.LeadSourceID != nil {
			var n int64
			if err := tx.Model(&models.LeadSource{}).Where("id = ?", *cust.LeadSourceID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.ValidationFields(validation.Field("lead_source_id", "Unknown lead source"))
			}
		}
		return tx.Create(cust).Error
	})
	if err != nil {
		return nil, err
	}
	return cust, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Customer, error) {
	var cust models.Customer
	if err := s.db.WithContext(ctx).Preload("LeadSource").First(&cust, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "customer", id)
	}
	return &cust, nil
}

// Projects lists the customer's projects, newest first.
func (s *Service) Projects(ctx context.Context, id uint) ([]models.Project, error) {
	out := []models.Project{}
	err := s.db.WithContext(ctx).Preload("Service").
		Where("customer_id = ?", id).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// Delete removes the customer with its projects and annotations. Its
// contacts are kept and detached.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.DeleteSubject(ctx, models.SubjectRef{Type: models.SubjectCustomer, ID: id})
}

// MassDelete deletes every id independently; missing ids are reported, not fatal.
func (s *Service) MassDelete(ctx context.Context, ids []uint) (deleted, missing []uint, err error) {
	return utils.DeleteEach(ctx, ids, s.Delete)
}
