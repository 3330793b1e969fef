// Package projects manages delivered work for customers.
package projects

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

var statuses = []string{
	string(models.ProjectOpen), string(models.ProjectCompleted),
	string(models.ProjectCanceled), string(models.ProjectOnHold),
}

type Service struct {
	db      *gorm.DB
	store   *association.Store
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, m *metrics.Metrics) *Service {
	return &Service{db: db, store: association.NewStore(db), metrics: m}
}

type CreateInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	ServiceID  *uint  `json:"service_id"`
	CustomerID uint   `json:"customer_id" validate:"required"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	p := &models.Project{
		Name:       in.Name,
		ServiceID:  in.ServiceID,
		Status:     models.ProjectOpen,
		CustomerID: in.CustomerID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.store.WithTx(tx).Exists(ctx, models.SubjectRef{Type: models.SubjectCustomer, ID: in.CustomerID}); err != nil {
			return err
		}
		if in.ServiceID != nil {
			var n int64
			if err := tx.Model(&models.Service{}).Where("id = ?", *in.ServiceID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.ValidationFields(validation.Field("service_id", "Unknown service"))
			}
		}
		return tx.Create(p).Error
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Preload("Service").
		Preload("Budgets", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&p, id).Error
	if err != nil {
		return nil, apperr.FromGorm(err, "project", id)
	}
	return &p, nil
}

// UpdateStatus moves a project between open, completed, canceled and onHold.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status string) (*models.Project, error) {
	status = strings.TrimSpace(status)
	valid := false
	for _, st := range statuses {
		if st == status {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperr.InvalidStatus(status)
	}

	var p models.Project
	var old models.ProjectStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return apperr.FromGorm(err, "project", id)
		}
		old = p.Status
		p.Status = models.ProjectStatus(status)
		return tx.Model(&p).Select("status", "updated_at").Updates(&p).Error
	})
	if err != nil {
		return nil, err
	}
	if old != p.Status {
		utils.LogStatusChange(ctx, s.db, "project", id, "status_changed", string(old), status, "")
		s.metrics.ObserveTransition("project", status)
	}
	return &p, nil
}

// Delete removes the project with its budgets and annotations. Its payments
// and timesheets are kept and detached.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.DeleteSubject(ctx, models.SubjectRef{Type: models.SubjectProject, ID: id})
}

// MassDelete deletes every id independently; missing ids are reported, not fatal.
func (s *Service) MassDelete(ctx context.Context, ids []uint) (deleted, missing []uint, err error) {
	return utils.DeleteEach(ctx, ids, s.Delete)
}
