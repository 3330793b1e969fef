// Package leads manages prospects, their kanban board and lead sources.
package leads

import (
	"context"
	"math"
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
	FirstName    string `json:"first_name" validate:"required,max=250"`
	LastName     string `json:"last_name" validate:"max=250"`
	Email        string `json:"email" validate:"omitempty,email,max=254"`
	Phone        string `json:"phone" validate:"max=40"`
	CompanyName  string `json:"company_name" validate:"max=250"`
	Role         string `json:"role" validate:"max=250"`
	Status       string `json:"status" validate:"omitempty,oneof=new follow quote won lost trash"`
	LeadSourceID *uint  `json:"lead_source_id"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Lead, error) {
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	status := models.LeadStatus(in.Status)
	if status == "" {
		status = models.LeadNew
	}
	lead := &models.Lead{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		CompanyName:  sanitize.NormalizeName(in.CompanyName),
		Role:         strings.TrimSpace(in.Role),
		Status:       status,
		LeadSourceID: in.LeadSourceID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if lead.LeadSourceID != nil {
			var n int64
			if err := tx.Model(&models.LeadSource{}).Where("id = ?", *lead.LeadSourceID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.ValidationFields(validation.Field("lead_source_id", "Unknown lead source"))
			}
		}
		return tx.Create(lead).Error
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).Preload("LeadSource").First(&lead, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "lead", id)
	}
	return &lead, nil
}

type Page struct {
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int64         `json:"total"`
	Pages    int           `json:"pages"`
	Items    []models.Lead `json:"items"`
}

// ListQuery filters the lead list; Search matches name, company or email.
type ListQuery struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}

func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	base := s.db.WithContext(ctx).Model(&models.Lead{})
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		like := "%" + term + "%"
		base = base.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	items := make([]models.Lead, 0, q.PageSize)
	if err := base.Session(&gorm.Session{}).
		Preload("LeadSource").
		Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &Page{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(q.PageSize))),
		Items:    items,
	}, nil
}

const cardTextMax = 60

// Card is a lead as shown on the kanban board.
type Card struct {
	ID          uint              `json:"id"`
	Name        string            `json:"name"`
	CompanyName string            `json:"company_name"`
	Status      models.LeadStatus `json:"status"`
}

// Board returns every lead grouped by status, each column newest first.
func (s *Service) Board(ctx context.Context) (map[models.LeadStatus][]Card, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).
		Select("id", "first_name", "last_name", "company_name", "status").
		Order("created_at DESC, id DESC").
		Find(&leads).Error; err != nil {
		return nil, err
	}
	board := make(map[models.LeadStatus][]Card, len(models.LeadStatuses))
	for _, st := range models.LeadStatuses {
		board[models.LeadStatus(st)] = []Card{}
	}
	for _, l := range leads {
		board[l.Status] = append(board[l.Status], Card{
			ID:          l.ID,
			Name:        l.FullName(),
			CompanyName: sanitize.Summary(l.CompanyName, cardTextMax),
			Status:      l.Status,
		})
	}
	return board, nil
}

// Delete removes a lead with its notes, tasks and quotes.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.DeleteSubject(ctx, models.SubjectRef{Type: models.SubjectLead, ID: id})
}

// MassDelete deletes every id independently; missing ids are reported, not fatal.
func (s *Service) MassDelete(ctx context.Context, ids []uint) (deleted, missing []uint, err error) {
	return utils.DeleteEach(ctx, ids, s.Delete)
}
