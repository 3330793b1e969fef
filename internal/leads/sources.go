package leads

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/sanitize"
)

const sourceNameMax = 250

var errDuplicateSource = apperr.Conflict("DUPLICATE_LEAD_SOURCE", "Lead source already exists")

// CreateSource adds a lead source. Names are unique ignoring case.
func (s *Service) CreateSource(ctx context.Context, name string) (*models.LeadSource, error) {
	name = sanitize.NormalizeName(name)
	if name == "" {
		return nil, apperr.Validation("Lead source name is required")
	}
	if utf8.RuneCountInString(name) > sourceNameMax {
		return nil, apperr.Validation("Lead source name must be at most 250 characters")
	}
	src := &models.LeadSource{Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.LeadSource{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errDuplicateSource
		}
		return tx.Create(src).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, errDuplicateSource
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (s *Service) Sources(ctx context.Context) ([]models.LeadSource, error) {
	out := []models.LeadSource{}
	err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
