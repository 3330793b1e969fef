package contacts

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
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
	FirstName   string `json:"first_name" validate:"required,max=250"`
	LastName    string `json:"last_name" validate:"max=250"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"max=40"`
	Role        string `json:"role" validate:"max=250"`
	ContactType string `json:"contact_type" validate:"omitempty,oneof=normal accounting"`
	CustomerID  *uint  `json:"customer_id"`
	IsMain      bool   `json:"is_main"`
	IsAlerts    bool   `json:"is_alerts"`
}

// Create stores a contact. A contact created as main becomes the only main
// contact of its customer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Contact, error) {
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	if in.IsMain && in.CustomerID == nil {
		return nil, apperr.ValidationFields(validation.Field("is_main", "A main contact needs a customer"))
	}
	ct := models.ContactType(in.ContactType)
	if ct == "" {
		ct = models.ContactNormal
	}

	c := &models.Contact{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		Role:        strings.TrimSpace(in.Role),
		ContactType: ct,
		CustomerID:  in.CustomerID,
		IsAlerts:    in.IsAlerts,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.CustomerID != nil {
			if err := s.store.WithTx(tx).Exists(ctx, models.SubjectRef{Type: models.SubjectCustomer, ID: *c.CustomerID}); err != nil {
				return err
			}
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if in.IsMain {
			if err := setMainTx(tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetMain marks a contact as its customer's main contact and clears the flag
// on every sibling in the same UPDATE.
func (s *Service) SetMain(ctx context.Context, contactID uint) (*models.Contact, error) {
	var c models.Contact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, contactID).Error; err != nil {
			return apperr.FromGorm(err, "contact", contactID)
		}
		return setMainTx(tx, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func setMainTx(tx *gorm.DB, c *models.Contact) error {
	if c.CustomerID == nil {
		return apperr.Validation("contact has no customer")
	}
	if err := tx.Model(&models.Contact{}).
		Where("customer_id = ?", *c.CustomerID).
		Update("is_main", gorm.Expr("(id = ?)", c.ID)).Error; err != nil {
		return err
	}
	c.IsMain = true
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Contact, error) {
	var c models.Contact
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "contact", id)
	}
	return &c, nil
}

// ListForCustomer returns a customer's contacts, main contact first.
func (s *Service) ListForCustomer(ctx context.Context, customerID uint) ([]models.Contact, error) {
	if err := s.store.Exists(ctx, models.SubjectRef{Type: models.SubjectCustomer, ID: customerID}); err != nil {
		return nil, err
	}
	out := []models.Contact{}
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("is_main DESC, id ASC").Find(&out).Error
	return out, err
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.DeleteSubject(ctx, models.SubjectRef{Type: models.SubjectContact, ID: id})
}

// MassDelete deletes every id independently; missing ids are reported, not fatal.
func (s *Service) MassDelete(ctx context.Context, ids []uint) (deleted, missing []uint, err error) {
	return utils.DeleteEach(ctx, ids, s.Delete)
}
