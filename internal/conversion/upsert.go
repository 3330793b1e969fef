package conversion

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/sanitize"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

// upsertCustomer finds the customer named after the lead's company or creates
// it. A reused customer takes over the lead's source.
func upsertCustomer(tx *gorm.DB, lead *models.Lead) (*models.Customer, error) {
	name := sanitize.NormalizeName(lead.CompanyName)
	if name == "" {
		return nil, apperr.ValidationFields(validation.Field("company_name", "The lead needs a company name to become a customer"))
	}

	if err := lockCustomerName(tx, name); err != nil {
		return nil, err
	}

	var found []models.Customer
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).Order("id ASC").Limit(1).
		Find(&found).Error; err != nil {
		return nil, err
	}
	if len(found) == 1 {
		c := &found[0]
		if err := tx.Model(c).Update("lead_source_id", lead.LeadSourceID).Error; err != nil {
			return nil, err
		}
		c.LeadSourceID = lead.LeadSourceID
		return c, nil
	}

	c := &models.Customer{Name: name, LeadSourceID: lead.LeadSourceID}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// lockCustomerName serializes conversions that upsert the same company name
// until the transaction ends. The row lock below cannot cover a name with no
// row yet. sqlite already allows a single writer.
func lockCustomerName(tx *gorm.DB, name string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "customer:"+name).Error
}

// upsertContact matches a contact on the exact (email, phone) pair and points
// it at the customer. Leads with neither always get a new contact.
func upsertContact(tx *gorm.DB, lead *models.Lead, customerID uint) (*models.Contact, error) {
	email := strings.TrimSpace(lead.Email)
	phone := strings.TrimSpace(lead.Phone)

	fields := map[string]any{
		"first_name":   strings.TrimSpace(lead.FirstName),
		"last_name":    strings.TrimSpace(lead.LastName),
		"role":         strings.TrimSpace(lead.Role),
		"customer_id":  customerID,
		"contact_type": models.ContactNormal,
	}

	if email != "" || phone != "" {
		var found []models.Contact
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ? AND phone = ?", email, phone).Order("id ASC").Limit(1).
			Find(&found).Error; err != nil {
			return nil, err
		}
		if len(found) == 1 {
			c := &found[0]
			if c.CustomerID != nil && *c.CustomerID != customerID {
				// moving customers drops main status at the old one
				fields["is_main"] = false
			}
			if err := tx.Model(c).Updates(fields).Error; err != nil {
				return nil, err
			}
			if err := tx.First(c, c.ID).Error; err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	cid := customerID
	c := &models.Contact{
		FirstName:   fields["first_name"].(string),
		LastName:    fields["last_name"].(string),
		Email:       email,
		Phone:       phone,
		Role:        fields["role"].(string),
		ContactType: models.ContactNormal,
		CustomerID:  &cid,
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}
