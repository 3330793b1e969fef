package quotes

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

// LineRef points a payment at a service line, either by its position in the
// same submission or by the id of a line saved in it. Exactly one is set.
type LineRef struct {
	Position       *int  `json:"position,omitempty"`
	QuoteServiceID *uint `json:"quote_service_id,omitempty"`
}

type ServiceLine struct {
	ID        uint            `json:"id"` // 0 adds a line
	ServiceID *uint           `json:"service_id"`
	Name      string          `json:"name" validate:"required,max=255"`
	Qty       decimal.Decimal `json:"qty" validate:"gte=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

type PaymentLine struct {
	ID      uint            `json:"id"` // 0 adds a payment
	Name    string          `json:"name" validate:"required,max=255"`
	Price   decimal.Decimal `json:"price" validate:"gte=0"`
	Percent decimal.Decimal `json:"percent" validate:"gte=0,lte=100"`
	Line    *LineRef        `json:"line"` // nil: not tied to a service line
}

// Lines is a full submission of a quote's service and payment lines. Lines
// missing from it are removed; the order of each list becomes the stored order.
type Lines struct {
	Services []ServiceLine `json:"services"`
	Payments []PaymentLine `json:"payments"`
}

func lineKey(list string, i int, field string) string {
	return fmt.Sprintf("%s.%d.%s", list, i, field)
}

func (l *Lines) validate() error {
	errs := map[string][]string{}
	add := func(list string, i int, fields map[string][]string) {
		for f, msgs := range fields {
			errs[lineKey(list, i, f)] = append(errs[lineKey(list, i, f)], msgs...)
		}
	}
	for i := range l.Services {
		l.Services[i].Name = strings.TrimSpace(l.Services[i].Name)
		fields, err := validation.Validate(l.Services[i])
		if err != nil {
			return err
		}
		add("services", i, fields)
	}
	for i := range l.Payments {
		l.Payments[i].Name = strings.TrimSpace(l.Payments[i].Name)
		fields, err := validation.Validate(l.Payments[i])
		if err != nil {
			return err
		}
		add("payments", i, fields)
		if ref := l.Payments[i].Line; ref != nil && (ref.Position == nil) == (ref.QuoteServiceID == nil) {
			add("payments", i, validation.Field("line", "Set either position or quote_service_id"))
		}
	}
	if len(errs) > 0 {
		return apperr.ValidationFields(errs)
	}
	return nil
}

// saveLinesTx writes lines onto quote q inside tx.
func saveLinesTx(tx *gorm.DB, q *models.Quote, in Lines) error {
	var existing []models.QuoteService
	if err := tx.Where("quote_id = ?", q.ID).Find(&existing).Error; err != nil {
		return err
	}
	owned := make(map[uint]bool, len(existing))
	for _, s := range existing {
		owned[s.ID] = true
	}

	saved := make([]uint, len(in.Services))
	inSubmission := make(map[uint]bool, len(in.Services))
	for i, line := range in.Services {
		row := models.QuoteService{
			ID:        line.ID,
			QuoteID:   q.ID,
			ServiceID: line.ServiceID,
			Name:      line.Name,
			Qty:       line.Qty,
			Price:     line.Price,
			Order:     i,
		}
		if line.ID != 0 {
			if !owned[line.ID] {
				return apperr.ValidationFields(validation.Field(lineKey("services", i, "id"), "Unknown service line"))
			}
			if err := tx.Model(&row).Select("service_id", "name", "qty", "price", "sort_order", "updated_at").Updates(&row).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&row).Error; err != nil {
			return err
		}
		saved[i] = row.ID
		inSubmission[row.ID] = true
	}

	var existingPayments []models.QuotePayment
	if err := tx.Where("quote_id = ?", q.ID).Find(&existingPayments).Error; err != nil {
		return err
	}
	ownedPayments := make(map[uint]bool, len(existingPayments))
	for _, p := range existingPayments {
		ownedPayments[p.ID] = true
	}

	keptPayments := make([]uint, 0, len(in.Payments))
	for i, line := range in.Payments {
		qsID, err := resolveLine(i, line.Line, saved, inSubmission)
		if err != nil {
			return err
		}
		row := models.QuotePayment{
			ID:             line.ID,
			QuoteID:        q.ID,
			QuoteServiceID: qsID,
			Name:           line.Name,
			Price:          line.Price,
			Percent:        line.Percent,
			Order:          i,
		}
		if line.ID != 0 {
			if !ownedPayments[line.ID] {
				return apperr.ValidationFields(validation.Field(lineKey("payments", i, "id"), "Unknown payment line"))
			}
			if err := tx.Model(&row).Select("quote_service_id", "name", "price", "percent", "sort_order", "updated_at").Updates(&row).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&row).Error; err != nil {
			return err
		}
		keptPayments = append(keptPayments, row.ID)
	}

	drop := tx.Where("quote_id = ?", q.ID)
	if len(keptPayments) > 0 {
		drop = drop.Where("id NOT IN ?", keptPayments)
	}
	if err := drop.Delete(&models.QuotePayment{}).Error; err != nil {
		return err
	}
	drop = tx.Where("quote_id = ?", q.ID)
	if len(saved) > 0 {
		drop = drop.Where("id NOT IN ?", saved)
	}
	return drop.Delete(&models.QuoteService{}).Error
}

// resolveLine turns the i-th payment's reference into a saved quote_service id.
func resolveLine(i int, ref *LineRef, saved []uint, inSubmission map[uint]bool) (*uint, error) {
	invalid := func(msg string) error {
		return apperr.ValidationFields(validation.Field(lineKey("payments", i, "line"), msg))
	}
	switch {
	case ref == nil:
		return nil, nil
	case ref.Position != nil:
		p := *ref.Position
		if p < 0 || p >= len(saved) {
			return nil, invalid(fmt.Sprintf("No service line at position %d", p))
		}
		id := saved[p]
		return &id, nil
	default:
		if !inSubmission[*ref.QuoteServiceID] {
			return nil, invalid(fmt.Sprintf("Service line %d is not part of this submission", *ref.QuoteServiceID))
		}
		id := *ref.QuoteServiceID
		return &id, nil
	}
}
