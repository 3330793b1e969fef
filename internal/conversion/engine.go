// Package conversion turns leads into customers and confirmed quotes into
// projects, budgets and payments. Each call is a single transaction.
package conversion

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/logger"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

const (
	kindLead  = "lead"
	kindQuote = "quote"
)

// quote payments have no quantity; each becomes one unit at its price
var oneQty = decimal.NewFromInt(1)

// ErrAlreadyConfirmed stops a second confirmation of a won quote.
var ErrAlreadyConfirmed = apperr.Conflict("ALREADY_CONFIRMED", "Quote is already confirmed")

type Engine struct {
	db      *gorm.DB
	store   *association.Store
	metrics *metrics.Metrics
}

// NewEngine builds an engine; m may be nil.
func NewEngine(db *gorm.DB, m *metrics.Metrics) *Engine {
	return &Engine{db: db, store: association.NewStore(db), metrics: m}
}

// rollbackErr keeps caller-facing kinds and reports everything else as a
// rolled-back transaction.
func rollbackErr(op string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindValidation, apperr.KindInvalidStatus, apperr.KindConflict:
		return err
	}
	return apperr.Transaction(op, err)
}

func lockLead(tx *gorm.DB, id uint) (*models.Lead, error) {
	var l models.Lead
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "lead", id)
	}
	return &l, nil
}

// ConvertLead makes the lead a customer with a contact, moves the lead's notes
// and quotes onto the customer and marks the lead won. Tasks stay on the lead.
func (e *Engine) ConvertLead(ctx context.Context, leadID uint) (customerID uint, err error) {
	defer func() { e.metrics.ObserveConversion(kindLead, err) }()

	var oldStatus models.LeadStatus
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := lockLead(tx, leadID)
		if err != nil {
			return err
		}
		oldStatus = lead.Status

		customer, err := upsertCustomer(tx, lead)
		if err != nil {
			return err
		}
		customerID = customer.ID

		from := models.SubjectRef{Type: models.SubjectLead, ID: lead.ID}
		to := models.SubjectRef{Type: models.SubjectCustomer, ID: customer.ID}
		store := e.store.WithTx(tx)
		for _, k := range []association.Kind{association.KindNote, association.KindQuote} {
			if _, err := store.ReparentAll(ctx, k, from, to); err != nil {
				return err
			}
		}

		if _, err := upsertContact(tx, lead, customer.ID); err != nil {
			return err
		}
		return tx.Model(lead).Update("status", models.LeadWon).Error
	})
	if err != nil {
		return 0, rollbackErr("lead conversion", err)
	}

	logger.FromContext(ctx).Info("lead converted",
		zap.Uint("lead_id", leadID), zap.Uint("customer_id", customerID))
	utils.LogStatusChange(ctx, e.db, kindLead, leadID, "converted",
		string(oldStatus), string(models.LeadWon), fmt.Sprintf("customer %d", customerID))
	return customerID, nil
}

// Confirmation lists what confirming a quote created.
type Confirmation struct {
	QuoteID    uint   `json:"quote_id"`
	CustomerID uint   `json:"customer_id"`
	ProjectIDs []uint `json:"project_ids"`
	PaymentIDs []uint `json:"payment_ids"`
}

// ConfirmQuote marks the quote won and creates, per service line in order, a
// project with one active budget and a draft payment for each quote payment
// tied to that line. A lead subject is upserted into a customer and contact
// first; its notes and quotes are not moved.
func (e *Engine) ConfirmQuote(ctx context.Context, quoteID uint) (conf *Confirmation, err error) {
	defer func() { e.metrics.ObserveConversion(kindQuote, err) }()

	var oldStatus models.QuoteStatus
	conf = &Confirmation{QuoteID: quoteID, ProjectIDs: []uint{}, PaymentIDs: []uint{}}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Quote
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&q, quoteID).Error; err != nil {
			return apperr.FromGorm(err, "quote", quoteID)
		}
		if q.Status == models.QuoteWon || q.ConfirmedAt != nil {
			return ErrAlreadyConfirmed
		}
		oldStatus = q.Status

		customerID, err := e.customerFor(tx, q.Subject())
		if err != nil {
			return err
		}
		conf.CustomerID = customerID

		var lines []models.QuoteService
		if err := tx.Where("quote_id = ?", q.ID).Order("sort_order ASC, id ASC").Find(&lines).Error; err != nil {
			return err
		}
		var payments []models.QuotePayment
		if err := tx.Where("quote_id = ? AND quote_service_id IS NOT NULL", q.ID).
			Order("sort_order ASC, id ASC").Find(&payments).Error; err != nil {
			return err
		}
		byLine := make(map[uint][]models.QuotePayment, len(lines))
		for _, p := range payments {
			byLine[*p.QuoteServiceID] = append(byLine[*p.QuoteServiceID], p)
		}

		for _, line := range lines {
			project := models.Project{
				Name:       fmt.Sprintf("%s - %s", q.Name, line.Name),
				ServiceID:  line.ServiceID,
				Status:     models.ProjectOpen,
				CustomerID: customerID,
			}
			if err := tx.Create(&project).Error; err != nil {
				return err
			}
			conf.ProjectIDs = append(conf.ProjectIDs, project.ID)

			budget := models.ProjectBudget{
				Name:      line.Name,
				Qty:       line.Qty,
				Price:     line.Price,
				IsActive:  true,
				ProjectID: project.ID,
			}
			if err := tx.Create(&budget).Error; err != nil {
				return err
			}

			for _, qp := range byLine[line.ID] {
				pid := project.ID
				pay := models.Payment{
					Name:      qp.Name,
					ServiceID: line.ServiceID,
					Qty:       oneQty,
					Price:     qp.Price,
					ProjectID: &pid,
					Status:    models.PayDraft,
				}
				if err := tx.Create(&pay).Error; err != nil {
					return err
				}
				conf.PaymentIDs = append(conf.PaymentIDs, pay.ID)
			}
		}

		return tx.Model(&q).Updates(map[string]any{
			"status":       models.QuoteWon,
			"confirmed_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, rollbackErr("quote confirmation", err)
	}

	logger.FromContext(ctx).Info("quote confirmed",
		zap.Uint("quote_id", quoteID), zap.Uint("customer_id", conf.CustomerID),
		zap.Int("projects", len(conf.ProjectIDs)), zap.Int("payments", len(conf.PaymentIDs)))
	utils.LogStatusChange(ctx, e.db, kindQuote, quoteID, "confirmed",
		string(oldStatus), string(models.QuoteWon), fmt.Sprintf("customer %d", conf.CustomerID))
	return conf, nil
}

// customerFor resolves the customer a quote's projects belong to.
func (e *Engine) customerFor(tx *gorm.DB, ref models.SubjectRef) (uint, error) {
	switch ref.Type {
	case models.SubjectCustomer:
		var c models.Customer
		if err := tx.Select("id").First(&c, ref.ID).Error; err != nil {
			return 0, apperr.FromGorm(err, "customer", ref.ID)
		}
		return c.ID, nil
	case models.SubjectLead:
		lead, err := lockLead(tx, ref.ID)
		if err != nil {
			return 0, err
		}
		c, err := upsertCustomer(tx, lead)
		if err != nil {
			return 0, err
		}
		if _, err := upsertContact(tx, lead, c.ID); err != nil {
			return 0, err
		}
		return c.ID, nil
	default:
		return 0, apperr.ValidationFields(map[string][]string{
			"subject_type": {fmt.Sprintf("a quote on a %s cannot be confirmed", ref.Type)},
		})
	}
}
