// Package quotes manages priced proposals and their service and payment lines.
package quotes

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

// ErrQuoteClosed guards won and lost quotes against line edits.
var ErrQuoteClosed = apperr.Conflict("QUOTE_CLOSED", "Won or lost quotes cannot be edited")

type Service struct {
	db    *gorm.DB
	store *association.Store
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, store: association.NewStore(db)}
}

type SaveInput struct {
	Name        string             `json:"name" validate:"required,max=255"`
	SubjectType models.SubjectType `json:"subject_type" validate:"subjecttype"`
	SubjectID   uint               `json:"subject_id"`
	Lines
}

// Save creates (id 0) or updates a quote together with its lines in one
// transaction. New quotes start as draft on the given lead or customer.
func (s *Service) Save(ctx context.Context, id uint, in SaveInput) (*models.Quote, error) {
	in.Name = strings.TrimSpace(in.Name)
	if errs, err := validation.Validate(in); err != nil {
		return nil, err
	} else if errs != nil {
		return nil, apperr.ValidationFields(errs)
	}
	if err := in.Lines.validate(); err != nil {
		return nil, err
	}

	var q models.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id == 0 {
			q = models.Quote{Name: in.Name, Status: models.QuoteDraft}
			ref := models.SubjectRef{Type: in.SubjectType, ID: in.SubjectID}
			if _, err := s.store.WithTx(tx).Attach(ctx, ref, &q); err != nil {
				return err
			}
		} else {
			locked, err := lockOpen(tx, id)
			if err != nil {
				return err
			}
			q = *locked
			if err := tx.Model(&q).Update("name", in.Name).Error; err != nil {
				return err
			}
		}
		return saveLinesTx(tx, &q, in.Lines)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, q.ID)
}

// SaveLines replaces the lines of an open quote.
func (s *Service) SaveLines(ctx context.Context, id uint, in Lines) (*models.Quote, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := lockOpen(tx, id)
		if err != nil {
			return err
		}
		return saveLinesTx(tx, q, in)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func lockOpen(tx *gorm.DB, id uint) (*models.Quote, error) {
	var q models.Quote
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&q, id).Error; err != nil {
		return nil, apperr.FromGorm(err, "quote", id)
	}
	if q.Status == models.QuoteWon || q.Status == models.QuoteLost {
		return nil, ErrQuoteClosed
	}
	return &q, nil
}

// Get loads a quote with its lines in stored order.
func (s *Service) Get(ctx context.Context, id uint) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&q, id).Error
	if err != nil {
		return nil, apperr.FromGorm(err, "quote", id)
	}
	return &q, nil
}

// Detail is a quote with its computed totals.
type Detail struct {
	*models.Quote
	Number     string          `json:"number"`
	Total      decimal.Decimal `json:"total"`
	VAT        decimal.Decimal `json:"vat"`
	TotalVAT   decimal.Decimal `json:"total_with_vat"`
	PaymentSum decimal.Decimal `json:"payment_total"`
}

func (s *Service) Detail(ctx context.Context, id uint) (*Detail, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	total := q.TotalPrice()
	vat, gross := models.WithVAT(total)
	paid := decimal.Zero
	for _, p := range q.Payments {
		paid = paid.Add(p.Price)
	}
	return &Detail{Quote: q, Number: q.Number(), Total: total, VAT: vat, TotalVAT: gross, PaymentSum: paid}, nil
}

// Card is one quote on the kanban board.
type Card struct {
	ID          uint               `json:"id"`
	Number      string             `json:"number"`
	Name        string             `json:"name"`
	Status      models.QuoteStatus `json:"status"`
	SubjectType models.SubjectType `json:"subject_type"`
	SubjectID   uint               `json:"subject_id"`
	Total       decimal.Decimal    `json:"total"`
}

// Board returns every quote grouped by status, each column newest first.
func (s *Service) Board(ctx context.Context) (map[models.QuoteStatus][]Card, error) {
	var rows []Card
	err := s.db.WithContext(ctx).Model(&models.Quote{}).
		Select("quotes.id, quotes.name, quotes.status, quotes.subject_type, quotes.subject_id, " +
			"COALESCE(SUM(quote_services.qty * quote_services.price), 0) AS total").
		Joins("LEFT JOIN quote_services ON quote_services.quote_id = quotes.id").
		Group("quotes.id, quotes.name, quotes.status, quotes.subject_type, quotes.subject_id, quotes.created_at").
		Order("quotes.created_at DESC, quotes.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	board := make(map[models.QuoteStatus][]Card, len(models.QuoteStatuses))
	for _, st := range models.QuoteStatuses {
		board[models.QuoteStatus(st)] = []Card{}
	}
	for _, r := range rows {
		r.Number = models.Quote{ID: r.ID}.Number()
		r.Total = r.Total.Round(2)
		board[r.Status] = append(board[r.Status], r)
	}
	return board, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.Delete(ctx, association.KindQuote, id)
}

// MassDelete deletes every id independently; missing ids are reported, not fatal.
func (s *Service) MassDelete(ctx context.Context, ids []uint) (deleted, missing []uint, err error) {
	return utils.DeleteEach(ctx, ids, s.Delete)
}
