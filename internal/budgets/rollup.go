package budgets

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// Bucket is a count and a money sum for one status group.
type Bucket struct {
	Count int64           `json:"count"`
	Value decimal.Decimal `json:"value"`
}

func (b *Bucket) add(count int64, value decimal.Decimal) {
	b.Count += count
	b.Value = b.Value.Add(value)
}

type QuoteRollup struct {
	Total  Bucket `json:"total"`
	Active Bucket `json:"active"` // draft and sent
	Won    Bucket `json:"won"`
	Lost   Bucket `json:"lost"`
}

type ProjectRollup struct {
	Total     Bucket `json:"total"`
	Open      Bucket `json:"open"`
	Completed Bucket `json:"completed"`
	Canceled  Bucket `json:"canceled"`
	OnHold    Bucket `json:"on_hold"`
}

type PaymentRollup struct {
	Total  Bucket `json:"total"`
	Draft  Bucket `json:"draft"`
	Billed Bucket `json:"billed"`
	Paid   Bucket `json:"paid"`
}

type CustomerSummary struct {
	Quotes       QuoteRollup   `json:"quotes"`
	Projects     ProjectRollup `json:"projects"`
	Payments     PaymentRollup `json:"payments"`
	OpenQuotes   Bucket        `json:"open_quotes"`
	OpenProjects Bucket        `json:"open_projects"`
}

type statusRow struct {
	Status string
	Count  int64
	Value  decimal.Decimal
}

// QuoteRollup groups the quotes of a subject by status in one query. A quote's
// value is the sum of its service lines.
func (a *Aggregator) QuoteRollup(ctx context.Context, ref models.SubjectRef) (QuoteRollup, error) {
	var rows []statusRow
	err := a.db.WithContext(ctx).Model(&models.Quote{}).
		Select("quotes.status AS status, COUNT(DISTINCT quotes.id) AS count, "+
			"COALESCE(SUM(quote_services.qty * quote_services.price), 0) AS value").
		Joins("LEFT JOIN quote_services ON quote_services.quote_id = quotes.id").
		Where("quotes.subject_type = ? AND quotes.subject_id = ?", ref.Type, ref.ID).
		Group("quotes.status").
		Scan(&rows).Error
	if err != nil {
		return QuoteRollup{}, err
	}

	var r QuoteRollup
	for _, row := range rows {
		v := row.Value.Round(2)
		r.Total.add(row.Count, v)
		switch models.QuoteStatus(row.Status) {
		case models.QuoteDraft, models.QuoteSent:
			r.Active.add(row.Count, v)
		case models.QuoteWon:
			r.Won.add(row.Count, v)
		case models.QuoteLost:
			r.Lost.add(row.Count, v)
		}
	}
	return r, nil
}

// ProjectRollup groups a customer's projects by status, valued at their active budget.
func (a *Aggregator) ProjectRollup(ctx context.Context, customerID uint) (ProjectRollup, error) {
	var rows []statusRow
	err := a.db.WithContext(ctx).Model(&models.Project{}).
		Select("projects.status AS status, COUNT(projects.id) AS count, "+
			"COALESCE(SUM(project_budgets.qty * project_budgets.price), 0) AS value").
		Joins("LEFT JOIN project_budgets ON project_budgets.project_id = projects.id AND project_budgets.is_active = ?", true).
		Where("projects.customer_id = ?", customerID).
		Group("projects.status").
		Scan(&rows).Error
	if err != nil {
		return ProjectRollup{}, err
	}

	var r ProjectRollup
	for _, row := range rows {
		v := row.Value.Round(2)
		r.Total.add(row.Count, v)
		switch models.ProjectStatus(row.Status) {
		case models.ProjectOpen:
			r.Open.add(row.Count, v)
		case models.ProjectCompleted:
			r.Completed.add(row.Count, v)
		case models.ProjectCanceled:
			r.Canceled.add(row.Count, v)
		case models.ProjectOnHold:
			r.OnHold.add(row.Count, v)
		}
	}
	return r, nil
}

// PaymentRollup groups the payments of a customer's projects by status.
func (a *Aggregator) PaymentRollup(ctx context.Context, customerID uint) (PaymentRollup, error) {
	var rows []statusRow
	err := a.db.WithContext(ctx).Model(&models.Payment{}).
		Select("payments.status AS status, COUNT(payments.id) AS count, "+
			"COALESCE(SUM(payments.qty * payments.price), 0) AS value").
		Joins("JOIN projects ON projects.id = payments.project_id").
		Where("projects.customer_id = ?", customerID).
		Group("payments.status").
		Scan(&rows).Error
	if err != nil {
		return PaymentRollup{}, err
	}

	var r PaymentRollup
	for _, row := range rows {
		v := row.Value.Round(2)
		r.Total.add(row.Count, v)
		switch models.PayStatus(row.Status) {
		case models.PayDraft:
			r.Draft.add(row.Count, v)
		case models.PayBilled:
			r.Billed.add(row.Count, v)
		case models.PayPaid:
			r.Paid.add(row.Count, v)
		}
	}
	return r, nil
}

// CustomerSummary is the customer detail view's money overview.
func (a *Aggregator) CustomerSummary(ctx context.Context, customerID uint) (*CustomerSummary, error) {
	var n int64
	if err := a.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", customerID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("customer", customerID)
	}

	quotes, err := a.QuoteRollup(ctx, models.SubjectRef{Type: models.SubjectCustomer, ID: customerID})
	if err != nil {
		return nil, err
	}
	projects, err := a.ProjectRollup(ctx, customerID)
	if err != nil {
		return nil, err
	}
	payments, err := a.PaymentRollup(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &CustomerSummary{
		Quotes:       quotes,
		Projects:     projects,
		Payments:     payments,
		OpenQuotes:   quotes.Active,
		OpenProjects: projects.Open,
	}, nil
}
