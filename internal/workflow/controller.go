// Package workflow moves leads and quotes between their kanban columns.
package workflow

import (
	"context"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/config"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/utils"
)

// Entity names a status-bearing table.
type Entity string

const (
	EntityLead  Entity = "lead"
	EntityQuote Entity = "quote"
)

// ErrUseConfirmation is returned when a quote is dragged to won while the
// policy requires going through quote confirmation.
var ErrUseConfirmation = apperr.Conflict("USE_CONFIRMATION", "Quotes are marked won by confirming them")

// ErrQuoteConfirmed is returned when a confirmed quote is moved out of won.
var ErrQuoteConfirmed = apperr.Conflict("QUOTE_CONFIRMED", "Confirmed quotes stay won")

type machine struct {
	statuses []string
	newModel func() any
}

var machines = map[Entity]machine{
	EntityLead:  {statuses: models.LeadStatuses, newModel: func() any { return &models.Lead{} }},
	EntityQuote: {statuses: models.QuoteStatuses, newModel: func() any { return &models.Quote{} }},
}

// Statuses returns the enum of e in kanban column order.
func Statuses(e Entity) []string {
	return slices.Clone(machines[e].statuses)
}

// Transition is the outcome of a status write plus the board counts after it.
type Transition struct {
	ID        uint             `json:"id"`
	OldStatus string           `json:"old_status"`
	NewStatus string           `json:"new_status"`
	Counts    map[string]int64 `json:"status_counts"`
}

type Controller struct {
	db       *gorm.DB
	quoteWon string
	metrics  *metrics.Metrics
}

// NewController builds a controller. quoteWonPolicy is config.QuoteWonReject
// or config.QuoteWonAllow; m may be nil.
func NewController(db *gorm.DB, quoteWonPolicy string, m *metrics.Metrics) *Controller {
	return &Controller{db: db, quoteWon: quoteWonPolicy, metrics: m}
}

func lookup(e Entity) (machine, error) {
	m, ok := machines[e]
	if !ok {
		return machine{}, apperr.Validation("unknown entity " + string(e))
	}
	return m, nil
}

// UpdateStatus writes newStatus on the row and returns the per-status counts
// read in the same transaction. Any enum member may follow any other.
func (c *Controller) UpdateStatus(ctx context.Context, e Entity, id uint, newStatus string) (*Transition, error) {
	m, err := lookup(e)
	if err != nil {
		return nil, err
	}
	status := strings.TrimSpace(newStatus)
	if !slices.Contains(m.statuses, status) {
		return nil, apperr.InvalidStatus(status)
	}
	if e == EntityQuote && status == string(models.QuoteWon) && c.quoteWon != config.QuoteWonAllow {
		return nil, ErrUseConfirmation
	}

	tr := &Transition{ID: id, NewStatus: status}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row struct {
			ID     uint
			Status string
		}
		res := tx.Model(m.newModel()).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			Where("id = ?", id).
			Limit(1).
			Scan(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(string(e), id)
		}
		tr.OldStatus = row.Status
		if e == EntityQuote && row.Status == string(models.QuoteWon) && status != row.Status {
			if err := c.guardConfirmed(tx, id); err != nil {
				return err
			}
		}

		if err := tx.Model(m.newModel()).Where("id = ?", id).Update("status", status).Error; err != nil {
			return err
		}

		counts, err := countsTx(tx, m)
		if err != nil {
			return err
		}
		tr.Counts = counts
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogStatusChange(ctx, c.db, string(e), id, "status_changed", tr.OldStatus, tr.NewStatus, "")
	c.metrics.ObserveTransition(string(e), tr.NewStatus)
	return tr, nil
}

// guardConfirmed keeps a quote in won once confirmation created its projects.
// Under the reject policy every won quote came from confirmation.
func (c *Controller) guardConfirmed(tx *gorm.DB, id uint) error {
	if c.quoteWon != config.QuoteWonAllow {
		return ErrQuoteConfirmed
	}
	var n int64
	if err := tx.Model(&models.Quote{}).Where("id = ? AND confirmed_at IS NOT NULL", id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrQuoteConfirmed
	}
	return nil
}

// Counts returns the number of rows per status, with every status present.
func (c *Controller) Counts(ctx context.Context, e Entity) (map[string]int64, error) {
	m, err := lookup(e)
	if err != nil {
		return nil, err
	}
	return countsTx(c.db.WithContext(ctx), m)
}

func countsTx(tx *gorm.DB, m machine) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := tx.Model(m.newModel()).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(m.statuses))
	for _, s := range m.statuses {
		counts[s] = 0
	}
	for _, r := range rows {
		if _, ok := counts[r.Status]; ok {
			counts[r.Status] = r.Count
		}
	}
	return counts, nil
}
