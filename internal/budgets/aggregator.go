// Package budgets computes spend-versus-budget figures for projects, rolls up
// quotes, projects and payments per customer, and edits project budgets.
package budgets

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// ErrNoActiveBudget is returned by Usage when the project has no active budget.
var ErrNoActiveBudget = apperr.Conflict("NO_ACTIVE_BUDGET", "project has no active budget")

// Aggregator is the read side. Every call queries the store; nothing is cached
// and no locks are taken.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator { return &Aggregator{db: db} }

// Budget is a project's active allocation. Hours are only set for hourly services.
type Budget struct {
	Hours  decimal.Decimal `json:"hours"`
	Amount decimal.Decimal `json:"amount"`
}

type Remaining struct {
	Amount  decimal.Decimal `json:"amount"`
	Percent int64           `json:"percent"`
}

// BudgetLine is one budget of a project with its reported hours.
type BudgetLine struct {
	models.ProjectBudget
	TotalPrice    decimal.Decimal `json:"total_price"`
	ReportedHours decimal.Decimal `json:"reported_hours"`
}

type ProjectSummary struct {
	ProjectID      uint              `json:"project_id"`
	BudgetType     models.BudgetType `json:"budget_type"`
	Budget         Budget            `json:"budget"`
	Usage          *decimal.Decimal  `json:"usage"` // nil without an active budget
	Remaining      Remaining         `json:"remaining"`
	TimesheetHours decimal.Decimal   `json:"timesheet_hours"`
	Budgets        []BudgetLine      `json:"budgets"`
}

func (a *Aggregator) loadProject(ctx context.Context, projectID uint) (*models.Project, error) {
	var p models.Project
	if err := a.db.WithContext(ctx).Preload("Service").First(&p, projectID).Error; err != nil {
		return nil, apperr.FromGorm(err, "project", projectID)
	}
	return &p, nil
}

// budgetType treats projects without a service as fixed price.
func budgetType(p *models.Project) models.BudgetType {
	if p.Service == nil || p.Service.BudgetType == "" {
		return models.BudgetFix
	}
	return p.Service.BudgetType
}

func (a *Aggregator) activeBudget(ctx context.Context, projectID uint) (*models.ProjectBudget, error) {
	var rows []models.ProjectBudget
	if err := a.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ActiveBudget returns the project's active budget, or nil when none is active.
func (a *Aggregator) ActiveBudget(ctx context.Context, projectID uint) (*models.ProjectBudget, error) {
	if _, err := a.loadProject(ctx, projectID); err != nil {
		return nil, err
	}
	return a.activeBudget(ctx, projectID)
}

func budgetOf(p *models.Project, active *models.ProjectBudget) Budget {
	if active == nil {
		return Budget{Hours: decimal.Zero, Amount: decimal.Zero}
	}
	b := Budget{Hours: decimal.Zero, Amount: active.TotalPrice()}
	if budgetType(p) == models.BudgetHourly {
		b.Hours = active.Qty
	}
	return b
}

func (a *Aggregator) Budget(ctx context.Context, projectID uint) (Budget, error) {
	p, err := a.loadProject(ctx, projectID)
	if err != nil {
		return Budget{}, err
	}
	active, err := a.activeBudget(ctx, projectID)
	if err != nil {
		return Budget{}, err
	}
	return budgetOf(p, active), nil
}

func (a *Aggregator) reportedHours(ctx context.Context, budgetID uint) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := a.db.WithContext(ctx).Model(&models.Timesheet{}).
		Select("COALESCE(SUM(hours), 0)").
		Where("budget_id = ?", budgetID).
		Row().Scan(&sum)
	return sum.Round(2), err
}

// Usage sums the hours logged against the active budget. Callers must handle
// ErrNoActiveBudget.
func (a *Aggregator) Usage(ctx context.Context, projectID uint) (decimal.Decimal, error) {
	active, err := a.ActiveBudget(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	if active == nil {
		return decimal.Zero, ErrNoActiveBudget
	}
	return a.reportedHours(ctx, active.ID)
}

func remainingOf(b Budget, usage decimal.Decimal) Remaining {
	r := Remaining{Amount: b.Hours.Sub(usage)}
	if b.Hours.IsPositive() {
		r.Percent = usage.Mul(decimal.NewFromInt(100)).Div(b.Hours).Truncate(0).IntPart()
	}
	return r
}

// Remaining is hours left on the active budget and the share used, truncated
// to a whole percent. Zero values when no budget is active.
func (a *Aggregator) Remaining(ctx context.Context, projectID uint) (Remaining, error) {
	p, err := a.loadProject(ctx, projectID)
	if err != nil {
		return Remaining{}, err
	}
	active, err := a.activeBudget(ctx, projectID)
	if err != nil {
		return Remaining{}, err
	}
	if active == nil {
		return Remaining{Amount: decimal.Zero}, nil
	}
	usage, err := a.reportedHours(ctx, active.ID)
	if err != nil {
		return Remaining{}, err
	}
	return remainingOf(budgetOf(p, active), usage), nil
}

// ProjectSummary gathers everything the project detail view shows about money and hours.
func (a *Aggregator) ProjectSummary(ctx context.Context, projectID uint) (*ProjectSummary, error) {
	p, err := a.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	db := a.db.WithContext(ctx)

	var budgets []models.ProjectBudget
	if err := db.Where("project_id = ?", projectID).Order("created_at DESC, id DESC").Find(&budgets).Error; err != nil {
		return nil, err
	}

	type hoursRow struct {
		BudgetID uint
		Hours    decimal.Decimal
	}
	var rows []hoursRow
	if len(budgets) > 0 {
		ids := make([]uint, len(budgets))
		for i, b := range budgets {
			ids[i] = b.ID
		}
		if err := db.Model(&models.Timesheet{}).
			Select("budget_id, COALESCE(SUM(hours), 0) AS hours").
			Where("budget_id IN ?", ids).
			Group("budget_id").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
	}
	reported := make(map[uint]decimal.Decimal, len(rows))
	for _, r := range rows {
		reported[r.BudgetID] = r.Hours.Round(2)
	}

	sum := &ProjectSummary{
		ProjectID:  p.ID,
		BudgetType: budgetType(p),
		Budgets:    make([]BudgetLine, 0, len(budgets)),
	}
	var active *models.ProjectBudget
	for i, b := range budgets {
		hours, ok := reported[b.ID]
		if !ok {
			hours = decimal.Zero
		}
		sum.Budgets = append(sum.Budgets, BudgetLine{ProjectBudget: b, TotalPrice: b.TotalPrice(), ReportedHours: hours})
		if b.IsActive {
			active = &budgets[i]
		}
	}

	sum.Budget = budgetOf(p, active)
	sum.Remaining = Remaining{Amount: decimal.Zero}
	if active != nil {
		usage := reported[active.ID]
		sum.Usage = &usage
		sum.Remaining = remainingOf(sum.Budget, usage)
	}

	// hours on all of the project's tasks, charged to a budget or not
	var total decimal.Decimal
	if err := db.Model(&models.Timesheet{}).
		Select("COALESCE(SUM(timesheets.hours), 0)").
		Joins("JOIN tasks ON tasks.id = timesheets.task_id").
		Where("tasks.subject_type = ? AND tasks.subject_id = ?", models.SubjectProject, p.ID).
		Row().Scan(&total); err != nil {
		return nil, err
	}
	sum.TimesheetHours = total.Round(2)
	return sum, nil
}
