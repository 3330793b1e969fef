package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

/* =============================== Enums ================================== */

// SubjectType tags the concrete entity an annotation hangs off.
type SubjectType string

const (
	SubjectLead     SubjectType = "lead"
	SubjectCustomer SubjectType = "customer"
	SubjectContact  SubjectType = "contact"
	SubjectProject  SubjectType = "project"
	SubjectQuote    SubjectType = "quote"
)

// SubjectTypes lists every registered subject kind.
var SubjectTypes = []SubjectType{SubjectLead, SubjectCustomer, SubjectContact, SubjectProject, SubjectQuote}

func (t SubjectType) Valid() bool {
	for _, s := range SubjectTypes {
		if s == t {
			return true
		}
	}
	return false
}

// LeadStatus defines the kanban columns of a lead.
type LeadStatus string

const (
	LeadNew    LeadStatus = "new"
	LeadFollow LeadStatus = "follow"
	LeadQuote  LeadStatus = "quote"
	LeadWon    LeadStatus = "won"
	LeadLost   LeadStatus = "lost"
	LeadTrash  LeadStatus = "trash"
)

var LeadStatuses = []string{
	string(LeadNew), string(LeadFollow), string(LeadQuote),
	string(LeadWon), string(LeadLost), string(LeadTrash),
}

// QuoteStatus defines lifecycle states for a quote.
type QuoteStatus string

const (
	QuoteDraft QuoteStatus = "draft"
	QuoteSent  QuoteStatus = "sent"
	QuoteWon   QuoteStatus = "won"
	QuoteLost  QuoteStatus = "lost"
)

var QuoteStatuses = []string{string(QuoteDraft), string(QuoteSent), string(QuoteWon), string(QuoteLost)}

// ProjectStatus defines lifecycle states for a project.
type ProjectStatus string

const (
	ProjectOpen      ProjectStatus = "open"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCanceled  ProjectStatus = "canceled"
	ProjectOnHold    ProjectStatus = "onHold"
)

// PayStatus defines lifecycle states for a payment.
type PayStatus string

const (
	PayDraft  PayStatus = "draft"
	PayBilled PayStatus = "billed"
	PayPaid   PayStatus = "paid"
)

var PayStatuses = []string{string(PayDraft), string(PayBilled), string(PayPaid)}

// Urgency of a task.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// BudgetType of a catalog service.
type BudgetType string

const (
	BudgetFix    BudgetType = "fix"
	BudgetHourly BudgetType = "hourly"
)

// ContactType distinguishes accounting contacts from regular ones.
type ContactType string

const (
	ContactNormal     ContactType = "normal"
	ContactAccounting ContactType = "accounting"
)

// VATRate applied on top of quote and payment totals.
var VATRate = decimal.RequireFromString("0.18")

/* =============================== Subject ================================ */

// SubjectRef identifies the owner of a note, task or quote.
type SubjectRef struct {
	Type SubjectType `json:"subject_type"`
	ID   uint        `json:"subject_id"`
}

func (r SubjectRef) String() string { return fmt.Sprintf("%s#%d", r.Type, r.ID) }

// Attachable is implemented by the rows that hang off a subject: Note, Task and Quote.
type Attachable interface {
	Subject() SubjectRef
	SetSubject(SubjectRef)
}

func (n Note) Subject() SubjectRef       { return SubjectRef{Type: n.SubjectType, ID: n.SubjectID} }
func (n *Note) SetSubject(r SubjectRef)  { n.SubjectType, n.SubjectID = r.Type, r.ID }
func (t Task) Subject() SubjectRef       { return SubjectRef{Type: t.SubjectType, ID: t.SubjectID} }
func (t *Task) SetSubject(r SubjectRef)  { t.SubjectType, t.SubjectID = r.Type, r.ID }
func (q Quote) Subject() SubjectRef      { return SubjectRef{Type: q.SubjectType, ID: q.SubjectID} }
func (q *Quote) SetSubject(r SubjectRef) { q.SubjectType, q.SubjectID = r.Type, r.ID }

/* =============================== Entities =============================== */

// Note is a short annotation; at most one per subject is tagged (pinned).
type Note struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Text        string      `gorm:"type:varchar(250);not null" json:"text"`
	Tagged      bool        `gorm:"not null" json:"tagged"`
	SubjectType SubjectType `gorm:"type:varchar(20);not null;index:idx_notes_subject,priority:1" json:"subject_type"`
	SubjectID   uint        `gorm:"not null;index:idx_notes_subject,priority:2" json:"subject_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Task is a to-do attached to any subject; projects log timesheets against them.
type Task struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"type:varchar(250);not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Urgency     Urgency     `gorm:"type:varchar(30);not null" json:"urgency"`
	IsCompleted bool        `gorm:"not null" json:"is_completed"`
	SubjectType SubjectType `gorm:"type:varchar(20);not null;index:idx_tasks_subject,priority:1" json:"subject_type"`
	SubjectID   uint        `gorm:"not null;index:idx_tasks_subject,priority:2" json:"subject_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Timesheets []Timesheet `gorm:"foreignKey:TaskID" json:"timesheets,omitempty"`
}

// Timesheet records hours worked on a task, optionally charged to a budget.
type Timesheet struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Date        time.Time       `gorm:"not null" json:"date"`
	Hours       decimal.Decimal `gorm:"type:decimal(4,2);not null" json:"hours"`
	Description string          `gorm:"type:text" json:"description"`
	IsBilled    bool            `gorm:"not null" json:"is_billed"`
	TaskID      uint            `gorm:"not null;index" json:"task_id"`
	BudgetID    *uint           `gorm:"index" json:"budget_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Service is read-only catalog data consulted by quotes and conversions.
type Service struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	BudgetType     BudgetType      `gorm:"type:varchar(20);not null" json:"budget_type"`
	IsSubscription bool            `gorm:"not null" json:"is_subscription"`
	DefaultQty     uint            `gorm:"not null" json:"default_qty"`
	DefaultPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"default_price"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LeadSource is where leads come from.
type LeadSource struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(250);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead is a prospect; it becomes a Customer (+Contact) through conversion.
type Lead struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	FirstName    string     `gorm:"type:varchar(250);not null" json:"first_name"`
	LastName     string     `gorm:"type:varchar(250)" json:"last_name"`
	Email        string     `gorm:"type:varchar(254)" json:"email"`
	Phone        string     `gorm:"type:varchar(40)" json:"phone"`
	CompanyName  string     `gorm:"type:varchar(250)" json:"company_name"`
	Role         string     `gorm:"type:varchar(250)" json:"role"`
	Status       LeadStatus `gorm:"type:varchar(50);not null;index" json:"status"`
	LeadSourceID *uint      `json:"lead_source_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	LeadSource *LeadSource `gorm:"constraint:OnDelete:SET NULL" json:"lead_source,omitempty"`
}

func (l Lead) FullName() string { return strings.TrimSpace(l.FirstName + " " + l.LastName) }

// Customer owns projects and contacts.
type Customer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null;index" json:"name"`
	LegalID      string    `gorm:"type:varchar(30)" json:"legal_id"`
	Description  string    `gorm:"type:text" json:"description"`
	Website      string    `gorm:"type:varchar(255)" json:"website"`
	LeadSourceID *uint     `json:"lead_source_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	LeadSource *LeadSource `gorm:"constraint:OnDelete:SET NULL" json:"lead_source,omitempty"`
}

// Contact is a person at a customer; at most one per customer is main.
type Contact struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	FirstName   string      `gorm:"type:varchar(250);not null" json:"first_name"`
	LastName    string      `gorm:"type:varchar(250)" json:"last_name"`
	Email       string      `gorm:"type:varchar(254);index:idx_contacts_email_phone,priority:1" json:"email"`
	Phone       string      `gorm:"type:varchar(40);index:idx_contacts_email_phone,priority:2" json:"phone"`
	Role        string      `gorm:"type:varchar(250)" json:"role"`
	ContactType ContactType `gorm:"type:varchar(30);not null" json:"contact_type"`
	CustomerID  *uint       `gorm:"index" json:"customer_id"`
	IsMain      bool        `gorm:"not null" json:"is_main"`
	IsAlerts    bool        `gorm:"not null" json:"is_alerts"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (c Contact) FullName() string { return strings.TrimSpace(c.FirstName + " " + c.LastName) }

// Project is a unit of delivered work for a customer.
type Project struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	Name       string        `gorm:"type:varchar(255);not null" json:"name"`
	ServiceID  *uint         `json:"service_id"`
	Status     ProjectStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CustomerID uint          `gorm:"not null;index" json:"customer_id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`

	Service *Service        `json:"service,omitempty"`
	Budgets []ProjectBudget `gorm:"foreignKey:ProjectID" json:"budgets,omitempty"`
}

// ProjectBudget is an allocation of qty×price; at most one per project is active.
type ProjectBudget struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Qty       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"qty"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
	ProjectID uint            `gorm:"not null;index" json:"project_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (b ProjectBudget) TotalPrice() decimal.Decimal { return b.Qty.Mul(b.Price) }

// Quote is a priced proposal attached to a lead or customer.
type Quote struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"type:varchar(255);not null" json:"name"`
	Status      QuoteStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	SubjectType SubjectType `gorm:"type:varchar(20);not null;index:idx_quotes_subject,priority:1" json:"subject_type"`
	SubjectID   uint        `gorm:"not null;index:idx_quotes_subject,priority:2" json:"subject_id"`
	ConfirmedAt *time.Time  `json:"confirmed_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Services []QuoteService `gorm:"foreignKey:QuoteID" json:"services,omitempty"`
	Payments []QuotePayment `gorm:"foreignKey:QuoteID" json:"payments,omitempty"`
}

// Number is the human-facing quote number.
func (q Quote) Number() string { return fmt.Sprintf("Q-%d", 10000+q.ID) }

// TotalPrice sums the loaded service lines.
func (q Quote) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, s := range q.Services {
		total = total.Add(s.TotalPrice())
	}
	return total
}

// QuoteService is an ordered service line of a quote.
type QuoteService struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	QuoteID   uint            `gorm:"not null;index" json:"quote_id"`
	ServiceID *uint           `json:"service_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Qty       decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"qty"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Order     int             `gorm:"column:sort_order;not null" json:"order"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s QuoteService) TotalPrice() decimal.Decimal { return s.Qty.Mul(s.Price) }

// QuotePayment is an installment of a quote, optionally bound to one service line.
type QuotePayment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	QuoteID        uint            `gorm:"not null;index" json:"quote_id"`
	QuoteServiceID *uint           `gorm:"index" json:"quote_service_id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Price          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Percent        decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percent"`
	Order          int             `gorm:"column:sort_order;not null" json:"order"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Payment is a billable installment of a project.
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	ServiceID     *uint           `json:"service_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(4,2);not null" json:"qty"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	ProjectID     *uint           `gorm:"index" json:"project_id"`
	Status        PayStatus       `gorm:"type:varchar(10);not null;index" json:"status"`
	InvoiceNumber string          `gorm:"type:varchar(20)" json:"invoice_number,omitempty"`
	ReceiptNumber string          `gorm:"type:varchar(20)" json:"receipt_number,omitempty"`
	InvoiceLink   string          `gorm:"type:varchar(255)" json:"invoice_link,omitempty"`
	ReceiptLink   string          `gorm:"type:varchar(255)" json:"receipt_link,omitempty"`
	InvoiceDate   *time.Time      `json:"invoice_date,omitempty"`
	ReceiptDate   *time.Time      `json:"receipt_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Payment) Number() string              { return fmt.Sprintf("P-%d", 60000+p.ID) }
func (p Payment) TotalPrice() decimal.Decimal { return p.Qty.Mul(p.Price) }

// StatusHistory is an audit log entry for status changes and conversions.
type StatusHistory struct {
	ID         uint      `gorm:"primaryKey"`
	EntityType string    `gorm:"type:varchar(20);not null;index:idx_status_history_entity,priority:1"`
	EntityID   uint      `gorm:"not null;index:idx_status_history_entity,priority:2"`
	Action     string    `gorm:"type:varchar(50);not null"` // status_changed, converted, confirmed
	OldStatus  string    `gorm:"type:varchar(20)"`
	NewStatus  string    `gorm:"type:varchar(20)"`
	Reason     string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// WithVAT returns the VAT amount and the VAT-inclusive total.
func WithVAT(total decimal.Decimal) (vat, gross decimal.Decimal) {
	vat = total.Mul(VATRate).Round(2)
	return vat, total.Add(vat)
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&LeadSource{}, &Service{}, &Lead{}, &Customer{}, &Contact{},
		&Project{}, &ProjectBudget{}, &Quote{}, &QuoteService{}, &QuotePayment{},
		&Payment{}, &Note{}, &Task{}, &Timesheet{}, &StatusHistory{},
	}
}
