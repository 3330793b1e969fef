package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

func create(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed %T: %v", v, err)
	}
}

func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func UintPtr(v uint) *uint { return &v }

func SeedLeadSource(t *testing.T, db *gorm.DB, name string) models.LeadSource {
	t.Helper()
	ls := models.LeadSource{Name: name}
	create(t, db, &ls)
	return ls
}

func SeedLead(t *testing.T, db *gorm.DB, mut func(*models.Lead)) models.Lead {
	t.Helper()
	l := models.Lead{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@acme.test",
		Phone:       "0500000000",
		CompanyName: "Acme",
		Status:      models.LeadNew,
	}
	if mut != nil {
		mut(&l)
	}
	create(t, db, &l)
	return l
}

func SeedCustomer(t *testing.T, db *gorm.DB, name string) models.Customer {
	t.Helper()
	c := models.Customer{Name: name}
	create(t, db, &c)
	return c
}

func SeedContact(t *testing.T, db *gorm.DB, customerID uint, email, phone string) models.Contact {
	t.Helper()
	c := models.Contact{
		FirstName:   "Old",
		LastName:    "Name",
		Email:       email,
		Phone:       phone,
		ContactType: models.ContactAccounting,
		CustomerID:  &customerID,
	}
	create(t, db, &c)
	return c
}

func SeedService(t *testing.T, db *gorm.DB, name string, bt models.BudgetType) models.Service {
	t.Helper()
	s := models.Service{Name: name, BudgetType: bt, DefaultQty: 1, DefaultPrice: Dec("100")}
	create(t, db, &s)
	return s
}

func SeedProject(t *testing.T, db *gorm.DB, customerID uint, serviceID *uint) models.Project {
	t.Helper()
	p := models.Project{Name: "Website", ServiceID: serviceID, Status: models.ProjectOpen, CustomerID: customerID}
	create(t, db, &p)
	return p
}

func SeedBudget(t *testing.T, db *gorm.DB, projectID uint, qty, price string, active bool) models.ProjectBudget {
	t.Helper()
	b := models.ProjectBudget{Name: "Budget", Qty: Dec(qty), Price: Dec(price), IsActive: active, ProjectID: projectID}
	create(t, db, &b)
	return b
}

func SeedTask(t *testing.T, db *gorm.DB, ref models.SubjectRef) models.Task {
	t.Helper()
	task := models.Task{Title: "Task", Urgency: models.UrgencyMedium, SubjectType: ref.Type, SubjectID: ref.ID}
	create(t, db, &task)
	return task
}

func SeedTimesheet(t *testing.T, db *gorm.DB, taskID uint, budgetID *uint, hours string, billed bool) models.Timesheet {
	t.Helper()
	ts := models.Timesheet{Date: time.Now(), Hours: Dec(hours), IsBilled: billed, TaskID: taskID, BudgetID: budgetID}
	create(t, db, &ts)
	return ts
}

func SeedNote(t *testing.T, db *gorm.DB, ref models.SubjectRef, text string, tagged bool) models.Note {
	t.Helper()
	n := models.Note{Text: text, Tagged: tagged, SubjectType: ref.Type, SubjectID: ref.ID}
	create(t, db, &n)
	return n
}

func SeedQuote(t *testing.T, db *gorm.DB, ref models.SubjectRef, name string, status models.QuoteStatus) models.Quote {
	t.Helper()
	q := models.Quote{Name: name, Status: status, SubjectType: ref.Type, SubjectID: ref.ID}
	create(t, db, &q)
	return q
}

func SeedQuoteService(t *testing.T, db *gorm.DB, quoteID uint, serviceID *uint, name, qty, price string, order int) models.QuoteService {
	t.Helper()
	qs := models.QuoteService{QuoteID: quoteID, ServiceID: serviceID, Name: name, Qty: Dec(qty), Price: Dec(price), Order: order}
	create(t, db, &qs)
	return qs
}

func SeedQuotePayment(t *testing.T, db *gorm.DB, quoteID uint, qsID *uint, name, price string, order int) models.QuotePayment {
	t.Helper()
	qp := models.QuotePayment{QuoteID: quoteID, QuoteServiceID: qsID, Name: name, Price: Dec(price), Percent: Dec("0"), Order: order}
	create(t, db, &qp)
	return qp
}

func SeedPayment(t *testing.T, db *gorm.DB, projectID *uint, price string, status models.PayStatus) models.Payment {
	t.Helper()
	p := models.Payment{Name: "Installment", Qty: Dec("1"), Price: Dec(price), ProjectID: projectID, Status: status}
	create(t, db, &p)
	return p
}
