// Package server assembles the fiber app and its route table.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/internal/budgets"
	"github.com/aldoetobex/smb-crm-backend/internal/contacts"
	"github.com/aldoetobex/smb-crm-backend/internal/conversion"
	"github.com/aldoetobex/smb-crm-backend/internal/customers"
	"github.com/aldoetobex/smb-crm-backend/internal/leads"
	"github.com/aldoetobex/smb-crm-backend/internal/middleware"
	"github.com/aldoetobex/smb-crm-backend/internal/notes"
	"github.com/aldoetobex/smb-crm-backend/internal/payments"
	"github.com/aldoetobex/smb-crm-backend/internal/projects"
	"github.com/aldoetobex/smb-crm-backend/internal/quotes"
	"github.com/aldoetobex/smb-crm-backend/internal/services"
	"github.com/aldoetobex/smb-crm-backend/internal/tasks"
	"github.com/aldoetobex/smb-crm-backend/internal/workflow"
	"github.com/aldoetobex/smb-crm-backend/pkg/config"
	"github.com/aldoetobex/smb-crm-backend/pkg/logger"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// subjectPaths maps every subject type to its URL segment.
var subjectPaths = map[models.SubjectType]string{
	models.SubjectLead:     "leads",
	models.SubjectCustomer: "customers",
	models.SubjectContact:  "contacts",
	models.SubjectProject:  "projects",
	models.SubjectQuote:    "quotes",
}

// New builds the app. m may be nil, in which case /metrics is not mounted.
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: middleware.ErrorHandler,
	})
	app.Use(m.Middleware(), logger.FiberMiddleware(log), logger.Recovery(log))

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	api := app.Group("/api")
	ctl := workflow.NewController(db, cfg.Workflow.QuoteWonPolicy, m)

	// Kanban drag/drop and quick-create are AJAX-only
	flowH := workflow.NewHandler(ctl)
	api.All("/leads/status", middleware.RequireAJAX(), flowH.UpdateStatus(workflow.EntityLead))
	api.All("/quotes/status", middleware.RequireAJAX(), flowH.UpdateStatus(workflow.EntityQuote))

	// Leads
	leadH := leads.NewHandler(db, ctl)
	api.All("/lead-sources/quick", middleware.RequireAJAX(), leadH.CreateSource)
	api.Get("/lead-sources", leadH.Sources)
	api.Get("/leads", leadH.List)
	api.Post("/leads", leadH.Create)
	api.Get("/leads/kanban", leadH.Kanban)
	api.Post("/leads/mass-delete", leadH.MassDelete)
	api.Get("/leads/:id", leadH.Detail)

	// Conversions
	convH := conversion.NewHandler(conversion.NewEngine(db, m))
	api.Post("/leads/:id/convert", convH.ConvertLead)
	api.Post("/quotes/:id/confirm", convH.ConfirmQuote)

	// Customers and contacts
	custH := customers.NewHandler(db)
	api.Post("/customers", custH.Create)
	api.Post("/customers/mass-delete", custH.MassDelete)
	api.Get("/customers/:id", custH.Detail)

	contactH := contacts.NewHandler(db)
	api.Post("/contacts", contactH.Create)
	api.Post("/contacts/mass-delete", contactH.MassDelete)
	api.Get("/contacts/:id", contactH.Detail)
	api.Post("/contacts/:id/main", contactH.SetMain)
	api.Get("/customers/:id/contacts", contactH.ListForCustomer)
	api.Post("/customers/:id/contacts", contactH.Create)

	// Projects and budgets
	projH := projects.NewHandler(db, m)
	api.Post("/projects", projH.Create)
	api.Post("/projects/mass-delete", projH.MassDelete)
	api.Get("/projects/:id", projH.Detail)
	api.Post("/projects/:id/status", projH.UpdateStatus)

	budgetH := budgets.NewHandler(db)
	api.Get("/projects/:id/budget", budgetH.ProjectBudget)
	api.Get("/customers/:id/summary", budgetH.CustomerSummary)
	api.Post("/budgets/:id", budgetH.Save)
	api.Post("/budgets/:id/activate", budgetH.Activate)
	api.Post("/budgets/:id/add", budgetH.Add)
	api.Delete("/budgets/:id", budgetH.Delete)

	// Quotes
	quoteH := quotes.NewHandler(db, ctl)
	api.Get("/quotes/kanban", quoteH.Kanban)
	api.Get("/quotes/service-row", quoteH.ServiceRow)
	api.Get("/quotes/payment-row", quoteH.PaymentRow)
	api.Post("/quotes/mass-delete", quoteH.MassDelete)
	api.Get("/quotes/:id", quoteH.Detail)
	api.Post("/quotes/:id", quoteH.Save)
	api.Put("/quotes/:id/lines", quoteH.SaveLines)
	api.Delete("/quotes/:id", quoteH.Delete)

	// Payments
	payH := payments.NewHandler(db, m)
	api.Post("/payments/mass-delete", payH.MassDelete)
	api.Get("/payments/:id", payH.Detail)
	api.Post("/payments/:id", payH.Save)
	api.Post("/payments/:id/status", payH.UpdateStatus)
	api.Delete("/payments/:id", payH.Delete)
	api.Get("/projects/:id/payments", payH.ListForProject)

	// Catalog
	srvH := services.NewHandler(db)
	api.Get("/services", srvH.List)
	api.Post("/services", srvH.Create)
	api.Get("/services/:id", srvH.Info)

	// Notes and tasks hang off every subject
	noteH := notes.NewHandler(db)
	taskH := tasks.NewHandler(db)
	for _, t := range models.SubjectTypes {
		base := "/" + subjectPaths[t] + "/:id"
		if association.Allowed(association.KindNote, t) {
			api.Get(base+"/notes", noteH.List(t))
			api.Post(base+"/notes", noteH.Submit(t))
		}
		if association.Allowed(association.KindTask, t) {
			api.Get(base+"/tasks", taskH.List(t))
			api.Post(base+"/tasks", taskH.Create(t))
		}
	}
	api.Delete("/notes/:id", noteH.Delete)
	api.Post("/notes/:id/tag", noteH.Tag)

	api.Post("/tasks/:id", taskH.Update)
	api.Post("/tasks/:id/complete", taskH.Complete)
	api.Delete("/tasks/:id", taskH.Delete)
	api.Get("/tasks/:id/timesheets", taskH.Timesheets)
	api.Post("/tasks/:id/timesheets/:tsid", taskH.SaveTimesheet)
	api.Delete("/timesheets/:id", taskH.DeleteTimesheet)

	return app
}
