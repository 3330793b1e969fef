package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/middleware"
	"github.com/aldoetobex/smb-crm-backend/internal/testutil"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

func seedProject(t *testing.T, db *gorm.DB) models.Project {
	t.Helper()
	cust := testutil.SeedCustomer(t, db, "Acme")
	svc := testutil.SeedService(t, db, "Hosting", models.BudgetFix)
	return testutil.SeedProject(t, db, cust.ID, &svc.ID)
}

func TestSave_ServiceFollowsProject(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	project := seedProject(t, db)

	p, err := svc.Save(ctx, 0, SaveInput{Name: " Setup ", Qty: testutil.Dec("1"), Price: testutil.Dec("250"), ProjectID: &project.ID})
	require.NoError(t, err)
	assert.Equal(t, "Setup", p.Name)
	assert.Equal(t, models.PayDraft, p.Status)
	require.NotNil(t, p.ServiceID)
	assert.Equal(t, *project.ServiceID, *p.ServiceID)

	updated, err := svc.Save(ctx, p.ID, SaveInput{Name: "Setup", Qty: testutil.Dec("2"), Price: testutil.Dec("100")})
	require.NoError(t, err)
	assert.Nil(t, updated.ProjectID)
	assert.Nil(t, updated.ServiceID)
	assert.True(t, updated.TotalPrice().Equal(testutil.Dec("200")))

	_, err = svc.Save(ctx, 0, SaveInput{Name: "x", Qty: testutil.Dec("1"), ProjectID: testutil.UintPtr(999)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.Save(ctx, 0, SaveInput{Name: "x", Qty: testutil.Dec("0")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Save(ctx, 999, SaveInput{Name: "x", Qty: testutil.Dec("1")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateStatus_Documents(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	project := seedProject(t, db)
	p := testutil.SeedPayment(t, db, &project.ID, "100", models.PayDraft)

	invoiced := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := svc.UpdateStatus(ctx, p.ID, StatusInput{Status: "billed", InvoiceNumber: "INV-7", InvoiceDate: &invoiced})
	require.NoError(t, err)
	assert.Equal(t, models.PayBilled, got.Status)
	assert.Equal(t, "INV-7", got.InvoiceNumber)
	require.NotNil(t, got.InvoiceDate)
	assert.True(t, got.InvoiceDate.Equal(invoiced))

	got, err = svc.UpdateStatus(ctx, p.ID, StatusInput{Status: " paid ", ReceiptNumber: "R-1"})
	require.NoError(t, err)
	assert.Equal(t, models.PayPaid, got.Status)
	assert.Equal(t, "INV-7", got.InvoiceNumber)
	assert.Equal(t, "R-1", got.ReceiptNumber)
	assert.NotNil(t, got.ReceiptDate)

	_, err = svc.UpdateStatus(ctx, p.ID, StatusInput{Status: "refunded"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidStatus))
	_, err = svc.UpdateStatus(ctx, p.ID, StatusInput{Status: "billed", InvoiceLink: "not a url"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.UpdateStatus(ctx, 999, StatusInput{Status: "paid"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.EqualValues(t, 2, testutil.Count(t, db, &models.StatusHistory{}, "entity_type = ?", "payment"))
}

func TestListForProject(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, nil)
	project := seedProject(t, db)
	testutil.SeedPayment(t, db, &project.ID, "100", models.PayDraft)
	testutil.SeedPayment(t, db, &project.ID, "50", models.PayPaid)
	testutil.SeedPayment(t, db, nil, "999", models.PayPaid)

	lines, err := svc.ListForProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, fmt.Sprintf("P-%d", 60000+lines[0].ID), lines[0].Number)
	assert.True(t, lines[0].VAT.Equal(testutil.Dec("18")), lines[0].VAT.String())
	assert.True(t, lines[0].TotalVAT.Equal(testutil.Dec("118")))

	_, err = svc.ListForProject(context.Background(), 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestHandlers_PaymentFlow(t *testing.T) {
	db := testutil.OpenDB(t)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	h := NewHandler(db, nil)
	app.Post("/api/payments/mass-delete", h.MassDelete)
	app.Post("/api/payments/:id", h.Save)
	app.Post("/api/payments/:id/status", h.UpdateStatus)
	app.Get("/api/payments/:id", h.Detail)
	app.Delete("/api/payments/:id", h.Delete)
	app.Get("/api/projects/:id/payments", h.ListForProject)
	project := seedProject(t, db)

	post := func(url, body string) (int, map[string]any) {
		req := httptest.NewRequest("POST", url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	code, out := post("/api/payments/0", fmt.Sprintf(`{"name":"Deposit","qty":"1","price":"100","project_id":%d}`, project.ID))
	require.Equal(t, fiber.StatusCreated, code)
	id := uint(out["id"].(float64))

	code, out = post(fmt.Sprintf("/api/payments/%d/status", id), `{"status":"billed","invoice_number":"INV-1"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "billed", out["status"])

	code, _ = post(fmt.Sprintf("/api/payments/%d/status", id), `{"status":"bogus"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	resp, err := app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/payments/%d", id), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var line map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&line))
	assert.Equal(t, "118", line["total_with_vat"])

	code, out = post("/api/payments/mass-delete", fmt.Sprintf(`{"ids":"%d,%d"}`, id, id+100))
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["deleted"], 1)
	assert.Len(t, out["missing"], 1)
}
