package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/smb-crm-backend/internal/middleware"
	"github.com/aldoetobex/smb-crm-backend/internal/testutil"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

func TestCreate_Defaults(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)

	srv, err := svc.Create(context.Background(), CreateInput{Name: "Hosting", DefaultPrice: testutil.Dec("19.999")})
	require.NoError(t, err)
	assert.Equal(t, models.BudgetFix, srv.BudgetType)
	assert.EqualValues(t, 1, srv.DefaultQty)
	assert.Equal(t, "20", srv.DefaultPrice.String())

	_, err = svc.Create(context.Background(), CreateInput{Name: "", BudgetType: "weekly", DefaultPrice: testutil.Dec("-1")})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "name")
	assert.Contains(t, ae.Fields, "budget_type")
	assert.Contains(t, ae.Fields, "default_price")
}

func TestHandlers_Info(t *testing.T) {
	db := testutil.OpenDB(t)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	h := NewHandler(db)
	app.Post("/api/services", h.Create)
	app.Get("/api/services/:id", h.Info)

	req := httptest.NewRequest("POST", "/api/services", strings.NewReader(
		`{"name":"Support","budget_type":"hourly","default_qty":10,"default_price":"45.50"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created models.Service
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp, err = app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/services/%d", created.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var d map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.EqualValues(t, 10, d["qty"])
	assert.Equal(t, "45.5", d["price"])
	assert.Equal(t, "hourly", d["budget_type"])

	resp, err = app.Test(httptest.NewRequest("GET", "/api/services/999", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
