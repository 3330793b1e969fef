package contacts

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/smb-crm-backend/internal/middleware"
	"github.com/aldoetobex/smb-crm-backend/internal/testutil"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

func TestSetMain_Exclusive(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()

	cust := testutil.SeedCustomer(t, db, "Acme")
	other := testutil.SeedCustomer(t, db, "Other")
	a := testutil.SeedContact(t, db, cust.ID, "a@x.test", "1")
	b := testutil.SeedContact(t, db, cust.ID, "b@x.test", "2")
	o := testutil.SeedContact(t, db, other.ID, "o@x.test", "3")

	_, err := svc.SetMain(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.SetMain(ctx, a.ID)
	require.NoError(t, err)
	got, err := svc.SetMain(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsMain)

	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Contact{}, "customer_id = ? AND is_main = ?", cust.ID, true))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Contact{}, "id = ? AND is_main = ?", b.ID, true))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Contact{}, "id = ? AND is_main = ?", o.ID, true))
}

func TestSetMain_Concurrent(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	cust := testutil.SeedCustomer(t, db, "Acme")
	var ids []uint
	for i := 0; i < 5; i++ {
		ids = append(ids, testutil.SeedContact(t, db, cust.ID, "", "").ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _ = svc.SetMain(context.Background(), id)
		}(id)
	}
	wg.Wait()
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Contact{}, "customer_id = ? AND is_main = ?", cust.ID, true))
}

func TestSetMain_Errors(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.SetMain(ctx, 77)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	orphan := models.Contact{FirstName: "No", ContactType: models.ContactNormal}
	require.NoError(t, db.Create(&orphan).Error)
	_, err = svc.SetMain(ctx, orphan.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreate_MainClearsSiblings(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()
	cust := testutil.SeedCustomer(t, db, "Acme")
	first, err := svc.Create(ctx, CreateInput{FirstName: "A", CustomerID: &cust.ID, IsMain: true})
	require.NoError(t, err)
	assert.Equal(t, models.ContactNormal, first.ContactType)

	second, err := svc.Create(ctx, CreateInput{FirstName: "B", CustomerID: &cust.ID, IsMain: true, ContactType: "accounting"})
	require.NoError(t, err)

	list, err := svc.ListForCustomer(ctx, cust.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].IsMain)
	assert.False(t, list[1].IsMain)

	_, err = svc.Create(ctx, CreateInput{FirstName: "", Email: "bad"})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "first_name")
	assert.Contains(t, ae.Fields, "email")
}

func TestHandlers_MassDeleteSkipsMissing(t *testing.T) {
	db := testutil.OpenDB(t)
	h := NewHandler(db)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Post("/api/contacts/mass-delete", h.MassDelete)
	app.Get("/api/contacts/:id", h.Detail)

	cust := testutil.SeedCustomer(t, db, "Acme")
	a := testutil.SeedContact(t, db, cust.ID, "a@x.test", "(050) 123 4567")
	b := testutil.SeedContact(t, db, cust.ID, "b@x.test", "2")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/contacts/"+itoa(a.ID), nil))
	require.NoError(t, err)
	var detail map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "050-123-4567", detail["phone_number"])
	assert.Nil(t, detail["tagged_note"])

	body := `{"ids":"` + itoa(a.ID) + `,999,` + itoa(b.ID) + `","fallback":"contact-list"}`
	req := httptest.NewRequest("POST", "/api/contacts/mass-delete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out models.MassDeleteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []uint{a.ID, b.ID}, out.Deleted)
	assert.Equal(t, []uint{999}, out.Missing)
	assert.Equal(t, "contact-list", out.Fallback)
	assert.Zero(t, testutil.Count(t, db, &models.Contact{}, ""))

	req = httptest.NewRequest("POST", "/api/contacts/mass-delete", strings.NewReader(`{"ids":"1,abc"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
