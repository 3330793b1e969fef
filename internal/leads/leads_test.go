package leads

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
	"github.com/aldoetobex/smb-crm-backend/internal/workflow"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/config"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

func TestCreate(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()
	src := testutil.SeedLeadSource(t, db, "Referral")

	lead, err := svc.Create(ctx, CreateInput{
		FirstName:    " Ann ",
		CompanyName:  "  Blue   Sky  ",
		Email:        "ann@blue.test",
		LeadSourceID: &src.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", lead.FirstName)
	assert.Equal(t, "Blue Sky", lead.CompanyName)
	assert.Equal(t, models.LeadNew, lead.Status)

	_, err = svc.Create(ctx, CreateInput{FirstName: "Bob", LeadSourceID: testutil.UintPtr(999)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, CreateInput{FirstName: "Bob", Email: "nope", Status: "sleeping"})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "email")
	assert.Contains(t, ae.Fields, "status")
}

func TestList_PaginatesAndFilters(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	for i := 0; i < 12; i++ {
		testutil.SeedLead(t, db, func(l *models.Lead) { l.CompanyName = fmt.Sprintf("Co %02d", i) })
	}
	testutil.SeedLead(t, db, func(l *models.Lead) {
		l.FirstName, l.CompanyName, l.Status = "Zed", "Orbit", models.LeadFollow
	})

	page, err := svc.List(context.Background(), ListQuery{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 13, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 3)

	page, err = svc.List(context.Background(), ListQuery{Page: 1, PageSize: 10, Status: "follow"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Zed", page.Items[0].FirstName)

	page, err = svc.List(context.Background(), ListQuery{Page: 1, PageSize: 10, Search: "ORB"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestBoard_AllColumnsPresent(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	testutil.SeedLead(t, db, func(l *models.Lead) { l.Status = models.LeadQuote })

	board, err := svc.Board(context.Background())
	require.NoError(t, err)
	assert.Len(t, board, len(models.LeadStatuses))
	require.Len(t, board[models.LeadQuote], 1)
	assert.Equal(t, "Jane Doe", board[models.LeadQuote][0].Name)
	assert.Empty(t, board[models.LeadNew])
}

func TestMassDelete_CascadesAnnotations(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	lead := testutil.SeedLead(t, db, nil)
	keep := testutil.SeedLead(t, db, nil)
	ref := models.SubjectRef{Type: models.SubjectLead, ID: lead.ID}
	testutil.SeedNote(t, db, ref, "hello", true)
	testutil.SeedTask(t, db, ref)
	q := testutil.SeedQuote(t, db, ref, "Q", models.QuoteDraft)
	testutil.SeedQuoteService(t, db, q.ID, nil, "Web", "1", "100", 0)

	deleted, missing, err := svc.MassDelete(context.Background(), []uint{lead.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, []uint{lead.ID}, deleted)
	assert.Equal(t, []uint{999}, missing)

	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Lead{}, ""))
	assert.EqualValues(t, 0, testutil.Count(t, db, &models.Note{}, ""))
	assert.EqualValues(t, 0, testutil.Count(t, db, &models.Task{}, ""))
	assert.EqualValues(t, 0, testutil.Count(t, db, &models.Quote{}, ""))
	assert.EqualValues(t, 0, testutil.Count(t, db, &models.QuoteService{}, ""))
	_, err = svc.Get(context.Background(), keep.ID)
	assert.NoError(t, err)
}

func TestCreateSource(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()

	src, err := svc.CreateSource(ctx, "  Trade   Show ")
	require.NoError(t, err)
	assert.Equal(t, "Trade Show", src.Name)

	_, err = svc.CreateSource(ctx, "trade show")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = svc.CreateSource(ctx, "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	list, err := svc.Sources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateSource_LengthCountsCharacters(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)

	src, err := svc.CreateSource(context.Background(), strings.Repeat("é", 250))
	require.NoError(t, err)
	assert.Equal(t, 250, len([]rune(src.Name)))

	_, err = svc.CreateSource(context.Background(), strings.Repeat("é", 251))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateSource_RacingInsertIsConflict(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)

	// another request inserts the same name between the check and the insert
	raced := false
	err := db.Callback().Create().Before("gorm:create").Register("test:race_lead_source", func(d *gorm.DB) {
		src, ok := d.Statement.Dest.(*models.LeadSource)
		if !ok || raced {
			return
		}
		raced = true
		now := time.Now()
		_ = d.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO lead_sources (name, created_at, updated_at) VALUES (?, ?, ?)", src.Name, now, now).Error
	})
	require.NoError(t, err)

	_, err = svc.CreateSource(context.Background(), "Fair")
	assert.True(t, raced)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "DUPLICATE_LEAD_SOURCE", apperr.CodeOf(err))
}

/* ================== Handlers ================== */

func newTestApp(db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	h := NewHandler(db, workflow.NewController(db, config.QuoteWonReject, nil))
	app.Get("/api/leads", h.List)
	app.Post("/api/leads", h.Create)
	app.Get("/api/leads/kanban", h.Kanban)
	app.Get("/api/leads/:id", h.Detail)
	app.Post("/api/leads/mass-delete", h.MassDelete)
	app.All("/api/lead-sources/quick", middleware.RequireAJAX(), h.CreateSource)
	return app
}

func send(t *testing.T, app *fiber.App, method, url, body string, xhr bool) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if xhr {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandlers_LeadFlow(t *testing.T) {
	db := testutil.OpenDB(t)
	app := newTestApp(db)

	code, out := send(t, app, "POST", "/api/leads", `{"first_name":"Ann","company_name":"Blue"}`, false)
	require.Equal(t, fiber.StatusCreated, code)
	id := uint(out["id"].(float64))
	ref := models.SubjectRef{Type: models.SubjectLead, ID: id}
	testutil.SeedNote(t, db, ref, "pinned", true)
	q := testutil.SeedQuote(t, db, ref, "Q", models.QuoteSent)
	testutil.SeedQuoteService(t, db, q.ID, nil, "Web", "2", "50", 0)

	code, out = send(t, app, "GET", fmt.Sprintf("/api/leads/%d", id), "", false)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "pinned", out["tagged_note"].(map[string]any)["text"])
	active := out["quotes"].(map[string]any)["active"].(map[string]any)
	assert.EqualValues(t, 1, active["count"])
	assert.Equal(t, "100", active["value"])

	code, out = send(t, app, "GET", "/api/leads/kanban", "", false)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, out["status_counts"].(map[string]any)["new"])
	assert.Len(t, out["columns"].(map[string]any)["new"], 1)

	code, out = send(t, app, "GET", "/api/leads?page=0&pageSize=500", "", false)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, out["page"])
	assert.EqualValues(t, 10, out["pageSize"])

	code, out = send(t, app, "POST", "/api/leads/mass-delete", fmt.Sprintf(`{"ids":"%d,77","fallback":"lead-list"}`, id), false)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []any{float64(id)}, out["deleted"])
	assert.Equal(t, []any{float64(77)}, out["missing"])
	assert.Equal(t, "lead-list", out["fallback"])

	code, _ = send(t, app, "POST", "/api/leads/mass-delete", `{"ids":"1,x"}`, false)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = send(t, app, "GET", "/api/leads/999", "", false)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestHandlers_LeadSourceQuickCreate(t *testing.T) {
	db := testutil.OpenDB(t)
	app := newTestApp(db)

	code, out := send(t, app, "POST", "/api/lead-sources/quick", `{"name":" Web "}`, true)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Web", out["name"])
	assert.NotZero(t, out["id"])

	code, out = send(t, app, "POST", "/api/lead-sources/quick", `{"name":"WEB"}`, true)
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Lead source already exists", out["error"])

	code, out = send(t, app, "POST", "/api/lead-sources/quick", `{"name":""}`, true)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, false, out["success"])

	code, _ = send(t, app, "POST", "/api/lead-sources/quick", `{"name":"Other"}`, false)
	assert.Equal(t, fiber.StatusMethodNotAllowed, code)
}
