package workflow

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
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
	"github.com/aldoetobex/smb-crm-backend/pkg/config"
	"github.com/aldoetobex/smb-crm-backend/pkg/metrics"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

func leadStatus(t *testing.T, db *gorm.DB, id uint) models.LeadStatus {
	t.Helper()
	var l models.Lead
	require.NoError(t, db.First(&l, id).Error)
	return l.Status
}

func transitionCount(t *testing.T, m *metrics.Metrics, entity, status string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != metrics.MetricStatusTransitionsTotal {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["entity"] == entity && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

/* ================== Controller ================== */

func TestUpdateStatus_LeadCountsReflectWrite(t *testing.T) {
	db := testutil.OpenDB(t)
	m := metrics.New()
	ctl := NewController(db, config.QuoteWonReject, m)
	ctx := context.Background()

	a := testutil.SeedLead(t, db, nil)
	testutil.SeedLead(t, db, nil)
	testutil.SeedLead(t, db, func(l *models.Lead) { l.Status = models.LeadLost })

	tr, err := ctl.UpdateStatus(ctx, EntityLead, a.ID, "  follow ")
	require.NoError(t, err)
	assert.Equal(t, a.ID, tr.ID)
	assert.Equal(t, "new", tr.OldStatus)
	assert.Equal(t, "follow", tr.NewStatus)
	assert.Equal(t, map[string]int64{
		"new": 1, "follow": 1, "quote": 0, "won": 0, "lost": 1, "trash": 0,
	}, tr.Counts)
	assert.Equal(t, models.LeadFollow, leadStatus(t, db, a.ID))

	// any member may follow any other
	_, err = ctl.UpdateStatus(ctx, EntityLead, a.ID, "won")
	require.NoError(t, err)
	_, err = ctl.UpdateStatus(ctx, EntityLead, a.ID, "new")
	require.NoError(t, err)

	assert.EqualValues(t, 3, testutil.Count(t, db, &models.StatusHistory{}, "entity_type = ? AND entity_id = ?", "lead", a.ID))
	assert.Equal(t, 1.0, transitionCount(t, m, "lead", "follow"))
}

func TestUpdateStatus_InvalidStatusLeavesRowAlone(t *testing.T) {
	db := testutil.OpenDB(t)
	ctl := NewController(db, config.QuoteWonReject, nil)
	lead := testutil.SeedLead(t, db, func(l *models.Lead) { l.Status = models.LeadFollow })

	for _, bad := range []string{"bogus", "", "Won", "onHold"} {
		_, err := ctl.UpdateStatus(context.Background(), EntityLead, lead.ID, bad)
		assert.True(t, apperr.Is(err, apperr.KindInvalidStatus), bad)
	}
	assert.Equal(t, models.LeadFollow, leadStatus(t, db, lead.ID))
	assert.Zero(t, testutil.Count(t, db, &models.StatusHistory{}, ""))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	ctl := NewController(db, config.QuoteWonReject, nil)

	_, err := ctl.UpdateStatus(context.Background(), EntityLead, 42, "won")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = ctl.UpdateStatus(context.Background(), Entity("project"), 1, "open")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateStatus_QuoteWonPolicy(t *testing.T) {
	db := testutil.OpenDB(t)
	cust := testutil.SeedCustomer(t, db, "Acme")
	ref := models.SubjectRef{Type: models.SubjectCustomer, ID: cust.ID}
	q := testutil.SeedQuote(t, db, ref, "Website", models.QuoteDraft)

	strict := NewController(db, config.QuoteWonReject, nil)
	_, err := strict.UpdateStatus(context.Background(), EntityQuote, q.ID, "won")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "USE_CONFIRMATION", apperr.CodeOf(err))

	tr, err := strict.UpdateStatus(context.Background(), EntityQuote, q.ID, "sent")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tr.Counts["sent"])

	lax := NewController(db, config.QuoteWonAllow, nil)
	tr, err = lax.UpdateStatus(context.Background(), EntityQuote, q.ID, "won")
	require.NoError(t, err)
	assert.Equal(t, "sent", tr.OldStatus)
	assert.Equal(t, map[string]int64{"draft": 0, "sent": 0, "won": 1, "lost": 0}, tr.Counts)
}

func TestUpdateStatus_ConfirmedQuoteStaysWon(t *testing.T) {
	db := testutil.OpenDB(t)
	cust := testutil.SeedCustomer(t, db, "Acme")
	ref := models.SubjectRef{Type: models.SubjectCustomer, ID: cust.ID}
	won := testutil.SeedQuote(t, db, ref, "Website", models.QuoteWon)

	strict := NewController(db, config.QuoteWonReject, nil)
	for _, status := range []string{"draft", "sent", "lost"} {
		_, err := strict.UpdateStatus(context.Background(), EntityQuote, won.ID, status)
		assert.True(t, apperr.Is(err, apperr.KindConflict), status)
		assert.Equal(t, "QUOTE_CONFIRMED", apperr.CodeOf(err), status)
	}
	var q models.Quote
	require.NoError(t, db.First(&q, won.ID).Error)
	assert.Equal(t, models.QuoteWon, q.Status)
	assert.Zero(t, testutil.Count(t, db, &models.StatusHistory{}, ""))

	// under allow a dragged won quote may move back, a confirmed one may not
	lax := NewController(db, config.QuoteWonAllow, nil)
	tr, err := lax.UpdateStatus(context.Background(), EntityQuote, won.ID, "sent")
	require.NoError(t, err)
	assert.Equal(t, "won", tr.OldStatus)

	confirmed := testutil.SeedQuote(t, db, ref, "Retainer", models.QuoteWon)
	require.NoError(t, db.Model(&models.Quote{}).Where("id = ?", confirmed.ID).Update("confirmed_at", time.Now()).Error)
	_, err = lax.UpdateStatus(context.Background(), EntityQuote, confirmed.ID, "draft")
	assert.Equal(t, "QUOTE_CONFIRMED", apperr.CodeOf(err))
}

func TestCounts_ZeroFilled(t *testing.T) {
	db := testutil.OpenDB(t)
	ctl := NewController(db, config.QuoteWonReject, nil)

	counts, err := ctl.Counts(context.Background(), EntityQuote)
	require.NoError(t, err)
	assert.Len(t, counts, len(models.QuoteStatuses))
	for _, s := range Statuses(EntityQuote) {
		assert.Zero(t, counts[s], s)
	}
}

/* ================== Handlers ================== */

func newTestApp(db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	h := NewHandler(NewController(db, config.QuoteWonReject, nil))
	app.All("/api/leads/status", middleware.RequireAJAX(), h.UpdateStatus(EntityLead))
	app.All("/api/quotes/status", middleware.RequireAJAX(), h.UpdateStatus(EntityQuote))
	return app
}

func ajax(t *testing.T, app *fiber.App, method, url, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandler_LeadStatus(t *testing.T) {
	db := testutil.OpenDB(t)
	app := newTestApp(db)
	lead := testutil.SeedLead(t, db, nil)

	body := `{"lead_id":` + itoa(lead.ID) + `,"new_status":"quote"}`
	code, out := ajax(t, app, "POST", "/api/leads/status", body)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, lead.ID, out["lead_id"])
	assert.Equal(t, "new", out["old_status"])
	assert.Equal(t, "quote", out["new_status"])
	counts := out["status_counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["quote"])
	assert.EqualValues(t, 0, counts["new"])
}

func TestHandler_Failures(t *testing.T) {
	db := testutil.OpenDB(t)
	app := newTestApp(db)
	lead := testutil.SeedLead(t, db, nil)

	code, out := ajax(t, app, "POST", "/api/leads/status", `{"lead_id":`+itoa(lead.ID)+`,"new_status":"bogus"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["error"])
	assert.Equal(t, models.LeadNew, leadStatus(t, db, lead.ID))

	code, out = ajax(t, app, "POST", "/api/leads/status", `{"lead_id":999,"new_status":"won"}`)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, false, out["success"])

	code, _ = ajax(t, app, "POST", "/api/quotes/status", `{"new_status":"sent"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, out = ajax(t, app, "GET", "/api/leads/status", "")
	assert.Equal(t, fiber.StatusMethodNotAllowed, code)
	assert.Equal(t, "Invalid request", out["error"])

	req := httptest.NewRequest("POST", "/api/leads/status", strings.NewReader(`{"lead_id":1,"new_status":"won"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
