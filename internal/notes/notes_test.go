package notes

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/internal/middleware"
	"github.com/aldoetobex/smb-crm-backend/internal/testutil"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

/* ===== helpers ===== */

func taggedCount(t *testing.T, db *gorm.DB, ref models.SubjectRef) int64 {
	t.Helper()
	return testutil.Count(t, db, &models.Note{}, "subject_type = ? AND subject_id = ? AND tagged = ?", ref.Type, ref.ID, true)
}

func newTestApp(db *gorm.DB) *fiber.App {
	h := NewHandler(db)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Get("/api/leads/:id/notes", h.List(models.SubjectLead))
	app.Post("/api/leads/:id/notes", h.Submit(models.SubjectLead))
	app.Delete("/api/notes/:id", h.Delete)
	app.Post("/api/notes/:id/tag", h.Tag)
	return app
}

/* ================== TESTS ================== */

func TestTag_ExclusiveAndToggles(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()

	lead := testutil.SeedLead(t, db, nil)
	ref := models.SubjectRef{Type: models.SubjectLead, ID: lead.ID}
	a := testutil.SeedNote(t, db, ref, "a", false)
	b := testutil.SeedNote(t, db, ref, "b", false)
	c := testutil.SeedNote(t, db, ref, "c", false)

	for _, id := range []uint{a.ID, b.ID, c.ID, b.ID, a.ID} {
		_, err := svc.Tag(ctx, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, taggedCount(t, db, ref), int64(1))
	}

	pinned, err := svc.Tagged(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, pinned)
	assert.Equal(t, a.ID, pinned.ID)

	// second call on the same note toggles it off
	n, err := svc.Tag(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, n.Tagged)
	assert.Zero(t, taggedCount(t, db, ref))

	pinned, err = svc.Tagged(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, pinned)
}

func TestTag_SiblingsScopedBySubjectType(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()

	lead := testutil.SeedLead(t, db, nil)
	cust := testutil.SeedCustomer(t, db, "Acme")
	require.Equal(t, lead.ID, cust.ID, "both first rows share an id")

	leadRef := models.SubjectRef{Type: models.SubjectLead, ID: lead.ID}
	custRef := models.SubjectRef{Type: models.SubjectCustomer, ID: cust.ID}
	custNote := testutil.SeedNote(t, db, custRef, "customer pin", true)
	leadNote := testutil.SeedNote(t, db, leadRef, "lead pin", false)

	_, err := svc.Tag(ctx, leadNote.ID)
	require.NoError(t, err)

	var got models.Note
	require.NoError(t, db.First(&got, custNote.ID).Error)
	assert.True(t, got.Tagged, "pin on another subject with the same id must survive")
	assert.EqualValues(t, 1, taggedCount(t, db, leadRef))
}

func TestTag_NotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	_, err := NewService(db).Tag(context.Background(), 42)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTag_Concurrent(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db)
	ctx := context.Background()

	lead := testutil.SeedLead(t, db, nil)
	ref := models.SubjectRef{Type: models.SubjectLead, ID: lead.ID}
	var ids []uint
	for i := 0; i < 6; i++ {
		ids = append(ids, testutil.SeedNote(t, db, ref, "n", false).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _ = svc.Tag(ctx, id)
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 1, taggedCount(t, db, ref))
}

func TestTag_SingleConditionalUpdate(t *testing.T) {
	db, mock := testutil.MockDB(t)
	svc := NewService(db)
	now := time.Now()

	cols := []string{"id", "text", "tagged", "subject_type", "subject_id", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "notes" WHERE "notes"."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, "n", false, "lead", 3, now, now))
	mock.ExpectExec(`UPDATE "notes" SET "tagged"=\(id = \$1\),"updated_at"=\$2 WHERE subject_type = \$3 AND subject_id = \$4`).
		WithArgs(5, sqlmock.AnyArg(), "lead", 3).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	note, err := svc.Tag(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, note.Tagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_SubmitListTagDelete(t *testing.T) {
	db := testutil.OpenDB(t)
	app := newTestApp(db)
	lead := testutil.SeedLead(t, db, nil)
	base := "/api/leads/" + itoa(lead.ID) + "/notes"

	req := httptest.NewRequest("POST", base, strings.NewReader(`{"note":"  call back  "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created models.Note
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "call back", created.Text)

	req = httptest.NewRequest("POST", base, strings.NewReader(`{"note":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/notes/"+itoa(created.ID)+"/tag", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", base, nil))
	require.NoError(t, err)
	var list []models.Note
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Tagged)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/api/notes/"+itoa(created.ID), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/leads/999/notes", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
