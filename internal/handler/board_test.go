package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/handler"
	"github.com/sakif/deskkit/internal/service"
)

const templateDir = "../../web/templates"

func newBoard(t *testing.T, app *testApp) *handler.BoardHandler {
	t.Helper()
	h, err := handler.NewBoardHandler(templateDir, app.tasks, app.accounts, discardLogger())
	require.NoError(t, err)
	return h
}

func TestBoardHandler_Empty(t *testing.T) {
	app := newTestApp(t)
	h := newBoard(t, app)

	rr := httptest.NewRecorder()
	h.HandleBoard(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "No pending tasks")
	assert.Contains(t, rr.Body.String(), "No completed tasks")
	assert.NotContains(t, rr.Body.String(), "avatar\">")
}

func TestBoardHandler_EscapesUserText(t *testing.T) {
	app := newTestApp(t)
	_, err := app.tasks.Add(context.Background(), service.TaskInput{
		Title:       `<script>alert("x")</script>`,
		Description: `<b>bold</b>`,
		DueDate:     "2025-03-07",
	})
	require.NoError(t, err)
	h := newBoard(t, app)

	rr := httptest.NewRecorder()
	h.HandleBoard(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rr.Body.String()
	assert.NotContains(t, body, "<script>alert")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, body, "Due Mar 7, 2025")
	assert.Contains(t, body, `id="total-count">1<`)
}

func TestBoardHandler_GreetsSignedInUser(t *testing.T) {
	app := newTestApp(t)
	h := newBoard(t, app)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), 1))
	rr := httptest.NewRecorder()
	h.HandleBoard(rr, req)

	assert.Contains(t, rr.Body.String(), service.DemoFullName)
	assert.Contains(t, rr.Body.String(), ">DU<")
}

func TestNewBoardHandler_MissingTemplates(t *testing.T) {
	app := newTestApp(t)

	_, err := handler.NewBoardHandler(t.TempDir(), app.tasks, app.accounts, discardLogger())
	assert.Error(t, err)
}
