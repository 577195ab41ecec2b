package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/handler"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/repository"
	sqliteRepo "github.com/sakif/deskkit/internal/repository/sqlite"
	"github.com/sakif/deskkit/internal/service"
	"github.com/sakif/deskkit/internal/store"
)

const testSecret = "handler-test-secret-0123456789"

var fixedNow = time.Date(2025, 3, 5, 14, 7, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testApp holds the services behind a router that mirrors the server's
// /api routes.
type testApp struct {
	router   chi.Router
	tasks    *service.TaskService
	accounts *service.AccountService
	tokens   *auth.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tasks, err := store.Open(ctx, db, service.TaskSchema, logger, store.WithClock(fixedClock))
	require.NoError(t, err)
	users, err := store.Open(ctx, db, service.AccountSchema(fixedClock), logger, store.WithClock(fixedClock))
	require.NoError(t, err)
	session, err := store.OpenValue[model.Session](ctx, db, repository.KeyCurrentUser, logger)
	require.NoError(t, err)
	remember, err := store.OpenValue[string](ctx, db, repository.KeyRememberEmail, logger)
	require.NoError(t, err)

	digester := auth.NewMultiDigester(auth.SchemeBcrypt, auth.NewBcryptDigesterForTest())
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	app := &testApp{
		tasks:    service.NewTaskService(tasks, logger, service.WithClock(fixedClock)),
		accounts: service.NewAccountService(users, session, remember, digester, logger, service.WithClock(fixedClock)),
		tokens:   tokens,
	}

	th := handler.NewTaskHandler(app.tasks, logger)
	ah := handler.NewAccountHandler(app.accounts, tokens, false, logger)
	ch := handler.NewCalculatorHandler(logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", th.HandleList)
		r.Post("/tasks", th.HandleCreate)
		r.Delete("/tasks", th.HandleClear)
		r.Get("/tasks/stats", th.HandleStats)
		r.Get("/tasks/{id}", th.HandleGet)
		r.Put("/tasks/{id}", th.HandleUpdate)
		r.Delete("/tasks/{id}", th.HandleDelete)
		r.Post("/tasks/{id}/toggle", th.HandleToggle)

		r.Post("/auth/register", ah.HandleRegister)
		r.Post("/auth/login", ah.HandleLogin)
		r.Post("/auth/logout", ah.HandleLogout)
		r.Get("/auth/remembered", ah.HandleRemembered)
		r.Post("/auth/password-strength", ah.HandlePasswordStrength)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, app.accounts))
			r.Get("/me", ah.HandleMe)
			r.Put("/me", ah.HandleUpdateMe)
			r.Put("/me/password", ah.HandleChangePassword)
		})

		r.Post("/calculators", ch.HandleCreate)
		r.Get("/calculators/{id}", ch.HandleGet)
		r.Delete("/calculators/{id}", ch.HandleDelete)
		r.Post("/calculators/{id}/keys", ch.HandleKeys)
		r.Post("/evaluate", ch.HandleEvaluate)
	})
	app.router = r

	return app
}

// do sends a request with an optional JSON body and bearer token.
func (a *testApp) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = bytes.NewBufferString(s)
		} else {
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a response body, failing the test on bad JSON.
func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

// errorBody is the JSON error shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
	Code    string `json:"code"`
}
