// Package handler contains the HTTP handlers: the JSON API for tasks,
// accounts and calculators, and the server-rendered task board.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (URL params, query, JSON body)
//  2. Call the service layer
//  3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules; validation and persistence live in the
// services.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/service"
)

// BoardHandler renders the task board page.
//
// Templates are parsed once at startup. html/template escapes every value
// it prints, so task titles and descriptions typed by the user are shown as
// text, never as markup.
type BoardHandler struct {
	templates *template.Template
	tasks     *service.TaskService
	accounts  *service.AccountService
	logger    *slog.Logger
}

// NewBoardHandler parses base.html and board.html from templateDir.
// board.html fills the "content" block that base.html declares.
func NewBoardHandler(templateDir string, tasks *service.TaskService, accounts *service.AccountService, logger *slog.Logger) (*BoardHandler, error) {
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"dueDate": service.FormatDueDate,
	}).ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "board.html"),
	)
	if err != nil {
		return nil, err
	}

	return &BoardHandler{
		templates: tmpl,
		tasks:     tasks,
		accounts:  accounts,
		logger:    logger,
	}, nil
}

// boardUser is the greeting shown to a signed-in visitor.
type boardUser struct {
	FullName string
	Initials string
}

type boardData struct {
	Title     string
	User      *boardUser
	Stats     model.TaskStats
	Pending   []model.Task
	Completed []model.Task
}

// HandleBoard serves the task board.
//
// HTTP: GET / (behind auth.OptionalAuth)
func (h *BoardHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	data := boardData{
		Title:     "Task Manager",
		Stats:     h.tasks.Stats(),
		Pending:   h.tasks.Pending(),
		Completed: h.tasks.Completed(),
	}

	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		if account, err := h.accounts.Account(userID); err == nil {
			data.User = &boardUser{
				FullName: account.FullName,
				Initials: service.Initials(account.FullName),
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
