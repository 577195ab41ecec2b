package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/service"
)

// AccountHandler manages registration, login and the signed-in profile.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister         → create an account
//   - HandleLogin            → authenticate, open the session, issue a token
//   - HandleLogout           → close the session, clear the token cookie
//   - HandleRemembered       → the email saved by "remember me"
//   - HandlePasswordStrength → grade a password as the user types it
//   - HandleMe / HandleUpdateMe / HandleChangePassword → the profile page,
//     behind auth.RequireAuth
type AccountHandler struct {
	accounts     *service.AccountService
	tokens       *auth.TokenService
	secureCookie bool
	logger       *slog.Logger
}

// NewAccountHandler creates an AccountHandler. secureCookie marks the token
// cookie Secure, for deployments behind HTTPS.
func NewAccountHandler(accounts *service.AccountService, tokens *auth.TokenService, secureCookie bool, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// profileResponse is the public view of an account. It never carries the
// password digest.
type profileResponse struct {
	ID        int64   `json:"id"`
	FullName  string  `json:"fullName"`
	Email     string  `json:"email"`
	Initials  string  `json:"initials"`
	CreatedAt string  `json:"createdAt"`
	LastLogin *string `json:"lastLogin"`
}

func newProfileResponse(u model.UserAccount) profileResponse {
	return profileResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Initials:  service.Initials(u.FullName),
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	Token   string        `json:"token"`
	Session model.Session `json:"session"`
}

type rememberedResponse struct {
	Email      string `json:"email"`
	Remembered bool   `json:"remembered"`
}

type strengthRequest struct {
	Password string `json:"password"`
}

type strengthResponse struct {
	Strength service.Strength `json:"strength"`
}

type profileRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"fullName": "...", "email": "...", "password": "...", "confirmPassword": "..."}
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProfileResponse(account))
}

// HandleLogin authenticates and opens the session.
//
// HTTP: POST /api/auth/login
//
// The token is returned in the body for API clients and set as an HttpOnly
// cookie for the browser. It is only honoured while the session it was
// issued for is still the active one.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.tokens.Generate(sess.UserID)
	if err != nil {
		h.logger.Error("failed to issue token",
			slog.Int64("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Session: sess})
}

// HandleLogout closes the session and clears the token cookie.
//
// HTTP: POST /api/auth/logout
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // delete immediately
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// HandleRemembered returns the email to prefill on the login form.
// With nothing remembered the email is empty.
//
// HTTP: GET /api/auth/remembered
func (h *AccountHandler) HandleRemembered(w http.ResponseWriter, r *http.Request) {
	email, ok := h.accounts.RememberedEmail()
	writeJSON(w, http.StatusOK, rememberedResponse{Email: email, Remembered: ok})
}

// HandlePasswordStrength grades a candidate password.
//
// HTTP: POST /api/auth/password-strength
func (h *AccountHandler) HandlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req strengthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, strengthResponse{Strength: service.PasswordStrength(req.Password)})
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/me (requires auth)
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	account, err := h.accounts.Account(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(account))
}

// HandleUpdateMe changes the signed-in account's name and email.
//
// HTTP: PUT /api/me (requires auth)
func (h *AccountHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.UpdateProfile(r.Context(), userID, req.FullName, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(account))
}

// HandleChangePassword replaces the signed-in account's password.
//
// HTTP: PUT /api/me/password (requires auth)
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
