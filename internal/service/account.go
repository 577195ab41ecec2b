package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/repository"
	"github.com/sakif/deskkit/internal/store"
)

// MinPasswordLength is the shortest password accepted at registration and on
// change.
const MinPasswordLength = 6

// Seed account, created when no users are stored.
const (
	DemoFullName = "Demo User"
	DemoEmail    = "demo@example.com"
	DemoPassword = "Demo@123"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AccountSchema stores accounts under the "users" key, seeded with the demo
// account. The seed keeps the legacy digest so the published demo password
// works under either configured scheme.
func AccountSchema(now func() time.Time) store.Schema[model.UserAccount] {
	return store.Schema[model.UserAccount]{
		Key:  repository.KeyUsers,
		Name: "user",
		ID:   func(u model.UserAccount) int64 { return u.ID },
		Seed: func() []model.UserAccount {
			return []model.UserAccount{{
				ID:             1,
				FullName:       DemoFullName,
				Email:          DemoEmail,
				PasswordDigest: auth.LegacyDigest(DemoPassword),
				CreatedAt:      now().Format(accountDateLayout),
				LastLogin:      nil,
			}}
		},
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Strength grades a candidate password.
type Strength string

const (
	StrengthNone   Strength = "" // too short to grade
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// AccountService handles registration, login and profile management.
//
// DEPENDENCIES:
//   - users     the account collection ("users")
//   - session   the active session ("currentUser"), at most one
//   - remember  the remembered login email ("rememberEmail")
//   - digester  creates and checks password digests
type AccountService struct {
	users    *store.Collection[model.UserAccount]
	session  *store.Value[model.Session]
	remember *store.Value[string]
	digester auth.Digester
	now      func() time.Time
	logger   *slog.Logger
}

// NewAccountService wires an AccountService from its opened stores.
func NewAccountService(
	users *store.Collection[model.UserAccount],
	session *store.Value[model.Session],
	remember *store.Value[string],
	digester auth.Digester,
	logger *slog.Logger,
	opts ...Option,
) *AccountService {
	o := buildOptions(opts)
	return &AccountService{
		users:    users,
		session:  session,
		remember: remember,
		digester: digester,
		now:      o.now,
		logger:   logger,
	}
}

// compile-time check: the auth middleware asks the service about sessions
var _ auth.SessionChecker = (*AccountService)(nil)

// ===== REGISTRATION =====

// Register validates the form and creates an account.
//
// Checks run in form order and the first failure is returned: full name,
// email shape, email uniqueness, password length, confirmation.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (model.UserAccount, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)

	if fullName == "" {
		return model.UserAccount{}, apperror.ValidationFailed("fullName", "Please enter your full name")
	}
	if !IsValidEmail(email) {
		return model.UserAccount{}, apperror.ValidationFailed("email", "Please enter a valid email address")
	}
	// early answer for the common case; the authoritative check runs under
	// the collection lock below
	if _, taken := s.findByEmail(email); taken {
		return model.UserAccount{}, apperror.EmailAlreadyRegistered()
	}
	if err := checkNewPassword("password", "Password must be at least 6 characters", in.Password); err != nil {
		return model.UserAccount{}, err
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return model.UserAccount{}, apperror.ValidationFailed("confirmPassword", "Passwords do not match")
	}

	digest, err := s.digester.Digest(in.Password)
	if err != nil {
		return model.UserAccount{}, apperror.ValidationFailed("password", err.Error())
	}

	account, err := s.users.Add(ctx, func(existing []model.UserAccount, id int64) (model.UserAccount, error) {
		for _, u := range existing {
			if sameEmail(u.Email, email) {
				return model.UserAccount{}, apperror.EmailAlreadyRegistered()
			}
		}
		return model.UserAccount{
			ID:             id,
			FullName:       fullName,
			Email:          email,
			PasswordDigest: digest,
			CreatedAt:      s.now().Format(accountDateLayout),
		}, nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return model.UserAccount{}, err
		}
		s.logger.Error("failed to register user",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return model.UserAccount{}, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("id", account.ID),
		slog.String("email", account.Email),
	)
	return account, nil
}

// ===== LOGIN / SESSION =====

// Authenticate checks an email and password pair.
//
// An unknown email yields EmailNotFound, a wrong password InvalidPassword;
// neither changes anything. On success lastLogin is stamped and persisted
// and the updated account is returned.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (model.UserAccount, error) {
	email = strings.TrimSpace(email)

	account, ok := s.findByEmail(email)
	if !ok {
		return model.UserAccount{}, apperror.EmailNotFound()
	}

	if err := s.verify(account, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", slog.String("email", email))
			return model.UserAccount{}, apperror.InvalidPassword("password")
		}
		return model.UserAccount{}, err
	}

	stamp := s.now().Format(accountStampLayout)
	account, err := s.users.Update(ctx, account.ID, func(u *model.UserAccount) error {
		u.LastLogin = &stamp
		return nil
	})
	if err != nil {
		return model.UserAccount{}, fmt.Errorf("recording login for user %d: %w", account.ID, err)
	}

	return account, nil
}

// Login authenticates and opens the session, replacing any earlier one.
// With remember set the email is kept for the next login form; without it
// an earlier remembered email stays as it was.
func (s *AccountService) Login(ctx context.Context, email, password string, remember bool) (model.Session, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return model.Session{}, err
	}

	sess := model.Session{
		UserID:    account.ID,
		Email:     account.Email,
		FullName:  account.FullName,
		LoginTime: s.now().Format(accountStampLayout),
	}
	if err := s.session.Save(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("saving session: %w", err)
	}

	if remember {
		if err := s.remember.Save(ctx, strings.TrimSpace(email)); err != nil {
			return model.Session{}, fmt.Errorf("saving remembered email: %w", err)
		}
	}

	s.logger.Info("user logged in",
		slog.Int64("id", account.ID),
		slog.Bool("remember", remember),
	)
	return sess, nil
}

// Logout ends the active session. Logging out with no session is a no-op.
func (s *AccountService) Logout(ctx context.Context) error {
	sess, had := s.session.Load()
	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if had {
		s.logger.Info("user logged out", slog.Int64("id", sess.UserID))
	}
	return nil
}

// CurrentSession returns the active session, if any.
func (s *AccountService) CurrentSession() (model.Session, bool) {
	return s.session.Load()
}

// HasSession reports whether userID owns the active session.
func (s *AccountService) HasSession(userID int64) bool {
	sess, ok := s.session.Load()
	return ok && sess.UserID == userID
}

// RememberedEmail returns the email saved by a "remember me" login.
func (s *AccountService) RememberedEmail() (string, bool) {
	return s.remember.Load()
}

// ===== PROFILE =====

// Account returns the account with the given id, or apperror.ErrNotFound.
func (s *AccountService) Account(id int64) (model.UserAccount, error) {
	u, ok := s.users.Find(id)
	if !ok {
		return model.UserAccount{}, apperror.NotFound("user", id)
	}
	return u, nil
}

// UpdateProfile changes an account's name and email.
//
// The email must stay unique among the other accounts. When the account
// holds the active session, the session picks up the new name and email.
func (s *AccountService) UpdateProfile(ctx context.Context, id int64, fullName, email string) (model.UserAccount, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	if fullName == "" {
		return model.UserAccount{}, apperror.ValidationFailed("fullName", "Name cannot be empty")
	}
	if !IsValidEmail(email) {
		return model.UserAccount{}, apperror.ValidationFailed("email", "Invalid email address")
	}

	account, err := s.users.UpdateWithPeers(ctx, id, func(u *model.UserAccount, peers []model.UserAccount) error {
		for _, p := range peers {
			if sameEmail(p.Email, email) {
				return apperror.EmailAlreadyRegistered()
			}
		}
		u.FullName = fullName
		u.Email = email
		return nil
	})
	if err != nil {
		return model.UserAccount{}, fmt.Errorf("updating profile of user %d: %w", id, err)
	}

	if sess, ok := s.session.Load(); ok && sess.UserID == id {
		sess.FullName = account.FullName
		sess.Email = account.Email
		if err := s.session.Save(ctx, sess); err != nil {
			return model.UserAccount{}, fmt.Errorf("refreshing session: %w", err)
		}
	}

	s.logger.Info("profile updated", slog.Int64("id", id))
	return account, nil
}

// ChangePassword replaces an account's password after re-checking the
// current one. confirm is compared when non-empty.
func (s *AccountService) ChangePassword(ctx context.Context, id int64, current, newPassword, confirm string) error {
	account, err := s.Account(id)
	if err != nil {
		return err
	}

	if err := s.verify(account, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			invalid := apperror.InvalidPassword("currentPassword")
			invalid.Message = "Current password is incorrect"
			return invalid
		}
		return err
	}
	if err := checkNewPassword("newPassword", "New password must be at least 6 characters", newPassword); err != nil {
		return err
	}
	if confirm != "" && confirm != newPassword {
		return apperror.ValidationFailed("confirmNewPassword", "Passwords do not match")
	}

	digest, err := s.digester.Digest(newPassword)
	if err != nil {
		return apperror.ValidationFailed("newPassword", err.Error())
	}

	if _, err := s.users.Update(ctx, id, func(u *model.UserAccount) error {
		u.PasswordDigest = digest
		return nil
	}); err != nil {
		return fmt.Errorf("changing password of user %d: %w", id, err)
	}

	s.logger.Info("password changed", slog.Int64("id", id))
	return nil
}

// ===== HELPERS =====

func (s *AccountService) findByEmail(email string) (model.UserAccount, bool) {
	return s.users.First(func(u model.UserAccount) bool { return sameEmail(u.Email, email) })
}

func (s *AccountService) verify(account model.UserAccount, password string) error {
	if err := s.digester.Verify(account.PasswordDigest, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return err
		}
		return fmt.Errorf("verifying password of user %d: %w", account.ID, err)
	}
	return nil
}

// sameEmail compares addresses case-insensitively.
func sameEmail(a, b string) bool {
	return strings.EqualFold(a, b)
}

func checkNewPassword(field, message, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperror.ValidationFailed(field, message)
	}
	return nil
}

// IsValidEmail reports whether email has the shape local@domain.tld.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// PasswordStrength grades a password for the registration form.
//
// Under MinPasswordLength it is not graded. Otherwise one point each for
// length ≥ 8, mixed case, a digit and a symbol: ≤1 weak, 2 medium, 3+ strong.
func PasswordStrength(password string) Strength {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return StrengthNone
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	score := 0
	if utf8.RuneCountInString(password) >= 8 {
		score++
	}
	if lower && upper {
		score++
	}
	if digit {
		score++
	}
	if symbol {
		score++
	}

	switch {
	case score <= 1:
		return StrengthWeak
	case score == 2:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}

// Initials returns up to two uppercase initials of a full name.
func Initials(fullName string) string {
	var out []rune
	for _, word := range strings.Split(fullName, " ") {
		r, _ := utf8.DecodeRuneInString(word)
		if r == utf8.RuneError {
			continue
		}
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}
