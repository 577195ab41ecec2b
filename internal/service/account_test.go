package service

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/repository"
	"github.com/sakif/deskkit/internal/store"
)

// newTestAccountService opens the three account stores over kv. The digester
// is the legacy checksum unless one is given, so the seeded demo account and
// the known digests below are reproducible.
func newTestAccountService(t *testing.T, kv *mockKV, clock *testClock, digester ...auth.Digester) *AccountService {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	users, err := store.Open(ctx, kv, AccountSchema(clock.Now), logger, store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("opening users: %v", err)
	}
	session, err := store.OpenValue[model.Session](ctx, kv, repository.KeyCurrentUser, logger)
	if err != nil {
		t.Fatalf("opening session: %v", err)
	}
	remember, err := store.OpenValue[string](ctx, kv, repository.KeyRememberEmail, logger)
	if err != nil {
		t.Fatalf("opening remembered email: %v", err)
	}

	var d auth.Digester = auth.LegacyDigester{}
	if len(digester) > 0 {
		d = digester[0]
	}
	return NewAccountService(users, session, remember, d, logger, WithClock(clock.Now))
}

func validRegistration() RegisterInput {
	return RegisterInput{
		FullName:        "Ada Lovelace",
		Email:           "ada@example.com",
		Password:        "engine42",
		ConfirmPassword: "engine42",
	}
}

// =========================================================================
// SEED TESTS
// =========================================================================

func TestSeedAccount(t *testing.T) {
	kv := newMockKV()
	svc := newTestAccountService(t, kv, newTestClock())

	demo, err := svc.Account(1)
	if err != nil {
		t.Fatalf("Account(1) error = %v", err)
	}
	if demo.FullName != "Demo User" || demo.Email != "demo@example.com" {
		t.Errorf("seed = %+v", demo)
	}
	if demo.PasswordDigest != "hash_f843g5" {
		t.Errorf("seed digest = %q, want the digest of Demo@123", demo.PasswordDigest)
	}
	if demo.CreatedAt != "3/5/2025" || demo.LastLogin != nil {
		t.Errorf("seed createdAt=%q lastLogin=%v", demo.CreatedAt, demo.LastLogin)
	}
	if _, err := kv.Get(context.Background(), repository.KeyUsers); err != nil {
		t.Errorf("seed should be written to storage: %v", err)
	}
}

func TestSeedAccount_WorksWithBcryptDefault(t *testing.T) {
	multi := auth.NewMultiDigester(auth.SchemeBcrypt, auth.NewBcryptDigesterForTest())
	svc := newTestAccountService(t, newMockKV(), newTestClock(), multi)

	if _, err := svc.Authenticate(context.Background(), DemoEmail, DemoPassword); err != nil {
		t.Fatalf("demo login under bcrypt default failed: %v", err)
	}

	acct, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if acct.PasswordDigest[:2] != "$2" {
		t.Errorf("new digest %q should be bcrypt", acct.PasswordDigest)
	}
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_Valid(t *testing.T) {
	kv := newMockKV()
	clock := newTestClock()
	svc := newTestAccountService(t, kv, clock)

	in := validRegistration()
	in.FullName = "  Ada Lovelace "
	in.Email = " ada@example.com "

	acct, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if acct.FullName != "Ada Lovelace" || acct.Email != "ada@example.com" {
		t.Errorf("Register() did not trim: %+v", acct)
	}
	if acct.PasswordDigest != auth.LegacyDigest("engine42") {
		t.Errorf("digest = %q", acct.PasswordDigest)
	}

	// reload: the account is there with the same fields
	reloaded := newTestAccountService(t, kv, clock)
	got, err := reloaded.Account(acct.ID)
	if err != nil {
		t.Fatalf("Account() after reload error = %v", err)
	}
	if got.Email != acct.Email || got.FullName != acct.FullName || got.PasswordDigest != acct.PasswordDigest || got.CreatedAt != acct.CreatedAt {
		t.Errorf("reloaded = %+v, want %+v", got, acct)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*RegisterInput)
		sentinel  error
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing name",
			mutate:    func(in *RegisterInput) { in.FullName = "  " },
			sentinel:  apperror.ErrValidation,
			wantField: "fullName",
			wantMsg:   "Please enter your full name",
		},
		{
			name:      "malformed email",
			mutate:    func(in *RegisterInput) { in.Email = "ada@example" },
			sentinel:  apperror.ErrValidation,
			wantField: "email",
			wantMsg:   "Please enter a valid email address",
		},
		{
			name:      "email with space",
			mutate:    func(in *RegisterInput) { in.Email = "ada love@example.com" },
			sentinel:  apperror.ErrValidation,
			wantField: "email",
			wantMsg:   "Please enter a valid email address",
		},
		{
			name:      "short password",
			mutate:    func(in *RegisterInput) { in.Password, in.ConfirmPassword = "abc12", "abc12" },
			sentinel:  apperror.ErrValidation,
			wantField: "password",
			wantMsg:   "Password must be at least 6 characters",
		},
		{
			name:      "confirmation mismatch",
			mutate:    func(in *RegisterInput) { in.ConfirmPassword = "engine43" },
			sentinel:  apperror.ErrValidation,
			wantField: "confirmPassword",
			wantMsg:   "Passwords do not match",
		},
		{
			name:      "seed email taken",
			mutate:    func(in *RegisterInput) { in.Email = "demo@example.com" },
			sentinel:  apperror.ErrConflict,
			wantField: "email",
			wantMsg:   "This email is already registered",
		},
		{
			name:      "taken email differs only in case",
			mutate:    func(in *RegisterInput) { in.Email = "Demo@Example.com" },
			sentinel:  apperror.ErrConflict,
			wantField: "email",
			wantMsg:   "This email is already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMockKV()
			svc := newTestAccountService(t, kv, newTestClock())
			putsBefore := kv.puts

			in := validRegistration()
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			appErr := assertAppError(t, err, tt.sentinel, tt.wantField)
			if appErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", appErr.Message, tt.wantMsg)
			}
			if kv.puts != putsBefore {
				t.Error("a rejected registration wrote to storage")
			}
		})
	}
}

// Property: a second add with a registered email yields EmailAlreadyRegistered
// and leaves the collection alone.
func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())
	ctx := context.Background()

	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	before := svc.users.All()

	second := validRegistration()
	second.FullName = "Someone Else"
	_, err := svc.Register(ctx, second)

	if !apperror.HasCode(err, apperror.CodeEmailAlreadyRegistered) {
		t.Fatalf("second Register() error = %v, want EmailAlreadyRegistered", err)
	}
	after := svc.users.All()
	if len(after) != len(before) {
		t.Fatalf("collection size changed: %d → %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].FullName != before[i].FullName {
			t.Errorf("account %d changed", i)
		}
	}
}

// =========================================================================
// AUTHENTICATE / LOGIN TESTS
// =========================================================================

// Property: correct credentials return the account and stamp lastLogin;
// a wrong password returns InvalidPassword and leaves lastLogin alone.
func TestAuthenticate(t *testing.T) {
	kv := newMockKV()
	svc := newTestAccountService(t, kv, newTestClock())
	ctx := context.Background()

	acct, err := svc.Authenticate(ctx, "demo@example.com", "Demo@123")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if acct.ID != 1 {
		t.Errorf("Authenticate() returned account %d", acct.ID)
	}
	if acct.LastLogin == nil || *acct.LastLogin != "3/5/2025, 2:07:09 PM" {
		t.Errorf("LastLogin = %v", acct.LastLogin)
	}

	stored, _ := svc.Account(1)
	if stored.LastLogin == nil || *stored.LastLogin != *acct.LastLogin {
		t.Error("lastLogin was not persisted on the stored account")
	}

	later := newTestClock()
	later.Advance(time.Hour)
	fresh := newTestAccountService(t, kv, later)
	before, _ := fresh.Account(1)

	_, err = fresh.Authenticate(ctx, "demo@example.com", "demo@123")
	if !apperror.HasCode(err, apperror.CodeInvalidPassword) {
		t.Fatalf("wrong password error = %v, want InvalidPassword", err)
	}

	after, _ := fresh.Account(1)
	if *after.LastLogin != *before.LastLogin {
		t.Errorf("lastLogin changed on a failed login: %q → %q", *before.LastLogin, *after.LastLogin)
	}
}

func TestAuthenticate_EmailNotFound(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	if !apperror.HasCode(err, apperror.CodeEmailNotFound) {
		t.Fatalf("error = %v, want EmailNotFound", err)
	}
	assertAppError(t, err, apperror.ErrUnauthorized, "email")
}

func TestLoginLogout(t *testing.T) {
	kv := newMockKV()
	clock := newTestClock()
	svc := newTestAccountService(t, kv, clock)
	ctx := context.Background()

	if _, ok := svc.CurrentSession(); ok {
		t.Fatal("no session expected before login")
	}

	sess, err := svc.Login(ctx, " demo@example.com ", "Demo@123", true)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	want := model.Session{UserID: 1, Email: "demo@example.com", FullName: "Demo User", LoginTime: "3/5/2025, 2:07:09 PM"}
	if sess != want {
		t.Errorf("Login() = %+v, want %+v", sess, want)
	}
	if !svc.HasSession(1) || svc.HasSession(2) {
		t.Error("HasSession() disagrees with the active session")
	}

	// session and remembered email survive a reload
	reloaded := newTestAccountService(t, kv, clock)
	if got, ok := reloaded.CurrentSession(); !ok || got != want {
		t.Errorf("CurrentSession() after reload = %+v, %v", got, ok)
	}
	if email, ok := reloaded.RememberedEmail(); !ok || email != "demo@example.com" {
		t.Errorf("RememberedEmail() = %q, %v", email, ok)
	}

	if err := reloaded.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := reloaded.CurrentSession(); ok {
		t.Error("session still present after Logout")
	}
	if err := reloaded.Logout(ctx); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}

	// remembered email outlives the session
	if _, ok := reloaded.RememberedEmail(); !ok {
		t.Error("Logout should not forget the remembered email")
	}
}

func TestLogin_WithoutRememberKeepsEarlierEmail(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())
	ctx := context.Background()

	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Login(ctx, DemoEmail, DemoPassword, true); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "engine42", false); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	email, _ := svc.RememberedEmail()
	if email != DemoEmail {
		t.Errorf("RememberedEmail() = %q, want %q", email, DemoEmail)
	}
	sess, _ := svc.CurrentSession()
	if sess.Email != "ada@example.com" {
		t.Errorf("the second login should replace the session, got %+v", sess)
	}
}

func TestLogin_FailureLeavesSessionAlone(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())
	ctx := context.Background()

	if _, err := svc.Login(ctx, DemoEmail, "wrong!", true); err == nil {
		t.Fatal("Login() with a wrong password should fail")
	}
	if _, ok := svc.CurrentSession(); ok {
		t.Error("a failed login opened a session")
	}
	if _, ok := svc.RememberedEmail(); ok {
		t.Error("a failed login remembered the email")
	}
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestUpdateProfile_RefreshesSession(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())
	ctx := context.Background()

	sess, _ := svc.Login(ctx, DemoEmail, DemoPassword, false)

	acct, err := svc.UpdateProfile(ctx, 1, " Demo Person ", "person@example.com")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if acct.FullName != "Demo Person" || acct.Email != "person@example.com" {
		t.Errorf("UpdateProfile() = %+v", acct)
	}

	got, _ := svc.CurrentSession()
	if got.FullName != "Demo Person" || got.Email != "person@example.com" || got.LoginTime != sess.LoginTime {
		t.Errorf("session = %+v", got)
	}

	// the new email logs in, the old one is gone
	if _, err := svc.Authenticate(ctx, "person@example.com", DemoPassword); err != nil {
		t.Errorf("login with new email failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, DemoEmail, DemoPassword); !apperror.HasCode(err, apperror.CodeEmailNotFound) {
		t.Errorf("old email error = %v, want EmailNotFound", err)
	}
}

func TestUpdateProfile_Errors(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())
	ctx := context.Background()
	other, _ := svc.Register(ctx, validRegistration())

	tests := []struct {
		name      string
		id        int64
		fullName  string
		email     string
		sentinel  error
		wantField string
	}{
		{"empty name", 1, " ", "demo@example.com", apperror.ErrValidation, "fullName"},
		{"bad email", 1, "Demo", "demo-at-example", apperror.ErrValidation, "email"},
		{"email of another account", 1, "Demo", other.Email, apperror.ErrConflict, "email"},
		{"unknown account", 999, "Demo", "x@example.com", apperror.ErrNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, tt.id, tt.fullName, tt.email)
			assertAppError(t, err, tt.sentinel, tt.wantField)
		})
	}

	// keeping your own email is fine
	if _, err := svc.UpdateProfile(ctx, 1, "Demo", "DEMO@example.com"); err != nil {
		t.Errorf("UpdateProfile() with own email error = %v", err)
	}
}

func TestUpdateProfile_OtherAccountLeavesSession(t *testing.T) {
	svc := newTestAccountService(t, newMockKV(), newTestClock())
	ctx := context.Background()
	other, _ := svc.Register(ctx, validRegistration())
	svc.Login(ctx, DemoEmail, DemoPassword, false)

	if _, err := svc.UpdateProfile(ctx, other.ID, "Ada King", other.Email); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	sess, _ := svc.CurrentSession()
	if sess.FullName != "Demo User" {
		t.Errorf("session of another account was rewritten: %+v", sess)
	}
}

// =========================================================================
// CHANGE PASSWORD TESTS
// =========================================================================

func TestChangePassword(t *testing.T) {
	clock := newTestClock()
	svc := newTestAccountService(t, newMockKV(), clock)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, 1, DemoPassword, "n3wSecret", "n3wSecret"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := svc.Authenticate(ctx, DemoEmail, "n3wSecret"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, DemoEmail, DemoPassword); !apperror.HasCode(err, apperror.CodeInvalidPassword) {
		t.Errorf("old password error = %v, want InvalidPassword", err)
	}
}

func TestChangePassword_Errors(t *testing.T) {
	tests := []struct {
		name      string
		id        int64
		current   string
		next      string
		confirm   string
		sentinel  error
		wantField string
		wantMsg   string
	}{
		{"wrong current", 1, "nope", "n3wSecret", "n3wSecret", apperror.ErrUnauthorized, "currentPassword", "Current password is incorrect"},
		{"short new", 1, DemoPassword, "abc", "abc", apperror.ErrValidation, "newPassword", "New password must be at least 6 characters"},
		{"mismatch", 1, DemoPassword, "n3wSecret", "n3wSecreT", apperror.ErrValidation, "confirmNewPassword", "Passwords do not match"},
		{"unknown account", 77, DemoPassword, "n3wSecret", "", apperror.ErrNotFound, "", "user not found with id 77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAccountService(t, newMockKV(), newTestClock())

			err := svc.ChangePassword(context.Background(), tt.id, tt.current, tt.next, tt.confirm)
			appErr := assertAppError(t, err, tt.sentinel, tt.wantField)
			if appErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", appErr.Message, tt.wantMsg)
			}

			// the old password still works
			if _, err := svc.Authenticate(context.Background(), DemoEmail, DemoPassword); err != nil {
				t.Errorf("old password stopped working: %v", err)
			}
		})
	}
}

// =========================================================================
// HELPER FUNCTION TESTS
// =========================================================================

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     Strength
	}{
		{"", StrengthNone},
		{"Ab1!x", StrengthNone},
		{"abcdef", StrengthWeak},
		{"abcdefgh", StrengthWeak},
		{"abcdefg1", StrengthMedium},
		{"Abcdef", StrengthWeak},
		{"Abcdefgh", StrengthMedium},
		{"Abcdefg1", StrengthStrong},
		{"Demo@123", StrengthStrong},
		{"пароль12", StrengthStrong},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := PasswordStrength(tt.password); got != tt.want {
				t.Errorf("PasswordStrength(%q) = %q, want %q", tt.password, got, tt.want)
			}
		})
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"Demo User", "DU"},
		{"ada", "A"},
		{"ada byron lovelace", "AB"},
		{"  spaced  out ", "SO"},
		{"émile zola", "ÉZ"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Initials(tt.name); got != tt.want {
			t.Errorf("Initials(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"demo@example.com", "a.b+c@sub.example.co"}
	invalid := []string{"", "demo", "demo@example", "@example.com", "demo@@example.com", "de mo@example.com"}

	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = false", e)
		}
	}
	for _, e := range invalid {
		if IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = true", e)
		}
	}
}
