package handlers_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/handlers"
	"github.com/driftware/driftbox/internal/mailer"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage/mock"
	"github.com/driftware/driftbox/internal/testutil"
	"github.com/driftware/driftbox/internal/utils"
)

// testMailer returns a mailer with sending disabled.
func testMailer(t *testing.T) *mailer.Mailer {
	t.Helper()
	return mailer.New("", "driftbox <test@localhost>")
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestSignup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.SignupHandler(db, cfg, testMailer(t))

	rec := postJSON(t, handler, "/api/auth/signup", models.SignupRequest{
		Username: "alice",
		Password: "correct-horse-9!",
		Email:    "Alice@Example.com",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Token == "" {
		t.Fatalf("resp = %+v, want success with token", resp)
	}
	if resp.User.Username != "alice" {
		t.Errorf("Username = %q", resp.User.Username)
	}
	if resp.User.Email == nil || *resp.User.Email != "alice@example.com" {
		t.Errorf("Email = %v, want normalized alice@example.com", resp.User.Email)
	}
	if resp.User.IsVerified {
		t.Error("new account with email should start unverified")
	}

	session, err := database.GetSession(db, resp.Token)
	if err != nil || session == nil {
		t.Fatalf("GetSession(%q) = %v, %v", resp.Token, session, err)
	}

	user, err := database.GetUserByID(db, resp.User.ID)
	if err != nil || user == nil {
		t.Fatalf("GetUserByID: %v, %v", user, err)
	}
	if user.VerificationCode == nil {
		t.Error("verification code was not issued at signup")
	}
	if user.VerificationEmails != 1 {
		t.Errorf("VerificationEmails = %d, want 1", user.VerificationEmails)
	}
}

func TestSignupWithoutEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.SignupHandler(db, cfg, testMailer(t))

	rec := postJSON(t, handler, "/api/auth/signup", models.SignupRequest{
		Username: "nomail",
		Password: "correct-horse-9!",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Email != nil {
		t.Errorf("Email = %v, want nil", resp.User.Email)
	}
}

func TestSignupRejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.SignupHandler(db, cfg, testMailer(t))

	email := "taken@example.com"
	testutil.CreateTestUser(t, db, "taken", &email)

	tests := []struct {
		name string
		req  models.SignupRequest
	}{
		{"short username", models.SignupRequest{Username: "ab", Password: "correct-horse-9!"}},
		{"bad username chars", models.SignupRequest{Username: "bad name!", Password: "correct-horse-9!"}},
		{"weak password", models.SignupRequest{Username: "newuser", Password: "short"}},
		{"blocked word in password", models.SignupRequest{Username: "newuser", Password: "myHELLword9!"}},
		{"duplicate username", models.SignupRequest{Username: "taken", Password: "correct-horse-9!"}},
		{"invalid email", models.SignupRequest{Username: "newuser", Password: "correct-horse-9!", Email: "not-an-email"}},
		{"duplicate email", models.SignupRequest{Username: "newuser", Password: "correct-horse-9!", Email: "taken@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/api/auth/signup", tt.req, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != "VALIDATION_ERROR" {
				t.Errorf("code = %q", resp.Code)
			}
		})
	}
}

func TestSignin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.SigninHandler(db, cfg)

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)

	for _, identifier := range []string{"bob", "bob@example.com"} {
		rec := postJSON(t, handler, "/api/auth/signin", models.SigninRequest{
			Username: identifier,
			Password: "correct-horse-9!",
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("signin as %q: status = %d, body %s", identifier, rec.Code, rec.Body.String())
		}

		var resp models.AuthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.User.ID != user.ID || resp.Token == "" {
			t.Errorf("signin as %q: resp = %+v", identifier, resp)
		}
	}
}

func TestSigninRejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.SigninHandler(db, cfg)

	testutil.CreateTestUser(t, db, "bob", nil)

	tests := []struct {
		name       string
		req        models.SigninRequest
		wantStatus int
		wantCode   string
	}{
		{"wrong password", models.SigninRequest{Username: "bob", Password: "wrong-horse-9!"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown user", models.SigninRequest{Username: "nobody", Password: "correct-horse-9!"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"missing password", models.SigninRequest{Username: "bob"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/api/auth/signin", tt.req, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestSignout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.SignoutHandler(db)

	user := testutil.CreateTestUser(t, db, "bob", nil)
	token := testutil.CreateTestSession(t, db, user.ID)

	rec := postJSON(t, handler, "/api/auth/signout", map[string]any{}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	session, err := database.GetSession(db, token)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session != nil {
		t.Error("session still valid after signout")
	}
}

func TestMe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := middleware.RequireAuth(db)(handlers.MeHandler())

	user := testutil.CreateTestUser(t, db, "bob", nil)
	token := testutil.CreateTestSession(t, db, user.ID)

	rec := doRequest(handler, http.MethodGet, "/api/auth/me", bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"username":"bob"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(handler, http.MethodGet, "/api/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
}

func TestVerifyEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := middleware.RequireAuth(db)(handlers.VerifyEmailHandler(db))

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)
	token := testutil.CreateTestSession(t, db, user.ID)
	if err := database.SetVerificationCode(db, user.ID, "abcd1234", 1); err != nil {
		t.Fatalf("SetVerificationCode: %v", err)
	}

	rec := postJSON(t, handler, "/api/auth/verify-email",
		map[string]string{"code": "wrong000"}, bearer(token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Codes match case-insensitively.
	rec = postJSON(t, handler, "/api/auth/verify-email",
		map[string]string{"code": "ABCD1234"}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := database.GetUserByID(db, user.ID)
	if err != nil || got == nil {
		t.Fatalf("GetUserByID: %v, %v", got, err)
	}
	if !got.IsVerified {
		t.Error("user not marked verified")
	}
	if got.VerificationCode != nil {
		t.Error("verification code not cleared")
	}

	// Verifying an already-verified account succeeds regardless of code.
	rec = postJSON(t, handler, "/api/auth/verify-email",
		map[string]string{"code": "whatever"}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat verify: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestResendCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := middleware.RequireAuth(db)(handlers.ResendCodeHandler(db, cfg, testMailer(t)))

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)
	token := testutil.CreateTestSession(t, db, user.ID)
	if err := database.SetVerificationCode(db, user.ID, "abcd1234", 1); err != nil {
		t.Fatalf("SetVerificationCode: %v", err)
	}

	rec := postJSON(t, handler, "/api/auth/resend-code", map[string]any{}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := database.GetUserByID(db, user.ID)
	if err != nil || got == nil {
		t.Fatalf("GetUserByID: %v, %v", got, err)
	}
	if got.VerificationEmails != 2 {
		t.Errorf("VerificationEmails = %d, want 2", got.VerificationEmails)
	}
	if got.VerificationCode == nil || *got.VerificationCode == "abcd1234" {
		t.Error("code was not rotated")
	}
}

func TestResendCodeDailyCap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := middleware.RequireAuth(db)(handlers.ResendCodeHandler(db, cfg, testMailer(t)))

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)
	token := testutil.CreateTestSession(t, db, user.ID)
	if err := database.SetVerificationCode(db, user.ID, "abcd1234", cfg.VerifyEmailsPerDay); err != nil {
		t.Fatalf("SetVerificationCode: %v", err)
	}

	rec := postJSON(t, handler, "/api/auth/resend-code", map[string]any{}, bearer(token))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestRequestResetNeverLeaksRegistration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.RequestResetHandler(db, cfg, testMailer(t))

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)

	known := postJSON(t, handler, "/api/auth/request-reset",
		map[string]string{"email": "bob@example.com"}, nil)
	unknown := postJSON(t, handler, "/api/auth/request-reset",
		map[string]string{"email": "stranger@example.com"}, nil)

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, want 200 for both", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("responses differ: %s vs %s", known.Body.String(), unknown.Body.String())
	}

	got, err := database.GetUserByID(db, user.ID)
	if err != nil || got == nil {
		t.Fatalf("GetUserByID: %v, %v", got, err)
	}
	if got.ResetToken == nil || got.ResetTokenExpires == nil {
		t.Fatal("reset token was not stored for the registered account")
	}
	if remaining := time.Until(*got.ResetTokenExpires); remaining < 55*time.Minute || remaining > 65*time.Minute {
		t.Errorf("token validity = %v, want about an hour", remaining)
	}
}

func TestResetPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.ResetPasswordHandler(db)

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)
	if err := database.SetResetToken(db, user.ID, "reset-token-1", time.Now().Add(time.Hour), 1); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	rec := postJSON(t, handler, "/api/auth/reset-password",
		map[string]string{"token": "reset-token-1", "password": "brand-new-key-1!"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := database.GetUserByID(db, user.ID)
	if err != nil || got == nil {
		t.Fatalf("GetUserByID: %v, %v", got, err)
	}
	if !utils.VerifyPassword(got.PasswordHash, "brand-new-key-1!") {
		t.Error("new password does not verify")
	}
	if got.ResetToken != nil {
		t.Error("reset token not consumed")
	}

	// The token is single use.
	rec = postJSON(t, handler, "/api/auth/reset-password",
		map[string]string{"token": "reset-token-1", "password": "another-new-key1!"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reuse: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestResetPasswordRejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.ResetPasswordHandler(db)

	email := "bob@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &email)
	if err := database.SetResetToken(db, user.ID, "stale-token", time.Now().Add(-time.Minute), 1); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	tests := []struct {
		name string
		body map[string]string
	}{
		{"expired token", map[string]string{"token": "stale-token", "password": "brand-new-key-1!"}},
		{"unknown token", map[string]string{"token": "no-such-token", "password": "brand-new-key-1!"}},
		{"missing token", map[string]string{"password": "brand-new-key-1!"}},
		{"weak password", map[string]string{"token": "stale-token", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/api/auth/reset-password", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != "VALIDATION_ERROR" {
				t.Errorf("code = %q", resp.Code)
			}
		})
	}

	if !utils.VerifyPassword(testutil.MustGetUser(t, db, user.ID).PasswordHash, "correct-horse-9!") {
		t.Error("password changed despite rejected requests")
	}
}

func TestChangePassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := middleware.RequireAuth(db)(handlers.ChangePasswordHandler(db))

	user := testutil.CreateTestUser(t, db, "bob", nil)
	token := testutil.CreateTestSession(t, db, user.ID)

	rec := postJSON(t, handler, "/api/user/change-password",
		map[string]string{"currentPassword": "wrong-horse-9!", "newPassword": "brand-new-key-1!"},
		bearer(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, handler, "/api/user/change-password",
		map[string]string{"currentPassword": "correct-horse-9!", "newPassword": "brand-new-key-1!"},
		bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := testutil.MustGetUser(t, db, user.ID)
	if !utils.VerifyPassword(got.PasswordHash, "brand-new-key-1!") {
		t.Error("new password does not verify")
	}
}

func TestChangeEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := middleware.RequireAuth(db)(handlers.ChangeEmailHandler(db, testMailer(t)))

	oldEmail := "old@example.com"
	takenEmail := "taken@example.com"
	user := testutil.CreateTestUser(t, db, "bob", &oldEmail)
	testutil.CreateTestUser(t, db, "other", &takenEmail)
	token := testutil.CreateTestSession(t, db, user.ID)
	if err := database.MarkVerified(db, user.ID); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	rec := postJSON(t, handler, "/api/user/change-email",
		map[string]string{"email": "new@example.com", "password": "wrong-horse-9!"},
		bearer(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, handler, "/api/user/change-email",
		map[string]string{"email": "taken@example.com", "password": "correct-horse-9!"},
		bearer(token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("taken email: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, handler, "/api/user/change-email",
		map[string]string{"email": "New@Example.com", "password": "correct-horse-9!"},
		bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := testutil.MustGetUser(t, db, user.ID)
	if got.Email == nil || *got.Email != "new@example.com" {
		t.Errorf("Email = %v, want new@example.com", got.Email)
	}
	if got.IsVerified {
		t.Error("changing email must reset verification")
	}
	if got.VerificationCode == nil {
		t.Error("no fresh verification code issued")
	}
}

func TestDeleteAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := mock.NewMockStorage()
	handler := middleware.RequireAuth(db)(handlers.DeleteAccountHandler(db, store, errorlog.New(db)))

	user := testutil.CreateTestUser(t, db, "bob", nil)
	token := testutil.CreateTestSession(t, db, user.ID)
	f1 := testutil.CreateTestFile(t, db, "delacc01", &user.ID, nil)
	f2 := testutil.CreateTestFile(t, db, "delacc02", &user.ID, nil)

	rec := doRequest(handler, http.MethodDelete, "/api/user/account", bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if got, err := database.GetUserByID(db, user.ID); err != nil || got != nil {
		t.Errorf("GetUserByID after delete = %v, %v", got, err)
	}
	for _, f := range []*models.File{f1, f2} {
		if got, err := database.GetFileByID(db, f.ID); err != nil || got != nil {
			t.Errorf("file %s survived account deletion", f.ID)
		}
	}
	if len(store.Deleted) != 2 {
		t.Errorf("store.Deleted = %v, want both storage objects reclaimed", store.Deleted)
	}
	if session, _ := database.GetSession(db, token); session != nil {
		t.Error("session survived account deletion")
	}
}
