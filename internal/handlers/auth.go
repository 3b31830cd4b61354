package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/mailer"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/utils"
)

// resetTokenValidity is how long a password reset token stays usable.
const resetTokenValidity = time.Hour

func publicUser(u *models.User) models.PublicUser {
	return models.PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsVerified: u.IsVerified,
	}
}

// newSession creates a login session for the user and returns its token.
func newSession(db *sql.DB, cfg *config.Config, user *models.User, r *http.Request) (string, error) {
	token, err := utils.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(cfg.SessionExpiryHrs) * time.Hour),
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := database.CreateSession(db, session); err != nil {
		return "", err
	}
	return token, nil
}

// issueVerificationCode rotates the user's verification code and emails
// it. The send counter enforces the daily resend cap upstream.
func issueVerificationCode(db *sql.DB, mail *mailer.Mailer, user *models.User, sends int) error {
	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return err
	}
	if err := database.SetVerificationCode(db, user.ID, code, sends); err != nil {
		return err
	}
	if user.Email != nil {
		return mail.SendVerificationCode(*user.Email, user.Username, code)
	}
	return nil
}

// SignupHandler registers a new account. Email is optional; accounts
// with an email must verify it before uploads are accepted under the
// account identity.
func SignupHandler(db *sql.DB, cfg *config.Config, mail *mailer.Mailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if v := utils.ValidateUsername(req.Username); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if v := utils.ValidatePassword(req.Password); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		existing, err := database.GetUserByUsername(db, req.Username)
		if err != nil {
			slog.Error("failed to check username", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if existing != nil {
			sendError(w, "Username is already taken", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email != "" {
			if !strings.Contains(email, "@") {
				sendError(w, "Invalid email address", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
			byEmail, err := database.GetUserByEmail(db, email)
			if err != nil {
				slog.Error("failed to check email", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if byEmail != nil {
				sendError(w, "Email is already registered", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
		}

		passwordHash, err := utils.HashPassword(req.Password)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		ip := getClientIP(r)
		user := &models.User{
			Username:     req.Username,
			PasswordHash: passwordHash,
			IPAddress:    &ip,
		}
		if email != "" {
			user.Email = &email
		}

		if err := database.CreateUser(db, user); err != nil {
			slog.Error("failed to create user", "error", err)
			sendError(w, "Failed to create account", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		if user.Email != nil {
			if err := issueVerificationCode(db, mail, user, 1); err != nil {
				slog.Error("failed to send verification email", "error", err, "user_id", user.ID)
			}
		}

		token, err := newSession(db, cfg, user, r)
		if err != nil {
			slog.Error("failed to create session", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("account created", "user_id", user.ID, "username", user.Username, "ip", ip)
		sendJSON(w, http.StatusCreated, models.AuthResponse{
			Success: true,
			Token:   token,
			User:    publicUser(user),
		})
	}
}

// SigninHandler authenticates by username or email.
func SigninHandler(db *sql.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.SigninRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			sendError(w, "Username and password are required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		user, err := database.GetUserByUsernameOrEmail(db, req.Username)
		if err != nil {
			slog.Error("failed to look up user", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if user == nil || !utils.VerifyPassword(user.PasswordHash, req.Password) {
			slog.Warn("failed sign-in attempt", "identifier", req.Username, "ip", getClientIP(r))
			sendError(w, "Invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		if err := database.TouchUser(db, user.ID, getClientIP(r)); err != nil {
			slog.Error("failed to update user activity", "error", err, "user_id", user.ID)
		}

		token, err := newSession(db, cfg, user, r)
		if err != nil {
			slog.Error("failed to create session", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("user signed in", "user_id", user.ID, "ip", getClientIP(r))
		sendJSON(w, http.StatusOK, models.AuthResponse{
			Success: true,
			Token:   token,
			User:    publicUser(user),
		})
	}
}

// SignoutHandler invalidates the presented session.
func SignoutHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		auth := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != "" {
			if err := database.DeleteSession(db, token); err != nil {
				slog.Error("failed to delete session", "error", err)
			}
		}

		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// MeHandler returns the authenticated account.
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		sendJSON(w, http.StatusOK, map[string]any{"user": publicUser(user)})
	}
}

// VerifyEmailHandler confirms the account email with the mailed code.
// Comparison is case-insensitive and the code is single use.
func VerifyEmailHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		var req struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			sendError(w, "Verification code is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if user.IsVerified {
			sendJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
		if user.VerificationCode == nil || !strings.EqualFold(*user.VerificationCode, req.Code) {
			sendError(w, "Invalid verification code", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if err := database.MarkVerified(db, user.ID); err != nil {
			slog.Error("failed to mark user verified", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("email verified", "user_id", user.ID)
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// ResendCodeHandler re-sends the verification code, capped per day.
func ResendCodeHandler(db *sql.DB, cfg *config.Config, mail *mailer.Mailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		if user.Email == nil {
			sendError(w, "Account has no email address", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if user.IsVerified {
			sendError(w, "Email is already verified", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		sends := user.VerificationEmails
		if user.VerificationLastSent == nil || time.Since(*user.VerificationLastSent) > 24*time.Hour {
			sends = 0
		}
		if sends >= cfg.VerifyEmailsPerDay {
			sendError(w, "Too many verification emails today, try again tomorrow", "RATE_LIMITED", http.StatusTooManyRequests)
			return
		}

		if err := issueVerificationCode(db, mail, user, sends+1); err != nil {
			slog.Error("failed to resend verification code", "error", err, "user_id", user.ID)
			sendError(w, "Failed to send verification email", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// RequestResetHandler starts a password reset. The response never
// reveals whether the email is registered.
func RequestResetHandler(db *sql.DB, cfg *config.Config, mail *mailer.Mailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			sendError(w, "Email is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		done := func() {
			sendJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": "If that email is registered, a reset link has been sent",
			})
		}

		user, err := database.GetUserByEmail(db, strings.TrimSpace(strings.ToLower(req.Email)))
		if err != nil {
			slog.Error("failed to look up user for reset", "error", err)
			done()
			return
		}
		if user == nil {
			done()
			return
		}

		sends := user.ResetEmails
		if user.ResetLastSent == nil || time.Since(*user.ResetLastSent) > 24*time.Hour {
			sends = 0
		}
		if sends >= cfg.VerifyEmailsPerDay {
			done()
			return
		}

		token, err := utils.GenerateResetToken()
		if err != nil {
			slog.Error("failed to generate reset token", "error", err)
			done()
			return
		}

		expires := time.Now().Add(resetTokenValidity)
		if err := database.SetResetToken(db, user.ID, token, expires, sends+1); err != nil {
			slog.Error("failed to store reset token", "error", err, "user_id", user.ID)
			done()
			return
		}

		resetURL := strings.TrimSuffix(cfg.PublicURL, "/") + "/reset-password?token=" + token
		if err := mail.SendPasswordReset(*user.Email, user.Username, resetURL); err != nil {
			slog.Error("failed to send reset email", "error", err, "user_id", user.ID)
		}

		done()
	}
}

// ResetPasswordHandler completes a password reset. The token is single
// use and invalidated by the password update.
func ResetPasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			sendError(w, "Reset token is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if v := utils.ValidatePassword(req.Password); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		user, err := database.GetUserByResetToken(db, req.Token)
		if err != nil {
			slog.Error("failed to look up reset token", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if user == nil || user.ResetTokenExpires == nil || user.ResetTokenExpires.Before(time.Now()) {
			sendError(w, "Invalid or expired reset token", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		passwordHash, err := utils.HashPassword(req.Password)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if err := database.UpdatePassword(db, user.ID, passwordHash); err != nil {
			slog.Error("failed to update password", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("password reset completed", "user_id", user.ID)
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// ChangePasswordHandler updates the password for a signed-in user.
func ChangePasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		var req struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if !utils.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
			sendError(w, "Current password is incorrect", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		if v := utils.ValidatePassword(req.NewPassword); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		passwordHash, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if err := database.UpdatePassword(db, user.ID, passwordHash); err != nil {
			slog.Error("failed to update password", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("password changed", "user_id", user.ID)
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// ChangeEmailHandler sets a new email and puts the account back into the
// unverified state until the new address is confirmed.
func ChangeEmailHandler(db *sql.DB, mail *mailer.Mailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email == "" || !strings.Contains(email, "@") {
			sendError(w, "Invalid email address", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if !utils.VerifyPassword(user.PasswordHash, req.Password) {
			sendError(w, "Password is incorrect", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		existing, err := database.GetUserByEmail(db, email)
		if err != nil {
			slog.Error("failed to check email", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if existing != nil && existing.ID != user.ID {
			sendError(w, "Email is already registered", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		code, err := utils.GenerateVerificationCode()
		if err != nil {
			slog.Error("failed to generate verification code", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if err := database.UpdateEmail(db, user.ID, email, code); err != nil {
			slog.Error("failed to update email", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if err := mail.SendVerificationCode(email, user.Username, code); err != nil {
			slog.Error("failed to send verification email", "error", err, "user_id", user.ID)
		}

		slog.Info("email changed, re-verification required", "user_id", user.ID)
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// DeleteAccountHandler removes the signed-in account, its files, and
// their storage objects. Error log references are severed, not deleted.
func DeleteAccountHandler(db *sql.DB, store storage.Backend, errLog *errorlog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		files, err := database.DeleteUserCascade(db, user.ID)
		if err != nil {
			slog.Error("failed to delete account", "error", err, "user_id", user.ID)
			errLog.CaptureError("account_delete", err, map[string]any{"user_id": user.ID})
			sendError(w, "Failed to delete account", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		for _, f := range files {
			if f.UsesStorage && f.StoragePath != "" {
				if err := store.Delete(r.Context(), f.StoragePath); err != nil {
					slog.Warn("failed to delete storage object",
						"file_id", f.ID, "key", f.StoragePath, "error", err)
				}
			}
		}

		slog.Info("account deleted", "user_id", user.ID, "files_removed", len(files))
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
