package api

import (
	"log/slog"
	"net/http"
)

// Welcome handles GET /.
func (a *API) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bienvenue"})
}

// CreateUser handles POST /users.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "password missing")
		return
	}

	user, err := a.auth.Register(r.Context(), email, password)
	if err != nil {
		// The error text embeds the email; keep the reason fixed and carry
		// the email as its own attr so the redaction layer scrubs it.
		a.audit.logFailure(AuditRegisterFailure, r, "registration refused",
			slog.String("email", email))
		mapRegisterError(w, err)
		return
	}

	a.audit.logEvent(AuditRegister, r, user.ID)
	writeJSON(w, http.StatusOK, UserResponse{Email: user.Email, Message: "user created"})
}

// Login handles POST /sessions.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if !a.auth.ValidLogin(r.Context(), email, password) {
		a.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, ok := a.auth.CreateSession(r.Context(), email)
	if !ok {
		// Fail closed: a store hiccup between verify and session creation
		// is reported as an ordinary login failure.
		a.audit.logFailure(AuditLoginFailure, r, "session creation failed")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	a.writeSessionCookie(w, r, token)
	a.audit.log(AuditLoginSuccess, r, slog.String("email", email))
	writeJSON(w, http.StatusOK, UserResponse{Email: email, Message: "logged in"})
}

// Logout handles DELETE /sessions.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(a.sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	user, ok := a.auth.UserFromSessionID(r.Context(), cookie.Value)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := a.auth.DestroySession(r.Context(), user.ID); err != nil {
		// The session is still live server-side; clearing the cookie here
		// would tell the client it is logged out when it is not.
		a.audit.logFailure(AuditLogout, r, "destroying session failed")
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	a.audit.logEvent(AuditLogout, r, user.ID)
	a.clearSessionCookie(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Profile handles GET /profile. The auth middleware has already resolved
// the user from the session cookie or Basic credentials.
func (a *API) Profile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Email: user.Email})
}

// ResetPasswordToken handles POST /reset_password.
func (a *API) ResetPasswordToken(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	token, err := a.auth.ResetPasswordToken(r.Context(), email)
	if err != nil {
		a.audit.logFailure(AuditPasswordResetRequested, r, "reset token refused")
		mapResetError(w, err)
		return
	}
	a.audit.log(AuditPasswordResetRequested, r, slog.String("email", email))
	writeJSON(w, http.StatusOK, ResetTokenResponse{Email: email, ResetToken: token})
}

// UpdatePassword handles PUT /reset_password.
func (a *API) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	resetToken := r.PostFormValue("reset_token")
	newPassword := r.PostFormValue("new_password")

	if err := a.auth.UpdatePassword(r.Context(), resetToken, newPassword); err != nil {
		a.audit.logFailure(AuditPasswordReset, r, "password update refused")
		mapResetError(w, err)
		return
	}
	a.audit.log(AuditPasswordReset, r, slog.String("email", email))
	writeJSON(w, http.StatusOK, UserResponse{Email: email, Message: "Password updated"})
}
