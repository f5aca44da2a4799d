package api

// UserResponse is returned from POST /users and POST /sessions.
type UserResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ProfileResponse is returned from GET /profile.
type ProfileResponse struct {
	Email string `json:"email"`
}

// ResetTokenResponse is returned from POST /reset_password.
type ResetTokenResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Message string `json:"message"`
}
