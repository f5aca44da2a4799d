// Package api exposes the authentication service over HTTP.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/gatehouse/auth"
)

// DefaultSessionCookieName names the session cookie unless overridden via
// WithSessionCookieName.
const DefaultSessionCookieName = "session_id"

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	auth              *auth.Service
	audit             *auditLogger
	metrics           *metricsCollector
	sessionCookieName string
	basicAuthEnabled  bool
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionCookieName overrides the cookie carrying the session token.
func WithSessionCookieName(name string) Option {
	return func(a *API) {
		if name != "" {
			a.sessionCookieName = name
		}
	}
}

// WithBasicAuth enables the Authorization: Basic fallback on
// session-protected routes.
func WithBasicAuth() Option {
	return func(a *API) {
		a.basicAuthEnabled = true
	}
}

// WithAlertFunc installs a callback for login-failure spike alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.metrics = newMetricsCollector(fn)
	}
}

// New creates a new API instance.
func New(svc *auth.Service, opts ...Option) *API {
	a := &API{
		auth:              svc,
		sessionCookieName: DefaultSessionCookieName,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.audit.metrics = a.metrics
	return a
}

// Router returns a chi.Router with all API routes mounted. chi answers 405
// for known paths hit with the wrong method, so no route is left with an
// undefined response.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/", a.Welcome)
	r.Post("/users", a.CreateUser)
	r.Post("/sessions", a.Login)
	r.Delete("/sessions", a.Logout)
	r.With(a.AuthMiddleware).Get("/profile", a.Profile)
	r.Post("/reset_password", a.ResetPasswordToken)
	r.Put("/reset_password", a.UpdatePassword)

	return r
}
