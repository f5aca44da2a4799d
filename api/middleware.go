package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmcleod/gatehouse/storage"
)

type contextKey int

const userKey contextKey = iota

// AuthMiddleware resolves the current user from the session cookie, or from
// Basic credentials when header auth is enabled, and stores the user on the
// request context. Unresolved requests are refused with 403.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := a.userFromSessionCookie(r); ok {
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !a.basicAuthEnabled {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		user, ok := a.userFromBasicAuth(r)
		if !ok {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) userFromSessionCookie(r *http.Request) (*storage.User, bool) {
	cookie, err := r.Cookie(a.sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return a.auth.UserFromSessionID(r.Context(), cookie.Value)
}

func (a *API) userFromBasicAuth(r *http.Request) (*storage.User, bool) {
	payload := extractHeaderToken(r.Header.Get("Authorization"))
	if payload == "" {
		return nil, false
	}
	decoded, ok := decodePayload(payload)
	if !ok {
		return nil, false
	}
	username, password, ok := splitCredentials(decoded)
	if !ok {
		return nil, false
	}
	return resolveUser(r.Context(), username, password, a.auth.UserFromCredentials)
}

func (a *API) writeSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

func userFromContext(ctx context.Context) *storage.User {
	user, _ := ctx.Value(userKey).(*storage.User)
	return user
}
