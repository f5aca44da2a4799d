package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/api"
	"github.com/jmcleod/gatehouse/auth"
	"github.com/jmcleod/gatehouse/internal/redact"
	"github.com/jmcleod/gatehouse/storage"
	"github.com/jmcleod/gatehouse/storage/memory"
)

func setupServer(t *testing.T, opts ...api.Option) *httptest.Server {
	t.Helper()
	return setupServerWithStore(t, memory.NewStore(), opts...)
}

func setupServerWithStore(t *testing.T, store storage.UserStore, opts ...api.Option) *httptest.Server {
	t.Helper()
	svc := auth.New(store, auth.WithPasswordHasher(auth.NewBcryptHasher(4)))
	opts = append([]api.Option{
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	a := api.New(svc, opts...)
	r := chi.NewRouter()
	r.Mount("/", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		// Redirects are asserted explicitly, never followed.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doForm(t *testing.T, client *http.Client, method, rawURL string, form url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, rawURL, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func register(t *testing.T, client *http.Client, baseURL, email, password string) {
	t.Helper()
	resp := doForm(t, client, http.MethodPost, baseURL+"/users", url.Values{
		"email":    {email},
		"password": {password},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) {
	t.Helper()
	resp := doForm(t, client, http.MethodPost, baseURL+"/sessions", url.Values{
		"email":    {email},
		"password": {password},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWelcome(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doForm(t, client, http.MethodGet, srv.URL+"/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "Bienvenue", body["message"])
}

func TestCreateUser(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doForm(t, client, http.MethodPost, srv.URL+"/users", url.Values{
		"email":    {"a@b.com"},
		"password": {"pw123"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[api.UserResponse](t, resp)
	assert.Equal(t, "a@b.com", body.Email)
	assert.Equal(t, "user created", body.Message)
}

func TestCreateUserMissingFields(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doForm(t, client, http.MethodPost, srv.URL+"/users", url.Values{
		"password": {"pw123"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email missing", decodeBody[api.ErrorResponse](t, resp).Message)

	resp = doForm(t, client, http.MethodPost, srv.URL+"/users", url.Values{
		"email": {"a@b.com"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "password missing", decodeBody[api.ErrorResponse](t, resp).Message)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	resp := doForm(t, client, http.MethodPost, srv.URL+"/users", url.Values{
		"email":    {"a@b.com"},
		"password": {"other"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already registered", decodeBody[api.ErrorResponse](t, resp).Message)
}

func TestLogin(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	resp := doForm(t, client, http.MethodPost, srv.URL+"/sessions", url.Values{
		"email":    {"a@b.com"},
		"password": {"pw123"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == api.DefaultSessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.NotEmpty(t, sessionCookie.Value)
	assert.True(t, sessionCookie.HttpOnly)

	body := decodeBody[api.UserResponse](t, resp)
	assert.Equal(t, "a@b.com", body.Email)
	assert.Equal(t, "logged in", body.Message)
}

func TestLoginWrongCredentials(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	for name, form := range map[string]url.Values{
		"wrong password": {"email": {"a@b.com"}, "password": {"nope"}},
		"unknown email":  {"email": {"x@y.com"}, "password": {"pw123"}},
		"missing fields": {},
	} {
		resp := doForm(t, client, http.MethodPost, srv.URL+"/sessions", form)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestProfileAndLogoutFlow(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	// No session yet.
	resp := doForm(t, client, http.MethodGet, srv.URL+"/profile", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	login(t, client, srv.URL, "a@b.com", "pw123")

	resp = doForm(t, client, http.MethodGet, srv.URL+"/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@b.com", decodeBody[api.ProfileResponse](t, resp).Email)

	// Logout redirects home and invalidates the session.
	resp = doForm(t, client, http.MethodDelete, srv.URL+"/sessions", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = doForm(t, client, http.MethodGet, srv.URL+"/profile", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// flakyStore delegates to an inner store but fails updates on demand.
type flakyStore struct {
	storage.UserStore
	mu          sync.Mutex
	failUpdates bool
}

func (f *flakyStore) setFailUpdates(v bool) {
	f.mu.Lock()
	f.failUpdates = v
	f.mu.Unlock()
}

func (f *flakyStore) UpdateUser(ctx context.Context, id string, upd storage.UserUpdate) error {
	f.mu.Lock()
	fail := f.failUpdates
	f.mu.Unlock()
	if fail {
		return errors.New("disk failure")
	}
	return f.UserStore.UpdateUser(ctx, id, upd)
}

func TestLogoutStoreFailure(t *testing.T) {
	store := &flakyStore{UserStore: memory.NewStore()}
	srv := setupServerWithStore(t, store)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")
	login(t, client, srv.URL, "a@b.com", "pw123")

	// If the session cannot be destroyed, logout must not pretend it was:
	// no redirect, no cleared cookie.
	store.setFailUpdates(true)
	resp := doForm(t, client, http.MethodDelete, srv.URL+"/sessions", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	// The session is still live once the store recovers.
	store.setFailUpdates(false)
	resp = doForm(t, client, http.MethodGet, srv.URL+"/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@b.com", decodeBody[api.ProfileResponse](t, resp).Email)
}

func TestAuditLogRedactsEmailOnDuplicateRegister(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(redact.NewHandler(slog.NewJSONHandler(&buf, nil), "email", "password"))
	srv := setupServer(t, api.WithLogger(logger))
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	resp := doForm(t, client, http.MethodPost, srv.URL+"/users", url.Values{
		"email":    {"a@b.com"},
		"password": {"pw123"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Contains(t, buf.String(), "registration refused")
	assert.NotContains(t, buf.String(), "a@b.com")
}

func TestLogoutWithoutSession(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doForm(t, client, http.MethodDelete, srv.URL+"/sessions", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSecondLoginInvalidatesOldSession(t *testing.T) {
	srv := setupServer(t)
	first := newClient(t)
	second := newClient(t)

	register(t, first, srv.URL, "a@b.com", "pw123")
	login(t, first, srv.URL, "a@b.com", "pw123")
	// Logging in elsewhere silently invalidates the previous session.
	login(t, second, srv.URL, "a@b.com", "pw123")

	resp := doForm(t, first, http.MethodGet, srv.URL+"/profile", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doForm(t, second, http.MethodGet, srv.URL+"/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@b.com", decodeBody[api.ProfileResponse](t, resp).Email)
}

func TestResetPasswordFlow(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	resp := doForm(t, client, http.MethodPost, srv.URL+"/reset_password", url.Values{
		"email": {"nobody@b.com"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doForm(t, client, http.MethodPost, srv.URL+"/reset_password", url.Values{
		"email": {"a@b.com"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[api.ResetTokenResponse](t, resp)
	assert.Equal(t, "a@b.com", body.Email)
	require.NotEmpty(t, body.ResetToken)

	resp = doForm(t, client, http.MethodPut, srv.URL+"/reset_password", url.Values{
		"email":        {"a@b.com"},
		"reset_token":  {"bad-token"},
		"new_password": {"newpw"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doForm(t, client, http.MethodPut, srv.URL+"/reset_password", url.Values{
		"email":        {"a@b.com"},
		"reset_token":  {body.ResetToken},
		"new_password": {"newpw"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Password updated", decodeBody[api.UserResponse](t, resp).Message)

	login(t, client, srv.URL, "a@b.com", "newpw")
}

func TestCustomSessionCookieName(t *testing.T) {
	srv := setupServer(t, api.WithSessionCookieName("gatehouse_session"))
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	resp := doForm(t, client, http.MethodPost, srv.URL+"/sessions", url.Values{
		"email":    {"a@b.com"},
		"password": {"pw123"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	names := make([]string, 0, 1)
	for _, c := range resp.Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "gatehouse_session")
	assert.NotContains(t, names, api.DefaultSessionCookieName)

	resp = doForm(t, client, http.MethodGet, srv.URL+"/profile", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfileWithBasicAuth(t *testing.T) {
	srv := setupServer(t, api.WithBasicAuth())
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw:123")

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/profile", nil)
	require.NoError(t, err)
	// Password contains a colon; only the first colon separates the pair.
	payload := base64.StdEncoding.EncodeToString([]byte("a@b.com:pw:123"))
	req.Header.Set("Authorization", "Basic "+payload)

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@b.com", decodeBody[api.ProfileResponse](t, resp).Email)

	req, err = http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/profile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("a@b.com:wrong")))
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBasicAuthDisabledByDefault(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "a@b.com", "pw123")

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/profile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("a@b.com:pw123")))

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	// A known path with the wrong method gets an explicit 405, never an
	// undefined response.
	resp := doForm(t, client, http.MethodGet, srv.URL+"/users", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
