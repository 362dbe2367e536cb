package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/internal/users"
	"github.com/MrEthical07/goRotate/password"
	"github.com/MrEthical07/goRotate/refresh"
)

type testServer struct {
	*httptest.Server
	engine *goRotate.Engine
	store  *refresh.MemoryStore
}

func newTestServer(t *testing.T, origins ...string) *testServer {
	t.Helper()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	cfg := goRotate.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("http-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("http-refresh-secret-9876543210")

	store := refresh.NewMemoryStore()
	engine, err := goRotate.New().
		WithConfig(cfg).
		WithRefreshStore(store).
		WithIdentityProvider(users.NewMemory(hasher)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	api, err := New(engine, Options{Logger: zerolog.Nop(), AllowedOrigins: origins})
	require.NoError(t, err)

	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, engine: engine, store: store}
}

func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func refreshCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

const signupBody = `{"fullName":"Ada Lovelace","email":"Ada@Example.com","password":"hunter22"}`

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignup(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	resp, body := do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", signupBody)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Signed Up successfully.", body["message"])

	resp, body = do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", signupBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "E-mail address already exists", body["message"])
}

func TestSignupValidation(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing name", body: `{"email":"a@b.com","password":"hunter22"}`, field: "fullName"},
		{name: "bad email", body: `{"fullName":"A","email":"not-an-email","password":"hunter22"}`, field: "email"},
		{name: "short password", body: `{"fullName":"A","email":"a@b.com","password":"  abc  "}`, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			data, ok := body["data"].(map[string]any)
			require.True(t, ok, "validation errors expected, got %v", body)
			assert.Contains(t, data, tt.field)
		})
	}

	resp, body := do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad request", body["message"])
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	resp, _ := do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", signupBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "missing password", body: `{"email":"ada@example.com"}`, wantStatus: http.StatusBadRequest, wantMsg: "Bad request"},
		{name: "unknown email", body: `{"email":"nobody@example.com","password":"hunter22"}`, wantStatus: http.StatusNotFound, wantMsg: "Email does not exists."},
		{name: "wrong password", body: `{"email":"ada@example.com","password":"wrong-one"}`, wantStatus: http.StatusUnauthorized, wantMsg: "Incorrect Password."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, c, http.MethodPost, srv.URL+"/api/v1/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, body["message"])
			assert.Nil(t, refreshCookieFrom(resp))
		})
	}

	resp, body := do(t, c, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email":"ADA@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Success.", body["message"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["userId"])
	assert.EqualValues(t, goRotate.DefaultConfig().JWT.RefreshTTL.Milliseconds(), body["refreshTokenExpiresIn"])
	assert.EqualValues(t, goRotate.DefaultConfig().JWT.AccessTTL.Milliseconds(), body["accessTokenExpiresIn"])

	cookie := refreshCookieFrom(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(goRotate.DefaultConfig().JWT.RefreshTTL.Seconds()), cookie.MaxAge)
}

func TestRefreshRotatesCookie(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", signupBody)
	resp, _ := do(t, c, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email":"ada@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := refreshCookieFrom(resp)
	require.NotNil(t, first)

	resp, body := do(t, c, http.MethodGet, srv.URL+"/api/v1/auth/refreshAccessToken", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Successfully created access token and refresh token", body["message"])
	second := refreshCookieFrom(resp)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	// Replaying the first cookie from another client is reuse.
	replay := &http.Client{}
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/refreshAccessToken", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: first.Value})
	replayResp, err := replay.Do(req)
	require.NoError(t, err)
	defer replayResp.Body.Close()
	assert.Equal(t, StatusTokenInvalid, replayResp.StatusCode)

	// The successor is still good.
	resp, _ = do(t, c, http.MethodGet, srv.URL+"/api/v1/auth/refreshAccessToken", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshWithoutCookie(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, srv.client(t), http.MethodGet, srv.URL+"/api/v1/auth/refreshAccessToken", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated.", body["message"])
}

func TestRefreshWithGarbageCookie(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/refreshAccessToken", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "not-a-jwt"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", signupBody)
	resp, body := do(t, c, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email":"ada@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	userID, _ := body["userId"].(string)
	token := refreshCookieFrom(resp).Value

	resp, body = do(t, c, http.MethodDelete, srv.URL+"/api/v1/auth/logout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Successfully logged out.", body["message"])
	cleared := refreshCookieFrom(resp)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	for _, rec := range srv.store.Records(userID) {
		assert.True(t, rec.Used)
	}

	// The cookie is gone from the jar; the old token is now reused.
	resp, _ = do(t, c, http.MethodGet, srv.URL+"/api/v1/auth/refreshAccessToken", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_, err := srv.engine.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, goRotate.ErrReusedToken)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	do(t, c, http.MethodPut, srv.URL+"/api/v1/auth/signup", signupBody)
	_, body := do(t, c, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email":"ada@example.com","password":"hunter22"}`)
	access, _ := body["accessToken"].(string)
	require.NotEmpty(t, access)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "ada@example.com", me["email"])
	assert.Equal(t, body["userId"], me["userId"])

	resp2, err := http.Get(srv.URL + "/api/v1/auth/me")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{goRotate.ErrReusedToken, StatusTokenInvalid},
		{goRotate.ErrInvalidToken, http.StatusUnauthorized},
		{goRotate.ErrUnknownToken, http.StatusUnauthorized},
		{goRotate.ErrPersistence, http.StatusServiceUnavailable},
		{goRotate.ErrAccountExists, http.StatusConflict},
		{goRotate.ErrUnknownPrincipal, http.StatusNotFound},
		{goRotate.ErrInvalidCredentials, http.StatusUnauthorized},
		{goRotate.ErrValidationFailed, http.StatusBadRequest},
		{goRotate.ErrEngineNotReady, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, mapError(tt.err).status)
		})
	}

	assert.Equal(t, http.StatusUnauthorized, mapTokenError(goRotate.ErrUnknownPrincipal).status)
	assert.Equal(t, StatusTokenInvalid, mapTokenError(goRotate.ErrReusedToken).status)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		wantOrigin      string
		wantCredentials string
	}{
		{name: "none configured", origins: nil, wantOrigin: "", wantCredentials: ""},
		{name: "listed origin", origins: []string{"https://app.example.com"}, wantOrigin: "https://app.example.com", wantCredentials: "true"},
		{name: "unlisted origin", origins: []string{"https://other.example.com"}, wantOrigin: "", wantCredentials: ""},
		{name: "wildcard without credentials", origins: []string{"*"}, wantOrigin: "*", wantCredentials: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.origins...)

			req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", "https://app.example.com")
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, resp.Header.Get("Access-Control-Allow-Credentials"))
		})
	}
}
