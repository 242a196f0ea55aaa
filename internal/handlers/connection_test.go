package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/cache"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/metrics"
	"github.com/go-authgate/connectgate/internal/models"
	"github.com/go-authgate/connectgate/internal/services"
	"github.com/go-authgate/connectgate/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testBaseURL = "http://localhost:8080"

// fakeProvider serves the token and account endpoints for every provider.
type fakeProvider struct {
	server  *httptest.Server
	revoked atomic.Bool
	slow    atomic.Bool
	calls   atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.slow.Load() {
			time.Sleep(300 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		if f.revoked.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token",
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "acct-1", "email": "owner@example.com"})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) config(cfg auth.ProviderConfig) auth.ProviderConfig {
	cfg.TokenEndpoint = f.server.URL + "/token"
	cfg.AccountEndpoint = f.server.URL + "/account"
	cfg.AuthStyle = oauth2.AuthStyleInParams
	return cfg
}

type handlerEnv struct {
	router   *gin.Engine
	store    *store.Store
	provider *fakeProvider
}

// newHandlerEnv wires a ConnectionHandler with gmail and discord configured
// and slack misconfigured. /test-session exposes the session for assertions.
func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := newFakeProvider(t)
	creds := auth.Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  testBaseURL + "/callback/x",
		Scopes:       []string{"scope.a"},
	}
	registry := auth.NewRegistry(fake.server.Client(), 100*time.Millisecond,
		fake.config(auth.GmailConfig(creds)),
		fake.config(auth.DiscordConfig(creds)),
		auth.SlackConfig(auth.Credentials{}),
	)

	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{OAuthStateTTL: 10 * time.Minute, TokenExpiryLeeway: 30 * time.Second}
	svc := services.NewConnectionService(
		registry, s, cache.NewMemoryCache[models.PendingState](), metrics.NewNoopMetrics(), cfg,
	)
	h := NewConnectionHandler(svc, services.NewStatusReporter(svc), testBaseURL, "/connected")

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/connect/:provider", h.Connect)
	r.GET("/callback/:provider", h.Callback)
	r.GET("/status/:provider", h.Status)
	r.POST("/refresh/:provider", h.Refresh)
	r.POST("/disconnect/:provider", h.Disconnect)
	r.DELETE("/disconnect/:provider", h.Disconnect)
	r.GET("/connections", h.Connections)
	r.GET("/providers", h.Providers)
	r.GET("/test-session", func(c *gin.Context) {
		sess := sessions.Default(c)
		c.JSON(http.StatusOK, gin.H{
			"oauth_state":    sess.Get(sessionOAuthState),
			"oauth_provider": sess.Get(sessionOAuthProvider),
		})
	})

	return &handlerEnv{router: r, store: s, provider: fake}
}

func (e *handlerEnv) do(
	t *testing.T,
	method, target string,
	body *strings.Reader,
	cookies []*http.Cookie,
) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, target, body)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, target, nil)
	}
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// sessionCookies extracts Set-Cookie headers from a response recorder.
func sessionCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	resp := http.Response{Header: w.Header()}
	return resp.Cookies()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	return data
}

func assertErrorKind(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	data := decode(t, w)
	assert.Equal(t, kind, data["error"])
	assert.NotEmpty(t, data["message"])
}

// startConnect runs /connect and returns the issued state and session cookies.
func (e *handlerEnv) startConnect(t *testing.T, provider, query string) (string, []*http.Cookie) {
	t.Helper()
	w := e.do(t, http.MethodGet, "/connect/"+provider+query, nil, nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get("state"), sessionCookies(w)
}

func (e *handlerEnv) seed(t *testing.T, conn *models.Connection) {
	t.Helper()
	_, err := e.store.UpsertConnection(context.Background(), conn)
	require.NoError(t, err)
}

// ============================================================
// Connect
// ============================================================

func TestConnect_RedirectsToProvider(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/connect/gmail?userId=u1", nil, nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", loc.Host)
	q := loc.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.NotEmpty(t, q.Get("state"))

	// The session remembers the issued state.
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test-session", nil)
	for _, c := range sessionCookies(w) {
		req.AddCookie(c)
	}
	sw := httptest.NewRecorder()
	env.router.ServeHTTP(sw, req)
	data := decode(t, sw)
	assert.Equal(t, q.Get("state"), data["oauth_state"])
	assert.Equal(t, "gmail", data["oauth_provider"])
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"unknown provider", "/connect/github", http.StatusBadRequest, services.KindUnknownProvider},
		{
			"misconfigured provider",
			"/connect/slack",
			http.StatusInternalServerError,
			services.KindMisconfiguredProvider,
		},
		{
			"unsafe redirect",
			"/connect/gmail?redirect=https://evil.com/",
			http.StatusBadRequest,
			services.KindInvalidRequest,
		},
		{
			"protocol relative redirect",
			"/connect/gmail?redirect=//evil.com",
			http.StatusBadRequest,
			services.KindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t)
			w := env.do(t, http.MethodGet, tt.target, nil, nil)
			assertErrorKind(t, w, tt.status, tt.kind)
		})
	}
}

// ============================================================
// Callback
// ============================================================

func TestCallback_StoresConnectionAndRedirects(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1&redirect=/settings")

	w := env.do(t, http.MethodGet, "/callback/gmail?code=abc&state="+state, nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/settings?connected=gmail", w.Header().Get("Location"))

	conn, err := env.store.GetConnection(context.Background(), "u1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, "access-token", conn.AccessToken)
	assert.Equal(t, "owner@example.com", conn.Email)
}

func TestCallback_DefaultRedirect(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "discord", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/discord?code=abc&state="+state, nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/connected?connected=discord", w.Header().Get("Location"))
}

func TestCallback_WithoutUserIDUsesAccountEmail(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "gmail", "")

	w := env.do(t, http.MethodGet, "/callback/gmail?code=abc&state="+state, nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)

	_, err := env.store.GetConnection(context.Background(), "owner@example.com", "gmail")
	assert.NoError(t, err)
}

func TestCallback_SessionStateMismatch(t *testing.T) {
	env := newHandlerEnv(t)
	_, cookies := env.startConnect(t, "gmail", "?userId=u1")
	// A second flow issued to another browser.
	otherState, _ := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/gmail?code=abc&state="+otherState, nil, cookies)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindStateMismatch)
	assert.Equal(t, int32(0), env.provider.calls.Load(), "code must not be exchanged")

	_, err := env.store.GetConnection(context.Background(), "u1", "gmail")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestCallback_SessionProviderMismatch(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/discord?code=abc&state="+state, nil, cookies)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindStateMismatch)
	assert.Equal(t, int32(0), env.provider.calls.Load())
}

func TestCallback_ForgedStateWithoutSession(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/callback/gmail?code=abc&state=forged", nil, nil)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindStateMismatch)
	assert.Equal(t, int32(0), env.provider.calls.Load())
}

func TestCallback_ReplayIsRejected(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/gmail?code=abc&state="+state, nil, cookies)
	require.Equal(t, http.StatusFound, w.Code)

	w = env.do(t, http.MethodGet, "/callback/gmail?code=abc&state="+state, nil, sessionCookies(w))
	assertErrorKind(t, w, http.StatusBadRequest, services.KindStateMismatch)
}

func TestCallback_ProviderError(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/gmail?error=access_denied&state="+state, nil, cookies)
	assertErrorKind(t, w, http.StatusBadRequest, kindAccessDenied)
	assert.Equal(t, int32(0), env.provider.calls.Load())
}

func TestCallback_MissingCode(t *testing.T) {
	env := newHandlerEnv(t)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/gmail?state="+state, nil, cookies)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindInvalidRequest)
}

func TestCallback_ExchangeRejected(t *testing.T) {
	env := newHandlerEnv(t)
	env.provider.revoked.Store(true)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/gmail?code=used&state="+state, nil, cookies)
	assertErrorKind(t, w, http.StatusInternalServerError, services.KindExchangeFailed)
	assert.NotContains(t, w.Body.String(), "invalid_grant", "raw provider detail must not leak")
}

func TestCallback_ProviderTimeout(t *testing.T) {
	env := newHandlerEnv(t)
	env.provider.slow.Store(true)
	state, cookies := env.startConnect(t, "gmail", "?userId=u1")

	w := env.do(t, http.MethodGet, "/callback/gmail?code=abc&state="+state, nil, cookies)
	assertErrorKind(t, w, http.StatusGatewayTimeout, services.KindProviderTimeout)
}

func TestCallback_UnknownProvider(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/callback/github?code=abc&state=x", nil, nil)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindUnknownProvider)
}

// ============================================================
// Status, refresh, disconnect
// ============================================================

func TestStatus(t *testing.T) {
	env := newHandlerEnv(t)
	env.seed(t, &models.Connection{
		UserID:       "u1",
		Provider:     "gmail",
		Email:        "u1@example.com",
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	w := env.do(t, http.MethodGet, "/status/gmail?userId=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)
	assert.Equal(t, "gmail", data["provider"])
	assert.Equal(t, true, data["connected"])
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, false, data["needsReauthentication"])
	assert.Equal(t, "u1@example.com", data["email"])

	w = env.do(t, http.MethodGet, "/status/discord?userId=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decode(t, w)
	assert.Equal(t, false, data["connected"])
	assert.Equal(t, true, data["needsReauthentication"])
	assert.Nil(t, data["email"])
}

func TestStatus_MissingUserID(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/status/gmail", nil, nil)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindInvalidRequest)
}

func TestStatus_RevokedRefreshDisconnects(t *testing.T) {
	env := newHandlerEnv(t)
	env.provider.revoked.Store(true)
	env.seed(t, &models.Connection{
		UserID:       "u1",
		Provider:     "gmail",
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	w := env.do(t, http.MethodGet, "/status/gmail?userId=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)
	assert.Equal(t, false, data["connected"])
	assert.Equal(t, true, data["needsReauthentication"])
}

func TestRefresh(t *testing.T) {
	env := newHandlerEnv(t)
	env.seed(t, &models.Connection{
		UserID:       "u1",
		Provider:     "gmail",
		AccessToken:  "old",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	w := env.do(t, http.MethodPost, "/refresh/gmail?userId=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["valid"])

	conn, err := env.store.GetConnection(context.Background(), "u1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, "access-token", conn.AccessToken)
}

func TestRefresh_Errors(t *testing.T) {
	env := newHandlerEnv(t)
	env.seed(t, &models.Connection{
		UserID:      "u1",
		Provider:    "gmail",
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	w := env.do(t, http.MethodPost, "/refresh/gmail?userId=u1", nil, nil)
	assertErrorKind(t, w, http.StatusConflict, services.KindNotRefreshable)

	w = env.do(t, http.MethodPost, "/refresh/discord?userId=u1", nil, nil)
	assertErrorKind(t, w, http.StatusNotFound, services.KindNotConnected)
}

func TestDisconnect(t *testing.T) {
	env := newHandlerEnv(t)
	seed := func() {
		env.seed(t, &models.Connection{UserID: "u1", Provider: "gmail", AccessToken: "a"})
	}

	seed()
	w := env.do(t, http.MethodPost, "/disconnect/gmail", strings.NewReader("userId=u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)
	assert.Equal(t, true, data["success"])
	assert.NotEmpty(t, data["message"])

	_, err := env.store.GetConnection(context.Background(), "u1", "gmail")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	seed()
	w = env.do(t, http.MethodDelete, "/disconnect/gmail?userId=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Disconnecting again is not an error.
	w = env.do(t, http.MethodDelete, "/disconnect/gmail?userId=u1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/disconnect/gmail", nil, nil)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindInvalidRequest)
}

// ============================================================
// Listings
// ============================================================

func TestConnections(t *testing.T) {
	env := newHandlerEnv(t)
	env.seed(t, &models.Connection{
		UserID:      "u1",
		Provider:    "discord",
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	w := env.do(t, http.MethodGet, "/connections?userId=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Connections []services.Status `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Connections, 3)
	assert.Equal(t, "discord", body.Connections[0].Provider)
	assert.True(t, body.Connections[0].Valid)
	assert.Equal(t, "gmail", body.Connections[1].Provider)
	assert.False(t, body.Connections[1].Connected)

	w = env.do(t, http.MethodGet, "/connections", nil, nil)
	assertErrorKind(t, w, http.StatusBadRequest, services.KindInvalidRequest)
}

func TestProviders(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/providers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Providers []auth.ProviderInfo `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Providers, 3)
	assert.True(t, body.Providers[0].Configured)
	assert.Equal(t, "slack", body.Providers[2].ID)
	assert.False(t, body.Providers[2].Configured)
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "/a?connected=gmail", withQuery("/a", "connected", "gmail"))
	assert.Equal(t, "/a?connected=gmail&x=1", withQuery("/a?x=1", "connected", "gmail"))
}
