package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/config"
)

const testSecret = "server-test-secret-0123456789"

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"login":"octocat","name":"The Octocat","public_repos":8,"followers":4000,"following":9}`)
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":1,"name":"Hello-World","stargazers_count":3,"updated_at":"2024-01-02T00:00:00Z"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gh := fakeGitHub(t)

	cfg, err := config.LoadFrom(map[string]string{
		"SESSION_SECRET":       testSecret,
		"GITHUB_CLIENT_ID":     "gh-id",
		"GITHUB_CLIENT_SECRET": "gh-secret",
		"GOOGLE_CLIENT_ID":     "g-id",
		"GOOGLE_CLIENT_SECRET": "g-secret",
		"GITHUB_API_URL":       gh.URL,
		"DB_PATH":              ":memory:",
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	token, _, err := tokens.Issue("acct-1", &auth.Identity{Provider: auth.ProviderGitHub, Name: "Ada"})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_HomeSignedOut(t *testing.T) {
	s := newTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sign in with Google")
	assert.Contains(t, rr.Body.String(), "Sign in with GitHub")
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "https://avatars.githubusercontent.com")
}

func TestServer_LoginRedirectsToProvider(t *testing.T) {
	s := newTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

	assert.Equal(t, http.StatusFound, rr.Code)
	loc := rr.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://github.com/login/oauth/authorize"), loc)
	assert.Contains(t, loc, "client_id=gh-id")
	assert.Contains(t, loc, "redirect_uri=http%3A%2F%2Flocalhost%3A8080%2Fauth%2Fgithub%2Fcallback")
}

func TestServer_SearchFlow(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=octocat", nil)
	req.AddCookie(cookie)
	rr := serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Query string `json:"query"`
		State struct {
			Kind  string `json:"kind"`
			Repos []struct {
				Name string `json:"name"`
			} `json:"repos"`
		} `json:"state"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "octocat", body.Query)
	assert.Equal(t, "success", body.State.Kind)
	require.Len(t, body.State.Repos, 1)
	assert.Equal(t, "Hello-World", body.State.Repos[0].Name)

	// The page for the same session shows the stored result.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr = serve(s, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Hello-World")
	assert.Contains(t, rr.Body.String(), "Welcome, <strong>Ada</strong>")

	rr = httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `explorer_searches_total{outcome="success"} 1`)
}

func TestServer_MetricsNotOnPublicRouter(t *testing.T) {
	s := newTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Body.String(), "explorer_sign_ins_total")

	rr = httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestServer_APIRequiresSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/search?q=octocat", "/api/search/current"} {
		rr := serve(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestServer_MeWithoutStoredAccount(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(sessionCookie(t))
	rr := serve(s, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_CrossOriginPostRejected(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/theme/toggle", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := serve(s, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/theme/toggle", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rr = serve(s, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestServer_CloseIsIdempotent(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, s.Close())
	assert.NotPanics(t, func() { s.Close() })
}
