package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/metrics"
	"github.com/sakif/github-explorer/internal/model"
	"github.com/sakif/github-explorer/internal/service"
)

const (
	stateCookieName    = "oauth_state"
	callbackCookieName = "oauth_callback"
	flowCookieMaxAge   = 600 // seconds a sign-in may take
)

// SignInService is what AuthHandler needs from the auth service.
type SignInService interface {
	SignIn(ctx context.Context, identity *auth.Identity) (*service.SignInResult, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// SessionEnder forgets per-session state on sign-out.
type SessionEnder interface {
	End(sessionID string)
}

// AuthHandler runs the OAuth sign-in flow for every configured provider.
//
//   - HandleLogin     → redirect to the provider's consent page
//   - HandleCallback  → check state, exchange the code, record the account,
//     set the session cookie, go back to the callback URL
//   - HandleLogout    → clear the session cookie
//   - HandleSession   → the current session as JSON, or null
//   - HandleMe        → the stored account behind the session
type AuthHandler struct {
	providers *auth.Providers
	accounts  SignInService
	sessions  SessionEnder
	tokens    *auth.TokenService
	secure    bool
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewAuthHandler wires the handler. secure sets the Secure flag on every
// cookie it writes. rec may be nil.
func NewAuthHandler(
	providers *auth.Providers,
	accounts SignInService,
	sessions SessionEnder,
	tokens *auth.TokenService,
	secure bool,
	rec metrics.Recorder,
	logger *slog.Logger,
) *AuthHandler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthHandler{
		providers: providers,
		accounts:  accounts,
		sessions:  sessions,
		tokens:    tokens,
		secure:    secure,
		metrics:   rec,
		logger:    logger,
	}
}

// LoginURL is the sign-in link for provider that returns to callbackURL.
func LoginURL(provider, callbackURL string) string {
	return "/auth/" + url.PathEscape(provider) + "/login?callbackUrl=" + url.QueryEscape(localPath(callbackURL))
}

// HandleLogin redirects the browser to the provider.
//
// HTTP: GET /auth/{provider}/login?callbackUrl=/
//
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL; the callback only proceeds when both match. The
// callback URL is kept the same way and is restricted to local paths.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Lookup(chi.URLParam(r, "provider"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	h.setFlowCookie(w, stateCookieName, state)
	h.setFlowCookie(w, callbackCookieName, localPath(r.URL.Query().Get("callbackUrl")))

	http.Redirect(w, r, provider.AuthURL(state), http.StatusFound)
}

// HandleCallback completes the sign-in.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Lookup(chi.URLParam(r, "provider"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", provider.Name()))
		h.metrics.RecordSignIn(provider.Name(), false)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	callback := "/"
	if c, err := r.Cookie(callbackCookieName); err == nil {
		callback = localPath(c.Value)
	}

	// Both flow cookies are single-use.
	h.clearFlowCookie(w, stateCookieName)
	h.clearFlowCookie(w, callbackCookieName)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied",
			slog.String("provider", provider.Name()),
			slog.String("error", errParam),
		)
		h.metrics.RecordSignIn(provider.Name(), false)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.metrics.RecordSignIn(provider.Name(), false)
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	identity, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordSignIn(provider.Name(), false)
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.accounts.SignIn(r.Context(), identity)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordSignIn(provider.Name(), false)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordSignIn(provider.Name(), true)
	auth.SetSessionCookie(w, result.Token, h.tokens.TTL(), h.secure)
	http.Redirect(w, r, callback, http.StatusSeeOther)
}

// HandleLogout clears the session cookie and the session's search state.
//
// HTTP: POST /auth/logout
//
// The token stays valid until it expires, but without the cookie the
// browser no longer presents it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		h.sessions.End(sess.ID)
	}
	auth.ClearSessionCookie(w, h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleSession returns the current session, or null when signed out.
//
// HTTP: GET /api/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, json.RawMessage("null"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleMe returns the stored account behind the session.
//
// HTTP: GET /api/me (RequireSession)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "sign in required"})
		return
	}

	account, err := h.accounts.GetAccountByID(r.Context(), sess.AccountID)
	if err != nil {
		h.logger.Warn("HandleMe: account lookup failed",
			slog.String("account_id", sess.AccountID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *AuthHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth/",
		MaxAge:   flowCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/auth/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
