package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/github-explorer/internal/apperror"
	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/explorer"
	"github.com/sakif/github-explorer/internal/theme"
	"github.com/sakif/github-explorer/internal/view"
)

// Searcher runs and reads per-session searches.
type Searcher interface {
	Search(ctx context.Context, sessionID, query string) (string, explorer.State, error)
	Current(sessionID string) (string, explorer.State)
}

// PageHandler serves the server-rendered pages.
//
// Every page is rebuilt from scratch on each request: the theme comes from
// its cookie, the session from the request context, and the search state
// from the session's tracker.
type PageHandler struct {
	builder   *view.Builder
	renderer  *view.Renderer
	searches  Searcher
	providers *auth.Providers
	secure    bool
	logger    *slog.Logger
}

// NewPageHandler wires the handler. secure sets the Secure flag on the
// theme cookie.
func NewPageHandler(
	builder *view.Builder,
	renderer *view.Renderer,
	searches Searcher,
	providers *auth.Providers,
	secure bool,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		builder:   builder,
		renderer:  renderer,
		searches:  searches,
		providers: providers,
		secure:    secure,
		logger:    logger,
	}
}

// HandleHome shows the sign-in screen or the explorer with the session's
// current search state.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	in := h.input(r)
	if in.Session != nil {
		in.Query, in.State = h.searches.Current(in.Session.ID)
	}
	h.render(w, r, in)
}

// HandleSearch runs a search and shows its outcome. Signed-out visitors are
// sent to the sign-in screen.
//
// HTTP: GET /search?q=octocat
func (h *PageHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	in := h.input(r)
	if in.Session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	query, state, err := h.searches.Search(r.Context(), in.Session.ID, r.URL.Query().Get("q"))
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			http.Error(w, appErr.Message, http.StatusBadRequest)
			return
		}
		h.logger.Error("search failed", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	in.Query, in.State = query, state
	h.render(w, r, in)
}

// HandleToggleTheme flips the theme and goes back to the page it came from.
//
// HTTP: POST /theme/toggle
func (h *PageHandler) HandleToggleTheme(w http.ResponseWriter, r *http.Request) {
	store := theme.Load(theme.NewCookieStorage(w, r, h.secure), nil)
	pref := store.Toggle()

	h.logger.Debug("theme toggled", slog.String("theme", string(pref)))

	http.Redirect(w, r, h.returnPath(r), http.StatusSeeOther)
}

// returnPath is the local page named by the Referer. A search page maps to
// "/" so that going back does not run the search again; the tracker still
// holds its result.
func (h *PageHandler) returnPath(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if ref.Path == "/search" {
		return "/"
	}
	return localPath(ref.RequestURI())
}

func (h *PageHandler) input(r *http.Request) view.Input {
	in := view.Input{
		Locale: view.MatchLocale(r.Header.Get("Accept-Language")),
		State:  explorer.Idle{},
	}
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		in.Session = sess
		return in
	}
	for _, p := range h.providers.All() {
		in.SignIn = append(in.SignIn, view.SignInOption{
			Label: "Sign in with " + p.Label(),
			URL:   LoginURL(p.Name(), "/"),
		})
	}
	return in
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, in view.Input) {
	page := h.builder.Build(in)
	// The stored preference, if any, is applied straight onto the page.
	theme.Load(theme.NewCookieStorage(w, r, h.secure), &page)

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, page); err != nil {
		h.logger.Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
