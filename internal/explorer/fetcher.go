package explorer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/github-explorer/internal/apperror"
	"github.com/sakif/github-explorer/internal/github"
	"github.com/sakif/github-explorer/internal/metrics"
	"github.com/sakif/github-explorer/internal/model"
)

// API is the part of the GitHub client the fetcher calls.
type API interface {
	GetUser(ctx context.Context, login string) (*model.Profile, error)
	ListRepos(ctx context.Context, login string, opts github.ListReposOptions) ([]model.Repository, error)
}

// Fetcher runs searches against API and records their outcome in a Tracker.
type Fetcher struct {
	api     API
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewFetcher builds a Fetcher. rec may be nil.
func NewFetcher(api API, logger *slog.Logger, rec metrics.Recorder) *Fetcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Fetcher{api: api, logger: logger, metrics: rec}
}

// Search looks up query and returns the tracker's state afterwards.
//
// A query that is empty after trimming is a no-op: nothing is requested,
// the tracker is untouched and started is false. Otherwise the tracker moves
// to Loading (dropping any earlier result or error) before the first
// request goes out, the profile is fetched, and only then the repositories.
// There is no retry; every failure ends the search.
//
// If a newer search on the same tracker began meanwhile, this search's
// results are discarded and the returned state is the newer one's.
func (f *Fetcher) Search(ctx context.Context, t *Tracker, query string) (state State, started bool) {
	login := strings.TrimSpace(query)
	if login == "" {
		_, current := t.Snapshot()
		return current, false
	}

	gen := t.begin(query)
	outcome := f.run(ctx, t, gen, login)

	if !t.commit(gen, outcome) {
		f.logger.Debug("discarding superseded search", slog.String("query", login))
	}
	f.metrics.RecordSearch(outcomeLabel(outcome))

	_, current := t.Snapshot()
	return current, true
}

func (f *Fetcher) run(ctx context.Context, t *Tracker, gen uint64, login string) State {
	profile, err := f.api.GetUser(ctx, login)
	if err != nil {
		return f.failure(login, err, nil, MsgUserFailed)
	}

	// Show the profile while the repositories load.
	t.commit(gen, Loading{Profile: profile})

	repos, err := f.api.ListRepos(ctx, login, github.ListReposOptions{
		Sort:    github.SortUpdated,
		PerPage: github.DefaultRepoPageSize,
	})
	if err != nil {
		// The profile stays visible beside the error.
		return f.failure(login, err, profile, MsgReposFailed)
	}

	return Success{Profile: profile, Repos: repos}
}

// failure maps err to the user-facing Failure. statusMsg is used for
// non-404 error statuses.
func (f *Fetcher) failure(login string, err error, profile *model.Profile, statusMsg string) Failure {
	var (
		appErr    *apperror.AppError
		statusErr *github.StatusError
	)
	switch {
	case errors.As(err, &statusErr) && statusErr.IsNotFound() && profile == nil:
		appErr = apperror.NotFoundMessage(MsgUserNotFound)
	case errors.As(err, &statusErr):
		appErr = apperror.Upstream(statusMsg, err)
	default:
		appErr = apperror.Network(err)
	}

	f.logger.Info("search failed",
		slog.String("query", login),
		slog.String("message", appErr.Message),
		slog.String("error", err.Error()),
	)

	return Failure{Err: appErr, Message: appErr.Message, Profile: profile}
}

func outcomeLabel(s State) string {
	switch s := s.(type) {
	case Success:
		return "success"
	case Failure:
		switch {
		case errors.Is(s.Err, apperror.ErrNotFound):
			return "not_found"
		case errors.Is(s.Err, apperror.ErrUpstream):
			return "upstream_error"
		case errors.Is(s.Err, apperror.ErrNetwork):
			return "network_error"
		default:
			return "unknown_error"
		}
	default:
		return "unknown_error"
	}
}
