package explorer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/github-explorer/internal/apperror"
	"github.com/sakif/github-explorer/internal/github"
	"github.com/sakif/github-explorer/internal/model"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAPI struct {
	mu        sync.Mutex
	profiles  map[string]*model.Profile
	repos     map[string][]model.Repository
	userErr   error
	reposErr  error
	userCalls []string
	repoCalls []string
	repoOpts  github.ListReposOptions

	// block, when set for a login, holds GetUser until the channel closes.
	block map[string]chan struct{}
}

func (f *fakeAPI) GetUser(ctx context.Context, login string) (*model.Profile, error) {
	f.mu.Lock()
	f.userCalls = append(f.userCalls, login)
	wait := f.block[login]
	f.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if f.userErr != nil {
		return nil, f.userErr
	}
	p, ok := f.profiles[login]
	if !ok {
		return nil, &github.StatusError{Endpoint: "user", StatusCode: http.StatusNotFound}
	}
	return p, nil
}

func (f *fakeAPI) ListRepos(ctx context.Context, login string, opts github.ListReposOptions) ([]model.Repository, error) {
	f.mu.Lock()
	f.repoCalls = append(f.repoCalls, login)
	f.repoOpts = opts
	f.mu.Unlock()

	if f.reposErr != nil {
		return nil, f.reposErr
	}
	return f.repos[login], nil
}

func strPtr(s string) *string { return &s }

func octocat() *model.Profile {
	return &model.Profile{
		Login:       "octocat",
		Name:        strPtr("The Octocat"),
		AvatarURL:   "https://avatars.githubusercontent.com/u/583231?v=4",
		HTMLURL:     "https://github.com/octocat",
		PublicRepos: 8,
		Followers:   4000,
		Following:   9,
	}
}

func octocatRepos() []model.Repository {
	return []model.Repository{
		{ID: 1, Name: "Hello-World", StargazersCount: 2500, HTMLURL: "https://github.com/octocat/Hello-World",
			UpdatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Spoon-Knife", StargazersCount: 12000, HTMLURL: "https://github.com/octocat/Spoon-Knife",
			UpdatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func newOctocatAPI() *fakeAPI {
	return &fakeAPI{
		profiles: map[string]*model.Profile{"octocat": octocat()},
		repos:    map[string][]model.Repository{"octocat": octocatRepos()},
	}
}

func TestSearch_Success(t *testing.T) {
	api := newOctocatAPI()
	f := NewFetcher(api, discardLogger, nil)
	tr := NewTracker()

	state, started := f.Search(context.Background(), tr, "octocat")
	require.True(t, started)

	success, ok := state.(Success)
	require.True(t, ok, "want Success, got %T", state)
	assert.Equal(t, "octocat", success.Profile.Login)
	assert.Len(t, success.Repos, 2)
	assert.Equal(t, "Hello-World", success.Repos[0].Name)

	assert.Equal(t, []string{"octocat"}, api.userCalls)
	assert.Equal(t, []string{"octocat"}, api.repoCalls)
	assert.Equal(t, github.SortUpdated, api.repoOpts.Sort)
	assert.Equal(t, 5, api.repoOpts.PerPage)

	query, snap := tr.Snapshot()
	assert.Equal(t, "octocat", query)
	assert.Equal(t, "success", snap.Kind())
}

func TestSearch_TrimsQuery(t *testing.T) {
	api := newOctocatAPI()
	f := NewFetcher(api, discardLogger, nil)

	state, started := f.Search(context.Background(), NewTracker(), "  octocat \t")

	require.True(t, started)
	assert.Equal(t, "success", state.Kind())
	assert.Equal(t, []string{"octocat"}, api.userCalls)
	assert.Equal(t, []string{"octocat"}, api.repoCalls)
}

func TestSearch_BlankQueryIsNoOp(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "empty", query: ""},
		{name: "spaces", query: "   "},
		{name: "tabs and newlines", query: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newOctocatAPI()
			f := NewFetcher(api, discardLogger, nil)
			tr := NewTracker()

			state, started := f.Search(context.Background(), tr, tt.query)

			assert.False(t, started)
			assert.Equal(t, "idle", state.Kind())
			assert.Empty(t, api.userCalls)
			assert.Empty(t, api.repoCalls)
		})
	}
}

func TestSearch_BlankQueryKeepsPreviousResult(t *testing.T) {
	api := newOctocatAPI()
	f := NewFetcher(api, discardLogger, nil)
	tr := NewTracker()

	_, _ = f.Search(context.Background(), tr, "octocat")
	state, started := f.Search(context.Background(), tr, "  ")

	assert.False(t, started)
	assert.Equal(t, "success", state.Kind())
	assert.Len(t, api.userCalls, 1)
}

func TestSearch_UserNotFound(t *testing.T) {
	api := newOctocatAPI()
	f := NewFetcher(api, discardLogger, nil)

	state, _ := f.Search(context.Background(), NewTracker(), "no-such-user-xyz")

	failure, ok := state.(Failure)
	require.True(t, ok, "want Failure, got %T", state)
	assert.Equal(t, MsgUserNotFound, failure.Message)
	assert.Nil(t, failure.Profile)
	assert.True(t, errors.Is(failure.Err, apperror.ErrNotFound))
	assert.Empty(t, api.repoCalls, "repositories must not be requested after a failed profile")
}

func TestSearch_UserStatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			api := newOctocatAPI()
			api.userErr = &github.StatusError{Endpoint: "user", StatusCode: status}
			f := NewFetcher(api, discardLogger, nil)

			state, _ := f.Search(context.Background(), NewTracker(), "octocat")

			failure, ok := state.(Failure)
			require.True(t, ok)
			assert.Equal(t, MsgUserFailed, failure.Message)
			assert.True(t, errors.Is(failure.Err, apperror.ErrUpstream))
			assert.Empty(t, api.repoCalls)
		})
	}
}

func TestSearch_UserNetworkError(t *testing.T) {
	api := newOctocatAPI()
	api.userErr = errors.New("dial tcp: connection refused")
	f := NewFetcher(api, discardLogger, nil)

	state, _ := f.Search(context.Background(), NewTracker(), "octocat")

	failure, ok := state.(Failure)
	require.True(t, ok)
	assert.Equal(t, "dial tcp: connection refused", failure.Message)
	assert.True(t, errors.Is(failure.Err, apperror.ErrNetwork))
	assert.Nil(t, failure.Profile)
}

func TestSearch_ReposFailureKeepsProfile(t *testing.T) {
	tests := []struct {
		name     string
		reposErr error
		wantMsg  string
		wantKind error
	}{
		{
			name:     "error status",
			reposErr: &github.StatusError{Endpoint: "repos", StatusCode: http.StatusInternalServerError},
			wantMsg:  MsgReposFailed,
			wantKind: apperror.ErrUpstream,
		},
		{
			name:     "transport error",
			reposErr: errors.New("unexpected EOF"),
			wantMsg:  "unexpected EOF",
			wantKind: apperror.ErrNetwork,
		},
		{
			name:     "error without message",
			reposErr: errors.New(""),
			wantMsg:  MsgSomethingWrong,
			wantKind: apperror.ErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newOctocatAPI()
			api.reposErr = tt.reposErr
			f := NewFetcher(api, discardLogger, nil)

			state, _ := f.Search(context.Background(), NewTracker(), "octocat")

			failure, ok := state.(Failure)
			require.True(t, ok, "want Failure, got %T", state)
			assert.Equal(t, tt.wantMsg, failure.Message)
			require.NotNil(t, failure.Profile)
			assert.Equal(t, "octocat", failure.Profile.Login)
			assert.True(t, errors.Is(failure.Err, tt.wantKind))
		})
	}
}

func TestSearch_UserErrorWithoutMessage(t *testing.T) {
	api := newOctocatAPI()
	api.userErr = errors.New("")
	f := NewFetcher(api, discardLogger, nil)

	state, _ := f.Search(context.Background(), NewTracker(), "octocat")

	failure, ok := state.(Failure)
	require.True(t, ok, "want Failure, got %T", state)
	assert.Equal(t, MsgSomethingWrong, failure.Message)
	assert.Nil(t, failure.Profile)
	assert.True(t, errors.Is(failure.Err, apperror.ErrUnknown))
	assert.Empty(t, api.repoCalls)
}

func TestSearch_ReposNotFoundIsNotUserNotFound(t *testing.T) {
	api := newOctocatAPI()
	api.reposErr = &github.StatusError{Endpoint: "repos", StatusCode: http.StatusNotFound}
	f := NewFetcher(api, discardLogger, nil)

	state, _ := f.Search(context.Background(), NewTracker(), "octocat")

	failure, ok := state.(Failure)
	require.True(t, ok)
	assert.Equal(t, MsgReposFailed, failure.Message)
	assert.NotNil(t, failure.Profile)
}

func TestSearch_NewSearchClearsPreviousError(t *testing.T) {
	api := newOctocatAPI()
	f := NewFetcher(api, discardLogger, nil)
	tr := NewTracker()

	state, _ := f.Search(context.Background(), tr, "ghost-user")
	require.Equal(t, "error", state.Kind())

	state, _ = f.Search(context.Background(), tr, "octocat")
	assert.Equal(t, "success", state.Kind())
}

func TestSearch_StaleResultIsDiscarded(t *testing.T) {
	api := newOctocatAPI()
	api.profiles["slow"] = &model.Profile{Login: "slow"}
	release := make(chan struct{})
	api.block = map[string]chan struct{}{"slow": release}
	f := NewFetcher(api, discardLogger, nil)
	tr := NewTracker()

	done := make(chan State, 1)
	go func() {
		state, _ := f.Search(context.Background(), tr, "slow")
		done <- state
	}()

	// Wait until the first search is in flight.
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.userCalls) == 1
	}, time.Second, 5*time.Millisecond)

	state, _ := f.Search(context.Background(), tr, "octocat")
	require.Equal(t, "success", state.Kind())

	close(release)
	stale := <-done

	// The slow search finishes last but must not overwrite the newer result.
	success, ok := stale.(Success)
	require.True(t, ok, "want Success, got %T", stale)
	assert.Equal(t, "octocat", success.Profile.Login)

	query, current := tr.Snapshot()
	assert.Equal(t, "octocat", query)
	assert.Equal(t, "octocat", ProfileOf(current).Login)
}

func TestTracker_CommitRejectsOldGeneration(t *testing.T) {
	tr := NewTracker()
	first := tr.begin("a")
	second := tr.begin("b")

	assert.False(t, tr.commit(first, Success{Profile: &model.Profile{Login: "a"}}))
	assert.True(t, tr.commit(second, Success{Profile: &model.Profile{Login: "b"}}))

	_, state := tr.Snapshot()
	assert.Equal(t, "b", ProfileOf(state).Login)
}

func TestTracker_BeginResetsToLoading(t *testing.T) {
	tr := NewTracker()
	gen := tr.begin("octocat")
	tr.commit(gen, Failure{Message: MsgUserNotFound})

	tr.begin("octocat")
	_, state := tr.Snapshot()
	loading, ok := state.(Loading)
	require.True(t, ok)
	assert.Nil(t, loading.Profile)
}
