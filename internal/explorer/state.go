// Package explorer runs a username search: fetch the profile, then the
// latest repositories, and expose the outcome as one tagged State.
package explorer

import "github.com/sakif/github-explorer/internal/model"

// User-facing failure messages.
const (
	MsgUserNotFound   = "User not found"
	MsgUserFailed     = "Failed to fetch user"
	MsgReposFailed    = "Failed to fetch repositories"
	MsgSomethingWrong = "Something went wrong"
)

// State is exactly one of Idle, Loading, Success or Failure.
type State interface {
	isState()
	// Kind is the tag: "idle", "loading", "success" or "error".
	Kind() string
}

// Idle: no search has started in this browsing session.
type Idle struct{}

// Loading: a search is in flight. Profile is set once the first request
// has succeeded and the repositories are still being fetched.
type Loading struct {
	Profile *model.Profile
}

// Success: both requests succeeded.
type Success struct {
	Profile *model.Profile
	Repos   []model.Repository
}

// Failure: the search ended in an error. Profile is non-nil only when the
// profile was fetched but the repositories were not; the profile stays
// visible next to the error.
type Failure struct {
	Err     error // *apperror.AppError; errors.Is matches its kind
	Message string
	Profile *model.Profile
}

func (Idle) isState()    {}
func (Loading) isState() {}
func (Success) isState() {}
func (Failure) isState() {}

func (Idle) Kind() string    { return "idle" }
func (Loading) Kind() string { return "loading" }
func (Success) Kind() string { return "success" }
func (Failure) Kind() string { return "error" }

// ProfileOf returns the profile visible in s, if any.
func ProfileOf(s State) *model.Profile {
	switch s := s.(type) {
	case Loading:
		return s.Profile
	case Success:
		return s.Profile
	case Failure:
		return s.Profile
	default:
		return nil
	}
}

// stateJSON is the wire form of a State for the JSON API.
type stateJSON struct {
	Kind    string             `json:"kind"`
	Error   string             `json:"error,omitempty"`
	Profile *model.Profile     `json:"profile,omitempty"`
	Repos   []model.Repository `json:"repos"`
}

// ToJSON converts s to its wire form:
// {"kind":..., "error":..., "profile":..., "repos":...}.
func ToJSON(s State) any {
	out := stateJSON{Kind: s.Kind(), Profile: ProfileOf(s)}
	switch s := s.(type) {
	case Success:
		out.Repos = s.Repos
	case Failure:
		out.Error = s.Message
	}
	// Every kind carries a list, empty unless the search succeeded.
	if out.Repos == nil {
		out.Repos = []model.Repository{}
	}
	return out
}
