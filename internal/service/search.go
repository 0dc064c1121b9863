package service

import (
	"context"

	"github.com/sakif/github-explorer/internal/apperror"
	"github.com/sakif/github-explorer/internal/explorer"
)

// MaxQueryLength bounds a username query. GitHub logins are at most 39
// characters; anything far longer cannot match.
const MaxQueryLength = 256

// SearchService runs username searches on behalf of a browsing session.
// Each session (one sign-in) has its own tracker, so two tabs of the same
// sign-in share their result.
type SearchService struct {
	trackers *explorer.Registry
	fetcher  *explorer.Fetcher
}

// NewSearchService wires the service.
func NewSearchService(trackers *explorer.Registry, fetcher *explorer.Fetcher) *SearchService {
	return &SearchService{trackers: trackers, fetcher: fetcher}
}

// Search runs query for sessionID and returns the query and state the page
// should show afterwards. A blank query changes nothing and returns the
// current query and state.
func (s *SearchService) Search(ctx context.Context, sessionID, query string) (string, explorer.State, error) {
	if len(query) > MaxQueryLength {
		return "", nil, apperror.ValidationFailed("q", "query is too long")
	}

	tracker := s.trackers.Get(sessionID)
	s.fetcher.Search(ctx, tracker, query)

	current, state := tracker.Snapshot()
	return current, state, nil
}

// Current returns the last query and state for sessionID without searching.
func (s *SearchService) Current(sessionID string) (string, explorer.State) {
	return s.trackers.Get(sessionID).Snapshot()
}

// End forgets the session's search state (sign-out).
func (s *SearchService) End(sessionID string) {
	s.trackers.Forget(sessionID)
}
