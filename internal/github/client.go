// Package github is a read-only client for the two public GitHub REST
// endpoints the explorer needs: a user's profile and that user's most
// recently updated repositories.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/github-explorer/internal/metrics"
	"github.com/sakif/github-explorer/internal/model"
)

const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"
	// DefaultRepoPageSize is the fixed number of repositories shown.
	DefaultRepoPageSize = 5
	// SortUpdated orders repositories by most recent update first.
	SortUpdated = "updated"

	userAgent = "github-explorer/1.0"
	// maxBodyBytes bounds how much of a response is decoded.
	maxBodyBytes = 2 << 20
)

// StatusError is a response that arrived with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: %s returned status %d", e.Endpoint, e.StatusCode)
}

// IsNotFound reports whether err is a 404 StatusError.
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ListReposOptions controls GET /users/{login}/repos.
type ListReposOptions struct {
	Sort    string
	PerPage int
}

// Config configures a Client. Zero values select the public API with no
// token and a 10 second timeout.
type Config struct {
	BaseURL string
	// Token, when set, authenticates requests for the higher rate limit.
	Token   string
	Timeout time.Duration
}

// Client talks to the GitHub REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewClient builds a Client. rec may be nil.
func NewClient(cfg Config, logger *slog.Logger, rec metrics.Recorder) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		// oauth2.NewClient wraps the default transport and adds
		// "Authorization: Bearer <token>" to every request.
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = cfg.Timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
		metrics:    rec,
	}
}

// GetUser fetches GET /users/{login}. A 404 comes back as a *StatusError
// for which IsNotFound is true.
func (c *Client) GetUser(ctx context.Context, login string) (*model.Profile, error) {
	var profile model.Profile
	if err := c.getJSON(ctx, "user", "/users/"+url.PathEscape(login), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListRepos fetches GET /users/{login}/repos. The result keeps the order
// the server returned.
func (c *Client) ListRepos(ctx context.Context, login string, opts ListReposOptions) ([]model.Repository, error) {
	q := url.Values{}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	var repos []model.Repository
	if err := c.getJSON(ctx, "repos", "/users/"+url.PathEscape(login)+"/repos", q, &repos); err != nil {
		return nil, err
	}
	if repos == nil {
		repos = []model.Repository{}
	}
	return repos, nil
}

// getJSON performs one GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("github: building %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(endpoint, 0, time.Since(start))
		c.logger.Warn("github request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("github: calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.logger.Info("github returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("remaining", resp.Header.Get("X-RateLimit-Remaining")),
		)
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("github: decoding %s response: %w", endpoint, err)
	}

	return nil
}
