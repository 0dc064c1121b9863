package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"

	defaultGitHubUserInfoURL = "https://api.github.com/user"
	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Identity is what a provider tells us about the person who signed in.
type Identity struct {
	Provider       string
	ProviderUserID string
	Login          string
	Name           string
	Email          string
	AvatarURL      string
}

// Provider is one external identity provider.
type Provider interface {
	// Name is the URL-safe identifier used in /auth/{provider}/... routes.
	Name() string
	// Label is shown on the sign-in button.
	Label() string
	// AuthURL is where the browser is sent to approve the sign-in.
	AuthURL(state string) string
	// Exchange trades the callback code for the signed-in Identity.
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ProviderConfig holds the credentials of one OAuth app.
//
// Endpoint and UserInfoURL default to the real provider when left empty;
// tests point them at an httptest server.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// OAuthProvider implements Provider for the authorization-code flow over
// golang.org/x/oauth2. The provider-specific part is the user info decoder.
type OAuthProvider struct {
	name        string
	label       string
	config      *oauth2.Config
	userInfoURL string
	decode      func(r io.Reader) (*Identity, error)
}

// compile-time check that *OAuthProvider implements Provider
var _ Provider = (*OAuthProvider)(nil)

// NewGitHubProvider signs users in with a GitHub OAuth App.
func NewGitHubProvider(cfg ProviderConfig) *OAuthProvider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.GitHub
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGitHubUserInfoURL
	}
	return newOAuthProvider(ProviderGitHub, "GitHub", cfg, []string{"read:user", "user:email"}, decodeGitHubUser)
}

// NewGoogleProvider signs users in with a Google OAuth client.
func NewGoogleProvider(cfg ProviderConfig) *OAuthProvider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.Google
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	return newOAuthProvider(ProviderGoogle, "Google", cfg, []string{"openid", "email", "profile"}, decodeGoogleUser)
}

func newOAuthProvider(name, label string, cfg ProviderConfig, scopes []string, decode func(io.Reader) (*Identity, error)) *OAuthProvider {
	return &OAuthProvider{
		name:  name,
		label: label,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     cfg.Endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		decode:      decode,
	}
}

func (p *OAuthProvider) Name() string  { return p.name }
func (p *OAuthProvider) Label() string { return p.label }

// AuthURL returns the provider's consent URL carrying the CSRF state.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: code → access token → user info.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth/%s: exchanging OAuth code: %w", p.name, err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth/%s: building user info request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth/%s: calling user info endpoint: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth/%s: user info endpoint returned status %d", p.name, resp.StatusCode)
	}

	identity, err := p.decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth/%s: %w", p.name, err)
	}
	identity.Provider = p.name

	return identity, nil
}

// githubUser is the portion of GitHub's GET /user we keep.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func decodeGitHubUser(r io.Reader) (*Identity, error) {
	var u githubUser
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return nil, fmt.Errorf("decoding GitHub user: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("GitHub returned an invalid user (ID = 0)")
	}
	return &Identity{
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Login:          u.Login,
		Name:           u.Name,
		Email:          u.Email,
		AvatarURL:      u.AvatarURL,
	}, nil
}

// googleUser is the OpenID Connect userinfo response.
type googleUser struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func decodeGoogleUser(r io.Reader) (*Identity, error) {
	var u googleUser
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return nil, fmt.Errorf("decoding Google user info: %w", err)
	}
	if u.Sub == "" {
		return nil, fmt.Errorf("empty sub in Google user info")
	}
	return &Identity{
		ProviderUserID: u.Sub,
		Name:           u.Name,
		Email:          u.Email,
		AvatarURL:      u.Picture,
	}, nil
}

// Providers is the ordered set of configured identity providers.
type Providers struct {
	ordered []Provider
}

// NewProviders keeps the given order for the sign-in screen.
func NewProviders(ps ...Provider) *Providers {
	return &Providers{ordered: ps}
}

// All returns the providers in display order.
func (ps *Providers) All() []Provider {
	return ps.ordered
}

// Lookup finds a provider by Name.
func (ps *Providers) Lookup(name string) (Provider, bool) {
	for _, p := range ps.ordered {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
