// Package view turns the session, the search tracker and the theme into the
// data a page template renders.
//
// Build is pure: the same Input always produces the same Page. Everything
// that touches the network or cookies happens in the handlers before it.
package view

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/explorer"
	"github.com/sakif/github-explorer/internal/model"
)

const (
	// Title is the application name shown in headings and the tab.
	Title = "Mini GitHub Explorer"

	// HintText is shown when nothing is loading, shown or failing.
	HintText = "Search a username to begin."

	// refreshSeconds is how soon a page showing Loading reloads.
	refreshSeconds = 1
)

// DefaultAvatarHosts are the only hosts avatar images are loaded from.
var DefaultAvatarHosts = []string{"avatars.githubusercontent.com"}

// SignInOption is one "Sign in with ..." button.
type SignInOption struct {
	Label string
	URL   string
}

// Input is everything a page depends on.
type Input struct {
	Dark    bool
	Session *auth.Session // nil when signed out
	SignIn  []SignInOption
	Query   string
	State   explorer.State
	Locale  Locale
}

// ProfileCard is the rendered UserProfile.
type ProfileCard struct {
	Login       string
	Header      string
	Bio         string
	AvatarURL   string // empty when the avatar URL is not allowed
	HTMLURL     string
	PublicRepos int
	Followers   int
	Following   int
}

// RepoRow is one entry of the repository list.
type RepoRow struct {
	ID          int64
	Name        string
	Description string
	HTMLURL     string
	Stars       int
	Updated     string
}

// Summary is the "⭐ N • Updated <date>" line.
func (r RepoRow) Summary() string {
	return "⭐ " + strconv.Itoa(r.Stars) + " • Updated " + r.Updated
}

// Page is what the template renders. Exactly one of the sign-in screen and
// the explorer is shown, selected by SignedIn.
type Page struct {
	Title string
	Dark  bool

	SignedIn bool
	SignIn   []SignInOption
	UserName string

	Query          string
	Loading        bool
	RefreshSeconds int
	Error          string
	ShowHint       bool
	Profile        *ProfileCard
	Repos          []RepoRow
}

// SetDark lets a theme.Store apply the preference to the page.
func (p *Page) SetDark(dark bool) {
	p.Dark = dark
}

// Builder holds what Build needs beyond its Input.
type Builder struct {
	avatarHosts map[string]bool
}

// NewBuilder returns a Builder that renders avatars only from https URLs on
// avatarHosts. A nil or empty list means DefaultAvatarHosts.
func NewBuilder(avatarHosts []string) *Builder {
	if len(avatarHosts) == 0 {
		avatarHosts = DefaultAvatarHosts
	}
	hosts := make(map[string]bool, len(avatarHosts))
	for _, h := range avatarHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = true
		}
	}
	return &Builder{avatarHosts: hosts}
}

// Build composes the page for in.
func (b *Builder) Build(in Input) Page {
	page := Page{
		Title: Title,
		Dark:  in.Dark,
	}

	if in.Session == nil {
		page.SignIn = in.SignIn
		return page
	}

	page.SignedIn = true
	page.UserName = in.Session.DisplayName()
	page.Query = in.Query

	state := in.State
	if state == nil {
		state = explorer.Idle{}
	}

	var repos []model.Repository
	switch s := state.(type) {
	case explorer.Loading:
		page.Loading = true
		page.RefreshSeconds = refreshSeconds
	case explorer.Success:
		repos = s.Repos
	case explorer.Failure:
		page.Error = s.Message
		if page.Error == "" {
			page.Error = explorer.MsgSomethingWrong
		}
	}

	if p := explorer.ProfileOf(state); p != nil {
		page.Profile = b.profileCard(p)
	}

	for _, r := range repos {
		page.Repos = append(page.Repos, RepoRow{
			ID:          r.ID,
			Name:        r.Name,
			Description: deref(r.Description),
			HTMLURL:     safeLink(r.HTMLURL),
			Stars:       r.StargazersCount,
			Updated:     in.Locale.FormatDate(r.UpdatedAt),
		})
	}

	page.ShowHint = !page.Loading && page.Profile == nil && page.Error == ""

	return page
}

func (b *Builder) profileCard(p *model.Profile) *ProfileCard {
	return &ProfileCard{
		Login:       p.Login,
		Header:      p.DisplayName(),
		Bio:         deref(p.Bio),
		AvatarURL:   b.allowedAvatar(p.AvatarURL),
		HTMLURL:     safeLink(p.HTMLURL),
		PublicRepos: p.PublicRepos,
		Followers:   p.Followers,
		Following:   p.Following,
	}
}

// deref returns the text of an optional API field. Bio and description are
// plain text and reach the template unchanged; html/template escapes them.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (b *Builder) allowedAvatar(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return ""
	}
	if !b.avatarHosts[strings.ToLower(u.Hostname())] {
		return ""
	}
	return u.String()
}

// safeLink keeps only http(s) links.
func safeLink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return ""
	}
	return u.String()
}
