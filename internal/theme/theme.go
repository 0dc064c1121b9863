// Package theme keeps the user's dark/light preference.
//
// The preference lives in durable client-side storage (a cookie) under the
// key "theme" and is reflected onto the page being rendered through the
// Document interface. Each request re-reads storage; there is no
// cross-tab synchronisation.
package theme

import (
	"net/http"
	"time"
)

// Preference is the stored value: exactly "dark" or "light".
type Preference string

const (
	Dark  Preference = "dark"
	Light Preference = "light"

	// Key is the storage key the preference is kept under.
	Key = "theme"
)

// Storage is durable key-value storage on the client.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Document is the global presentation state the preference is applied to.
type Document interface {
	SetDark(dark bool)
}

// Store exposes the current preference and a toggle.
type Store struct {
	storage Storage
	doc     Document
	isDark  bool
}

// Load reads the stored preference. A present value is applied to both the
// document and the store; an absent one leaves the default (light) in place
// and writes nothing. doc may be nil.
func Load(storage Storage, doc Document) *Store {
	s := &Store{storage: storage, doc: doc}

	if stored, ok := storage.Get(Key); ok && stored != "" {
		s.isDark = stored == string(Dark)
		s.apply()
	}

	return s
}

// IsDark reports whether the dark theme is active.
func (s *Store) IsDark() bool {
	return s.isDark
}

// Preference returns the active preference.
func (s *Store) Preference() Preference {
	if s.isDark {
		return Dark
	}
	return Light
}

// Toggle flips the preference, applies it to the document at once and
// persists it. A failed write is ignored: the in-memory and document state
// still change.
func (s *Store) Toggle() Preference {
	s.isDark = !s.isDark
	s.apply()
	_ = s.storage.Set(Key, string(s.Preference()))
	return s.Preference()
}

func (s *Store) apply() {
	if s.doc != nil {
		s.doc.SetDark(s.isDark)
	}
}

// CookieStorage is Storage backed by one request's cookies (reads) and its
// response (writes). Writes are also visible to later reads through the
// same value.
type CookieStorage struct {
	r      *http.Request
	w      http.ResponseWriter
	secure bool
	set    map[string]string
}

// NewCookieStorage binds storage to one request/response pair.
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{r: r, w: w, secure: secure, set: make(map[string]string)}
}

func (c *CookieStorage) Get(key string) (string, bool) {
	if v, ok := c.set[key]; ok {
		return v, true
	}
	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (c *CookieStorage) Set(key, value string) error {
	c.set[key] = value
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
