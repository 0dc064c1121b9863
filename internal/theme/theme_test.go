package theme

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory Storage; failWrites simulates a full or
// blocked store.
type memStorage struct {
	values     map[string]string
	writes     int
	failWrites bool
}

func newMemStorage() *memStorage {
	return &memStorage{values: make(map[string]string)}
}

func (m *memStorage) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *memStorage) Set(key, value string) error {
	m.writes++
	if m.failWrites {
		return errors.New("quota exceeded")
	}
	m.values[key] = value
	return nil
}

// fakeDocument records the presentation state.
type fakeDocument struct {
	dark    bool
	applied int
}

func (d *fakeDocument) SetDark(dark bool) {
	d.dark = dark
	d.applied++
}

func TestLoad_AbsentKeepsLightWithoutWriting(t *testing.T) {
	storage := newMemStorage()
	doc := &fakeDocument{}

	s := Load(storage, doc)

	assert.False(t, s.IsDark())
	assert.Equal(t, Light, s.Preference())
	assert.Equal(t, 0, storage.writes, "Load must not write when nothing is stored")
	assert.Equal(t, 0, doc.applied)
}

func TestLoad_StoredDarkAppliesWithoutToggle(t *testing.T) {
	storage := newMemStorage()
	storage.values[Key] = "dark"
	doc := &fakeDocument{}

	s := Load(storage, doc)

	assert.True(t, s.IsDark())
	assert.True(t, doc.dark)
}

func TestLoad_StoredLight(t *testing.T) {
	storage := newMemStorage()
	storage.values[Key] = "light"
	doc := &fakeDocument{dark: true}

	s := Load(storage, doc)

	assert.False(t, s.IsDark())
	assert.False(t, doc.dark)
}

func TestToggle_TwiceRestoresOriginal(t *testing.T) {
	for _, initial := range []string{"", "light", "dark"} {
		t.Run("initial="+initial, func(t *testing.T) {
			storage := newMemStorage()
			if initial != "" {
				storage.values[Key] = initial
			}
			doc := &fakeDocument{}
			s := Load(storage, doc)
			startDark := doc.dark

			s.Toggle()
			assert.NotEqual(t, startDark, doc.dark)

			s.Toggle()
			assert.Equal(t, startDark, doc.dark)
			assert.Equal(t, startDark, s.IsDark())
			if startDark {
				assert.Equal(t, "dark", storage.values[Key])
			} else {
				assert.Equal(t, "light", storage.values[Key])
			}
		})
	}
}

func TestToggle_PersistsThenReloads(t *testing.T) {
	storage := newMemStorage()
	s := Load(storage, nil)

	got := s.Toggle()
	require.Equal(t, Dark, got)
	assert.Equal(t, "dark", storage.values[Key])

	reloaded := Load(storage, &fakeDocument{})
	assert.True(t, reloaded.IsDark())
}

func TestToggle_WriteFailureIsSilent(t *testing.T) {
	storage := newMemStorage()
	storage.failWrites = true
	doc := &fakeDocument{}
	s := Load(storage, doc)

	got := s.Toggle()

	assert.Equal(t, Dark, got)
	assert.True(t, doc.dark)
	assert.Equal(t, 1, storage.writes)
}

func TestCookieStorage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: Key, Value: "dark"})
	rr := httptest.NewRecorder()

	cs := NewCookieStorage(rr, req, false)

	v, ok := cs.Get(Key)
	require.True(t, ok)
	assert.Equal(t, "dark", v)

	require.NoError(t, cs.Set(Key, "light"))

	v, _ = cs.Get(Key)
	assert.Equal(t, "light", v, "reads after a write see the new value")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, Key, cookies[0].Name)
	assert.Equal(t, "light", cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly)
}
