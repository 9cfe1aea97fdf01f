package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieStoreReadAbsent(t *testing.T) {
	store := NewCookieStore("", "", false, 0)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	tok, ok := store.Read(req)
	assert.False(t, ok)
	assert.Empty(t, tok)

	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: ""})
	_, ok = store.Read(req)
	assert.False(t, ok, "empty cookie counts as absent")
}

func TestCookieStoreWriteThenRead(t *testing.T) {
	store := NewCookieStore("cms_session", "example.com", true, http.SameSiteStrictMode)
	rec := httptest.NewRecorder()

	store.Write(rec, "tok-123", Options{HTTPOnly: true, MaxAge: 2 * time.Hour})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "cms_session", c.Name)
	assert.Equal(t, "tok-123", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, 7200, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(c)
	tok, ok := store.Read(req)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", tok)
}

func TestCookieStoreClear(t *testing.T) {
	store := NewCookieStore("", "", false, 0)
	rec := httptest.NewRecorder()

	store.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Less(t, cookies[0].MaxAge, 0)
}
