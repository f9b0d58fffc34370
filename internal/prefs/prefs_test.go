package prefs_test

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/d9705996/licenca/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	c := prefs.NewMemory()
	_, ok := c.Get(prefs.ActiveOrgKey)
	assert.False(t, ok)

	c.Set(prefs.ActiveOrgKey, "org-1")
	c.Set(prefs.ActiveOrgKey, "org-2")
	v, ok := c.Get(prefs.ActiveOrgKey)
	require.True(t, ok)
	assert.Equal(t, "org-2", v)

	c.Remove(prefs.ActiveOrgKey)
	_, ok = c.Get(prefs.ActiveOrgKey)
	assert.False(t, ok)
}

// roundTrip sets a value on one response and replays the cookie on a new
// request.
func roundTrip(t *testing.T, s *prefs.Signer, key, value string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	c := s.ForRequest(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	c.Set(key, value)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, prefs.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	return cookies[0]
}

func TestCookieCache_RoundTrip(t *testing.T) {
	s := prefs.NewSigner("secret", false)
	ck := roundTrip(t, s, prefs.ActiveOrgKey, "org-9")

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(ck)
	c := s.ForRequest(httptest.NewRecorder(), req)
	v, ok := c.Get(prefs.ActiveOrgKey)
	require.True(t, ok)
	assert.Equal(t, "org-9", v)
}

func TestCookieCache_WrongSecretReadsAsAbsent(t *testing.T) {
	ck := roundTrip(t, prefs.NewSigner("secret", false), prefs.ActiveOrgKey, "org-9")

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(ck)
	c := prefs.NewSigner("other", false).ForRequest(httptest.NewRecorder(), req)
	_, ok := c.Get(prefs.ActiveOrgKey)
	assert.False(t, ok)
}

func TestCookieCache_TamperedReadsAsAbsent(t *testing.T) {
	s := prefs.NewSigner("secret", false)
	ck := roundTrip(t, s, prefs.ActiveOrgKey, "org-9")
	_, sig, ok := strings.Cut(ck.Value, ".")
	require.True(t, ok)
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"active_org_id":"org-1"}`))

	for _, value := range []string{forged + "." + sig, "garbage", "."} {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.AddCookie(&http.Cookie{Name: prefs.CookieName, Value: value})
		_, found := s.ForRequest(httptest.NewRecorder(), req).Get(prefs.ActiveOrgKey)
		assert.False(t, found, value)
	}
}

func TestCookieCache_RemoveExpiresCookie(t *testing.T) {
	s := prefs.NewSigner("secret", true)
	ck := roundTrip(t, s, prefs.ActiveOrgKey, "org-9")

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(ck)
	w := httptest.NewRecorder()
	s.ForRequest(w, req).Remove(prefs.ActiveOrgKey)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
}

func TestCookieCache_RemoveMissingKeyWritesNothing(t *testing.T) {
	s := prefs.NewSigner("secret", false)
	w := httptest.NewRecorder()
	s.ForRequest(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody)).Remove(prefs.ActiveOrgKey)
	assert.Empty(t, w.Result().Cookies())
}
