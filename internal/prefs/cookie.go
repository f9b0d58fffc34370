package prefs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// CookieName is the name of the preferences cookie.
const CookieName = "licenca_prefs"

const cookieMaxAge = 365 * 24 * time.Hour

var errInvalidCookie = errors.New("invalid preferences cookie")

// Signer signs and verifies preference cookies.
type Signer struct {
	secret []byte
	secure bool
}

// NewSigner returns a Signer keyed by secret. secure marks issued cookies
// as HTTPS-only.
func NewSigner(secret string, secure bool) *Signer {
	return &Signer{secret: []byte(secret), secure: secure}
}

// CookieCache is a Cache backed by a signed cookie. It is bound to one
// request/response pair; every change is written back with Set-Cookie.
type CookieCache struct {
	signer *Signer
	w      http.ResponseWriter
	values map[string]string
}

// ForRequest loads the preferences carried by r. A missing, tampered, or
// unreadable cookie yields an empty cache.
func (s *Signer) ForRequest(w http.ResponseWriter, r *http.Request) *CookieCache {
	c := &CookieCache{signer: s, w: w, values: map[string]string{}}
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		if vals, err := s.decode(ck.Value); err == nil {
			c.values = vals
		}
	}
	return c
}

func (c *CookieCache) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *CookieCache) Set(key, value string) {
	c.values[key] = value
	c.flush()
}

func (c *CookieCache) Remove(key string) {
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	c.flush()
}

func (c *CookieCache) flush() {
	if len(c.values) == 0 {
		http.SetCookie(c.w, &http.Cookie{
			Name: CookieName, Value: "", Path: "/", HttpOnly: true,
			Secure: c.signer.secure, SameSite: http.SameSiteLaxMode,
			Expires: time.Unix(0, 0), MaxAge: -1,
		})
		return
	}
	value, err := c.signer.encode(c.values)
	if err != nil {
		return
	}
	http.SetCookie(c.w, &http.Cookie{
		Name: CookieName, Value: value, Path: "/", HttpOnly: true,
		Secure: c.signer.secure, SameSite: http.SameSiteLaxMode,
		Expires: time.Now().Add(cookieMaxAge), MaxAge: int(cookieMaxAge.Seconds()),
	})
}

func (s *Signer) encode(values map[string]string) (string, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(payload)
	return p + "." + s.sign(p), nil
}

func (s *Signer) decode(value string) (map[string]string, error) {
	p, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(s.sign(p)), []byte(sig)) {
		return nil, errInvalidCookie
	}
	payload, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return nil, errInvalidCookie
	}
	vals := map[string]string{}
	if err := json.Unmarshal(payload, &vals); err != nil {
		return nil, errInvalidCookie
	}
	return vals, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
