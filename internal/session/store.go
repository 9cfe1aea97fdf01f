package session

import (
	"net/http"
	"time"
)

// Options controls how a token is written. Path is always "/".
type Options struct {
	HTTPOnly bool
	MaxAge   time.Duration
}

// Store moves session tokens between the transport and the codec.
type Store interface {
	Read(r *http.Request) (string, bool)
	Write(w http.ResponseWriter, token string, opts Options)
	Clear(w http.ResponseWriter)
}

type CookieStore struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieStore(name, domain string, secure bool, sameSite http.SameSite) *CookieStore {
	if name == "" {
		name = DefaultCookieName
	}
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &CookieStore{
		Name:     name,
		Domain:   domain,
		Secure:   secure,
		SameSite: sameSite,
	}
}

const DefaultCookieName = "session"

// Read returns the raw token. A missing or empty cookie is an anonymous
// caller, not an error.
func (s *CookieStore) Read(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *CookieStore) Write(w http.ResponseWriter, token string, opts Options) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     "/",
		Domain:   s.Domain,
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: opts.HTTPOnly,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}
