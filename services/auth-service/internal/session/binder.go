// Package session carries tokens between the service and its clients in cookies.
package session

import (
	"net/http"
	"strings"
	"time"

	authtypes "github.com/vasapolrittideah/taskdash-api/services/auth-service/pkg/types"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Options configures the cookies a Binder writes.
type Options struct {
	Secure     bool
	SameSite   http.SameSite
	Domain     string
	Persistent bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Binder attaches token pairs to responses and extracts them from requests.
// It never touches the user store.
type Binder struct {
	opts Options
}

func NewBinder(opts Options) *Binder {
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.SameSite == http.SameSiteNoneMode {
		// Browsers drop SameSite=None cookies without Secure.
		opts.Secure = true
	}

	return &Binder{opts: opts}
}

// Attach sets both tokens as http-only cookies.
func (b *Binder) Attach(w http.ResponseWriter, tokens *authtypes.Tokens) {
	http.SetCookie(w, b.cookie(AccessTokenCookie, tokens.AccessToken, b.opts.AccessTTL))
	http.SetCookie(w, b.cookie(RefreshTokenCookie, tokens.RefreshToken, b.opts.RefreshTTL))
}

// Clear expires both token cookies.
func (b *Binder) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := b.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// ExtractAccessToken reads the access token from its cookie, falling back to the
// Authorization bearer header for non-browser clients.
func (b *Binder) ExtractAccessToken(r *http.Request) string {
	if token := cookieValue(r, AccessTokenCookie); token != "" {
		return token
	}

	return bearerToken(r)
}

// ExtractRefreshToken reads the refresh token from its cookie, then from the request
// body, then from the Authorization bearer header. bodyToken is only called when no
// cookie is present, so a cookie request never has its body read.
func (b *Binder) ExtractRefreshToken(r *http.Request, bodyToken func() string) string {
	if token := cookieValue(r, RefreshTokenCookie); token != "" {
		return token
	}
	if bodyToken != nil {
		if token := strings.TrimSpace(bodyToken()); token != "" {
			return token
		}
	}

	return bearerToken(r)
}

func (b *Binder) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   b.opts.Domain,
		HttpOnly: true,
		Secure:   b.opts.Secure,
		SameSite: b.opts.SameSite,
	}
	if b.opts.Persistent && ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	}

	return c
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	return c.Value
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
