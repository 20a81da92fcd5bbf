package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/session"
	authtypes "github.com/vasapolrittideah/taskdash-api/services/auth-service/pkg/types"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}

func TestBinder_Attach(t *testing.T) {
	binder := session.NewBinder(session.Options{})
	rec := httptest.NewRecorder()

	binder.Attach(rec, &authtypes.Tokens{AccessToken: "access", RefreshToken: "refresh"})

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)

	access := cookies[session.AccessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, "access", access.Value)
	assert.True(t, access.HttpOnly)
	assert.False(t, access.Secure)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Zero(t, access.MaxAge, "session cookie by default")

	assert.Equal(t, "refresh", cookies[session.RefreshTokenCookie].Value)
}

func TestBinder_AttachProduction(t *testing.T) {
	binder := session.NewBinder(session.Options{
		Secure:     true,
		SameSite:   http.SameSiteStrictMode,
		Persistent: true,
		AccessTTL:  time.Hour,
		RefreshTTL: 240 * time.Hour,
	})
	rec := httptest.NewRecorder()

	binder.Attach(rec, &authtypes.Tokens{AccessToken: "access", RefreshToken: "refresh"})

	cookies := cookiesByName(rec)
	assert.True(t, cookies[session.AccessTokenCookie].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[session.AccessTokenCookie].SameSite)
	assert.Equal(t, 3600, cookies[session.AccessTokenCookie].MaxAge)
	assert.Equal(t, 864000, cookies[session.RefreshTokenCookie].MaxAge)
}

func TestBinder_SameSiteNoneForcesSecure(t *testing.T) {
	binder := session.NewBinder(session.Options{SameSite: http.SameSiteNoneMode})
	rec := httptest.NewRecorder()

	binder.Attach(rec, &authtypes.Tokens{AccessToken: "a", RefreshToken: "r"})

	assert.True(t, cookiesByName(rec)[session.AccessTokenCookie].Secure)
}

func TestBinder_Clear(t *testing.T) {
	binder := session.NewBinder(session.Options{})
	rec := httptest.NewRecorder()

	binder.Clear(rec)

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestBinder_ExtractAccessToken(t *testing.T) {
	binder := session.NewBinder(session.Options{})

	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{name: "cookie", cookie: "from-cookie", want: "from-cookie"},
		{name: "cookie wins over header", cookie: "from-cookie", header: "Bearer from-header", want: "from-cookie"},
		{name: "bearer header", header: "Bearer from-header", want: "from-header"},
		{name: "lower case scheme", header: "bearer from-header", want: "from-header"},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: session.AccessTokenCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			assert.Equal(t, tt.want, binder.ExtractAccessToken(req))
		})
	}
}

func TestBinder_ExtractRefreshToken(t *testing.T) {
	binder := session.NewBinder(session.Options{})

	tests := []struct {
		name   string
		cookie string
		body   string
		header string
		want   string
	}{
		{name: "cookie first", cookie: "c", body: "b", header: "Bearer h", want: "c"},
		{name: "body second", body: "b", header: "Bearer h", want: "b"},
		{name: "header last", header: "Bearer h", want: "h"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: session.RefreshTokenCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			bodyRead := false
			got := binder.ExtractRefreshToken(req, func() string {
				bodyRead = true
				return tt.body
			})

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.cookie == "", bodyRead)
		})
	}
}

func TestBinder_ExtractRefreshTokenWithoutBody(t *testing.T) {
	binder := session.NewBinder(session.Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.Header.Set("Authorization", "Bearer h")

	assert.Equal(t, "h", binder.ExtractRefreshToken(req, nil))
}
