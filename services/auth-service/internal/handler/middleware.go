package handler

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	authtypes "github.com/vasapolrittideah/taskdash-api/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/taskdash-api/shared/ratelimit"
)

type contextKey struct{}

var userClaimsKey = contextKey{}

// ClaimsFromContext returns the access token claims stored by requireAuth.
func ClaimsFromContext(ctx context.Context) (*authtypes.AccessClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*authtypes.AccessClaims)
	return claims, ok
}

// requireAuth rejects the request unless it carries a valid access token.
func (h *authHTTPHandler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.binder.ExtractAccessToken(r)
		if token == "" {
			writeError(w, r, errUnauthorized)
			return
		}

		claims, err := h.tokenUsecase.VerifyAccess(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", claims.UserID)
		})

		ctx := context.WithValue(r.Context(), userClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimiter counts hits per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// rateLimit limits requests per client IP and route. It fails open when the limiter
// backend errors.
func rateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("auth:%s:%s", r.URL.Path, clientIP(r))

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if !result.Allowed {
				seconds := int(math.Ceil(result.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
				writeError(w, r, errRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestIDLogger adds the chi request id to the request's logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
			w.Header().Set(middleware.RequestIDHeader, id)
		}

		next.ServeHTTP(w, r)
	})
}

// realIP rewrites RemoteAddr to the forwarded client address when the direct peer is a
// trusted proxy. Forwarding headers from any other peer are ignored.
func realIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, ok := parseAddr(clientIP(r)); ok && isTrusted(trusted, peer) {
				if forwarded, ok := forwardedClient(r, trusted); ok {
					r.RemoteAddr = forwarded.String()
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient returns the nearest untrusted hop of X-Forwarded-For, falling back
// to X-Real-IP. Entries left of that hop are client supplied and never used.
func forwardedClient(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(strings.TrimSpace(hops[i]))
		if !ok {
			break
		}
		if !isTrusted(trusted, addr) {
			return addr, true
		}
	}

	return parseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP")))
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}

	return addr.Unmap(), true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
