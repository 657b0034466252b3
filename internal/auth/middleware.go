package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/code-debugger/internal/apperror"
)

// CookieName is the cookie that carries the session token for browsers.
const CookieName = "session"

// contextKey is unexported so only this package can read or write the
// session ID stored in a request context.
type contextKey string

const sessionIDKey contextKey = "sessionID"

// RequireSession is a middleware for routes that act on the caller's quiz
// session.
//
// It accepts the token from "Authorization: Bearer <token>" first, then from
// the session cookie. A missing, expired, or invalid token is passed to
// onError as an apperror.ErrUnauthorized error and the chain stops; handlers
// behind this middleware can rely on SessionIDFromContext succeeding.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it:
//
//	req → RequireSession → handler → RequireSession → resp
func RequireSession(tokens *TokenService, onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := tokenFromRequest(r)
			if !ok {
				onError(w, apperror.Unauthorized("a session token is required"))
				return
			}

			sessionID, err := tokens.Validate(raw)
			if err != nil {
				msg := "invalid session token"
				if errors.Is(err, ErrTokenExpired) {
					msg = "session token expired"
				}
				onError(w, apperror.Unauthorized(msg))
				return
			}

			ctx := WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSessionID returns a copy of ctx carrying sessionID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext retrieves the session ID stored by RequireSession.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// SetSessionCookie stores token in an HttpOnly cookie that expires with it.
// HttpOnly keeps page scripts (and any XSS in them) from reading the token.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
		return "", false
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}
