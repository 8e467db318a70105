// Package rest provides the HTTP REST API for the email dispatch admin
// backend. This file implements HS256 JWT bearer-token authentication.
//
// # Authentication Flow
//
// Operators obtain a token from POST /api/auth/login by presenting the
// dashboard credentials held in the stored schedule configuration. All
// requests to protected routes must then include
//
//	Authorization: Bearer <compact-JWT>
//
// On any failure the middleware responds with HTTP 401 and a JSON error
// body; it does NOT call the next handler. Failure detail is logged
// server-side only.
package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is the "iss" claim stamped on every issued token.
const tokenIssuer = "email-dispatch-admin"

// contextKey is an unexported type used for context keys in this package to
// avoid collisions with keys defined in other packages.
type contextKey int

const subjectKey contextKey = 0

// SubjectFromContext retrieves the authenticated subject (the operator
// username) injected by the middleware. It returns ("", false) on an
// unauthenticated request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}

// Authenticator issues and verifies HS256 JWTs for the admin API.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	logger *slog.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewAuthenticator creates an Authenticator with the given HMAC secret and
// token lifetime. logger may be nil, in which case slog.Default() is used.
func NewAuthenticator(secret string, ttl time.Duration, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// IssueToken mints a signed token for subject. The returned expiry is the
// "exp" claim value.
func (a *Authenticator) IssueToken(subject string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("rest: sign token: %w", err)
	}
	return token, exp, nil
}

// verify parses and validates a compact token, returning the subject claim.
// Only HMAC signing methods are accepted.
func (a *Authenticator) verify(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return a.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Middleware enforces bearer-token authentication. On success the subject
// is stored in the request context (retrieve with SubjectFromContext) and
// the request is forwarded; on failure the response is HTTP 401 and next is
// never called.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := a.verify(strings.TrimPrefix(raw, "Bearer "))
		if err != nil {
			a.logger.Warn("authentication failed",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
