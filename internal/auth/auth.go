// Package auth is the bearer-token capability: it turns a credential into
// {userId, role} and gates role-restricted routes. Everything else in the
// system consumes only the Identity it produces.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
)

// Identity is what a verified credential yields.
type Identity struct {
	UserID string
	Role   entity.Role
}

type contextKey struct{}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the identity, for tests and
// internal callers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies bearer tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret, ttl: 24 * time.Hour}
}

// IssueToken signs a token carrying the user id and role.
func (a *Authenticator) IssueToken(userID string, role entity.Role) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Verify parses and validates a bearer token.
func (a *Authenticator) Verify(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.KindUnauthorized, "unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "token is not valid")
	}
	return Identity{UserID: c.Subject, Role: entity.Role(c.Role)}, nil
}

// Middleware extracts the bearer token, verifies it, and stores the
// identity on the request context. When roles are given, the identity's
// role must be one of them.
func (a *Authenticator) Middleware(next http.Handler, roles ...entity.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			unauthorized(w, "no token, authorization denied")
			return
		}

		identity, err := a.Verify(tokenString)
		if err != nil {
			unauthorized(w, "token is not valid")
			return
		}

		if len(roles) > 0 && !hasRole(identity.Role, roles) {
			writeJSONError(w, http.StatusForbidden, "you do not have permission to access this resource")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func hasRole(role entity.Role, allowed []entity.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
