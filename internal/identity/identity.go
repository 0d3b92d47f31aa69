// Package identity resolves the current user's opaque id from a request.
// Nothing past this package sees credentials.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/log"
)

const UserHeader = "X-User-ID"

var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey struct{}

// Resolver verifies HS256 bearer tokens when a secret is set. Without a
// secret it trusts UserHeader, for deployments behind an authenticating proxy.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// UserID returns the authenticated user's id or ErrUnauthenticated.
func (r *Resolver) UserID(req *http.Request) (string, error) {
	if len(r.secret) == 0 {
		return checkID(req.Header.Get(UserHeader))
	}

	auth := req.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return checkID(claims.Subject)
}

func checkID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: no user id", ErrUnauthenticated)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: malformed user id", ErrUnauthenticated)
	}
	return id, nil
}

// Issue signs a token for userID.
func (r *Resolver) Issue(userID string, claims jwt.RegisteredClaims) (string, error) {
	if len(r.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	claims.Subject = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// Middleware rejects unauthenticated requests with 401 and stores the user
// id in the request context for handlers.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := r.UserID(req)
		if err != nil {
			log.FromContext(req.Context()).WithComponent(log.ComponentIdentity).
				InfoContext(req.Context(), "Request rejected", log.FieldError, err, log.FieldPath, req.URL.Path)
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithUserID(req.Context(), id)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the user id stored by Middleware.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
