// Package auth issues and verifies the bearer tokens guarding the
// gateway's API surface, and hashes account passwords.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey int

const claimsKey contextKey = iota

// Claims is the token payload: the account id and its role.
type Claims struct {
	Sub  int64  `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 tokens with a shared secret.
type Provider struct {
	secret []byte
	expiry time.Duration
}

// NewProvider builds a token provider. Expiry applies to logon tokens;
// api keys get their own horizon.
func NewProvider(secret string, expiry time.Duration) *Provider {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Provider{secret: []byte(secret), expiry: expiry}
}

// IssueToken signs a session token for the account.
func (p *Provider) IssueToken(sub int64, role string) (string, error) {
	return p.issue(sub, role, p.expiry)
}

// IssueAPIKey signs a long-lived token for machine callers.
func (p *Provider) IssueAPIKey(sub int64, role string) (string, error) {
	return p.issue(sub, role, 10*365*24*time.Hour)
}

func (p *Provider) issue(sub int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// ParseToken verifies the signature and expiry and returns the claims.
func (p *Provider) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token. Claims of
// accepted requests land in the context for the handlers.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "authorization required")
			return
		}
		claims, err := p.ParseToken(token)
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	// Fall back to a raw token header for simple clients.
	return r.Header.Get("X-Api-Key")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"err_msg": msg}) //nolint:errcheck
}
