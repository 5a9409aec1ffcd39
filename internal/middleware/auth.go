package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	accountKey contextKey = "account"
	claimsKey  contextKey = "claims"
)

var ErrRevocationDisabled = errors.New("token revocation is not configured")

// Authenticator validates HS256 bearer tokens whose subject is the caller's
// account name. With a non-nil Revocations, logged out tokens are refused
// until they expire.
type Authenticator struct {
	secret  []byte
	revoked Revocations
}

func NewAuthenticator(secret string, revoked Revocations) *Authenticator {
	return &Authenticator{secret: []byte(secret), revoked: revoked}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		// Extract token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := a.validateToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		if a.revoked != nil && claims.ID != "" {
			revoked, err := a.revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				http.Error(w, "Session store unavailable", http.StatusServiceUnavailable)
				return
			}
			if revoked {
				http.Error(w, "Token has been revoked", http.StatusUnauthorized)
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(WithAccount(ctx, claims.Subject)))
	})
}

func (a *Authenticator) validateToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a token for account valid for ttl.
func (a *Authenticator) IssueToken(account string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   account,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Revoke blacklists the token that authenticated ctx for the rest of its
// lifetime.
func (a *Authenticator) Revoke(ctx context.Context) error {
	if a.revoked == nil {
		return ErrRevocationDisabled
	}
	claims, ok := ctx.Value(claimsKey).(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" {
		return errors.New("request carries no revocable token")
	}

	ttl := time.Hour
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return a.revoked.Revoke(ctx, claims.ID, ttl)
}

// WithAccount stores the authenticated account in ctx.
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// Account returns the authenticated account stored in ctx.
func Account(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(accountKey).(string)
	return account, ok
}
