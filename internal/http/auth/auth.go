package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/notcool100/financial-management-system/internal/http/respond"
)

// SystemActor is recorded as creator when authentication is disabled.
const SystemActor = "system"

var ErrInvalidToken = errors.New("invalid or missing bearer token")

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// WithActor returns a context carrying the acting user.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// Actor returns the acting user stored by Middleware, or SystemActor.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ctxKey{}).(string); ok && actor != "" {
		return actor
	}

	return SystemActor
}

// Middleware requires an HS256 bearer token signed with secret and stores its
// user_id as the request actor. An empty secret lets every request through
// as SystemActor.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parse(r.Header.Get("Authorization"), []byte(secret))
			if err != nil {
				respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.UserID)))
		})
	}
}

func parse(header string, secret []byte) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueToken signs a token for userID that expires after ttl. The token
// command uses it to mint API tokens.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
