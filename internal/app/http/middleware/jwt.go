package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	RoleKey   = "role"
)

var errTokenExpired = errors.New("token expired")

// Authenticator verifies Supabase access tokens. Tokens are checked against the
// project's JWKS when one is configured, otherwise against the shared HS256 secret.
type Authenticator struct {
	secret []byte
	keySet oidc.KeySet
	now    func() time.Time
}

func NewAuthenticator(ctx context.Context, secret, jwksURL string) *Authenticator {
	a := &Authenticator{secret: []byte(secret), now: time.Now}
	if jwksURL != "" {
		a.keySet = oidc.NewRemoteKeySet(ctx, jwksURL)
	}
	return a
}

func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header missing")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == authHeader || tokenString == "" {
			unauthorized(c, "Bearer token malformed")
			return
		}

		claims, err := a.verify(c.Request.Context(), tokenString)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		sub, _ := claims["sub"].(string)
		if _, err := uuid.Parse(sub); err != nil {
			unauthorized(c, "Invalid token claims")
			return
		}
		c.Set(UserIDKey, sub)
		if email, ok := claims["email"].(string); ok {
			c.Set(EmailKey, email)
		}
		c.Set(RoleKey, roleOf(claims))
		c.Next()
	}
}

func (a *Authenticator) verify(ctx context.Context, token string) (jwt.MapClaims, error) {
	if a.keySet == nil {
		if len(a.secret) == 0 {
			return nil, errors.New("no JWT secret configured")
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(a.now),
		)
		if err != nil {
			return nil, err
		}
		return claims, nil
	}

	payload, err := a.keySet.VerifySignature(ctx, token)
	if err != nil {
		return nil, err
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("token has no expiry")
	}
	if !a.now().Before(exp.Time) {
		return nil, errTokenExpired
	}
	return claims, nil
}

// roleOf prefers the app_metadata role; the top-level role claim is
// Supabase's database role ("authenticated").
func roleOf(claims jwt.MapClaims) string {
	if md, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := md["role"].(string); ok && role != "" {
			return role
		}
	}
	role, _ := claims["role"].(string)
	return role
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(RoleKey)
		if !exists {
			unauthorized(c, "Role not found in token")
			return
		}

		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied", "code": "forbidden"})
			return
		}

		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "unauthorized"})
}
