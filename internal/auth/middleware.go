// Package auth holds the request gates in front of the analytics routes:
// the application identity check and the optional principal resolver.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	coreerrors "github.com/aevon-lab/pulse/internal/core/errors"
)

// HeaderAppID carries the client application identifier.
const HeaderAppID = "X-App-Id"

const principalKey = "auth.principal"

// Principal is an authenticated caller.
type Principal struct {
	ID    string
	Role  string
	Token string
}

// AppIdentityGate rejects requests whose X-App-Id does not match appID.
func AppIdentityGate(appID string) gin.HandlerFunc {
	expected := []byte(appID)
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAppID)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, coreerrors.ErrorResponse{
				Error: "Invalid or missing application identifier",
				Code:  coreerrors.CodeInvalidAppID,
			})
			return
		}
		c.Next()
	}
}

// Resolver attaches a Principal to requests that carry a valid bearer token.
// It never rejects: a missing or bad token simply leaves the request a guest.
type Resolver struct {
	tokens *TokenManager
}

// NewResolver creates a resolver backed by tokens.
func NewResolver(tokens *TokenManager) *Resolver {
	return &Resolver{tokens: tokens}
}

// Middleware resolves the principal, if any.
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.Next()
			return
		}

		claims, err := r.tokens.Verify(raw)
		if err != nil {
			slog.Debug("[Auth] Ignoring invalid bearer token", "error", err)
			c.Next()
			return
		}

		c.Set(principalKey, &Principal{ID: claims.Subject, Role: claims.Role, Token: raw})
		c.Next()
	}
}

// PrincipalFrom returns the resolved principal, or nil for guests.
func PrincipalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// Identity reports the token and principal id for limiter keying.
// Both are empty for guests.
func Identity(c *gin.Context) (token, principalID string) {
	if p := PrincipalFrom(c); p != nil {
		return p.Token, p.ID
	}
	return "", ""
}

// RequirePrincipal rejects guests.
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, coreerrors.ErrorResponse{
				Error: "Authentication required",
				Code:  coreerrors.CodeAuthRequired,
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects principals without role. Use after RequirePrincipal.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil || p.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, coreerrors.ErrorResponse{
				Error: "Administrator access required",
				Code:  coreerrors.CodeAdminRequired,
			})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
