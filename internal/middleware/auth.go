package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/auth"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// TokenValidator validates access tokens. *auth.JWTManager satisfies it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*domain.Claims, error)
}

// Authenticate requires a valid Bearer access token and stores the caller as
// a domain.Actor on the context.
func Authenticate(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := tokens.ValidateAccessToken(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has expired", "code": "TOKEN_EXPIRED"})
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(actorKey, actorFor(c, claims))
		c.Next()
	}
}

// OptionalAuthenticate stores the caller when a valid token is presented and
// otherwise lets the request through anonymously.
func OptionalAuthenticate(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			if claims, err := tokens.ValidateAccessToken(strings.TrimSpace(token)); err == nil {
				c.Set(actorKey, actorFor(c, claims))
			}
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after
// Authenticate.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		if !slices.Contains(roles, actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// GetActor returns the authenticated caller, if any.
func GetActor(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

// SetActor stores actor on the context. Tests use it in place of Authenticate.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

func actorFor(c *gin.Context, claims *domain.Claims) domain.Actor {
	return domain.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		DoctorID:  claims.DoctorID,
		PatientID: claims.PatientID,
		IP:        c.ClientIP(),
		RequestID: GetRequestID(c),
	}
}

func actorValue(v any) domain.Actor {
	a, _ := v.(domain.Actor)
	return a
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="telecare"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "UNAUTHORIZED"})
}
