package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/reqcontext"
)

// RoleHeader lets an authenticated caller pick which of its token roles the
// request runs as. Without it the request runs as anonymous even when a
// valid token is present, which keeps role elevation an explicit act.
const RoleHeader = "X-API-Role"

// Claims are the token claims this service consumes.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Auth validates bearer tokens and stores the caller's roles in the request
// context. Authentication is optional: requests without a (valid) token
// proceed as anonymous, and per-operation authorization decides what they
// may do.
type Auth struct {
	secret string
	issuer string
}

// NewAuth builds the authentication middleware. An empty secret disables
// token validation entirely; every caller is anonymous then.
func NewAuth(secret, issuer string) *Auth {
	return &Auth{secret: secret, issuer: issuer}
}

// Middleware resolves the caller's role set and effective role.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		roles := a.rolesFromRequest(c)
		ctx := reqcontext.SetRoles(c.Request.Context(), roles)

		effective := reqcontext.AnonymousRole
		if requested := c.Request.Header.Get(RoleHeader); requested != "" {
			if !containsRole(roles, requested) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": gin.H{
						"message": "requested role is not present in the caller's token",
						"code":    "AuthorizationCheckFailed",
					},
				})
				return
			}
			effective = requested
		}
		ctx = reqcontext.SetEffectiveRole(ctx, effective)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (a *Auth) rolesFromRequest(c *gin.Context) []string {
	if a.secret == "" {
		return []string{reqcontext.AnonymousRole}
	}

	authHeader := c.Request.Header.Get("Authorization")
	if authHeader == "" {
		return []string{reqcontext.AnonymousRole}
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := a.validate(token)
	if err != nil {
		logger.WithError(err).Debug("Token validation failed")
		return []string{reqcontext.AnonymousRole}
	}

	// Authenticated callers always keep anonymous in their set: grants to
	// anonymous apply to everyone.
	roles := append([]string{reqcontext.AnonymousRole}, claims.Roles...)
	return roles
}

func (a *Auth) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.secret), nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
