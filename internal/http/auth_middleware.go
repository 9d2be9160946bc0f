package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"epharmacy-auth/internal/domain"
	"epharmacy-auth/internal/service"
)

const (
	authClaimsKey = "auth_claims"
	authTokenKey  = "auth_token"
)

// AuthMiddleware valida el bearer token y guarda claims y token crudo en el
// contexto. Toda denegacion se normaliza a JSON 401, nunca a un redirect.
func AuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "message": "auth not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "status": "failed", "message": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "status": "failed", "message": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Set(authTokenKey, token)
		c.Next()
	}
}

// RequireRole exige el rol exacto; no hay jerarquia ni escalado de admin.
// Ante un rol distinto el token presentado queda revocado ademas del 403:
// una sesion que intenta cruzar de area se fuerza a re-autenticarse.
func RequireRole(tokens *service.TokenService, required domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "status": "failed", "message": "missing token"})
			c.Abort()
			return
		}

		if claims.Role != required {
			if tokens != nil {
				if raw := GetAuthToken(c); raw != "" {
					_ = tokens.Revoke(raw)
				}
			}
			c.JSON(http.StatusForbidden, gin.H{"status": "failed", "message": "insufficient role"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetAuthClaims obtiene los claims del token desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// GetAuthToken obtiene el token crudo presentado en el request.
func GetAuthToken(c *gin.Context) string {
	val, ok := c.Get(authTokenKey)
	if !ok {
		return ""
	}
	token, _ := val.(string)
	return token
}
