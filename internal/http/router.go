package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"epharmacy-auth/internal/domain"
	"epharmacy-auth/internal/service"
)

// dbPinger cubre lo que el healthcheck necesita de pgxpool.Pool.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	tokens *service.TokenService,
	pinger dbPinger,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/verify_user_email", authH.VerifyEmail)
	auth.POST("/resend_email_verification_link", authH.ResendVerificationLink)

	authed := auth.Group("", AuthMiddleware(tokens))
	authed.POST("/logout", authH.Logout)
	authed.POST("/Profile", authH.Profile)

	// Endpoint de validacion remota que consulta el guard en cada navegacion.
	r.GET("/verify-token", AuthMiddleware(tokens), authH.VerifyToken)

	// Areas por rol: coincidencia exacta, sin jerarquia.
	admin := r.Group("/admin", AuthMiddleware(tokens), RequireRole(tokens, domain.RoleAdministrator))
	admin.GET("/dashboard", authH.Dashboard)

	patient := r.Group("/patient", AuthMiddleware(tokens), RequireRole(tokens, domain.RolePatient))
	patient.GET("/dashboard", authH.Dashboard)

	pharmacist := r.Group("/pharmacist", AuthMiddleware(tokens), RequireRole(tokens, domain.RolePharmacist))
	pharmacist.GET("/dashboard", authH.Dashboard)

	r.GET("/healthz", func(c *gin.Context) {
		if pinger != nil {
			if err := pinger.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "failed"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
