package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"epharmacy-auth/internal/domain"
	"epharmacy-auth/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticacion.
type AuthHandler struct {
	logger    *zap.Logger
	authServ  *service.AuthService
	verifServ *service.VerificationService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, verifServ *service.VerificationService) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		authServ:  authServ,
		verifServ: verifServ,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required"`
		Role        string `json:"role" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "invalid request"})
		return
	}

	result, err := h.authServ.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "password must be at least 8 characters"})
		case errors.Is(err, service.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "invalid email"})
		case errors.Is(err, service.ErrDuplicateEmail):
			c.JSON(http.StatusConflict, gin.H{"status": "failed", "message": "email already registered"})
		case errors.Is(err, domain.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "invalid role"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "message": "could not register"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":       "success",
		"user":         result.Identity,
		"access_token": result.AccessToken,
		"type":         "bearer",
	})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "invalid request"})
		return
	}

	result, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "failed", "message": "Invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "message": "could not login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"user":         result.Identity,
		"access_token": result.AccessToken,
		"type":         "bearer",
	})
}

// VerifyEmail maneja POST /auth/verify_user_email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "invalid request"})
		return
	}

	_, err := h.verifServ.Verify(c.Request.Context(), req.Email, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSuchPendingToken):
			c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "no such pending token"})
		case errors.Is(err, service.ErrVerificationExpired):
			c.JSON(http.StatusGone, gin.H{"status": "failed", "message": "verification token expired"})
		case errors.Is(err, service.ErrAlreadyVerified):
			c.JSON(http.StatusConflict, gin.H{"status": "failed", "message": "email already verified"})
		default:
			h.logger.Error("verify email failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "message": "could not verify email"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "email verified"})
}

// ResendVerificationLink maneja POST /auth/resend_email_verification_link.
// Email desconocido y fallo de envio responden el mismo exito generico que
// el caso real: la respuesta no permite enumerar cuentas.
func (h *AuthHandler) ResendVerificationLink(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "invalid request"})
		return
	}

	if err := h.verifServ.Resend(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"status": "failed", "message": "too many requests"})
			return
		}
		h.logger.Warn("resend verification link failed (masked)", zap.Error(err), zap.String("email", req.Email))
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "if the email is registered, a verification link has been sent"})
}

// Logout maneja POST /auth/logout. Siempre reporta exito.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.authServ.Logout(GetAuthToken(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Profile maneja POST /auth/Profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "missing token"})
		return
	}

	identity, err := h.authServ.Profile(c.Request.Context(), claims.IdentityID)
	if err != nil {
		if errors.Is(err, service.ErrIdentityNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "unknown identity"})
			return
		}
		h.logger.Error("profile fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "could not load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "user": identity})
}

// VerifyToken maneja GET /verify-token, el endpoint que consulta el guard
// remoto en cada navegacion protegida. Llegar aqui implica token valido.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Dashboard responde en las rutas de ejemplo gateadas por rol.
func (h *AuthHandler) Dashboard(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"user_id": claims.IdentityID,
		"role":    claims.Role,
	})
}
