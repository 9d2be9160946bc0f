package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"epharmacy-auth/internal/domain"
)

// TokenService emite y valida bearer tokens de sesion (JWT HS256).
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked RevocationStore
}

// Claims son los claims transportados por un token de sesion.
type Claims struct {
	IdentityID string      `json:"uid"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// ErrTokenInvalid cubre token malformado, expirado, firmado con otra clave
// o revocado. Todo colapsa en un solo error para no dar un oraculo al cliente.
var ErrTokenInvalid = errors.New("token invalid")

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  "epharmacy-auth",
		revoked: NewMemoryRevocationStore(),
	}
}

func NewTokenServiceWithStore(secret string, ttl time.Duration, store RevocationStore) *TokenService {
	svc := NewTokenService(secret, ttl)
	if store != nil {
		svc.revoked = store
	}
	return svc
}

// Issue firma un token de sesion para una identidad autenticada.
// Cada token lleva un jti propio: la misma identidad puede tener varios
// tokens vigentes a la vez (multi-dispositivo) y revocarlos por separado.
func (s *TokenService) Issue(identity domain.Identity) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Role:       identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate devuelve los claims de un token vigente o ErrTokenInvalid.
// Un error del store de revocacion tambien invalida: ante la duda se
// cierra el acceso, nunca se abre.
func (s *TokenService) Validate(token string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(token) == "" {
		return Claims{}, ErrTokenInvalid
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrTokenInvalid
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(claims.ID)
		if err != nil || revoked {
			return Claims{}, ErrTokenInvalid
		}
	}
	return claims, nil
}

// Revoke deja el token fuera de servicio hasta su expiracion natural.
// Idempotente: revocar un token ya invalido o ya revocado no es un error.
func (s *TokenService) Revoke(token string) error {
	if len(s.secret) == 0 || strings.TrimSpace(token) == "" {
		return nil
	}
	claims, err := s.parseToken(token)
	if err != nil || !s.isValidClaims(claims) || claims.ID == "" {
		return nil
	}
	if s.revoked == nil {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return s.revoked.Revoke(claims.ID, remaining)
}

func (s *TokenService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.IdentityID) == "" {
		return false
	}
	if claims.Subject != claims.IdentityID {
		return false
	}
	if !claims.Role.Valid() {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
