package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"epharmacy-auth/internal/domain"
	"epharmacy-auth/internal/repository"
)

// AuthService orquesta registro, login y logout.
type AuthService struct {
	logger       *zap.Logger
	identities   repository.IdentityRepository
	tokens       *TokenService
	verification *VerificationService
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password too weak")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
)

const minPasswordLength = 8

func NewAuthService(
	logger *zap.Logger,
	identities repository.IdentityRepository,
	tokens *TokenService,
	verification *VerificationService,
) *AuthService {
	return &AuthService{
		logger:       logger,
		identities:   identities,
		tokens:       tokens,
		verification: verification,
	}
}

// RegisterInput son los datos de alta de una identidad.
type RegisterInput struct {
	Email       string
	Password    string
	Role        string
	DisplayName string
}

// AuthResult agrupa identidad mas token de sesion emitido.
type AuthResult struct {
	Identity    domain.Identity
	AccessToken string
	ExpiresAt   time.Time
}

// Register crea la identidad sin verificar, dispara el enlace de
// verificacion y emite un token de sesion de inmediato: la verificacion
// condiciona el acceso a funcionalidades, no el login.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return AuthResult{}, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return AuthResult{}, ErrWeakPassword
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return AuthResult{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, err
	}

	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  input.DisplayName,
		PasswordHash: string(hashBytes),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	// La unicidad del email la decide el indice de la base: dos registros
	// concurrentes con el mismo email nunca pasan los dos.
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return AuthResult{}, ErrDuplicateEmail
		}
		return AuthResult{}, err
	}

	if s.verification != nil {
		if err := s.verification.SendLink(ctx, identity); err != nil {
			// El alta no se cae por el correo; el usuario puede pedir reenvio.
			if s.logger != nil {
				s.logger.Warn("verification link on register failed", zap.Error(err), zap.String("identity_id", identity.ID))
			}
		}
	}

	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Identity: identity, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// Login valida credenciales y emite un token de sesion. Email desconocido
// y password incorrecto devuelven el mismo error, sin señal distintiva.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (AuthResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	identity, err := s.identities.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if identity.PasswordHash == "" {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Identity: identity, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// Logout revoca el token presentado. Siempre reporta exito.
func (s *AuthService) Logout(token string) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Revoke(token); err != nil && s.logger != nil {
		s.logger.Warn("token revoke on logout failed", zap.Error(err))
	}
}

// Profile devuelve la identidad del token autenticado. Lectura idempotente.
func (s *AuthService) Profile(ctx context.Context, identityID string) (domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, ErrIdentityNotFound
		}
		return domain.Identity{}, err
	}
	return identity, nil
}
