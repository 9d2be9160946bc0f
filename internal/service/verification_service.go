package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"epharmacy-auth/internal/domain"
	"epharmacy-auth/internal/email"
	"epharmacy-auth/internal/repository"
)

// VerificationService gestiona el ciclo de vida del token de verificacion:
// Unverified(sin token) -> Unverified(token pendiente) -> Verified.
type VerificationService struct {
	logger     *zap.Logger
	identities repository.IdentityRepository
	sender     email.Sender
	limiter    ResendRateLimiter
	linkBase   string
	ttl        time.Duration
}

var (
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrNoSuchPendingToken cubre token que no coincide con el pendiente
	// actual: consumido, reemplazado por un reenvio o nunca emitido.
	ErrNoSuchPendingToken  = errors.New("no such pending token")
	ErrVerificationExpired = errors.New("verification token expired")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrEmailSendFailure    = errors.New("email send failed")
	ErrRateLimited         = errors.New("rate limited")
)

const defaultVerificationTTL = 24 * time.Hour

func NewVerificationService(
	logger *zap.Logger,
	identities repository.IdentityRepository,
	sender email.Sender,
	limiter ResendRateLimiter,
	linkBase string,
	ttl time.Duration,
) *VerificationService {
	if ttl <= 0 {
		ttl = defaultVerificationTTL
	}
	if limiter == nil {
		limiter = NewResendRateLimiter(10*time.Minute, 3)
	}
	return &VerificationService{
		logger:     logger,
		identities: identities,
		sender:     sender,
		limiter:    limiter,
		linkBase:   strings.TrimRight(linkBase, "/"),
		ttl:        ttl,
	}
}

// SendLink emite un token fresco y lo envia al email de la identidad.
// Emitir uno nuevo reemplaza cualquier token pendiente anterior. Para
// identidades ya verificadas no se reenvia nada: skip benigno.
func (s *VerificationService) SendLink(ctx context.Context, identity domain.Identity) error {
	if identity.Verified() {
		if s.logger != nil {
			s.logger.Debug("verification link skipped, already verified", zap.String("identity_id", identity.ID))
		}
		return nil
	}

	token, hash, err := generateVerificationToken()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	if err := s.identities.SetPendingVerification(ctx, identity.ID, hash, now, expiresAt); err != nil {
		return err
	}

	if s.sender == nil {
		return ErrEmailSendFailure
	}
	link := s.buildLink(identity.Email, token)
	if err := s.sender.SendVerificationLink(ctx, identity.Email, link, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send verification link failed", zap.Error(err), zap.String("email", identity.Email))
		}
		return ErrEmailSendFailure
	}
	return nil
}

// Verify consume el token pendiente exactamente una vez y marca la
// identidad como verificada.
func (s *VerificationService) Verify(ctx context.Context, emailAddr, token string) (domain.Identity, error) {
	emailAddr = normalizeEmail(emailAddr)
	token = strings.TrimSpace(token)
	if emailAddr == "" || token == "" {
		return domain.Identity{}, ErrNoSuchPendingToken
	}

	identity, err := s.identities.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Email desconocido colapsa en el mismo error que un token ajeno.
			return domain.Identity{}, ErrNoSuchPendingToken
		}
		return domain.Identity{}, err
	}

	if identity.Verified() {
		return domain.Identity{}, ErrAlreadyVerified
	}
	if identity.VerificationTokenHash == "" || identity.VerificationExpiresAt == nil {
		return domain.Identity{}, ErrNoSuchPendingToken
	}
	if !matchVerificationToken(token, identity.VerificationTokenHash) {
		return domain.Identity{}, ErrNoSuchPendingToken
	}
	if time.Now().UTC().After(*identity.VerificationExpiresAt) {
		return domain.Identity{}, ErrVerificationExpired
	}

	verifiedAt := time.Now().UTC()
	consumed, err := s.identities.ConsumeVerification(ctx, identity.ID, identity.VerificationTokenHash, verifiedAt)
	if err != nil {
		return domain.Identity{}, err
	}
	if !consumed {
		// Un verify concurrente o un reenvio gano la carrera.
		return domain.Identity{}, ErrNoSuchPendingToken
	}

	identity.EmailVerifiedAt = &verifiedAt
	identity.VerificationTokenHash = ""
	identity.VerificationIssuedAt = nil
	identity.VerificationExpiresAt = nil
	return identity, nil
}

// Resend vuelve a emitir el enlace para un email registrado. El handler HTTP
// enmascara ErrIdentityNotFound como exito generico para no permitir
// enumeracion de emails; aqui se devuelve el error real.
func (s *VerificationService) Resend(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrIdentityNotFound
	}

	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	identity, err := s.identities.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrIdentityNotFound
		}
		return err
	}

	return s.SendLink(ctx, identity)
}

func (s *VerificationService) buildLink(emailAddr, token string) string {
	base := s.linkBase
	if base == "" {
		base = "/verify-email"
	}
	return fmt.Sprintf("%s?email=%s&token=%s", base, url.QueryEscape(emailAddr), url.QueryEscape(token))
}

// generateVerificationToken crea el token plano y su hash salteado.
// Solo el hash toca la base de datos.
func generateVerificationToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + token))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	return token, saltStr + ":" + hash, nil
}

// matchVerificationToken compara sin cortocircuito para no filtrar timing.
func matchVerificationToken(token, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + token))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResendRateLimiter limita la frecuencia de reenvios por email.
type ResendRateLimiter interface {
	Allow(key string) bool
}

type resendRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewResendRateLimiter crea un rate limiter en memoria.
func NewResendRateLimiter(window time.Duration, max int) ResendRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &resendRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *resendRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
