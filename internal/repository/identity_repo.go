package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"epharmacy-auth/internal/domain"
)

// ErrDuplicateEmail se devuelve cuando el indice unico de email rechaza un insert.
// La unicidad la garantiza la base de datos, nunca un check-then-insert.
var ErrDuplicateEmail = errors.New("email already registered")

const pgUniqueViolation = "23505"

// IdentityRepository define el contrato de persistencia para identidades.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
	// SetPendingVerification reemplaza en un solo UPDATE el token pendiente
	// anterior (si existia) por el nuevo. La sustitucion es atomica a nivel fila.
	SetPendingVerification(ctx context.Context, id, tokenHash string, issuedAt, expiresAt time.Time) error
	// ConsumeVerification marca la identidad como verificada solo si el hash
	// pendiente todavia coincide. Devuelve false si otro verify o un reenvio
	// gano la carrera.
	ConsumeVerification(ctx context.Context, id, tokenHash string, verifiedAt time.Time) (bool, error)
}

// PgIdentityRepository implementa IdentityRepository usando pgxpool.
type PgIdentityRepository struct {
	pool *pgxpool.Pool
}

func NewPgIdentityRepository(pool *pgxpool.Pool) *PgIdentityRepository {
	return &PgIdentityRepository{pool: pool}
}

func (r *PgIdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	const query = `
		INSERT INTO identities (id, email, display_name, password_hash, role, email_verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Email,
		identity.DisplayName,
		identity.PasswordHash,
		string(identity.Role),
		identity.EmailVerifiedAt,
		identity.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgIdentityRepository) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	const query = identitySelect + ` WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PgIdentityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	const query = identitySelect + ` WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *PgIdentityRepository) SetPendingVerification(ctx context.Context, id, tokenHash string, issuedAt, expiresAt time.Time) error {
	const query = `
		UPDATE identities
		SET verification_token_hash = $2,
		    verification_issued_at = $3,
		    verification_expires_at = $4
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, issuedAt, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgIdentityRepository) ConsumeVerification(ctx context.Context, id, tokenHash string, verifiedAt time.Time) (bool, error) {
	const query = `
		UPDATE identities
		SET email_verified_at = $3,
		    verification_token_hash = NULL,
		    verification_issued_at = NULL,
		    verification_expires_at = NULL
		WHERE id = $1
		  AND verification_token_hash = $2
		  AND email_verified_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, verifiedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const identitySelect = `
	SELECT id, email, display_name, password_hash, role, email_verified_at,
	       verification_token_hash, verification_issued_at, verification_expires_at,
	       created_at
	FROM identities
`

func (r *PgIdentityRepository) scanOne(row pgx.Row) (domain.Identity, error) {
	var (
		i         domain.Identity
		role      string
		tokenHash *string
	)
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.DisplayName,
		&i.PasswordHash,
		&role,
		&i.EmailVerifiedAt,
		&tokenHash,
		&i.VerificationIssuedAt,
		&i.VerificationExpiresAt,
		&i.CreatedAt,
	)
	if err != nil {
		return domain.Identity{}, err
	}
	i.Role = domain.Role(role)
	if tokenHash != nil {
		i.VerificationTokenHash = *tokenHash
	}
	return i, nil
}
