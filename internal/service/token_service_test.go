package service

import (
	"testing"
	"time"

	"epharmacy-auth/internal/domain"
)

func testIdentity(role domain.Role) domain.Identity {
	return domain.Identity{
		ID:        "id-1",
		Email:     "user@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTokenService_IssueValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, expiresAt, err := svc.Issue(testIdentity(domain.RolePatient))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.IdentityID != "id-1" || claims.Role != domain.RolePatient {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_MultiDevice(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	identity := testIdentity(domain.RolePharmacist)

	first, _, err := svc.Issue(identity)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, _, err := svc.Issue(identity)
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}

	// Revocar una sesion no toca la otra.
	if err := svc.Revoke(first); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Validate(first); err == nil {
		t.Fatalf("expected revoked token invalid")
	}
	if _, err := svc.Validate(second); err != nil {
		t.Fatalf("expected second token still valid: %v", err)
	}
}

func TestTokenService_ValidateCollapsesFailures(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	cases := map[string]string{
		"empty":     "",
		"garbage":   "not-a-jwt",
		"truncated": "eyJhbGciOiJIUzI1NiJ9",
	}
	for name, token := range cases {
		if _, err := svc.Validate(token); err != ErrTokenInvalid {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}

	// Token firmado con otra clave colapsa en el mismo error.
	other := NewTokenService("another-secret", time.Hour)
	foreign, _, err := other.Issue(testIdentity(domain.RolePatient))
	if err != nil {
		t.Fatalf("issue foreign: %v", err)
	}
	if _, err := svc.Validate(foreign); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := NewTokenServiceWithStore("secret", time.Hour, NewMemoryRevocationStore())
	svc.ttl = -time.Minute

	token, _, err := svc.Issue(testIdentity(domain.RoleAdministrator))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Validate(token); err != ErrTokenInvalid {
		t.Fatalf("expected expired token invalid, got %v", err)
	}
}

func TestTokenService_RevokeIdempotent(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	if err := svc.Revoke(""); err != nil {
		t.Fatalf("revoke empty should be no-op, got %v", err)
	}
	if err := svc.Revoke("garbage"); err != nil {
		t.Fatalf("revoke garbage should be no-op, got %v", err)
	}

	token, _, err := svc.Issue(testIdentity(domain.RolePatient))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.Revoke(token); err != nil {
		t.Fatalf("second revoke should be no-op, got %v", err)
	}
}

func TestTokenService_RejectsUnknownRoleClaim(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	identity := testIdentity("superuser")
	token, _, err := svc.Issue(identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Validate(token); err != ErrTokenInvalid {
		t.Fatalf("expected token with unknown role rejected, got %v", err)
	}
}
