package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"epharmacy-auth/internal/domain"
)

func newAuthFixture(t *testing.T) (*AuthService, *TokenService, *fakeIdentityRepo, *fakeSender) {
	t.Helper()
	repo := newFakeIdentityRepo()
	sender := &fakeSender{}
	tokens := NewTokenService("test-secret", time.Hour)
	verification := NewVerificationService(zap.NewNop(), repo, sender, allowAllLimiter{}, "https://pharmacy.example/verify-email", time.Hour)
	auth := NewAuthService(zap.NewNop(), repo, tokens, verification)
	return auth, tokens, repo, sender
}

func TestAuthService_Register(t *testing.T) {
	auth, tokens, _, sender := newAuthFixture(t)
	ctx := context.Background()

	result, err := auth.Register(ctx, RegisterInput{
		Email:       " Alice@Example.com ",
		Password:    "s3cret-pass",
		Role:        "Patient",
		DisplayName: "Alice",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Identity.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", result.Identity.Email)
	}
	if result.Identity.Role != domain.RolePatient {
		t.Fatalf("expected patient role, got %q", result.Identity.Role)
	}
	if result.Identity.Verified() {
		t.Fatalf("new identity must start unverified")
	}
	if result.Identity.PasswordHash == "s3cret-pass" {
		t.Fatalf("password stored in plain text")
	}
	if sender.sent != 1 {
		t.Fatalf("expected verification email, sent=%d", sender.sent)
	}

	// El token emitido en el alta ya sirve como sesion.
	claims, err := tokens.Validate(result.AccessToken)
	if err != nil {
		t.Fatalf("validate register token: %v", err)
	}
	if claims.IdentityID != result.Identity.ID {
		t.Fatalf("token subject mismatch: %q vs %q", claims.IdentityID, result.Identity.ID)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, RegisterInput{Email: "", Password: "longenough", Role: "patient"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := auth.Register(ctx, RegisterInput{Email: "a@b.com", Password: "short", Role: "patient"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if _, err := auth.Register(ctx, RegisterInput{Email: "a@b.com", Password: "longenough", Role: "superuser"}); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)
	ctx := context.Background()
	input := RegisterInput{Email: "dup@example.com", Password: "longenough", Role: "pharmacist"}

	if _, err := auth.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := auth.Register(ctx, input); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestAuthService_RegisterSurvivesEmailFailure(t *testing.T) {
	auth, _, _, sender := newAuthFixture(t)
	sender.err = errors.New("smtp down")

	result, err := auth.Register(context.Background(), RegisterInput{
		Email:    "mail-down@example.com",
		Password: "longenough",
		Role:     "patient",
	})
	if err != nil {
		t.Fatalf("register should survive email failure, got %v", err)
	}
	if result.AccessToken == "" {
		t.Fatalf("expected session token despite email failure")
	}
}

func TestAuthService_Login(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "correct-horse", Role: "administrator"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := auth.Login(ctx, "Bob@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.Identity.Role != domain.RoleAdministrator {
		t.Fatalf("unexpected login result: %+v", result)
	}

	// Password incorrecto y email inexistente devuelven el mismo error.
	if _, err := auth.Login(ctx, "bob@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := auth.Login(ctx, "ghost@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	auth, tokens, _, _ := newAuthFixture(t)
	ctx := context.Background()

	result, err := auth.Register(ctx, RegisterInput{Email: "out@example.com", Password: "longenough", Role: "patient"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := tokens.Validate(result.AccessToken); err != nil {
		t.Fatalf("token should be valid before logout: %v", err)
	}

	auth.Logout(result.AccessToken)
	if _, err := tokens.Validate(result.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected token invalid after logout, got %v", err)
	}

	// Logout repetido o con basura no falla.
	auth.Logout(result.AccessToken)
	auth.Logout("garbage")
}

func TestAuthService_Profile(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	result, err := auth.Register(ctx, RegisterInput{Email: "me@example.com", Password: "longenough", Role: "pharmacist", DisplayName: "Me"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	identity, err := auth.Profile(ctx, result.Identity.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if identity.Email != "me@example.com" || identity.DisplayName != "Me" {
		t.Fatalf("unexpected profile: %+v", identity)
	}

	if _, err := auth.Profile(ctx, "missing-id"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
