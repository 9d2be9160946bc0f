package domain

import "time"

// Identity representa una cuenta registrada en la plataforma.
type Identity struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	DisplayName     string     `json:"display_name,omitempty"`
	PasswordHash    string     `json:"-"`
	Role            Role       `json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	// Token de verificacion pendiente (hash con salt, nunca el token plano).
	// A lo sumo un token pendiente por identidad; reemitir lo reemplaza.
	VerificationTokenHash string     `json:"-"`
	VerificationIssuedAt  *time.Time `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Verified indica si la identidad ya confirmo su email.
func (i Identity) Verified() bool {
	return i.EmailVerifiedAt != nil
}
