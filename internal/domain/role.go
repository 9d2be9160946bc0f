package domain

import (
	"errors"
	"strings"
)

// Role es el rol de una identidad. Conjunto cerrado, sin jerarquia:
// ninguna operacion acepta un rol distinto al exacto requerido.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RolePatient       Role = "patient"
	RolePharmacist    Role = "pharmacist"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole valida y normaliza un rol recibido en el borde HTTP.
// Cualquier valor fuera del conjunto cerrado se rechaza.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdministrator:
		return RoleAdministrator, nil
	case RolePatient:
		return RolePatient, nil
	case RolePharmacist:
		return RolePharmacist, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid indica si el rol pertenece al conjunto cerrado.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RolePatient, RolePharmacist:
		return true
	}
	return false
}
