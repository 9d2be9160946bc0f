package domain

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"administrator": RoleAdministrator,
		" Patient ":     RolePatient,
		"PHARMACIST":    RolePharmacist,
	}
	for input, want := range cases {
		got, err := ParseRole(input)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q", input, got, err, want)
		}
	}

	for _, input := range []string{"", "superuser", "admin", "doctor"} {
		if _, err := ParseRole(input); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("ParseRole(%q) should fail, got %v", input, err)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RolePatient.Valid() {
		t.Fatalf("patient should be valid")
	}
	if Role("root").Valid() {
		t.Fatalf("unknown role should be invalid")
	}
}
