package utils

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "password123" {
		t.Fatal("password stored in clear")
	}
	if err := CheckPassword("password123", hash); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := CheckPassword("wrong", hash); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, role := range []string{"SUPER_ADMIN", "ORG_ADMIN", "MANAGER", "EMPLOYEE"} {
		if !IsValidRole(role) {
			t.Fatalf("role %q rejected", role)
		}
	}
	for _, role := range []string{"", "admin", "ROOT"} {
		if IsValidRole(role) {
			t.Fatalf("role %q accepted", role)
		}
	}
}
