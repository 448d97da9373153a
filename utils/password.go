package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plaintext password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// IsValidRole checks if the role is one of the allowed values
func IsValidRole(role string) bool {
	switch role {
	case "SUPER_ADMIN", "ORG_ADMIN", "MANAGER", "EMPLOYEE":
		return true
	}
	return false
}
