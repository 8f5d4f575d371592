package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Accounts created before argon2id carry bcrypt hashes. They still verify and
// NeedsUpgrade flags them for rehash.

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

func verifyBcrypt(password string, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
