package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultPasswordLength is used by GeneratePassword callers that have no preference.
const DefaultPasswordLength = 32

// GeneratePassword returns a random password of the given length drawn from
// an alphabet without visually ambiguous characters.
func GeneratePassword(length int) (string, error) {
	if length < 12 {
		return "", fmt.Errorf("password length %d is below the minimum of 12", length)
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// HTPasswd returns a single "user:hash" line using bcrypt.
func HTPasswd(username, password string) (string, error) {
	if username == "" || strings.Contains(username, ":") {
		return "", fmt.Errorf("invalid htpasswd username %q", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return username + ":" + string(hash), nil
}

// VerifyHTPasswd reports whether line authenticates username with password.
func VerifyHTPasswd(line, username, password string) bool {
	user, hash, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || user != username {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
