package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// hashCost is the bcrypt work factor. Tests lower it.
var hashCost = 12

var ErrWeakPassword = fmt.Errorf("password must have at least %d characters", minPasswordLen)

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. Malformed hashes
// never match.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against when a login names an unknown email, so
// both failure paths pay for one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("meurenda-no-such-user"), hashCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy password hash: %v", err))
	}
	return string(hash)
})
