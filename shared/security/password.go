package security

import (
	"errors"

	"github.com/matthewhartstonge/argon2"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes passwords one way and verifies candidates against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Argon2Hasher is an argon2id PasswordHasher producing PHC encoded hashes with a random salt.
type Argon2Hasher struct {
	config argon2.Config
}

// NewArgon2Hasher creates an Argon2Hasher with the library's default work factor.
func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{config: argon2.DefaultConfig()}
}

// NewArgon2HasherWithConfig creates an Argon2Hasher with an explicit work factor.
func NewArgon2HasherWithConfig(cfg argon2.Config) *Argon2Hasher {
	return &Argon2Hasher{config: cfg}
}

// Hash returns the encoded argon2id hash of password.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Verify reports whether password matches encodedHash.
// The comparison is constant time; a malformed hash is an error, not a mismatch.
func (h *Argon2Hasher) Verify(password, encodedHash string) (bool, error) {
	return argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
}
