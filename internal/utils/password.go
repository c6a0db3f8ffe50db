package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"math/big"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"

	"github.com/iliyamo/patient-records/internal/apperr"
)

// PBKDF2 parameters for stored password hashes.
const (
	PasswordIterations = 100_000
	PasswordKeyLen     = 32 // 256-bit derived key
)

// PasswordHasher derives password hashes with PBKDF2-HMAC-SHA256 and a
// static, configured salt. The output is deterministic for a given salt so
// a login recomputes the hash and compares it with the stored one.
type PasswordHasher struct {
	salt []byte
}

// NewPasswordHasher returns a hasher for the given salt. An empty salt is
// rejected; the service refuses to start without one.
func NewPasswordHasher(salt string) (*PasswordHasher, error) {
	if salt == "" {
		return nil, errors.New("password salt must not be empty")
	}
	return &PasswordHasher{salt: []byte(salt)}, nil
}

// Hash returns the base64-encoded derived key for plain.
func (h *PasswordHasher) Hash(plain string) string {
	key := pbkdf2.Key([]byte(plain), h.salt, PasswordIterations, PasswordKeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// Verify recomputes the hash of plain and compares it with stored in
// constant time.
func (h *PasswordHasher) Verify(plain, stored string) bool {
	computed := h.Hash(plain)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

const (
	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars   = "23456789"
	specialChars = "!@#$%^&*-_=+?"
)

// GeneratePassword returns a random printable password of the given length
// that always contains a lower-case letter, an upper-case letter, a digit
// and a special character. Used to bootstrap the first administrator.
func GeneratePassword(length int) (string, error) {
	classes := []string{lowerChars, upperChars, digitChars, specialChars}
	if length < len(classes) {
		return "", errors.New("generated password length too short")
	}
	all := lowerChars + upperChars + digitChars + specialChars

	out := make([]byte, length)
	for i := range out {
		set := all
		if i < len(classes) {
			set = classes[i]
		}
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	// Fisher-Yates so the guaranteed characters are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

// CheckPasswordPolicy enforces the local password rules: at least minLen
// characters, one digit and one special character. The breach lookup is a
// separate step.
func CheckPasswordPolicy(plain string, minLen int) error {
	if utf8.RuneCountInString(plain) < minLen {
		return apperr.With(apperr.WeakPassword, "min_length", minLen).
			Errorf("password must be at least %d characters long", minLen)
	}
	var hasDigit, hasSpecial bool
	for _, r := range plain {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			hasSpecial = true
		}
	}
	if !hasDigit {
		return apperr.New(apperr.WeakPassword, "password must contain at least one digit")
	}
	if !hasSpecial {
		return apperr.New(apperr.WeakPassword, "password must contain at least one special character")
	}
	return nil
}
