package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password scheme prefixes, RFC 3112 style.
const (
	SchemeCleartext = "{CLEARTEXT}"
	SchemeSHA256    = "{SHA256}"
	SchemeSSHA256   = "{SSHA256}"
	SchemeSHA512    = "{SHA512}"
	SchemeSSHA512   = "{SSHA512}"
	SchemeBcrypt    = "{BCRYPT}"
)

// saltSize is the salt length for the salted SHA schemes.
const saltSize = 8

// Password errors.
var (
	// ErrInvalidPasswordFormat is returned when a stored hash is malformed.
	ErrInvalidPasswordFormat = errors.New("auth: invalid password format")
	// ErrUnsupportedScheme is returned for an unrecognized scheme prefix.
	ErrUnsupportedScheme = errors.New("auth: unsupported password scheme")
	// ErrPasswordMismatch is returned when verification fails.
	ErrPasswordMismatch = errors.New("auth: password mismatch")
)

// VerifyPassword checks a plaintext password against a stored value of
// the form {SCHEME}base64-data. A stored value without a scheme prefix is
// compared as cleartext. Comparisons are constant time.
func VerifyPassword(plaintext, stored string) error {
	if stored == "" {
		return ErrInvalidPasswordFormat
	}

	scheme, payload := splitScheme(stored)
	switch scheme {
	case "":
		return compareConstantTime([]byte(plaintext), []byte(stored))
	case SchemeCleartext:
		return compareConstantTime([]byte(plaintext), []byte(payload))
	case SchemeSHA256:
		digest := sha256.Sum256([]byte(plaintext))
		return compareDigest(digest[:], payload)
	case SchemeSHA512:
		digest := sha512.Sum512([]byte(plaintext))
		return compareDigest(digest[:], payload)
	case SchemeSSHA256:
		return verifySalted(plaintext, payload, sha256.Size, func(b []byte) []byte {
			d := sha256.Sum256(b)
			return d[:]
		})
	case SchemeSSHA512:
		return verifySalted(plaintext, payload, sha512.Size, func(b []byte) []byte {
			d := sha512.Sum512(b)
			return d[:]
		})
	case SchemeBcrypt:
		if err := bcrypt.CompareHashAndPassword([]byte(payload), []byte(plaintext)); err != nil {
			return ErrPasswordMismatch
		}
		return nil
	default:
		return ErrUnsupportedScheme
	}
}

// HashPassword produces a stored value for the given scheme. Salted
// schemes get a fresh random salt.
func HashPassword(plaintext, scheme string) (string, error) {
	switch strings.ToUpper(scheme) {
	case SchemeCleartext:
		return SchemeCleartext + plaintext, nil
	case SchemeSHA256:
		digest := sha256.Sum256([]byte(plaintext))
		return SchemeSHA256 + base64.StdEncoding.EncodeToString(digest[:]), nil
	case SchemeSHA512:
		digest := sha512.Sum512([]byte(plaintext))
		return SchemeSHA512 + base64.StdEncoding.EncodeToString(digest[:]), nil
	case SchemeSSHA256:
		salt, err := newSalt()
		if err != nil {
			return "", err
		}
		digest := sha256.Sum256(append([]byte(plaintext), salt...))
		return SchemeSSHA256 + base64.StdEncoding.EncodeToString(append(digest[:], salt...)), nil
	case SchemeSSHA512:
		salt, err := newSalt()
		if err != nil {
			return "", err
		}
		digest := sha512.Sum512(append([]byte(plaintext), salt...))
		return SchemeSSHA512 + base64.StdEncoding.EncodeToString(append(digest[:], salt...)), nil
	case SchemeBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return SchemeBcrypt + string(hash), nil
	default:
		return "", ErrUnsupportedScheme
	}
}

// splitScheme separates the {SCHEME} prefix from the payload. Returns an
// empty scheme when there is no prefix.
func splitScheme(stored string) (scheme, payload string) {
	if !strings.HasPrefix(stored, "{") {
		return "", stored
	}
	end := strings.Index(stored, "}")
	if end < 0 {
		return "", stored
	}
	return strings.ToUpper(stored[:end+1]), stored[end+1:]
}

func compareConstantTime(a, b []byte) error {
	if subtle.ConstantTimeCompare(a, b) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

func compareDigest(digest []byte, encoded string) error {
	stored, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidPasswordFormat
	}
	return compareConstantTime(digest, stored)
}

// verifySalted checks a salted digest stored as base64(digest || salt).
func verifySalted(plaintext, encoded string, digestSize int, sum func([]byte) []byte) error {
	stored, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidPasswordFormat
	}
	if len(stored) <= digestSize {
		return ErrInvalidPasswordFormat
	}
	digest, salt := stored[:digestSize], stored[digestSize:]
	computed := sum(append([]byte(plaintext), salt...))
	return compareConstantTime(computed, digest)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
