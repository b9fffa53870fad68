package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Authentication errors.
var (
	// ErrInvalidCredentials is returned when the DN is unknown or the
	// password does not match. Callers map it to invalidCredentials.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAnonymousDisallowed is returned when anonymous binds are disabled.
	ErrAnonymousDisallowed = errors.New("auth: anonymous bind not allowed")
)

// Credentials are the inputs of a simple bind.
type Credentials struct {
	DN       string
	Password []byte
}

// Authenticator verifies bind credentials and produces a principal.
// Implementations must honor ctx: verification may hit external services
// and the connection core cancels it on teardown.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, creds Credentials) (*Principal, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	return f(ctx, creds)
}

// Static authenticates against a fixed set of DN/password-hash pairs,
// typically loaded from the configuration file.
type Static struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewStatic creates a Static authenticator from a DN-to-stored-hash map.
// DNs are matched case-insensitively after whitespace normalization.
func NewStatic(users map[string]string) *Static {
	s := &Static{users: make(map[string]string, len(users))}
	for dn, hash := range users {
		s.users[normalizeDN(dn)] = hash
	}
	return s
}

// SetUser adds or replaces a user entry.
func (s *Static) SetUser(dn, storedHash string) {
	s.mu.Lock()
	s.users[normalizeDN(dn)] = storedHash
	s.mu.Unlock()
}

// Authenticate implements Authenticator.
func (s *Static) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	stored, ok := s.users[normalizeDN(creds.DN)]
	s.mu.RUnlock()
	if !ok {
		// Verify against a throwaway hash anyway so unknown DNs take
		// the same time as wrong passwords.
		_ = VerifyPassword(string(creds.Password), unknownUserHash)
		return nil, ErrInvalidCredentials
	}

	if err := VerifyPassword(string(creds.Password), stored); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Principal{
		DN:            creds.DN,
		Authenticated: true,
		BindTime:      time.Now(),
	}, nil
}

// unknownUserHash is a valid {SHA256} hash of a random string, used to
// equalize timing for unknown DNs.
const unknownUserHash = "{SHA256}LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ="

// normalizeDN lowercases and trims spaces around RDN separators. This is
// a pragmatic subset of RFC 4514 matching, sufficient for config users.
func normalizeDN(dn string) string {
	parts := strings.Split(strings.ToLower(dn), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}
