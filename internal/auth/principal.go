// Package auth provides the identity collaborators of the connection
// core: the authenticated principal, the Authenticator interface used by
// the bind sequence, and password hash handling for config-backed users.
package auth

import "time"

// Principal is the authenticated identity associated with a connection.
// Values are immutable once constructed; the connection publishes them
// through an atomically swapped snapshot.
type Principal struct {
	// DN is the distinguished name the principal bound as. Empty for
	// the anonymous principal.
	DN string
	// Authenticated is false for the anonymous principal.
	Authenticated bool
	// BindTime records when the bind that produced this principal completed.
	BindTime time.Time
}

// Anonymous returns the unauthenticated principal every connection
// starts with and reverts to after a failed bind (RFC 4513 Section 5.1.1).
func Anonymous() *Principal {
	return &Principal{}
}

// AuthzID returns the RFC 4532 authorization identity string: empty for
// anonymous, "dn:"-prefixed otherwise.
func (p *Principal) AuthzID() string {
	if p == nil || !p.Authenticated {
		return ""
	}
	return "dn:" + p.DN
}
