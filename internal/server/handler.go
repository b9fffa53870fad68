package server

import (
	"context"

	"github.com/KilimcininKorOglu/divan/internal/auth"
	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// ResponseWriter is the per-connection surface handlers build replies
// with. Writes are serialized against all other writers on the
// connection; the identity accessors return the snapshot current at the
// time of the call, so handlers should read them once at operation start.
type ResponseWriter interface {
	// WriteMessage sends one protocol message as a single frame.
	WriteMessage(ctx context.Context, msg *ldap.Message) error
	// WriteResult sends the result message matching requestTag.
	WriteResult(ctx context.Context, requestTag, messageID int, r ldap.Result) error
	// Principal returns the connection's current authorization identity.
	Principal() *auth.Principal
	// Secured reports whether the transport is TLS-protected.
	Secured() bool
	// ConnID returns the connection's unique identifier.
	ConnID() string
}

// Handler processes the operations the connection core does not own:
// search (beyond the Root DSE), modify, add, delete, modifyDN, compare,
// and unrecognized extended operations. The context is canceled when the
// operation is abandoned or the connection closes; a canceled handler
// owes no response. A nil Server.Handler refuses these operations with
// unwillingToPerform.
type Handler interface {
	ServeLDAP(ctx context.Context, w ResponseWriter, msg *ldap.Message)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, w ResponseWriter, msg *ldap.Message)

// ServeLDAP implements Handler.
func (f HandlerFunc) ServeLDAP(ctx context.Context, w ResponseWriter, msg *ldap.Message) {
	f(ctx, w, msg)
}
