// Package server implements the LDAP front end of divan: listeners, the
// per-connection state machine, and the operations the connection core
// owns (bind, unbind, abandon, StartTLS, WhoAmI, Root DSE search).
//
// Each connection runs one read loop and one goroutine per admitted
// request. Three cancelable gates order their interleavings:
//
//   - the write gate serializes outbound messages, so concurrent
//     handlers never interleave bytes mid-frame;
//   - the bind gate serializes state-changing operations (bind and
//     StartTLS) and is taken briefly around every admission, so a
//     request cannot slip in between a bind's drain and its commit;
//   - the read gate serializes plaintext reads until the transport is
//     secured, keeping the codec from reading ahead of the TLS
//     handshake boundary.
//
// Identity and transport state live in an immutable snapshot behind an
// atomic pointer. Handlers load it once at operation start; it is only
// replaced while the bind gate is held. All blocking points (gate
// acquisition, frame I/O, the TLS handshake) observe the connection
// context, so a single Close cancels everything derived from the
// connection.
package server
