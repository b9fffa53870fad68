package server

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// StartTLSOID identifies the StartTLS extended operation (RFC 4511
// Section 4.14).
const StartTLSOID = "1.3.6.1.4.1.1466.20037"

// StartTLS eligibility errors.
var (
	// ErrTLSNotConfigured is returned when the server has no TLS material.
	ErrTLSNotConfigured = errors.New("server: no TLS configuration")
	// ErrTLSAlreadyActive is returned when the transport is already secured.
	ErrTLSAlreadyActive = errors.New("server: TLS already established")
	// ErrOperationsPending is returned when other requests are in flight.
	ErrOperationsPending = errors.New("server: operations in progress")
)

// handleStartTLS runs the upgrade sequence. The read loop stays parked
// from the moment the StartTLS frame was consumed: the next inbound
// bytes are the TLS ClientHello, and they must reach the handshake, not
// the codec. Reads resume only after the handshake settles or the
// request is refused.
func (c *Connection) handleStartTLS(ctx context.Context, messageID int) {
	switch err := c.beginStartTLS(ctx); {
	case err == nil:
	case errors.Is(err, ErrTLSNotConfigured):
		c.writeStartTLSResult(ctx, messageID, ldap.Result{
			Code:       ldap.ResultUnavailable,
			Diagnostic: "TLS is not configured",
		})
		c.ResumeReading()
		return
	case errors.Is(err, ErrTLSAlreadyActive), errors.Is(err, ErrOperationsPending):
		c.log.Debug().Err(err).Msg("StartTLS refused")
		c.writeStartTLSResult(ctx, messageID, ldap.Result{
			Code:       ldap.ResultOperationsError,
			Diagnostic: err.Error(),
		})
		c.ResumeReading()
		return
	default:
		// Canceled while waiting on the bind gate; teardown in progress.
		return
	}

	err := func() error {
		defer c.bindGate.release()
		// The client starts its handshake only after seeing success, so
		// the response must go out on the plaintext transport first.
		if err := c.writeStartTLSResult(ctx, messageID, ldap.Result{Code: ldap.ResultSuccess}); err != nil {
			return err
		}
		return c.upgradeTransport(ctx)
	}()
	if err != nil {
		// The transport is indeterminate after a failed handshake.
		c.log.Warn().Err(err).Msg("TLS upgrade failed")
		c.Close()
		return
	}

	c.log.Info().Msg("transport secured")
	// Wake the read loop parked since the StartTLS frame. ResumeReading
	// would no-op now that the transport is secured, so release the gate
	// directly; it stays permanently free from here on.
	c.readGate.release()
}

// beginStartTLS checks eligibility and, when eligible, returns with the
// bind gate held. Eligibility requires an unsecured transport and a
// registry holding at most the StartTLS request itself.
func (c *Connection) beginStartTLS(ctx context.Context) error {
	if c.srv.TLSConfig == nil {
		return ErrTLSNotConfigured
	}
	if c.Secured() {
		return ErrTLSAlreadyActive
	}
	if err := c.bindGate.acquire(ctx); err != nil {
		return err
	}
	if c.pending.count() > 1 {
		c.bindGate.release()
		return ErrOperationsPending
	}
	return nil
}

// upgradeTransport performs the handshake over the current transport and
// atomically publishes the secured snapshot. Caller holds the bind gate;
// the principal carries over unchanged.
func (c *Connection) upgradeTransport(ctx context.Context) error {
	st := c.state.Load()
	tlsConn := tls.Server(st.transport, c.srv.TLSConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return err
	}
	c.state.Store(&connState{
		transport: tlsConn,
		secured:   true,
		principal: st.principal,
	})
	return nil
}

func (c *Connection) writeStartTLSResult(ctx context.Context, messageID int, r ldap.Result) error {
	resp, err := ldap.NewExtendedResponse(messageID, ldap.ExtendedResponse{
		Result: r,
		OID:    StartTLSOID,
	})
	if err != nil {
		return err
	}
	return c.WriteMessage(ctx, resp)
}
