package server

import (
	"context"

	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// WhoAmIOID identifies the "Who am I?" extended operation (RFC 4532).
const WhoAmIOID = "1.3.6.1.4.1.4203.1.11.3"

// handleExtended routes an extended request. It owns the decision of
// when reads resume: every path resumes immediately except StartTLS,
// whose sequencer keeps the loop parked across the handshake boundary.
func (c *Connection) handleExtended(ctx context.Context, msg *ldap.Message) {
	req, err := ldap.ParseExtendedRequest(msg.Op.Data)
	if err != nil {
		c.ResumeReading()
		c.writeExtendedError(ctx, msg.MessageID, ldap.Result{
			Code:       ldap.ResultProtocolError,
			Diagnostic: "malformed extended request",
		})
		return
	}

	switch req.OID {
	case StartTLSOID:
		c.handleStartTLS(ctx, msg.MessageID)
	case WhoAmIOID:
		c.ResumeReading()
		c.handleWhoAmI(ctx, msg.MessageID)
	default:
		c.ResumeReading()
		if c.srv.Handler != nil {
			c.srv.Handler.ServeLDAP(ctx, c, msg)
			return
		}
		c.writeExtendedError(ctx, msg.MessageID, ldap.Result{
			Code:       ldap.ResultProtocolError,
			Diagnostic: "unsupported extended operation",
		})
	}
}

// handleWhoAmI returns the RFC 4532 authorization identity: the "dn:"
// form for authenticated principals, an empty value for anonymous.
func (c *Connection) handleWhoAmI(ctx context.Context, messageID int) {
	resp, err := ldap.NewExtendedResponse(messageID, ldap.ExtendedResponse{
		Result: ldap.Result{Code: ldap.ResultSuccess},
		Value:  []byte(c.Principal().AuthzID()),
	})
	if err != nil {
		return
	}
	if err := c.WriteMessage(ctx, resp); err != nil {
		c.log.Debug().Err(err).Msg("failed to write whoami response")
	}
}

func (c *Connection) writeExtendedError(ctx context.Context, messageID int, r ldap.Result) {
	resp, err := ldap.NewExtendedResponse(messageID, ldap.ExtendedResponse{Result: r})
	if err != nil {
		return
	}
	if err := c.WriteMessage(ctx, resp); err != nil {
		c.log.Debug().Err(err).Msg("failed to write extended response")
	}
}
