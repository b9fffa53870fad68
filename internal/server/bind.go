package server

import (
	"context"
	"errors"

	"github.com/KilimcininKorOglu/divan/internal/auth"
	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// handleBind runs the bind sequence: take the bind gate, drain every
// other in-flight operation, drop to anonymous, evaluate the request,
// and write the response before releasing the gate. Holding the gate
// across the response write means no concurrently admitted request can
// observe a half-switched identity.
func (c *Connection) handleBind(ctx context.Context, msg *ldap.Message) {
	req, err := ldap.ParseBindRequest(msg.Op.Data)
	if err != nil {
		c.writeBindResult(ctx, msg.MessageID, ldap.Result{
			Code:       ldap.ResultProtocolError,
			Diagnostic: "malformed bind request",
		})
		return
	}

	if err := c.bindGate.acquire(ctx); err != nil {
		return
	}
	defer c.bindGate.release()

	if err := c.drainPending(msg.MessageID); err != nil {
		return
	}

	// A bind in progress moves the connection to anonymous until it
	// completes, and a failed bind leaves it there (RFC 4513 Section 5.1).
	c.setPrincipal(auth.Anonymous())

	res := c.evaluateBind(ctx, req)
	if res.Code == ldap.ResultSuccess {
		c.log.Info().Str("dn", req.Name).Msg("bind succeeded")
	} else {
		c.log.Info().
			Str("dn", req.Name).
			Str("result", res.Code.String()).
			Msg("bind failed")
	}
	c.writeBindResult(ctx, msg.MessageID, res)
}

// evaluateBind applies bind policy and credentials, publishing the new
// principal on success. Caller holds the bind gate.
func (c *Connection) evaluateBind(ctx context.Context, req *ldap.BindRequest) ldap.Result {
	if req.Version != 3 {
		return ldap.Result{
			Code:       ldap.ResultProtocolError,
			Diagnostic: "only LDAPv3 is supported",
		}
	}
	if req.Method == ldap.AuthSASL {
		return ldap.Result{
			Code:       ldap.ResultAuthMethodNotSupported,
			Diagnostic: "SASL mechanisms are not supported",
		}
	}
	if req.IsAnonymous() {
		if !c.srv.Policy.AllowAnonymous {
			return ldap.Result{
				Code:       ldap.ResultInappropriateAuthentication,
				Diagnostic: "anonymous bind disabled",
			}
		}
		return ldap.Result{Code: ldap.ResultSuccess}
	}
	if len(req.Password) == 0 {
		// Unauthenticated bind: a name with no password (RFC 4513
		// Section 5.1.2). Never treated as authenticated.
		return ldap.Result{
			Code:       ldap.ResultUnwillingToPerform,
			Diagnostic: "unauthenticated bind disabled",
		}
	}
	if c.srv.Policy.RequireTLSForBind && !c.Secured() {
		return ldap.Result{
			Code:       ldap.ResultConfidentialityRequired,
			Diagnostic: "bind requires a secured connection",
		}
	}

	a := c.srv.Authenticator
	if a == nil {
		return ldap.Result{
			Code:       ldap.ResultUnwillingToPerform,
			Diagnostic: "simple bind not configured",
		}
	}
	p, err := a.Authenticate(ctx, auth.Credentials{DN: req.Name, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return ldap.Result{
				Code:       ldap.ResultInvalidCredentials,
				Diagnostic: "invalid credentials",
			}
		}
		c.log.Warn().Err(err).Msg("authenticator error")
		return ldap.Result{
			Code:       ldap.ResultUnavailable,
			Diagnostic: "authentication unavailable",
		}
	}
	c.setPrincipal(p)
	return ldap.Result{Code: ldap.ResultSuccess}
}

func (c *Connection) writeBindResult(ctx context.Context, messageID int, r ldap.Result) {
	resp, err := ldap.NewBindResponse(messageID, r)
	if err != nil {
		return
	}
	if err := c.WriteMessage(ctx, resp); err != nil {
		c.log.Debug().Err(err).Msg("failed to write bind response")
	}
}
