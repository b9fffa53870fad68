package server

import (
	"context"
	"strings"

	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// handleSearch answers the Root DSE probe itself and forwards everything
// else to the installed handler.
func (c *Connection) handleSearch(ctx context.Context, msg *ldap.Message) {
	req, err := ldap.ParseSearchRequest(msg.Op.Data)
	if err != nil {
		c.rejectMessage(msg, ldap.ResultProtocolError, "malformed search request")
		return
	}
	if req.IsRootDSE() {
		c.handleRootDSE(ctx, msg.MessageID, req)
		return
	}
	c.serveHandler(ctx, msg)
}

// handleRootDSE serves the base-scope search of the empty DN that
// clients use to discover server capabilities (RFC 4512 Section 5.1).
func (c *Connection) handleRootDSE(ctx context.Context, messageID int, req *ldap.SearchRequest) {
	attrs := []ldap.Attribute{
		{Type: "objectClass", Values: [][]byte{[]byte("top"), []byte("extensibleObject")}},
		{Type: "supportedLDAPVersion", Values: [][]byte{[]byte("3")}},
		{Type: "supportedExtension", Values: [][]byte{
			[]byte(StartTLSOID),
			[]byte(WhoAmIOID),
		}},
		{Type: "vendorName", Values: [][]byte{[]byte(c.srv.vendorName())}},
		{Type: "vendorVersion", Values: [][]byte{[]byte(c.srv.vendorVersion())}},
	}
	attrs = selectAttributes(attrs, req.Attributes, req.TypesOnly)

	entry, err := ldap.NewSearchEntry(messageID, "", attrs)
	if err != nil {
		return
	}
	if err := c.WriteMessage(ctx, entry); err != nil {
		c.log.Debug().Err(err).Msg("failed to write root DSE entry")
		return
	}
	done, err := ldap.NewSearchDone(messageID, ldap.Result{Code: ldap.ResultSuccess})
	if err != nil {
		return
	}
	if err := c.WriteMessage(ctx, done); err != nil {
		c.log.Debug().Err(err).Msg("failed to write search done")
	}
}

// selectAttributes applies the request's attribute selection. An empty
// list and "*" both mean all user attributes; "1.1" means none.
func selectAttributes(attrs []ldap.Attribute, requested []string, typesOnly bool) []ldap.Attribute {
	out := attrs
	if len(requested) > 0 {
		wanted := make(map[string]bool, len(requested))
		all := false
		for _, a := range requested {
			switch a {
			case "*":
				all = true
			case "1.1":
			default:
				wanted[strings.ToLower(a)] = true
			}
		}
		if !all {
			out = out[:0:0]
			for _, attr := range attrs {
				if wanted[strings.ToLower(attr.Type)] {
					out = append(out, attr)
				}
			}
		}
	}
	if typesOnly {
		stripped := make([]ldap.Attribute, len(out))
		for i, attr := range out {
			stripped[i] = ldap.Attribute{Type: attr.Type}
		}
		out = stripped
	}
	return out
}
