package server

import (
	"context"
	"net"
	"testing"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/divan/internal/auth"
	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

const (
	testUserDN       = "cn=admin,dc=example,dc=com"
	testUserPassword = "secret"
)

func staticAuth(t *testing.T) *auth.Static {
	t.Helper()
	hash, err := auth.HashPassword(testUserPassword, auth.SchemeSSHA256)
	require.NoError(t, err)
	return auth.NewStatic(map[string]string{testUserDN: hash})
}

// startTestServer runs a server on a loopback listener and returns its
// address. Shutdown is verified during cleanup.
func startTestServer(t *testing.T, configure func(*Server)) string {
	t.Helper()

	srv := &Server{
		Authenticator: staticAuth(t),
		Policy:        Policy{AllowAnonymous: true},
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
	}
	if configure != nil {
		configure(srv)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		require.ErrorIs(t, <-served, ErrServerClosed)
	})
	return ln.Addr().String()
}

func dialLDAP(t *testing.T, addr string) *goldap.Conn {
	t.Helper()
	conn, err := goldap.DialURL("ldap://" + addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerBindAndWhoAmI(t *testing.T) {
	addr := startTestServer(t, nil)
	conn := dialLDAP(t, addr)

	require.NoError(t, conn.Bind(testUserDN, testUserPassword))

	res, err := conn.WhoAmI(nil)
	require.NoError(t, err)
	assert.Equal(t, "dn:"+testUserDN, res.AuthzID)
}

func TestServerAnonymousWhoAmIIsEmpty(t *testing.T) {
	addr := startTestServer(t, nil)
	conn := dialLDAP(t, addr)

	require.NoError(t, conn.UnauthenticatedBind(""))

	res, err := conn.WhoAmI(nil)
	require.NoError(t, err)
	assert.Empty(t, res.AuthzID)
}

func TestServerBindInvalidCredentials(t *testing.T) {
	addr := startTestServer(t, nil)
	conn := dialLDAP(t, addr)

	err := conn.Bind(testUserDN, "wrong")
	require.Error(t, err)
	assert.True(t, goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials))

	// A failed bind leaves the connection anonymous but alive.
	res, err := conn.WhoAmI(nil)
	require.NoError(t, err)
	assert.Empty(t, res.AuthzID)
}

func TestServerAnonymousBindDisallowed(t *testing.T) {
	addr := startTestServer(t, func(s *Server) {
		s.Policy.AllowAnonymous = false
	})
	conn := dialLDAP(t, addr)

	err := conn.UnauthenticatedBind("")
	require.Error(t, err)
	assert.True(t, goldap.IsErrorWithCode(err, goldap.LDAPResultInappropriateAuthentication))
}

func TestServerBindRequiresTLS(t *testing.T) {
	addr := startTestServer(t, func(s *Server) {
		s.Policy.RequireTLSForBind = true
	})
	conn := dialLDAP(t, addr)

	err := conn.Bind(testUserDN, testUserPassword)
	require.Error(t, err)
	assert.True(t, goldap.IsErrorWithCode(err, goldap.LDAPResultConfidentialityRequired))
}

func TestServerRootDSE(t *testing.T) {
	addr := startTestServer(t, func(s *Server) {
		s.VendorName = "Divan Test"
		s.VendorVersion = "0.0.0"
	})
	conn := dialLDAP(t, addr)

	req := goldap.NewSearchRequest(
		"", goldap.ScopeBaseObject, goldap.NeverDerefAliases,
		0, 0, false, "(objectClass=*)", []string{"*"}, nil,
	)
	res, err := conn.Search(req)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	entry := res.Entries[0]
	assert.Equal(t, "", entry.DN)
	assert.Equal(t, "3", entry.GetAttributeValue("supportedLDAPVersion"))
	assert.Contains(t, entry.GetAttributeValues("supportedExtension"), StartTLSOID)
	assert.Contains(t, entry.GetAttributeValues("supportedExtension"), WhoAmIOID)
	assert.Equal(t, "Divan Test", entry.GetAttributeValue("vendorName"))
	assert.Equal(t, "0.0.0", entry.GetAttributeValue("vendorVersion"))
}

func TestServerRootDSEAttributeSelection(t *testing.T) {
	addr := startTestServer(t, nil)
	conn := dialLDAP(t, addr)

	req := goldap.NewSearchRequest(
		"", goldap.ScopeBaseObject, goldap.NeverDerefAliases,
		0, 0, false, "(objectClass=*)", []string{"supportedLDAPVersion"}, nil,
	)
	res, err := conn.Search(req)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	entry := res.Entries[0]
	assert.Equal(t, "3", entry.GetAttributeValue("supportedLDAPVersion"))
	assert.Empty(t, entry.GetAttributeValue("vendorName"))
}

func TestServerRefusesUnhandledOperations(t *testing.T) {
	addr := startTestServer(t, nil)
	conn := dialLDAP(t, addr)

	err := conn.Add(goldap.NewAddRequest("cn=x,dc=example,dc=com", nil))
	require.Error(t, err)
	assert.True(t, goldap.IsErrorWithCode(err, goldap.LDAPResultUnwillingToPerform))
}

func TestServerCustomHandler(t *testing.T) {
	addr := startTestServer(t, func(s *Server) {
		s.Handler = HandlerFunc(func(ctx context.Context, w ResponseWriter, msg *ldap.Message) {
			w.WriteResult(ctx, msg.Op.Tag, msg.MessageID, ldap.Result{Code: ldap.ResultSuccess})
		})
	})
	conn := dialLDAP(t, addr)

	require.NoError(t, conn.Del(goldap.NewDelRequest("cn=x,dc=example,dc=com", nil)))
}

func TestServerConnCount(t *testing.T) {
	var srv *Server
	addr := startTestServer(t, func(s *Server) { srv = s })

	conn := dialLDAP(t, addr)
	require.NoError(t, conn.UnauthenticatedBind(""))
	assert.Equal(t, 1, srv.ConnCount())
}
