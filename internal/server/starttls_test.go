package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// testTLSConfig builds a server TLS config with a self-signed loopback
// certificate.
func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "divan test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		MinVersion:   tls.VersionTLS12,
	}
}

func (rc *rawClient) startTLS() {
	rc.t.Helper()
	tc := tls.Client(rc.conn, &tls.Config{InsecureSkipVerify: true})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(rc.t, tc.HandshakeContext(ctx))
	rc.conn = tc
}

func TestServerStartTLS(t *testing.T) {
	addr := startTestServer(t, func(s *Server) { s.TLSConfig = testTLSConfig(t) })
	conn := dialLDAP(t, addr)

	require.NoError(t, conn.StartTLS(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, conn.Bind(testUserDN, testUserPassword))

	res, err := conn.WhoAmI(nil)
	require.NoError(t, err)
	assert.Equal(t, "dn:"+testUserDN, res.AuthzID)
}

func TestStartTLSNotConfigured(t *testing.T) {
	addr := startTestServer(t, nil)
	rc := dialRaw(t, addr)

	rc.send(extendedMsg(t, 1, StartTLSOID))
	resp := rc.recv()
	assert.Equal(t, 1, resp.MessageID)
	assert.Equal(t, ldap.ResultUnavailable, parseResult(t, resp.Op.Data).Code)

	// The connection survives the refusal.
	rc.send(extendedMsg(t, 2, WhoAmIOID))
	assert.Equal(t, 2, rc.recv().MessageID)
}

func TestStartTLSRefusedWhileOperationsPending(t *testing.T) {
	h := newParkingHandler()
	addr := startTestServer(t, func(s *Server) {
		s.Handler = h
		s.TLSConfig = testTLSConfig(t)
	})
	rc := dialRaw(t, addr)

	rc.send(modifyMsg(7))
	h.waitStarted(t, 1)

	// Two pending slots (7 and the StartTLS itself): ineligible.
	rc.send(extendedMsg(t, 8, StartTLSOID))
	resp := rc.recv()
	assert.Equal(t, 8, resp.MessageID)
	assert.Equal(t, ldap.ResultOperationsError, parseResult(t, resp.Op.Data).Code)

	// Clear the registry; the upgrade becomes eligible.
	close(h.release)
	resp = rc.recv()
	assert.Equal(t, 7, resp.MessageID)

	rc.send(extendedMsg(t, 9, StartTLSOID))
	resp = rc.recv()
	assert.Equal(t, 9, resp.MessageID)
	assert.Equal(t, ldap.ResultSuccess, parseResult(t, resp.Op.Data).Code)

	rc.startTLS()

	// Frames now travel over the secured transport.
	rc.send(extendedMsg(t, 10, WhoAmIOID))
	resp = rc.recv()
	assert.Equal(t, 10, resp.MessageID)
	assert.Equal(t, ldap.ResultSuccess, parseResult(t, resp.Op.Data).Code)
}

func TestStartTLSAlreadyActive(t *testing.T) {
	addr := startTestServer(t, func(s *Server) { s.TLSConfig = testTLSConfig(t) })
	rc := dialRaw(t, addr)

	rc.send(extendedMsg(t, 1, StartTLSOID))
	require.Equal(t, ldap.ResultSuccess, parseResult(t, rc.recv().Op.Data).Code)
	rc.startTLS()

	rc.send(extendedMsg(t, 2, StartTLSOID))
	resp := rc.recv()
	assert.Equal(t, 2, resp.MessageID)
	assert.Equal(t, ldap.ResultOperationsError, parseResult(t, resp.Op.Data).Code)
}

func TestServerLDAPS(t *testing.T) {
	tlsCfg := testTLSConfig(t)
	srv := &Server{
		Authenticator: staticAuth(t),
		Policy:        Policy{AllowAnonymous: true},
		TLSConfig:     tlsCfg,
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(tls.NewListener(ln, tlsCfg)) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		require.ErrorIs(t, <-served, ErrServerClosed)
	})

	conn, err := goldap.DialURL("ldaps://"+ln.Addr().String(),
		goldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.Bind(testUserDN, testUserPassword))

	// StartTLS on an already-secured transport is refused.
	err = conn.StartTLS(&tls.Config{InsecureSkipVerify: true})
	require.Error(t, err)
}
