package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/KilimcininKorOglu/divan/internal/auth"
	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// Defaults reported in the Root DSE when the server does not override them.
const (
	DefaultVendorName    = "Divan"
	DefaultVendorVersion = "dev"
)

// Policy holds the bind policy knobs evaluated inside the bind sequence.
type Policy struct {
	// AllowAnonymous permits the anonymous simple bind.
	AllowAnonymous bool
	// RequireTLSForBind refuses authenticated binds on unsecured
	// transports with confidentialityRequired.
	RequireTLSForBind bool
}

// Server accepts connections and runs one Connection state machine per
// client. The zero value is usable; fields must not be mutated after the
// first call to Serve.
type Server struct {
	// Handler serves the operations the connection core does not own.
	// Nil refuses them with unwillingToPerform.
	Handler Handler
	// Authenticator verifies simple bind credentials. Nil refuses
	// authenticated binds.
	Authenticator auth.Authenticator
	// TLSConfig enables StartTLS and LDAPS when set.
	TLSConfig *tls.Config
	// Policy is the bind policy. The zero value refuses anonymous binds.
	Policy Policy
	// Logger receives server and per-connection events. The zero value
	// discards everything.
	Logger zerolog.Logger

	// MaxConnections caps concurrently served connections per listener.
	// Zero means no cap.
	MaxConnections int
	// ReadTimeout bounds reading a single frame. Zero means no bound.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a single frame. Zero means no bound.
	WriteTimeout time.Duration

	// VendorName and VendorVersion are advertised in the Root DSE.
	VendorName    string
	VendorVersion string

	initOnce   sync.Once
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*Connection]struct{}
	inDown    bool

	connWG sync.WaitGroup
}

func (s *Server) logger() *zerolog.Logger { return &s.Logger }

func (s *Server) vendorName() string {
	if s.VendorName != "" {
		return s.VendorName
	}
	return DefaultVendorName
}

func (s *Server) vendorVersion() string {
	if s.VendorVersion != "" {
		return s.VendorVersion
	}
	return DefaultVendorVersion
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	})
}

// ListenAndServe listens on addr for plaintext LDAP and serves until
// Shutdown or a fatal accept error.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// ListenAndServeTLS listens on addr for LDAPS. Connections start with a
// secured transport; StartTLS on them is refused as already active.
func (s *Server) ListenAndServeTLS(addr string) error {
	if s.TLSConfig == nil {
		return ErrTLSNotConfigured
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(tls.NewListener(ln, s.TLSConfig))
}

// Serve accepts connections on ln until Shutdown, returning
// ErrServerClosed on a clean stop. Transient accept errors are retried
// with exponential backoff.
func (s *Server) Serve(ln net.Listener) error {
	s.init()
	if s.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.MaxConnections)
	}
	if !s.trackListener(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.logger().Info().Str("addr", ln.Addr().String()).Msg("listening")

	retry := &backoff.Backoff{
		Min:    5 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
		Jitter: true,
	}
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				d := retry.Duration()
				s.logger().Warn().Err(err).Dur("retry_in", d).Msg("accept failed")
				select {
				case <-time.After(d):
					continue
				case <-s.baseCtx.Done():
					return ErrServerClosed
				}
			}
			return err
		}
		retry.Reset()

		c := newConnection(s.baseCtx, nc, s)
		s.trackConn(c)
		go func() {
			defer s.untrackConn(c)
			c.serve()
		}()
	}
}

// Shutdown closes the listeners, notifies every connection with a Notice
// of Disconnection, tears the connections down, and waits for their
// goroutines until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.init()
	s.mu.Lock()
	s.inDown = true
	for ln := range s.listeners {
		ln.Close()
	}
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	s.baseCancel()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			c.sendDisconnectNotice(ldap.ResultUnavailable, "server shutting down")
			c.Close()
		}(c)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger().Info().Msg("shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inDown
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inDown {
		return false
	}
	if s.listeners == nil {
		s.listeners = make(map[net.Listener]struct{})
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) trackConn(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = make(map[*Connection]struct{})
	}
	s.conns[c] = struct{}{}
	s.connWG.Add(1)
}

func (s *Server) untrackConn(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.connWG.Done()
}

// ConnCount returns the number of connections currently being served.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
