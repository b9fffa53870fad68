package server

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"

	"github.com/KilimcininKorOglu/divan/internal/auth"
	"github.com/KilimcininKorOglu/divan/internal/ber"
	"github.com/KilimcininKorOglu/divan/internal/ldap"
)

// encodeBufs pools the buffers outbound messages are encoded into. The
// pool adapts to the message sizes a deployment actually produces.
var encodeBufs bytebufferpool.Pool

// connState is the immutable identity/transport snapshot of a
// connection. A new snapshot replaces the old one atomically; it is
// only built while the bind gate is held.
type connState struct {
	// transport carries LDAP frames. After a StartTLS upgrade this is
	// the *tls.Conn wrapping the original socket.
	transport net.Conn
	// secured is true once frames travel over TLS (LDAPS or StartTLS).
	secured bool
	// principal is the authorization identity established by the most
	// recent bind, or the anonymous principal.
	principal *auth.Principal
}

// Connection is one client session: a read loop, a registry of in-flight
// operations, and the gates that order them.
type Connection struct {
	id  string
	srv *Server
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Pointer[connState]

	writeGate *gate
	bindGate  *gate
	readGate  *gate

	pending pendingSet

	wg        sync.WaitGroup
	closeOnce sync.Once

	readTimeout  time.Duration
	writeTimeout time.Duration

	started time.Time
}

// newConnection wraps an accepted socket. The transport is considered
// secured from the start when it is already a TLS connection (LDAPS).
func newConnection(parent context.Context, nc net.Conn, srv *Server) *Connection {
	ctx, cancel := context.WithCancel(parent)
	_, secured := nc.(*tls.Conn)

	c := &Connection{
		id:           uuid.NewString(),
		srv:          srv,
		ctx:          ctx,
		cancel:       cancel,
		writeGate:    newGate(),
		bindGate:     newGate(),
		readGate:     newGate(),
		readTimeout:  srv.ReadTimeout,
		writeTimeout: srv.WriteTimeout,
		started:      time.Now(),
	}
	c.log = srv.logger().With().
		Str("conn", c.id).
		Str("remote", nc.RemoteAddr().String()).
		Logger()
	c.state.Store(&connState{
		transport: nc,
		secured:   secured,
		principal: auth.Anonymous(),
	})
	return c
}

// ConnID returns the connection's unique identifier.
func (c *Connection) ConnID() string { return c.id }

// Principal returns the current authorization identity.
func (c *Connection) Principal() *auth.Principal {
	return c.state.Load().principal
}

// Secured reports whether frames currently travel over TLS.
func (c *Connection) Secured() bool {
	return c.state.Load().secured
}

// setPrincipal publishes a new authorization identity. Caller holds the
// bind gate; it alone may replace the snapshot.
func (c *Connection) setPrincipal(p *auth.Principal) {
	st := c.state.Load()
	c.state.Store(&connState{
		transport: st.transport,
		secured:   st.secured,
		principal: p,
	})
}

// Close tears the connection down: it cancels the connection context
// and every pending operation, then closes the transport so blocked
// reads and writes fail fast. Idempotent.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		for _, op := range c.pending.snapshotExcept(-1) {
			op.cancel()
		}
		if st := c.state.Load(); st != nil {
			st.transport.Close()
		}
	})
}

// ResumeReading lets the read loop pull the next plaintext frame. It is
// a no-op once the transport is secured, and a no-op when the read gate
// is already free, so callers do not need to track whether the loop is
// actually blocked.
func (c *Connection) ResumeReading() {
	if c.state.Load().secured {
		return
	}
	c.readGate.release()
}

// serve runs the read loop until the client goes away, a protocol error
// forces a disconnect, or the server shuts the connection down.
func (c *Connection) serve() {
	defer c.cleanup()
	c.log.Info().Msg("connection established")

	for {
		msg, err := c.readMessage()
		if err != nil {
			c.logReadError(err)
			var syn *ber.SyntaxError
			var parse *ldap.ParseError
			switch {
			case errors.As(err, &syn), errors.As(err, &parse),
				errors.Is(err, ber.ErrIndefiniteLength), errors.Is(err, ber.ErrLengthOverflow):
				c.sendDisconnectNotice(ldap.ResultProtocolError, "malformed PDU")
			}
			return
		}
		if !c.handleMessage(msg) {
			return
		}
	}
}

// cleanup finishes teardown after the read loop exits: close, wait for
// operation goroutines, then log the session summary.
func (c *Connection) cleanup() {
	c.Close()
	c.wg.Wait()
	c.log.Info().
		Dur("duration", time.Since(c.started)).
		Msg("connection closed")
}

func (c *Connection) logReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		c.log.Debug().Msg("client closed connection")
	case errors.Is(err, net.ErrClosed), errors.Is(err, context.Canceled):
		// Local teardown already in progress.
	default:
		c.log.Warn().Err(err).Msg("read failed")
	}
}

// handleMessage routes one decoded message. It returns false when the
// read loop must stop.
func (c *Connection) handleMessage(msg *ldap.Message) bool {
	switch msg.Op.Tag {
	case ldap.TagUnbindRequest:
		c.log.Debug().Msg("unbind requested")
		c.Close()
		return false

	case ldap.TagAbandonRequest:
		if target, err := ldap.ParseAbandonRequest(msg.Op.Data); err == nil {
			c.Abandon(target)
		}
		// Abandon has no response, malformed or not.
		c.ResumeReading()
		return true
	}

	if msg.MessageID < 1 {
		// IDs at or below zero are reserved for unsolicited notifications
		// and must not appear on requests.
		c.rejectMessage(msg, ldap.ResultProtocolError, "invalid message ID")
		c.ResumeReading()
		return true
	}

	op, err := c.admit(msg.MessageID)
	if err != nil {
		if errors.Is(err, ErrDuplicateMessageID) {
			c.rejectMessage(msg, ldap.ResultProtocolError, "duplicate message ID")
			c.ResumeReading()
			return true
		}
		// Connection context canceled while waiting to admit.
		return false
	}

	c.wg.Add(1)
	go c.runOperation(op, msg)

	// Extended operations decide for themselves when reads resume:
	// StartTLS must keep the loop parked until the handshake boundary.
	if msg.Op.Tag != ldap.TagExtendedRequest {
		c.ResumeReading()
	}
	return true
}

// runOperation executes one admitted request and releases its slot.
func (c *Connection) runOperation(op *pendingOp, msg *ldap.Message) {
	defer c.wg.Done()
	defer c.finishOp(op)

	start := time.Now()
	c.dispatch(op.ctx, msg)
	c.log.Debug().
		Int("msgid", msg.MessageID).
		Str("op", msg.OperationName()).
		Dur("duration", time.Since(start)).
		Msg("operation finished")
}

// dispatch routes an admitted request to the operation the core owns or
// to the pluggable handler.
func (c *Connection) dispatch(ctx context.Context, msg *ldap.Message) {
	switch msg.Op.Tag {
	case ldap.TagBindRequest:
		c.handleBind(ctx, msg)
	case ldap.TagExtendedRequest:
		c.handleExtended(ctx, msg)
	case ldap.TagSearchRequest:
		c.handleSearch(ctx, msg)
	default:
		c.serveHandler(ctx, msg)
	}
}

// serveHandler forwards msg to the server's Handler, or refuses the
// operation when none is installed.
func (c *Connection) serveHandler(ctx context.Context, msg *ldap.Message) {
	h := c.srv.Handler
	if h == nil {
		c.rejectMessage(msg, ldap.ResultUnwillingToPerform, "operation not supported")
		return
	}
	h.ServeLDAP(ctx, c, msg)
}

// rejectMessage writes an error result matched to the request's tag.
// Requests without a response type are dropped silently.
func (c *Connection) rejectMessage(msg *ldap.Message, code ldap.ResultCode, diagnostic string) {
	tag := ldap.ResponseTagFor(msg.Op.Tag)
	if tag < 0 {
		return
	}
	resp, err := ldap.NewResultMessage(tag, msg.MessageID, ldap.Result{
		Code:       code,
		Diagnostic: diagnostic,
	})
	if err != nil {
		return
	}
	if err := c.WriteMessage(c.ctx, resp); err != nil {
		c.log.Debug().Err(err).Msg("failed to write error response")
	}
}

// WriteResult encodes and sends a result message for the given request
// tag. Part of the ResponseWriter surface handlers build replies with.
func (c *Connection) WriteResult(ctx context.Context, requestTag, messageID int, r ldap.Result) error {
	tag := ldap.ResponseTagFor(requestTag)
	if tag < 0 {
		return ldap.ErrInvalidOperation
	}
	msg, err := ldap.NewResultMessage(tag, messageID, r)
	if err != nil {
		return err
	}
	return c.WriteMessage(ctx, msg)
}

// WriteMessage encodes msg and writes it as one frame. The write gate
// guarantees the frame is not interleaved with concurrent writers; the
// transport snapshot is loaded after the gate is acquired so the frame
// goes out on the current transport.
func (c *Connection) WriteMessage(ctx context.Context, msg *ldap.Message) error {
	if err := c.writeGate.acquire(ctx); err != nil {
		return err
	}
	defer c.writeGate.release()

	buf := encodeBufs.Get()
	defer encodeBufs.Put(buf)

	enc := ber.NewEncoderBytes(buf.B[:0])
	if err := msg.EncodeTo(enc); err != nil {
		return err
	}
	buf.B = enc.Bytes()

	st := c.state.Load()
	if c.writeTimeout > 0 {
		st.transport.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer st.transport.SetWriteDeadline(time.Time{})
	}
	_, err := st.transport.Write(buf.B)
	return err
}

// readMessage pulls exactly one frame off the transport and decodes it.
// Unsecured reads pass through the read gate; once through, the state
// snapshot is reloaded because a StartTLS upgrade may have swapped the
// transport while the loop was parked.
func (c *Connection) readMessage() (*ldap.Message, error) {
	st := c.state.Load()
	if !st.secured {
		if err := c.readGate.acquire(c.ctx); err != nil {
			return nil, err
		}
		st = c.state.Load()
	}
	frame, err := c.readFrame(st.transport)
	if err != nil {
		return nil, err
	}
	return ldap.ParseMessage(frame)
}

// readFrame reads one complete BER element, never a byte more. Frame
// exactness is what makes the StartTLS transport swap sound: the next
// read after the swap starts at the TLS record boundary.
func (c *Connection) readFrame(tr net.Conn) ([]byte, error) {
	if c.readTimeout > 0 {
		tr.SetReadDeadline(time.Now().Add(c.readTimeout))
		defer tr.SetReadDeadline(time.Time{})
	}

	header := make([]byte, 2, 16)
	if _, err := io.ReadFull(tr, header); err != nil {
		return nil, err
	}

	length := int(header[1])
	switch {
	case length == int(ber.LengthLongFormBit):
		return nil, ber.ErrIndefiniteLength
	case length > int(ber.MaxShortFormLength):
		n := length & int(ber.MaxShortFormLength)
		if n > 4 {
			return nil, ber.ErrLengthOverflow
		}
		ext := make([]byte, n)
		if _, err := io.ReadFull(tr, ext); err != nil {
			return nil, err
		}
		header = append(header, ext...)
		length = 0
		for _, b := range ext {
			length = length<<8 | int(b)
		}
	}
	if length > ber.MaxLength {
		return nil, ber.ErrLengthOverflow
	}

	frame := make([]byte, len(header)+length)
	copy(frame, header)
	if _, err := io.ReadFull(tr, frame[len(header):]); err != nil {
		return nil, err
	}
	return frame, nil
}

// sendDisconnectNotice writes the Notice of Disconnection. Best effort;
// the connection is about to close either way.
func (c *Connection) sendDisconnectNotice(code ldap.ResultCode, diagnostic string) {
	notice, err := ldap.NewNoticeOfDisconnection(code, diagnostic)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WriteMessage(ctx, notice); err != nil {
		c.log.Debug().Err(err).Msg("failed to write disconnect notice")
	}
}
