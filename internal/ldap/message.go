package ldap

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/divan/internal/ber"
)

// Protocol operation tags (APPLICATION class) per RFC 4511 Section 4.2.
const (
	TagBindRequest       = 0
	TagBindResponse      = 1
	TagUnbindRequest     = 2
	TagSearchRequest     = 3
	TagSearchResultEntry = 4
	TagSearchResultDone  = 5
	TagModifyRequest     = 6
	TagModifyResponse    = 7
	TagAddRequest        = 8
	TagAddResponse       = 9
	TagDelRequest        = 10
	TagDelResponse       = 11
	TagModifyDNRequest   = 12
	TagModifyDNResponse  = 13
	TagCompareRequest    = 14
	TagCompareResponse   = 15
	TagAbandonRequest    = 16
	TagExtendedRequest   = 23
	TagExtendedResponse  = 24
)

// Message ID bounds per RFC 4511: MessageID ::= INTEGER (0 .. maxInt).
// ID 0 is reserved for unsolicited notifications.
const (
	MinMessageID = 0
	MaxMessageID = 2147483647
)

// ContextTagControls is the context tag of the optional Controls field.
const ContextTagControls = 0

// Envelope errors.
var (
	// ErrEmptyMessage is returned when parsing zero-length data.
	ErrEmptyMessage = errors.New("ldap: empty message data")
	// ErrInvalidMessageID is returned when the message ID is out of range.
	ErrInvalidMessageID = errors.New("ldap: message ID out of range")
	// ErrMissingOperation is returned when encoding a message without an operation.
	ErrMissingOperation = errors.New("ldap: missing protocol operation")
	// ErrInvalidOperation is returned when the protocol op lacks the APPLICATION class.
	ErrInvalidOperation = errors.New("ldap: protocol operation must be APPLICATION class")
)

// ParseError reports a message parsing failure with its byte offset.
type ParseError struct {
	Offset  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ldap: parse error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ldap: parse error at offset %d: %s", e.Offset, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(offset int, message string, err error) *ParseError {
	return &ParseError{Offset: offset, Message: message, Err: err}
}

// Control is an LDAP control per RFC 4511 Section 4.1.11.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
}

// RawOp carries an undecoded protocol operation: its APPLICATION tag and
// the content octets, without identifier and length.
type RawOp struct {
	Tag  int
	Data []byte
}

// Message is the LDAPMessage envelope:
//
//	LDAPMessage ::= SEQUENCE {
//	    messageID   MessageID,
//	    protocolOp  CHOICE { ... },
//	    controls    [0] Controls OPTIONAL }
type Message struct {
	MessageID int
	Op        RawOp
	Controls  []Control
}

// OperationName returns a human-readable name for the message's operation tag.
func (m *Message) OperationName() string {
	switch m.Op.Tag {
	case TagBindRequest:
		return "BindRequest"
	case TagBindResponse:
		return "BindResponse"
	case TagUnbindRequest:
		return "UnbindRequest"
	case TagSearchRequest:
		return "SearchRequest"
	case TagSearchResultEntry:
		return "SearchResultEntry"
	case TagSearchResultDone:
		return "SearchResultDone"
	case TagModifyRequest:
		return "ModifyRequest"
	case TagModifyResponse:
		return "ModifyResponse"
	case TagAddRequest:
		return "AddRequest"
	case TagAddResponse:
		return "AddResponse"
	case TagDelRequest:
		return "DelRequest"
	case TagDelResponse:
		return "DelResponse"
	case TagModifyDNRequest:
		return "ModifyDNRequest"
	case TagModifyDNResponse:
		return "ModifyDNResponse"
	case TagCompareRequest:
		return "CompareRequest"
	case TagCompareResponse:
		return "CompareResponse"
	case TagAbandonRequest:
		return "AbandonRequest"
	case TagExtendedRequest:
		return "ExtendedRequest"
	case TagExtendedResponse:
		return "ExtendedResponse"
	default:
		return fmt.Sprintf("Unknown(%d)", m.Op.Tag)
	}
}

// ParseMessage parses a complete BER-encoded LDAPMessage.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	d := ber.NewDecoder(data)
	seq, err := d.Sequence()
	if err != nil {
		return nil, parseErr(0, "expected SEQUENCE for LDAPMessage", err)
	}

	id, err := seq.ReadInteger()
	if err != nil {
		return nil, parseErr(seq.Offset(), "failed to read messageID", err)
	}
	if id < MinMessageID || id > MaxMessageID {
		return nil, ErrInvalidMessageID
	}

	opStart := seq.Offset()
	class, _, tag, err := seq.ReadTag()
	if err != nil {
		return nil, parseErr(opStart, "failed to read protocolOp tag", err)
	}
	if class != ber.ClassApplication {
		return nil, parseErr(opStart, "protocolOp tag class", ErrInvalidOperation)
	}
	opLen, err := seq.ReadLength()
	if err != nil {
		return nil, parseErr(seq.Offset(), "failed to read protocolOp length", err)
	}
	opData, err := seq.ReadRaw(opLen)
	if err != nil {
		return nil, parseErr(seq.Offset(), "truncated protocolOp", err)
	}

	msg := &Message{
		MessageID: int(id),
		Op:        RawOp{Tag: tag, Data: opData},
	}

	if seq.Remaining() > 0 && seq.IsContextTag(ContextTagControls) {
		controls, err := parseControls(seq)
		if err != nil {
			return nil, parseErr(seq.Offset(), "failed to parse controls", err)
		}
		msg.Controls = controls
	}

	return msg, nil
}

// parseControls parses [0] Controls: a SEQUENCE OF Control.
func parseControls(d *ber.Decoder) ([]Control, error) {
	_, _, content, err := d.ReadTagged()
	if err != nil {
		return nil, err
	}
	inner := ber.NewDecoder(content)

	var controls []Control
	for inner.Remaining() > 0 {
		ctrl, err := parseControl(inner)
		if err != nil {
			return nil, err
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

// parseControl parses one Control SEQUENCE.
func parseControl(d *ber.Decoder) (Control, error) {
	ctrl := Control{}

	seq, err := d.Sequence()
	if err != nil {
		return ctrl, err
	}
	oid, err := seq.ReadOctetString()
	if err != nil {
		return ctrl, parseErr(seq.Offset(), "failed to read control OID", err)
	}
	ctrl.OID = string(oid)

	if seq.Remaining() > 0 {
		if class, _, tag, err := seq.PeekTag(); err == nil && class == ber.ClassUniversal && tag == ber.TagBoolean {
			crit, err := seq.ReadBoolean()
			if err != nil {
				return ctrl, parseErr(seq.Offset(), "failed to read control criticality", err)
			}
			ctrl.Criticality = crit
		}
	}
	if seq.Remaining() > 0 {
		if class, _, tag, err := seq.PeekTag(); err == nil && class == ber.ClassUniversal && tag == ber.TagOctetString {
			value, err := seq.ReadOctetString()
			if err != nil {
				return ctrl, parseErr(seq.Offset(), "failed to read control value", err)
			}
			ctrl.Value = value
		}
	}
	return ctrl, nil
}

// Encode serializes the message envelope into a fresh buffer.
func (m *Message) Encode() ([]byte, error) {
	e := ber.NewEncoder(256)
	if err := m.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo serializes the message envelope into the given encoder, so the
// write path can reuse pooled buffers.
func (m *Message) EncodeTo(e *ber.Encoder) error {
	if m.MessageID < MinMessageID || m.MessageID > MaxMessageID {
		return ErrInvalidMessageID
	}
	if m.Op.Tag < 0 {
		return ErrMissingOperation
	}

	seq := e.BeginSequence()
	if err := e.WriteInteger(int64(m.MessageID)); err != nil {
		return err
	}

	if isPrimitiveOp(m.Op.Tag) {
		if err := e.WriteApplicationPrimitive(m.Op.Tag, m.Op.Data); err != nil {
			return err
		}
	} else {
		app := e.BeginApplication(m.Op.Tag)
		e.WriteRaw(m.Op.Data)
		if err := e.End(app); err != nil {
			return err
		}
	}

	if len(m.Controls) > 0 {
		if err := encodeControls(e, m.Controls); err != nil {
			return err
		}
	}
	return e.End(seq)
}

// isPrimitiveOp reports whether the operation's APPLICATION tag is an
// IMPLICIT primitive type rather than a SEQUENCE.
func isPrimitiveOp(tag int) bool {
	switch tag {
	case TagUnbindRequest, TagAbandonRequest, TagDelRequest:
		return true
	default:
		return false
	}
}

// encodeControls writes the [0] Controls field.
func encodeControls(e *ber.Encoder, controls []Control) error {
	ctx := e.BeginContext(ContextTagControls)
	for _, ctrl := range controls {
		seq := e.BeginSequence()
		if err := e.WriteOctetString([]byte(ctrl.OID)); err != nil {
			return err
		}
		if ctrl.Criticality {
			if err := e.WriteBoolean(true); err != nil {
				return err
			}
		}
		if len(ctrl.Value) > 0 {
			if err := e.WriteOctetString(ctrl.Value); err != nil {
				return err
			}
		}
		if err := e.End(seq); err != nil {
			return err
		}
	}
	return e.End(ctx)
}
