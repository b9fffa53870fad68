package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/divan/internal/ber"
)

// AuthenticationChoice context tags per RFC 4511 Section 4.2.
const (
	authChoiceSimple = 0
	authChoiceSASL   = 3
)

// Request parsing errors.
var (
	// ErrInvalidBindVersion is returned when the bind version is outside 1..127.
	ErrInvalidBindVersion = errors.New("ldap: bind version must be between 1 and 127")
	// ErrUnknownAuthMethod is returned for an unrecognized AuthenticationChoice tag.
	ErrUnknownAuthMethod = errors.New("ldap: unknown authentication method")
	// ErrInvalidScope is returned for an out-of-range search scope.
	ErrInvalidScope = errors.New("ldap: invalid search scope")
)

// AuthMethod identifies the AuthenticationChoice used in a BindRequest.
type AuthMethod int

const (
	// AuthSimple is password authentication.
	AuthSimple AuthMethod = iota
	// AuthSASL is SASL authentication.
	AuthSASL
)

// String returns the method name.
func (a AuthMethod) String() string {
	switch a {
	case AuthSimple:
		return "Simple"
	case AuthSASL:
		return "SASL"
	default:
		return "Unknown"
	}
}

// BindRequest is [APPLICATION 0] SEQUENCE { version, name, authentication }.
type BindRequest struct {
	Version  int
	Name     string
	Method   AuthMethod
	Password []byte
	// SASLMechanism and SASLCredentials carry the [3] choice when Method
	// is AuthSASL. The core only inspects the mechanism name.
	SASLMechanism   string
	SASLCredentials []byte
}

// IsAnonymous reports whether this is an anonymous simple bind
// (empty name, empty password) per RFC 4513 Section 5.1.1.
func (r *BindRequest) IsAnonymous() bool {
	return r.Name == "" && r.Method == AuthSimple && len(r.Password) == 0
}

// ParseBindRequest parses BindRequest content octets.
func ParseBindRequest(data []byte) (*BindRequest, error) {
	if len(data) == 0 {
		return nil, parseErr(0, "empty bind request", nil)
	}

	d := ber.NewDecoder(data)
	req := &BindRequest{}

	version, err := d.ReadInteger()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read bind version", err)
	}
	if version < 1 || version > 127 {
		return nil, ErrInvalidBindVersion
	}
	req.Version = int(version)

	name, err := d.ReadOctetString()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read bind name", err)
	}
	req.Name = string(name)

	tag, constructed, auth, err := d.ReadTagged()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read authentication choice", err)
	}
	switch tag {
	case authChoiceSimple:
		req.Method = AuthSimple
		req.Password = auth
	case authChoiceSASL:
		if !constructed {
			return nil, parseErr(d.Offset(), "SASL credentials must be constructed", nil)
		}
		sasl := ber.NewDecoder(auth)
		mech, err := sasl.ReadOctetString()
		if err != nil {
			return nil, parseErr(d.Offset(), "failed to read SASL mechanism", err)
		}
		req.Method = AuthSASL
		req.SASLMechanism = string(mech)
		if sasl.Remaining() > 0 {
			creds, err := sasl.ReadOctetString()
			if err != nil {
				return nil, parseErr(d.Offset(), "failed to read SASL credentials", err)
			}
			req.SASLCredentials = creds
		}
	default:
		return nil, ErrUnknownAuthMethod
	}

	return req, nil
}

// EncodeBindRequest builds BindRequest content octets; the test harness
// uses it to drive connections without a full client library.
func EncodeBindRequest(req *BindRequest) ([]byte, error) {
	e := ber.NewEncoder(128)
	if err := e.WriteInteger(int64(req.Version)); err != nil {
		return nil, err
	}
	if err := e.WriteOctetString([]byte(req.Name)); err != nil {
		return nil, err
	}
	switch req.Method {
	case AuthSimple:
		if err := e.WriteTagged(authChoiceSimple, false, req.Password); err != nil {
			return nil, err
		}
	case AuthSASL:
		inner := ber.NewEncoder(64)
		if err := inner.WriteOctetString([]byte(req.SASLMechanism)); err != nil {
			return nil, err
		}
		if len(req.SASLCredentials) > 0 {
			if err := inner.WriteOctetString(req.SASLCredentials); err != nil {
				return nil, err
			}
		}
		if err := e.WriteTagged(authChoiceSASL, true, inner.Bytes()); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownAuthMethod
	}
	return e.Bytes(), nil
}

// ParseAbandonRequest parses AbandonRequest content. The operation is
// [APPLICATION 16] IMPLICIT MessageID, so the content octets are the bare
// two's complement integer.
func ParseAbandonRequest(data []byte) (int, error) {
	id, err := ber.ParseInt(data)
	if err != nil {
		return 0, parseErr(0, "invalid abandon target", err)
	}
	if id < MinMessageID || id > MaxMessageID {
		return 0, ErrInvalidMessageID
	}
	return int(id), nil
}

// ExtendedRequest is [APPLICATION 23] SEQUENCE { requestName [0], requestValue [1] OPTIONAL }.
type ExtendedRequest struct {
	OID   string
	Value []byte
}

// ParseExtendedRequest parses ExtendedRequest content octets.
func ParseExtendedRequest(data []byte) (*ExtendedRequest, error) {
	if len(data) == 0 {
		return nil, parseErr(0, "empty extended request", nil)
	}

	d := ber.NewDecoder(data)
	req := &ExtendedRequest{}

	tag, _, oid, err := d.ReadTagged()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read requestName", err)
	}
	if tag != 0 {
		return nil, parseErr(d.Offset(), "expected [0] requestName", ber.ErrTagMismatch)
	}
	req.OID = string(oid)

	if d.Remaining() > 0 && d.IsContextTag(1) {
		_, _, value, err := d.ReadTagged()
		if err != nil {
			return nil, parseErr(d.Offset(), "failed to read requestValue", err)
		}
		req.Value = value
	}

	return req, nil
}

// Scope values for SearchRequest per RFC 4511 Section 4.5.1.2.
type Scope int

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// SearchRequest is the subset of [APPLICATION 3] the core needs: enough
// to recognize a Root DSE probe and hand everything else to the handler
// layer. The filter is retained as raw BER for that layer.
type SearchRequest struct {
	BaseObject string
	Scope      Scope
	SizeLimit  int
	TimeLimit  int
	TypesOnly  bool
	RawFilter  []byte
	Attributes []string
}

// IsRootDSE reports whether the request targets the Root DSE: a
// base-scope search of the empty DN (RFC 4512 Section 5.1).
func (r *SearchRequest) IsRootDSE() bool {
	return r.BaseObject == "" && r.Scope == ScopeBaseObject
}

// ParseSearchRequest parses SearchRequest content octets.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	if len(data) == 0 {
		return nil, parseErr(0, "empty search request", nil)
	}

	d := ber.NewDecoder(data)
	req := &SearchRequest{}

	base, err := d.ReadOctetString()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read baseObject", err)
	}
	req.BaseObject = string(base)

	scope, err := d.ReadEnumerated()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read scope", err)
	}
	if scope < 0 || scope > 2 {
		return nil, ErrInvalidScope
	}
	req.Scope = Scope(scope)

	// derefAliases is parsed and ignored; alias handling belongs to the
	// backend behind the handler layer.
	if _, err := d.ReadEnumerated(); err != nil {
		return nil, parseErr(d.Offset(), "failed to read derefAliases", err)
	}

	sizeLimit, err := d.ReadInteger()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read sizeLimit", err)
	}
	req.SizeLimit = int(sizeLimit)

	timeLimit, err := d.ReadInteger()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read timeLimit", err)
	}
	req.TimeLimit = int(timeLimit)

	typesOnly, err := d.ReadBoolean()
	if err != nil {
		return nil, parseErr(d.Offset(), "failed to read typesOnly", err)
	}
	req.TypesOnly = typesOnly

	// Filter: any tagged element; keep it raw.
	filterStart := d.Offset()
	if err := d.Skip(); err != nil {
		return nil, parseErr(filterStart, "failed to read filter", err)
	}
	req.RawFilter, err = reslice(data, filterStart, d.Offset())
	if err != nil {
		return nil, err
	}

	// attributes: SEQUENCE OF LDAPString.
	if d.Remaining() > 0 {
		attrs, err := d.Sequence()
		if err != nil {
			return nil, parseErr(d.Offset(), "failed to read attribute list", err)
		}
		for attrs.Remaining() > 0 {
			attr, err := attrs.ReadOctetString()
			if err != nil {
				return nil, parseErr(attrs.Offset(), "failed to read attribute", err)
			}
			req.Attributes = append(req.Attributes, string(attr))
		}
	}

	return req, nil
}

func reslice(data []byte, start, end int) ([]byte, error) {
	if start < 0 || end > len(data) || start > end {
		return nil, ber.ErrUnexpectedEOF
	}
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out, nil
}

// ParseUnbindRequest validates UnbindRequest content. The operation is
// [APPLICATION 2] IMPLICIT NULL; anything else is a protocol error.
func ParseUnbindRequest(data []byte) error {
	if len(data) != 0 {
		return parseErr(0, "unbind request must be empty", nil)
	}
	return nil
}
