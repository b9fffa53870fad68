package ldap

import (
	"github.com/KilimcininKorOglu/divan/internal/ber"
)

// NoticeOfDisconnectionOID identifies the unsolicited notification a
// server sends before terminating connections (RFC 4511 Section 4.4.1).
const NoticeOfDisconnectionOID = "1.3.6.1.4.1.1466.20036"

// ExtendedResponse context tags per RFC 4511 Section 4.12.
const (
	contextTagResponseName  = 10
	contextTagResponseValue = 11
)

// Result carries the LDAPResult triple shared by most responses.
type Result struct {
	Code       ResultCode
	MatchedDN  string
	Diagnostic string
}

// Attribute is one attribute of a search result entry.
type Attribute struct {
	Type   string
	Values [][]byte
}

// writeResult encodes the COMPONENTS OF LDAPResult.
func writeResult(e *ber.Encoder, r Result) error {
	if err := e.WriteEnumerated(int64(r.Code)); err != nil {
		return err
	}
	if err := e.WriteOctetString([]byte(r.MatchedDN)); err != nil {
		return err
	}
	return e.WriteOctetString([]byte(r.Diagnostic))
}

// NewResultMessage builds a response message of the given APPLICATION tag
// whose body is a bare LDAPResult (SearchResultDone, ModifyResponse, ...).
func NewResultMessage(tag, messageID int, r Result) (*Message, error) {
	e := ber.NewEncoder(64)
	if err := writeResult(e, r); err != nil {
		return nil, err
	}
	return &Message{MessageID: messageID, Op: RawOp{Tag: tag, Data: e.Bytes()}}, nil
}

// NewBindResponse builds a BindResponse message. The optional
// serverSaslCreds field is never emitted; SASL is not negotiated here.
func NewBindResponse(messageID int, r Result) (*Message, error) {
	return NewResultMessage(TagBindResponse, messageID, r)
}

// ExtendedResponse describes an [APPLICATION 24] response.
type ExtendedResponse struct {
	Result Result
	OID    string
	Value  []byte
}

// NewExtendedResponse builds an ExtendedResponse message.
func NewExtendedResponse(messageID int, resp ExtendedResponse) (*Message, error) {
	e := ber.NewEncoder(128)
	if err := writeResult(e, resp.Result); err != nil {
		return nil, err
	}
	if resp.OID != "" {
		if err := e.WriteTagged(contextTagResponseName, false, []byte(resp.OID)); err != nil {
			return nil, err
		}
	}
	if len(resp.Value) > 0 {
		if err := e.WriteTagged(contextTagResponseValue, false, resp.Value); err != nil {
			return nil, err
		}
	}
	return &Message{MessageID: messageID, Op: RawOp{Tag: TagExtendedResponse, Data: e.Bytes()}}, nil
}

// NewSearchEntry builds a SearchResultEntry message:
//
//	SearchResultEntry ::= [APPLICATION 4] SEQUENCE {
//	    objectName LDAPDN,
//	    attributes PartialAttributeList }
func NewSearchEntry(messageID int, dn string, attrs []Attribute) (*Message, error) {
	e := ber.NewEncoder(256)
	if err := e.WriteOctetString([]byte(dn)); err != nil {
		return nil, err
	}
	list := e.BeginSequence()
	for _, attr := range attrs {
		seq := e.BeginSequence()
		if err := e.WriteOctetString([]byte(attr.Type)); err != nil {
			return nil, err
		}
		set := e.BeginSet()
		for _, v := range attr.Values {
			if err := e.WriteOctetString(v); err != nil {
				return nil, err
			}
		}
		if err := e.End(set); err != nil {
			return nil, err
		}
		if err := e.End(seq); err != nil {
			return nil, err
		}
	}
	if err := e.End(list); err != nil {
		return nil, err
	}
	return &Message{MessageID: messageID, Op: RawOp{Tag: TagSearchResultEntry, Data: e.Bytes()}}, nil
}

// NewSearchDone builds a SearchResultDone message.
func NewSearchDone(messageID int, r Result) (*Message, error) {
	return NewResultMessage(TagSearchResultDone, messageID, r)
}

// NewNoticeOfDisconnection builds the RFC 4511 unsolicited notification:
// an ExtendedResponse with message ID 0 and no response expected.
func NewNoticeOfDisconnection(code ResultCode, diagnostic string) (*Message, error) {
	return NewExtendedResponse(0, ExtendedResponse{
		Result: Result{Code: code, Diagnostic: diagnostic},
		OID:    NoticeOfDisconnectionOID,
	})
}

// ResponseTagFor maps a request operation tag to its response tag, or -1
// for operations that have no response (unbind, abandon).
func ResponseTagFor(requestTag int) int {
	switch requestTag {
	case TagBindRequest:
		return TagBindResponse
	case TagSearchRequest:
		return TagSearchResultDone
	case TagModifyRequest:
		return TagModifyResponse
	case TagAddRequest:
		return TagAddResponse
	case TagDelRequest:
		return TagDelResponse
	case TagModifyDNRequest:
		return TagModifyDNResponse
	case TagCompareRequest:
		return TagCompareResponse
	case TagExtendedRequest:
		return TagExtendedResponse
	default:
		return -1
	}
}
