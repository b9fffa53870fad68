package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/divan/internal/ber"
)

func TestParseBindRequestAnonymous(t *testing.T) {
	data, err := EncodeBindRequest(&BindRequest{Version: 3, Method: AuthSimple})
	require.NoError(t, err)

	req, err := ParseBindRequest(data)
	require.NoError(t, err)
	assert.True(t, req.IsAnonymous())
}

func TestParseBindRequestSASL(t *testing.T) {
	data, err := EncodeBindRequest(&BindRequest{
		Version:         3,
		Method:          AuthSASL,
		SASLMechanism:   "EXTERNAL",
		SASLCredentials: []byte("authzid"),
	})
	require.NoError(t, err)

	req, err := ParseBindRequest(data)
	require.NoError(t, err)
	assert.Equal(t, AuthSASL, req.Method)
	assert.Equal(t, "EXTERNAL", req.SASLMechanism)
	assert.Equal(t, []byte("authzid"), req.SASLCredentials)
	assert.False(t, req.IsAnonymous())
}

func TestParseBindRequestRejectsBadVersion(t *testing.T) {
	e := ber.NewEncoder(32)
	require.NoError(t, e.WriteInteger(0))
	require.NoError(t, e.WriteOctetString(nil))
	require.NoError(t, e.WriteTagged(0, false, nil))

	_, err := ParseBindRequest(e.Bytes())
	require.ErrorIs(t, err, ErrInvalidBindVersion)
}

func TestParseBindRequestRejectsUnknownChoice(t *testing.T) {
	e := ber.NewEncoder(32)
	require.NoError(t, e.WriteInteger(3))
	require.NoError(t, e.WriteOctetString(nil))
	require.NoError(t, e.WriteTagged(5, false, nil))

	_, err := ParseBindRequest(e.Bytes())
	require.ErrorIs(t, err, ErrUnknownAuthMethod)
}

func TestParseAbandonRequest(t *testing.T) {
	id, err := ParseAbandonRequest(ber.AppendInt(nil, 42))
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = ParseAbandonRequest(ber.AppendInt(nil, -7))
	require.ErrorIs(t, err, ErrInvalidMessageID)

	_, err = ParseAbandonRequest(nil)
	require.Error(t, err)
}

func TestParseExtendedRequest(t *testing.T) {
	e := ber.NewEncoder(64)
	require.NoError(t, e.WriteTagged(0, false, []byte("1.3.6.1.4.1.1466.20037")))

	req, err := ParseExtendedRequest(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "1.3.6.1.4.1.1466.20037", req.OID)
	assert.Nil(t, req.Value)
}

func TestParseExtendedRequestWithValue(t *testing.T) {
	e := ber.NewEncoder(64)
	require.NoError(t, e.WriteTagged(0, false, []byte("1.2.3.4")))
	require.NoError(t, e.WriteTagged(1, false, []byte("payload")))

	req, err := ParseExtendedRequest(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", req.OID)
	assert.Equal(t, []byte("payload"), req.Value)
}

func TestParseExtendedRequestRejectsWrongTag(t *testing.T) {
	e := ber.NewEncoder(16)
	require.NoError(t, e.WriteTagged(2, false, []byte("1.2.3")))

	_, err := ParseExtendedRequest(e.Bytes())
	require.ErrorIs(t, err, ber.ErrTagMismatch)
}

// encodeSearchRequest builds SearchRequest content octets the way a
// client would, including a present-filter for objectClass.
func encodeSearchRequest(t *testing.T, base string, scope Scope, typesOnly bool, attrs []string) []byte {
	t.Helper()
	e := ber.NewEncoder(128)
	require.NoError(t, e.WriteOctetString([]byte(base)))
	require.NoError(t, e.WriteEnumerated(int64(scope)))
	require.NoError(t, e.WriteEnumerated(0)) // neverDerefAliases
	require.NoError(t, e.WriteInteger(0))
	require.NoError(t, e.WriteInteger(0))
	require.NoError(t, e.WriteBoolean(typesOnly))
	require.NoError(t, e.WriteTagged(7, false, []byte("objectClass")))
	pos := e.BeginSequence()
	for _, a := range attrs {
		require.NoError(t, e.WriteOctetString([]byte(a)))
	}
	require.NoError(t, e.End(pos))
	return e.Bytes()
}

func TestParseSearchRequestRootDSE(t *testing.T) {
	data := encodeSearchRequest(t, "", ScopeBaseObject, false, []string{"*"})

	req, err := ParseSearchRequest(data)
	require.NoError(t, err)
	assert.True(t, req.IsRootDSE())
	assert.Equal(t, []string{"*"}, req.Attributes)
	assert.NotEmpty(t, req.RawFilter)
}

func TestParseSearchRequestSubtree(t *testing.T) {
	data := encodeSearchRequest(t, "dc=example,dc=com", ScopeWholeSubtree, true, nil)

	req, err := ParseSearchRequest(data)
	require.NoError(t, err)
	assert.False(t, req.IsRootDSE())
	assert.Equal(t, "dc=example,dc=com", req.BaseObject)
	assert.Equal(t, ScopeWholeSubtree, req.Scope)
	assert.True(t, req.TypesOnly)
	assert.Empty(t, req.Attributes)
}

func TestParseSearchRequestRejectsBadScope(t *testing.T) {
	e := ber.NewEncoder(32)
	require.NoError(t, e.WriteOctetString(nil))
	require.NoError(t, e.WriteEnumerated(9))

	_, err := ParseSearchRequest(e.Bytes())
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestParseUnbindRequest(t *testing.T) {
	require.NoError(t, ParseUnbindRequest(nil))
	require.Error(t, ParseUnbindRequest([]byte{0x00}))
}
