package ber

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePrimitives(t *testing.T) {
	e := NewEncoder(64)
	require.NoError(t, e.WriteBoolean(true))
	require.NoError(t, e.WriteInteger(-300))
	require.NoError(t, e.WriteEnumerated(2))
	require.NoError(t, e.WriteOctetString([]byte("cn=admin")))
	require.NoError(t, e.WriteNull())

	d := NewDecoder(e.Bytes())

	b, err := d.ReadBoolean()
	require.NoError(t, err)
	assert.True(t, b)

	i, err := d.ReadInteger()
	require.NoError(t, err)
	assert.Equal(t, int64(-300), i)

	en, err := d.ReadEnumerated()
	require.NoError(t, err)
	assert.Equal(t, int64(2), en)

	s, err := d.ReadOctetString()
	require.NoError(t, err)
	assert.Equal(t, []byte("cn=admin"), s)

	require.NoError(t, d.ReadNull())
	assert.Equal(t, 0, d.Remaining())
}

func TestEndPatchesLength(t *testing.T) {
	e := NewEncoder(16)
	pos := e.BeginSequence()
	require.NoError(t, e.WriteBoolean(true))
	require.NoError(t, e.End(pos))

	assert.Equal(t, []byte{0x30, 0x03, 0x01, 0x01, 0xFF}, e.Bytes())
}

func TestNestedConstructed(t *testing.T) {
	e := NewEncoder(64)
	outer := e.BeginSequence()
	require.NoError(t, e.WriteInteger(7))
	inner := e.BeginSequence()
	require.NoError(t, e.WriteOctetString([]byte("ab")))
	require.NoError(t, e.End(inner))
	require.NoError(t, e.End(outer))

	d, err := NewDecoder(e.Bytes()).Sequence()
	require.NoError(t, err)

	i, err := d.ReadInteger()
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	sub, err := d.Sequence()
	require.NoError(t, err)
	s, err := sub.ReadOctetString()
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), s)
}

func TestLongFormLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0x41}, 300)

	e := NewEncoder(512)
	require.NoError(t, e.WriteOctetString(payload))

	// 300 needs the two-octet long form: 0x82 0x01 0x2C.
	assert.Equal(t, []byte{0x04, 0x82, 0x01, 0x2C}, e.Bytes()[:4])

	got, err := NewDecoder(e.Bytes()).ReadOctetString()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHighTagNumber(t *testing.T) {
	e := NewEncoder(16)
	require.NoError(t, e.WriteTagged(100, false, []byte{0x01}))

	d := NewDecoder(e.Bytes())
	number, constructed, content, err := d.ReadTagged()
	require.NoError(t, err)
	assert.Equal(t, 100, number)
	assert.False(t, constructed)
	assert.Equal(t, []byte{0x01}, content)
}

func TestDecoderRejectsIndefiniteLength(t *testing.T) {
	d := NewDecoder([]byte{0x30, 0x80, 0x00, 0x00})
	_, err := d.ExpectSequence()
	require.ErrorIs(t, err, ErrIndefiniteLength)

	var syn *SyntaxError
	assert.ErrorAs(t, err, &syn)
}

func TestDecoderRejectsTruncatedContent(t *testing.T) {
	d := NewDecoder([]byte{0x04, 0x05, 'a', 'b'})
	_, err := d.ReadOctetString()
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestDecoderRejectsOversizedLength(t *testing.T) {
	d := NewDecoder([]byte{0x04, 0x84, 0x7F, 0xFF, 0xFF, 0xFF})
	_, err := d.ReadOctetString()
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecoderTagMismatchKeepsPosition(t *testing.T) {
	data := []byte{0x02, 0x01, 0x05}
	d := NewDecoder(data)

	_, err := d.ReadOctetString()
	require.ErrorIs(t, err, ErrTagMismatch)

	// The element is still readable as what it actually is.
	i, err := d.ReadInteger()
	require.NoError(t, err)
	assert.Equal(t, int64(5), i)
}

func TestSkipConsumesWholeElement(t *testing.T) {
	e := NewEncoder(32)
	pos := e.BeginSequence()
	require.NoError(t, e.WriteInteger(1))
	require.NoError(t, e.WriteInteger(2))
	require.NoError(t, e.End(pos))
	require.NoError(t, e.WriteBoolean(false))

	d := NewDecoder(e.Bytes())
	require.NoError(t, d.Skip())
	b, err := d.ReadBoolean()
	require.NoError(t, err)
	assert.False(t, b)
}

func TestAppendIntMinimalEncoding(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x00, 0x80}},
		{256, []byte{0x01, 0x00}},
		{-1, []byte{0xFF}},
		{-129, []byte{0xFF, 0x7F}},
	}
	for _, tc := range cases {
		got := AppendInt(nil, tc.v)
		assert.Equal(t, tc.want, got, "value %d", tc.v)

		back, err := ParseInt(got)
		require.NoError(t, err)
		assert.Equal(t, tc.v, back)
	}
}

func TestParseIntRejectsOversized(t *testing.T) {
	_, err := ParseInt(make([]byte, 9))
	require.ErrorIs(t, err, ErrInvalidInteger)

	_, err = ParseInt(nil)
	require.ErrorIs(t, err, ErrInvalidInteger)
}

func TestEncoderBytesReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 128)
	e := NewEncoderBytes(buf)
	require.NoError(t, e.WriteInteger(42))

	out := e.Bytes()
	require.NotEmpty(t, out)
	assert.Equal(t, cap(buf), cap(out), "encoding within capacity must not reallocate")
}
