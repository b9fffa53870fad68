// Package ber implements the subset of ASN.1 BER (Basic Encoding Rules,
// ITU-T X.690) needed by the LDAP protocol layer.
package ber

// Tag class constants (bits 7-8 of the identifier octet).
const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContextSpecific = 0x80
	ClassPrivate         = 0xC0
)

// Constructed flag (bit 6 of the identifier octet).
const (
	TypePrimitive   = 0x00
	TypeConstructed = 0x20
)

// Universal tag numbers used by LDAP.
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagOctetString = 0x04
	TagNull        = 0x05
	TagEnumerated  = 0x0A
	TagSequence    = 0x10
	TagSet         = 0x11
)

// Length encoding constants.
const (
	// LengthLongFormBit marks the long form of the length octets (bit 8 set).
	LengthLongFormBit = 0x80
	// MaxShortFormLength is the largest length encodable in short form.
	MaxShortFormLength = 127
)

// MaxLength caps decoded element lengths to guard against hostile inputs
// claiming multi-gigabyte values. 16 MB matches the connection frame limit.
const MaxLength = 16 * 1024 * 1024
