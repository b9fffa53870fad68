package ber

// Decoder reads BER elements from a byte slice.
type Decoder struct {
	data   []byte
	offset int
}

// NewDecoder creates a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset returns the current read position.
func (d *Decoder) Offset() int {
	return d.offset
}

// SetOffset moves the read position. Used to re-read ambiguous structures.
func (d *Decoder) SetOffset(offset int) {
	d.offset = offset
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.offset
}

// ReadTag consumes an identifier octet and returns its class, constructed
// flag and tag number. High-tag-number form uses base-128 continuation.
func (d *Decoder) ReadTag() (class, constructed, number int, err error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, 0, 0, syntaxErr(start, "cannot read tag", ErrUnexpectedEOF)
	}
	b := d.data[d.offset]
	d.offset++

	class = int(b & 0xC0)
	constructed = int(b & 0x20)
	number = int(b & 0x1F)

	if number == 0x1F {
		number = 0
		for {
			if d.offset >= len(d.data) {
				return 0, 0, 0, syntaxErr(start, "truncated high tag number", ErrUnexpectedEOF)
			}
			if number > 1<<24 {
				return 0, 0, 0, syntaxErr(start, "tag number overflow", nil)
			}
			c := d.data[d.offset]
			d.offset++
			number = number<<7 | int(c&0x7F)
			if c&0x80 == 0 {
				break
			}
		}
	}
	return class, constructed, number, nil
}

// PeekTag reads the next identifier octet without consuming it.
func (d *Decoder) PeekTag() (class, constructed, number int, err error) {
	save := d.offset
	class, constructed, number, err = d.ReadTag()
	d.offset = save
	return class, constructed, number, err
}

// ReadLength consumes definite-form length octets.
func (d *Decoder) ReadLength() (int, error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, syntaxErr(start, "cannot read length", ErrUnexpectedEOF)
	}
	b := d.data[d.offset]
	d.offset++

	if b&LengthLongFormBit == 0 {
		return int(b), nil
	}

	n := int(b & 0x7F)
	if n == 0 {
		return 0, syntaxErr(start, "indefinite length", ErrIndefiniteLength)
	}
	if d.offset+n > len(d.data) {
		return 0, syntaxErr(start, "truncated length octets", ErrUnexpectedEOF)
	}
	length := 0
	for i := 0; i < n; i++ {
		if length > MaxLength {
			return 0, syntaxErr(start, "length exceeds limit", ErrInvalidLength)
		}
		length = length<<8 | int(d.data[d.offset])
		d.offset++
	}
	if length > MaxLength {
		return 0, syntaxErr(start, "length exceeds limit", ErrInvalidLength)
	}
	return length, nil
}

// expect reads an identifier octet and verifies it against the expected tag.
func (d *Decoder) expect(class, constructed, number int) (int, error) {
	start := d.offset
	c, f, n, err := d.ReadTag()
	if err != nil {
		return 0, err
	}
	if c != class || f != constructed || n != number {
		d.offset = start
		return 0, syntaxErr(start, "unexpected tag", ErrTagMismatch)
	}
	length, err := d.ReadLength()
	if err != nil {
		return 0, err
	}
	if d.offset+length > len(d.data) {
		return 0, syntaxErr(d.offset, "truncated element", ErrUnexpectedEOF)
	}
	return length, nil
}

// content consumes length bytes of element content.
func (d *Decoder) content(length int) ([]byte, error) {
	if d.offset+length > len(d.data) {
		return nil, syntaxErr(d.offset, "truncated content", ErrUnexpectedEOF)
	}
	v := d.data[d.offset : d.offset+length]
	d.offset += length
	return v, nil
}

// ReadBoolean reads a BOOLEAN. Any non-zero octet decodes as true.
func (d *Decoder) ReadBoolean() (bool, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagBoolean)
	if err != nil {
		return false, err
	}
	if length != 1 {
		return false, syntaxErr(d.offset, "boolean length must be 1", ErrInvalidBoolean)
	}
	v, err := d.content(length)
	if err != nil {
		return false, err
	}
	return v[0] != 0, nil
}

// ReadInteger reads an INTEGER into an int64.
func (d *Decoder) ReadInteger() (int64, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagInteger)
	if err != nil {
		return 0, err
	}
	v, err := d.content(length)
	if err != nil {
		return 0, err
	}
	return ParseInt(v)
}

// ReadEnumerated reads an ENUMERATED into an int64.
func (d *Decoder) ReadEnumerated() (int64, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagEnumerated)
	if err != nil {
		return 0, err
	}
	v, err := d.content(length)
	if err != nil {
		return 0, err
	}
	return ParseInt(v)
}

// ReadOctetString reads a primitive OCTET STRING.
func (d *Decoder) ReadOctetString() ([]byte, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagOctetString)
	if err != nil {
		return nil, err
	}
	return d.content(length)
}

// ReadNull reads a NULL.
func (d *Decoder) ReadNull() error {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagNull)
	if err != nil {
		return err
	}
	if length != 0 {
		return syntaxErr(d.offset, "null must be empty", ErrInvalidNull)
	}
	return nil
}

// ReadTagged reads a context-specific tagged element, returning its tag
// number, constructed flag and raw content.
func (d *Decoder) ReadTagged() (number int, constructed bool, content []byte, err error) {
	start := d.offset
	c, f, n, err := d.ReadTag()
	if err != nil {
		return 0, false, nil, err
	}
	if c != ClassContextSpecific {
		d.offset = start
		return 0, false, nil, syntaxErr(start, "expected context-specific tag", ErrTagMismatch)
	}
	length, err := d.ReadLength()
	if err != nil {
		return 0, false, nil, err
	}
	v, err := d.content(length)
	if err != nil {
		return 0, false, nil, err
	}
	return n, f == TypeConstructed, v, nil
}

// IsContextTag reports whether the next element is context-specific with
// the given tag number.
func (d *Decoder) IsContextTag(number int) bool {
	c, _, n, err := d.PeekTag()
	return err == nil && c == ClassContextSpecific && n == number
}

// ExpectSequence reads a SEQUENCE header and returns its content length.
func (d *Decoder) ExpectSequence() (int, error) {
	return d.expect(ClassUniversal, TypeConstructed, TagSequence)
}

// ExpectSet reads a SET header and returns its content length.
func (d *Decoder) ExpectSet() (int, error) {
	return d.expect(ClassUniversal, TypeConstructed, TagSet)
}

// Sequence reads a SEQUENCE element and returns a sub-decoder over its content.
func (d *Decoder) Sequence() (*Decoder, error) {
	length, err := d.ExpectSequence()
	if err != nil {
		return nil, err
	}
	v, err := d.content(length)
	if err != nil {
		return nil, err
	}
	return NewDecoder(v), nil
}

// ReadRaw consumes n bytes verbatim and returns a copy.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	v, err := d.content(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, v)
	return out, nil
}

// Skip consumes the next element, whatever it is.
func (d *Decoder) Skip() error {
	if _, _, _, err := d.ReadTag(); err != nil {
		return err
	}
	length, err := d.ReadLength()
	if err != nil {
		return err
	}
	_, err = d.content(length)
	return err
}

// ParseInt decodes a two's complement integer of up to 8 octets.
func ParseInt(content []byte) (int64, error) {
	if len(content) == 0 {
		return 0, ErrInvalidInteger
	}
	if len(content) > 8 {
		return 0, ErrInvalidInteger
	}
	var v int64
	if content[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range content {
		v = v<<8 | int64(b)
	}
	return v, nil
}
