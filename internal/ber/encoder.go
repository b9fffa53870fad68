package ber

// Encoder builds BER elements into an append-only byte buffer.
//
// Constructed elements use the begin/end pattern: Begin* records the
// position after the identifier octet, and End* inserts the definite
// length once the content size is known.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an Encoder with the given initial capacity.
func NewEncoder(capacity int) *Encoder {
	if capacity <= 0 {
		capacity = 64
	}
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// NewEncoderBytes creates an Encoder that appends to buf. The caller keeps
// ownership of the backing array; retrieve the result with Bytes. This lets
// the write path reuse pooled buffers.
func NewEncoderBytes(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of encoded bytes so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the buffer for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// lengthOctets encodes a definite length in the minimal form.
func lengthOctets(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrLengthOverflow
	}
	if n <= MaxShortFormLength {
		return []byte{byte(n)}, nil
	}
	var tmp [8]byte
	i := len(tmp)
	for v := n; v > 0; v >>= 8 {
		i--
		tmp[i] = byte(v)
	}
	out := make([]byte, 0, 1+len(tmp)-i)
	out = append(out, byte(LengthLongFormBit|(len(tmp)-i)))
	return append(out, tmp[i:]...), nil
}

// writeIdentifier writes an identifier octet. Tag numbers above 30 use the
// high-tag-number form with base-128 continuation octets.
func (e *Encoder) writeIdentifier(class, flag, number int) {
	if number <= 30 {
		e.buf = append(e.buf, byte(class)|byte(flag)|byte(number))
		return
	}
	e.buf = append(e.buf, byte(class)|byte(flag)|0x1F)
	var tmp [5]byte
	i := len(tmp)
	for v := number; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v & 0x7F)
	}
	for j := i; j < len(tmp); j++ {
		b := tmp[j]
		if j != len(tmp)-1 {
			b |= 0x80
		}
		e.buf = append(e.buf, b)
	}
}

// writePrimitive writes a complete primitive element.
func (e *Encoder) writePrimitive(class, number int, content []byte) error {
	e.writeIdentifier(class, TypePrimitive, number)
	lb, err := lengthOctets(len(content))
	if err != nil {
		return err
	}
	e.buf = append(e.buf, lb...)
	e.buf = append(e.buf, content...)
	return nil
}

// WriteBoolean writes a BOOLEAN. TRUE is encoded as 0xFF per X.690.
func (e *Encoder) WriteBoolean(v bool) error {
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	return e.writePrimitive(ClassUniversal, TagBoolean, []byte{b})
}

// WriteInteger writes an INTEGER in minimal two's complement form.
func (e *Encoder) WriteInteger(v int64) error {
	return e.writePrimitive(ClassUniversal, TagInteger, AppendInt(nil, v))
}

// WriteEnumerated writes an ENUMERATED, encoded like an INTEGER.
func (e *Encoder) WriteEnumerated(v int64) error {
	return e.writePrimitive(ClassUniversal, TagEnumerated, AppendInt(nil, v))
}

// WriteOctetString writes an OCTET STRING.
func (e *Encoder) WriteOctetString(v []byte) error {
	return e.writePrimitive(ClassUniversal, TagOctetString, v)
}

// WriteNull writes a NULL.
func (e *Encoder) WriteNull() error {
	return e.writePrimitive(ClassUniversal, TagNull, nil)
}

// WriteTagged writes a context-specific tagged element with the given content.
func (e *Encoder) WriteTagged(number int, constructed bool, content []byte) error {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	e.writeIdentifier(ClassContextSpecific, flag, number)
	lb, err := lengthOctets(len(content))
	if err != nil {
		return err
	}
	e.buf = append(e.buf, lb...)
	e.buf = append(e.buf, content...)
	return nil
}

// WriteRaw appends pre-encoded bytes verbatim.
func (e *Encoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// WriteApplicationPrimitive writes a primitive APPLICATION element, used
// for the IMPLICIT-tagged scalar operations (unbind, abandon, del).
func (e *Encoder) WriteApplicationPrimitive(number int, content []byte) error {
	return e.writePrimitive(ClassApplication, number, content)
}

// BeginSequence opens a SEQUENCE and returns its patch position.
func (e *Encoder) BeginSequence() int {
	return e.begin(ClassUniversal, TagSequence)
}

// BeginSet opens a SET and returns its patch position.
func (e *Encoder) BeginSet() int {
	return e.begin(ClassUniversal, TagSet)
}

// BeginApplication opens a constructed APPLICATION element.
func (e *Encoder) BeginApplication(number int) int {
	return e.begin(ClassApplication, number)
}

// BeginContext opens a constructed context-specific element.
func (e *Encoder) BeginContext(number int) int {
	return e.begin(ClassContextSpecific, number)
}

func (e *Encoder) begin(class, number int) int {
	e.writeIdentifier(class, TypeConstructed, number)
	return len(e.buf)
}

// End closes a constructed element opened by one of the Begin functions,
// inserting the length octets before the element content.
func (e *Encoder) End(pos int) error {
	if pos < 0 || pos > len(e.buf) {
		return ErrLengthOverflow
	}
	n := len(e.buf) - pos
	lb, err := lengthOctets(n)
	if err != nil {
		return err
	}
	e.buf = append(e.buf, lb...)
	copy(e.buf[pos+len(lb):], e.buf[pos:pos+n])
	copy(e.buf[pos:], lb)
	return nil
}

// AppendInt appends the minimal two's complement encoding of v to dst.
func AppendInt(dst []byte, v int64) []byte {
	n := 1
	for m := v; m > 127 || m < -128; m >>= 8 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(uint(i)*8)))
	}
	return dst
}
