package wire

import (
	"encoding/binary"

	"github.com/emanuel-epifani/nexo/pkg/errors"
)

// Encoder builds a command payload field by field, in the fixed-width
// format described in SPEC_FULL.md §4.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) PutU8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) PutU16(v uint16) *Encoder {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) PutU32(v uint32) *Encoder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) PutU64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) PutString(s string) *Encoder {
	e.PutU16(uint16(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

func (e *Encoder) PutBytes(b []byte) *Encoder {
	e.PutU32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

// PutRaw appends b verbatim, with no length prefix. Used to splice an
// already-encoded sub-payload (e.g. a response body) onto a header.
func (e *Encoder) PutRaw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Decoder reads fields off a payload in the order an Encoder wrote
// them. Any read past the end of the buffer returns a decode error
// instead of panicking. The dispatcher answers a request whose payload
// fails to decode with a StatusErr response and the connection stays
// open; only a frame whose length or header ReadFrame cannot read
// closes the connection.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return errors.InvalidArgument("truncated frame payload", nil)
	}
	return nil
}

func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) U16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) U64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *Decoder) String() (string, error) {
	n, err := d.U16()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return b, nil
}

// Remaining reports whether unread bytes remain in the payload.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}
