package protocol

import (
	"encoding/binary"
	"math"
)

func (p *Packet) WriteUint8(v uint8) *Packet {
	p.Payload = append(p.Payload, v)
	return p
}

func (p *Packet) WriteBool(v bool) *Packet {
	if v {
		return p.WriteUint8(1)
	}
	return p.WriteUint8(0)
}

func (p *Packet) WriteUint16(v uint16) *Packet {
	p.Payload = binary.LittleEndian.AppendUint16(p.Payload, v)
	return p
}

func (p *Packet) WriteUint32(v uint32) *Packet {
	p.Payload = binary.LittleEndian.AppendUint32(p.Payload, v)
	return p
}

func (p *Packet) WriteUint64(v uint64) *Packet {
	p.Payload = binary.LittleEndian.AppendUint64(p.Payload, v)
	return p
}

func (p *Packet) WriteInt32(v int32) *Packet {
	return p.WriteUint32(uint32(v))
}

func (p *Packet) WriteFloat32(v float32) *Packet {
	return p.WriteUint32(math.Float32bits(v))
}

// WriteString appends a 2-byte length followed by the raw bytes.
func (p *Packet) WriteString(s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	p.WriteUint16(uint16(len(s)))
	p.Payload = append(p.Payload, s...)
	return nil
}

func (p *Packet) WriteBytes(b []byte) *Packet {
	p.Payload = append(p.Payload, b...)
	return p
}

// Reader walks a payload. It never moves past the end: a read that does not
// fit fails with ErrTruncatedPacket and leaves the cursor untouched.
type Reader struct {
	buf    []byte
	offset int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.offset
}

func (r *Reader) Offset() int {
	return r.offset
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrTruncatedPacket
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadString reads a 2-byte length prefixed string. A length that
// overruns the payload consumes nothing.
func (r *Reader) ReadString() (string, error) {
	start := r.offset
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.next(int(n))
	if err != nil {
		r.offset = start
		return "", err
	}
	return string(b), nil
}

// ReadBytes returns a sub-slice of the payload, not a copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.next(n)
}

func (r *Reader) Skip(n int) error {
	_, err := r.next(n)
	return err
}
