package protocol

// Packet is a header plus an opaque payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// NewPacket starts an empty packet of the current version.
func NewPacket(command CommandID) *Packet {
	return &Packet{
		Header: Header{
			Version:  CurrentVersion,
			Priority: PriorityMedium,
			Command:  command,
		},
	}
}

func (p *Packet) WithPriority(priority Priority) *Packet {
	p.Header.Priority = priority
	return p
}

func (p *Packet) WithVersion(version Version) *Packet {
	p.Header.Version = version
	return p
}

// Size is the encoded length.
func (p *Packet) Size() int {
	return HeaderSize + len(p.Payload)
}

// Marshal encodes the packet into a new buffer.
func (p *Packet) Marshal() ([]byte, error) {
	return p.AppendTo(make([]byte, 0, p.Size()))
}

// AppendTo encodes the packet at the end of dst. Several packets appended
// to the same buffer form one datagram.
func (p *Packet) AppendTo(dst []byte) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return dst, ErrPayloadTooLarge
	}

	h := p.Header
	h.ContentLength = uint32(len(p.Payload))

	out, err := appendHeader(dst, h)
	if err != nil {
		return dst, err
	}
	return append(out, p.Payload...), nil
}

// Unmarshal decodes the first packet in data and reports how many bytes it
// used. The payload is copied so data can be recycled.
func Unmarshal(data []byte) (Packet, int, error) {
	if len(data) < HeaderSize {
		return Packet{}, 0, ErrMalformedPacket
	}

	h, err := parseHeader(data[:HeaderSize])
	if err != nil {
		return Packet{}, 0, err
	}

	end := HeaderSize + int(h.ContentLength)
	if h.ContentLength > MaxPayloadSize || end > len(data) {
		return Packet{}, 0, ErrMalformedPacket
	}

	var payload []byte
	if h.ContentLength > 0 {
		payload = make([]byte, h.ContentLength)
		copy(payload, data[HeaderSize:end])
	}

	return Packet{Header: h, Payload: payload}, end, nil
}

// DecodeDatagram splits a datagram into its packets. On error the packets
// decoded before the bad one are still returned.
func DecodeDatagram(data []byte) ([]Packet, error) {
	var packets []Packet
	for len(data) > 0 {
		p, n, err := Unmarshal(data)
		if err != nil {
			return packets, err
		}
		packets = append(packets, p)
		data = data[n:]
	}
	if packets == nil {
		return nil, ErrMalformedPacket
	}
	return packets, nil
}

// Reader returns a cursor over the payload.
func (p *Packet) Reader() *Reader {
	return NewReader(p.Payload)
}
