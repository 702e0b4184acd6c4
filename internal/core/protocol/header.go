package protocol

import (
	"encoding/binary"
	"fmt"
)

// Version selects how the command field of a header is interpreted.
type Version uint8

const (
	V0 Version = iota
	V1
	V2

	// CurrentVersion identifies components by name hash.
	CurrentVersion = V2
)

func (v Version) Valid() bool {
	return v <= V2
}

func (v Version) String() string {
	if !v.Valid() {
		return fmt.Sprintf("V?(%d)", uint8(v))
	}
	return fmt.Sprintf("V%d", uint8(v))
}

// Priority is a delivery hint. Outbound queues flush higher priorities first.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

const (
	// HeaderSize is identical for every version.
	HeaderSize = 12

	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507

	MaxPayloadSize = MaxDatagramSize - HeaderSize
)

// Header is the fixed envelope in front of every payload.
//
// Layout, little endian:
//
//	[1 byte: Version]
//	[1 byte: Priority]
//	[2 bytes: Command, version specific numbering]
//	[4 bytes: ContentLength]
//	[4 bytes: Sequence]
type Header struct {
	Version       Version
	Priority      Priority
	Command       CommandID
	ContentLength uint32
	Sequence      uint32
}

// appendHeader writes h with the command translated to the numbering of h.Version.
func appendHeader(dst []byte, h Header) ([]byte, error) {
	wire, err := h.Command.Wire(h.Version)
	if err != nil {
		return dst, err
	}

	var frame [HeaderSize]byte
	offset := 0

	frame[offset] = byte(h.Version)
	offset += 1

	frame[offset] = byte(h.Priority)
	offset += 1

	binary.LittleEndian.PutUint16(frame[offset:], wire)
	offset += 2

	binary.LittleEndian.PutUint32(frame[offset:], h.ContentLength)
	offset += 4

	binary.LittleEndian.PutUint32(frame[offset:], h.Sequence)

	return append(dst, frame[:]...), nil
}

// parseHeader expects at least HeaderSize bytes.
func parseHeader(frame []byte) (Header, error) {
	var h Header
	offset := 0

	h.Version = Version(frame[offset])
	offset += 1
	if !h.Version.Valid() {
		return h, ErrUnknownVersion
	}

	h.Priority = Priority(frame[offset])
	offset += 1

	command, err := CanonicalCommand(h.Version, binary.LittleEndian.Uint16(frame[offset:]))
	if err != nil {
		return h, err
	}
	h.Command = command
	offset += 2

	h.ContentLength = binary.LittleEndian.Uint32(frame[offset:])
	offset += 4

	h.Sequence = binary.LittleEndian.Uint32(frame[offset:])

	return h, nil
}
