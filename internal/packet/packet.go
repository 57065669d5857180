// Package packet implements the 48-byte NTP packet header and the
// fixed-point timestamp formats it carries.
//
// Only the fixed header is handled: extension fields and authenticators
// are neither read nor written.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// PacketSize is the size of an NTP header without extensions
const PacketSize = 48

// DefaultVersion is the protocol version used for requests
const DefaultVersion = 4

var (
	// ErrEncoding is returned when a field does not fit its wire width
	ErrEncoding = errors.New("ntp field out of range")

	// ErrMalformedPacket is returned when a buffer is not a valid NTP header
	ErrMalformedPacket = errors.New("malformed ntp packet")
)

// LeapIndicator warns of an impending leap second
type LeapIndicator uint8

const (
	LeapNoWarning LeapIndicator = iota
	LeapAddSecond
	LeapDelSecond
	LeapNotInSync
)

func (l LeapIndicator) String() string {
	switch l {
	case LeapNoWarning:
		return "no warning"
	case LeapAddSecond:
		return "last minute has 61 seconds"
	case LeapDelSecond:
		return "last minute has 59 seconds"
	case LeapNotInSync:
		return "not synchronized"
	default:
		return "invalid(" + strconv.Itoa(int(l)) + ")"
	}
}

// Mode is the association mode of a packet
type Mode uint8

const (
	ModeReserved Mode = iota
	ModeSymmetricActive
	ModeSymmetricPassive
	ModeClient
	ModeServer
	ModeBroadcast
	ModeControl
	ModePrivate
)

func (m Mode) String() string {
	switch m {
	case ModeReserved:
		return "reserved"
	case ModeSymmetricActive:
		return "symmetric active"
	case ModeSymmetricPassive:
		return "symmetric passive"
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	case ModeBroadcast:
		return "broadcast"
	case ModeControl:
		return "control"
	case ModePrivate:
		return "private"
	default:
		return "invalid(" + strconv.Itoa(int(m)) + ")"
	}
}

// Message is an NTP packet header
type Message struct {
	Leap           LeapIndicator
	Version        uint8
	Mode           Mode
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      Short
	RootDispersion Short
	ReferenceID    uint32
	ReferenceTime  Timestamp
	OriginTime     Timestamp
	ReceiveTime    Timestamp
	TransmitTime   Timestamp
}

// NewRequest builds a client request carrying only the transmit timestamp
func NewRequest(version uint8, transmit Timestamp) *Message {
	return &Message{
		Version:      version,
		Mode:         ModeClient,
		TransmitTime: transmit,
	}
}

// Encode serializes the message into its 48-byte big-endian wire form
func Encode(m *Message) ([]byte, error) {
	if m.Leap > 3 {
		return nil, fmt.Errorf("%w: leap indicator %d does not fit in 2 bits", ErrEncoding, m.Leap)
	}
	if m.Version > 7 {
		return nil, fmt.Errorf("%w: version %d does not fit in 3 bits", ErrEncoding, m.Version)
	}
	if m.Mode > 7 {
		return nil, fmt.Errorf("%w: mode %d does not fit in 3 bits", ErrEncoding, m.Mode)
	}

	buf := make([]byte, PacketSize)
	buf[0] = byte(m.Leap)<<6 | m.Version<<3 | byte(m.Mode)
	buf[1] = m.Stratum
	buf[2] = byte(m.Poll)
	buf[3] = byte(m.Precision)
	binary.BigEndian.PutUint32(buf[4:], uint32(m.RootDelay))
	binary.BigEndian.PutUint32(buf[8:], uint32(m.RootDispersion))
	binary.BigEndian.PutUint32(buf[12:], m.ReferenceID)
	putTimestamp(buf[16:], m.ReferenceTime)
	putTimestamp(buf[24:], m.OriginTime)
	putTimestamp(buf[32:], m.ReceiveTime)
	putTimestamp(buf[40:], m.TransmitTime)

	return buf, nil
}

// Decode parses a 48-byte NTP header
func Decode(data []byte) (*Message, error) {
	if len(data) != PacketSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedPacket, len(data), PacketSize)
	}

	return &Message{
		Leap:           LeapIndicator(data[0] >> 6),
		Version:        (data[0] >> 3) & 0b111,
		Mode:           Mode(data[0] & 0b111),
		Stratum:        data[1],
		Poll:           int8(data[2]),
		Precision:      int8(data[3]),
		RootDelay:      Short(binary.BigEndian.Uint32(data[4:])),
		RootDispersion: Short(binary.BigEndian.Uint32(data[8:])),
		ReferenceID:    binary.BigEndian.Uint32(data[12:]),
		ReferenceTime:  getTimestamp(data[16:]),
		OriginTime:     getTimestamp(data[24:]),
		ReceiveTime:    getTimestamp(data[32:]),
		TransmitTime:   getTimestamp(data[40:]),
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (m *Message) MarshalBinary() ([]byte, error) {
	return Encode(m)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (m *Message) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

// putTimestamp writes the seconds word then the fraction word
func putTimestamp(b []byte, t Timestamp) {
	binary.BigEndian.PutUint32(b[0:], t.Integer())
	binary.BigEndian.PutUint32(b[4:], t.Fraction())
}

func getTimestamp(b []byte) Timestamp {
	return NewTimestamp(binary.BigEndian.Uint32(b[0:]), binary.BigEndian.Uint32(b[4:]))
}
