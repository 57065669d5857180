package packet

import (
	"fmt"
	"math"
	"time"
)

// EpochOffset is the number of seconds between the NTP epoch
// (1900-01-01T00:00:00Z) and the Unix epoch (1970-01-01T00:00:00Z)
const EpochOffset = 2208988800

const (
	fracScale32 = 1 << 32
	fracScale16 = 1 << 16

	nanosPerSecond = uint64(time.Second)
)

// UnixToNTP converts Unix epoch seconds to NTP epoch seconds
func UnixToNTP(seconds int64) int64 {
	return seconds + EpochOffset
}

// NTPToUnix converts NTP epoch seconds to Unix epoch seconds
func NTPToUnix(seconds int64) int64 {
	return seconds - EpochOffset
}

// Timestamp is a 64-bit NTP timestamp: 32 bits of seconds since the NTP
// epoch followed by 32 bits of binary fraction
type Timestamp uint64

// NewTimestamp builds a Timestamp from its integer and fractional words
func NewTimestamp(seconds, fraction uint32) Timestamp {
	return Timestamp(uint64(seconds)<<32 | uint64(fraction))
}

// TimestampFromSeconds converts NTP epoch seconds to fixed point.
// The fraction is truncated, never rounded.
func TimestampFromSeconds(v float64) (Timestamp, error) {
	if math.IsNaN(v) || v < 0 || v >= fracScale32 {
		return 0, fmt.Errorf("%w: timestamp %v outside [0, 2^32) seconds", ErrEncoding, v)
	}

	whole := math.Floor(v)
	frac := math.Floor((v - whole) * fracScale32)
	return NewTimestamp(uint32(whole), uint32(frac)), nil
}

// TimestampFromTime converts a wall-clock time to an NTP timestamp.
// Times past 2036-02-07 wrap into the next NTP era.
func TimestampFromTime(t time.Time) Timestamp {
	secs := UnixToNTP(t.Unix())
	frac := (uint64(t.Nanosecond()) << 32) / nanosPerSecond
	return NewTimestamp(uint32(secs), uint32(frac))
}

// Integer returns the whole seconds word
func (t Timestamp) Integer() uint32 {
	return uint32(t >> 32)
}

// Fraction returns the fractional seconds word
func (t Timestamp) Fraction() uint32 {
	return uint32(t)
}

// Seconds returns the timestamp as seconds since the NTP epoch
func (t Timestamp) Seconds() float64 {
	return float64(t.Integer()) + float64(t.Fraction())/fracScale32
}

// Time converts the timestamp back to wall-clock time (era 0)
func (t Timestamp) Time() time.Time {
	secs := NTPToUnix(int64(t.Integer()))
	nanos := (uint64(t.Fraction()) * nanosPerSecond) >> 32
	return time.Unix(secs, int64(nanos))
}

// IsZero reports whether both words are zero
func (t Timestamp) IsZero() bool {
	return t == 0
}

// Since returns the signed interval t - u
func (t Timestamp) Since(u Timestamp) Interval {
	return Interval(t - u)
}

// Shift moves the timestamp by a signed interval
func (t Timestamp) Shift(i Interval) Timestamp {
	return t + Timestamp(i)
}

// Interval is a signed difference between two timestamps in 32.32 fixed point
type Interval int64

// Seconds returns the interval in seconds
func (i Interval) Seconds() float64 {
	return float64(i) / fracScale32
}

// Duration converts the interval to a time.Duration, truncated to nanoseconds
func (i Interval) Duration() time.Duration {
	secs := int64(i) >> 32
	frac := uint64(i) & 0xFFFFFFFF
	return time.Duration(secs)*time.Second + time.Duration((frac*nanosPerSecond)>>32)
}

// Short is a 32-bit NTP short format value: 16 bits of seconds followed by
// 16 bits of fraction. Used for root delay and root dispersion.
type Short uint32

// NewShort builds a Short from its integer and fractional halves
func NewShort(seconds, fraction uint16) Short {
	return Short(uint32(seconds)<<16 | uint32(fraction))
}

// ShortFromSeconds converts seconds to 16.16 fixed point, truncating the fraction
func ShortFromSeconds(v float64) (Short, error) {
	if math.IsNaN(v) || v < 0 || v >= fracScale16 {
		return 0, fmt.Errorf("%w: short value %v outside [0, 65536) seconds", ErrEncoding, v)
	}

	whole := math.Floor(v)
	frac := math.Floor((v - whole) * fracScale16)
	return NewShort(uint16(whole), uint16(frac)), nil
}

// Seconds returns the value in seconds
func (s Short) Seconds() float64 {
	return float64(s>>16) + float64(s&0xFFFF)/fracScale16
}

// Duration converts the value to a time.Duration
func (s Short) Duration() time.Duration {
	return time.Duration(s>>16)*time.Second + time.Duration((uint64(s&0xFFFF)*nanosPerSecond)>>16)
}
