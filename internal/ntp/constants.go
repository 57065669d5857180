package ntp

import "time"

// Exchange defaults
const (
	// DefaultPort is the well-known NTP UDP port
	DefaultPort = 123

	// DefaultTimeout bounds the wait for a reply datagram
	DefaultTimeout = 5 * time.Second

	// maxDatagramSize is the receive buffer size. Anything longer than the
	// 48-byte header is read in full so the codec can reject it.
	maxDatagramSize = 1024
)

// Reply sanity thresholds
const (
	// SuspiciousOffsetThreshold flags offsets too large to be plausible
	SuspiciousOffsetThreshold = 3600 * time.Second

	// MaxAcceptableDelay flags round trips that make the estimate meaningless
	MaxAcceptableDelay = 10 * time.Second

	// MaxValidStratum is the highest synchronized stratum
	MaxValidStratum = 15

	// DefaultMaxDivergence is how far our offset may drift from the
	// reference client's before a warning is logged
	DefaultMaxDivergence = 50 * time.Millisecond
)
