package packet

import (
	"strconv"
	"strings"
)

// FormatReferenceID renders a reference identifier for display.
// Stratum 0 (kiss-o'-death) and stratum 1 (reference clock) servers carry a
// four-character ASCII code; higher strata carry an IPv4 address or a hash.
func FormatReferenceID(stratum uint8, id uint32) string {
	octets := [4]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}

	if stratum <= 1 {
		if code, ok := asciiCode(octets); ok {
			return code
		}
	}

	parts := make([]string, len(octets))
	for i, o := range octets {
		parts[i] = strconv.Itoa(int(o))
	}
	return strings.Join(parts, ".")
}

// KissCode returns the kiss-o'-death code of a stratum 0 reply, or "" otherwise
func (m *Message) KissCode() string {
	if m.Stratum != 0 {
		return ""
	}
	code, ok := asciiCode([4]byte{
		byte(m.ReferenceID >> 24), byte(m.ReferenceID >> 16),
		byte(m.ReferenceID >> 8), byte(m.ReferenceID),
	})
	if !ok {
		return ""
	}
	return code
}

// asciiCode decodes a NUL-padded printable ASCII identifier
func asciiCode(octets [4]byte) (string, bool) {
	end := len(octets)
	for end > 0 && octets[end-1] == 0 {
		end--
	}
	if end == 0 {
		return "", false
	}
	for _, o := range octets[:end] {
		if o < 0x20 || o > 0x7E {
			return "", false
		}
	}
	return string(octets[:end]), true
}
