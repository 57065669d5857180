package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatReferenceID(t *testing.T) {
	tests := []struct {
		name    string
		stratum uint8
		id      uint32
		want    string
	}{
		{"stratum1_gps", 1, 0x47505300, "GPS"},
		{"stratum1_nist", 1, 0x4E495354, "NIST"},
		{"stratum2_ipv4", 2, 0xC0A80101, "192.168.1.1"},
		{"stratum2_ascii_looking_is_still_address", 2, 0x4E495354, "78.73.83.84"},
		{"stratum1_unprintable_falls_back", 1, 0x01020304, "1.2.3.4"},
		{"stratum0_kiss_code", 0, 0x52415445, "RATE"},
		{"stratum0_empty", 0, 0, "0.0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReferenceID(tt.stratum, tt.id))
		})
	}
}

func TestMessage_KissCode(t *testing.T) {
	assert.Equal(t, "DENY", (&Message{Stratum: 0, ReferenceID: 0x44454E59}).KissCode())
	assert.Equal(t, "", (&Message{Stratum: 2, ReferenceID: 0x44454E59}).KissCode())
	assert.Equal(t, "", (&Message{Stratum: 0}).KissCode())
}
