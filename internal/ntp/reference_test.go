package ntp

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferenceChecker(t *testing.T) {
	checker := NewReferenceChecker(2*time.Second, 4, 0)

	assert.Equal(t, 2*time.Second, checker.timeout)
	assert.Equal(t, 4, checker.version)
	assert.Equal(t, DefaultPort, checker.port)
	assert.Equal(t, DefaultMaxDivergence, checker.maxDivergence)
	assert.NotNil(t, checker.query)
}

func TestReferenceChecker_Check(t *testing.T) {
	tests := []struct {
		name          string
		ourOffset     time.Duration
		refOffset     time.Duration
		wantDiverged  bool
		wantDivergent time.Duration
	}{
		{"agreeing", 120 * time.Millisecond, 118 * time.Millisecond, false, 2 * time.Millisecond},
		{"diverging", 500 * time.Millisecond, 100 * time.Millisecond, true, 400 * time.Millisecond},
		{"diverging_negative", -time.Second, 0, true, -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewReferenceChecker(time.Second, 3, 1123)
			checker.query = func(address string, opts ntp.QueryOptions) (*ntp.Response, error) {
				assert.Equal(t, "ntp.example.org:1123", address)
				assert.Equal(t, time.Second, opts.Timeout)
				assert.Equal(t, 3, opts.Version)
				return &ntp.Response{ClockOffset: tt.refOffset, RTT: 15 * time.Millisecond}, nil
			}

			check := checker.Check("ntp.example.org", tt.ourOffset)

			require.NotNil(t, check)
			assert.NoError(t, check.Err)
			assert.Equal(t, tt.refOffset, check.Offset)
			assert.Equal(t, 15*time.Millisecond, check.RTT)
			assert.Equal(t, tt.wantDivergent, check.Divergence)
			assert.Equal(t, tt.wantDiverged, check.Diverged(DefaultMaxDivergence))
		})
	}
}

func TestReferenceChecker_QueryFailure(t *testing.T) {
	queryErr := errors.New("i/o timeout")
	checker := NewReferenceChecker(time.Second, 4, 0)
	checker.query = func(string, ntp.QueryOptions) (*ntp.Response, error) {
		return nil, queryErr
	}

	check := checker.Check("ntp.example.org", time.Hour)

	assert.ErrorIs(t, check.Err, queryErr)
	assert.False(t, check.Diverged(0), "a failed check never reports divergence")
}

func TestReferenceChecker_WithMaxDivergence(t *testing.T) {
	checker := NewReferenceChecker(time.Second, 4, 0)

	assert.Equal(t, DefaultMaxDivergence, checker.WithMaxDivergence(0).MaxDivergence())
	assert.Equal(t, time.Second, checker.WithMaxDivergence(time.Second).MaxDivergence())
}
