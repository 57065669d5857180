package ntp

import (
	"net"
	"strconv"
	"time"

	"github.com/beevik/ntp"
	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/maximewewer/ntp-offset/pkg/mathutil"
)

// ReferenceCheck compares our offset with the one computed by beevik/ntp
type ReferenceCheck struct {
	Offset     time.Duration
	RTT        time.Duration
	Divergence time.Duration
	Err        error
}

// Diverged reports whether the two offsets disagree by more than max
func (rc *ReferenceCheck) Diverged(max time.Duration) bool {
	return rc.Err == nil && mathutil.AbsDuration(rc.Divergence) > max
}

// ReferenceChecker runs a second, independent query through the
// beevik/ntp client to validate our own computation
type ReferenceChecker struct {
	timeout       time.Duration
	version       int
	port          int
	maxDivergence time.Duration
	query         func(address string, opts ntp.QueryOptions) (*ntp.Response, error)
}

// NewReferenceChecker creates a checker using the given query parameters
func NewReferenceChecker(timeout time.Duration, version, port int) *ReferenceChecker {
	if port == 0 {
		port = DefaultPort
	}

	return &ReferenceChecker{
		timeout:       timeout,
		version:       version,
		port:          port,
		maxDivergence: DefaultMaxDivergence,
		query:         ntp.QueryWithOptions,
	}
}

// WithMaxDivergence sets the divergence above which a warning is logged.
// Zero keeps the current value.
func (r *ReferenceChecker) WithMaxDivergence(max time.Duration) *ReferenceChecker {
	if max > 0 {
		r.maxDivergence = max
	}
	return r
}

// MaxDivergence returns the divergence threshold
func (r *ReferenceChecker) MaxDivergence() time.Duration {
	return r.maxDivergence
}

// Check queries server and reports how far its offset is from ours
func (r *ReferenceChecker) Check(server string, offset time.Duration) *ReferenceCheck {
	resp, err := r.query(net.JoinHostPort(server, strconv.Itoa(r.port)), ntp.QueryOptions{
		Timeout: r.timeout,
		Version: r.version,
	})
	if err != nil {
		logger.SafeWarn("ntp", "Reference query failed", map[string]interface{}{
			"server": server,
			"error":  err.Error(),
		})
		return &ReferenceCheck{Err: err}
	}

	check := &ReferenceCheck{
		Offset:     resp.ClockOffset,
		RTT:        resp.RTT,
		Divergence: offset - resp.ClockOffset,
	}

	if check.Diverged(r.maxDivergence) {
		logger.SafeWarn("ntp", "Offset diverges from reference client", map[string]interface{}{
			"server":           server,
			"offset":           offset.Seconds(),
			"reference_offset": resp.ClockOffset.Seconds(),
			"divergence":       check.Divergence.Seconds(),
		})
	}

	return check
}
