package ntp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maximewewer/ntp-offset/internal/packet"
	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/maximewewer/ntp-offset/pkg/mathutil"
)

// Querier runs one exchange against a named server
type Querier interface {
	Query(ctx context.Context, server string) (*Response, error)
}

// Response is a completed exchange annotated for presentation and metrics
type Response struct {
	*Result

	ID       string
	Server   string
	Duration time.Duration

	// Reference is set when cross-checking against the reference client
	Reference *ReferenceCheck
}

// Stratum returns the server stratum
func (r *Response) Stratum() uint8 {
	return r.Reply.Stratum
}

// KissCode returns the kiss-o'-death code, if any
func (r *Response) KissCode() string {
	return r.Reply.KissCode()
}

// IsKissOfDeath checks if the reply is a kiss-o'-death
func (r *Response) IsKissOfDeath() bool {
	return r.KissCode() != ""
}

// Reasons a reply is considered suspicious
const (
	SuspicionStratum        = "invalid_stratum"
	SuspicionNotInSync      = "not_in_sync"
	SuspicionOriginMismatch = "origin_mismatch"
	SuspicionLargeOffset    = "large_offset"
	SuspicionDelay          = "implausible_delay"
)

// SuspicionReasons lists what makes the estimate untrustworthy, if anything
func (r *Response) SuspicionReasons() []string {
	var reasons []string
	if r.Stratum() == 0 || r.Stratum() > MaxValidStratum {
		reasons = append(reasons, SuspicionStratum)
	}
	if r.Reply.Leap == packet.LeapNotInSync {
		reasons = append(reasons, SuspicionNotInSync)
	}
	if !r.OriginMatches() {
		reasons = append(reasons, SuspicionOriginMismatch)
	}
	if mathutil.AbsDuration(r.Offset) > SuspiciousOffsetThreshold {
		reasons = append(reasons, SuspicionLargeOffset)
	}
	if r.Delay > MaxAcceptableDelay || r.Delay < 0 {
		reasons = append(reasons, SuspicionDelay)
	}
	return reasons
}

// IsSuspicious checks if the reply has characteristics that make the
// estimate untrustworthy
func (r *Response) IsSuspicious() bool {
	return len(r.SuspicionReasons()) > 0
}

// TransportFactory builds a transport for a server name
type TransportFactory func(server string) Transport

// ClientOptions configures a Client
type ClientOptions struct {
	Timeout     time.Duration
	Version     uint8
	Port        int
	Now         NowFunc
	Resolver    Resolver
	RateLimiter *RateLimiter
	Reference   *ReferenceChecker

	// Transport overrides the UDP transport, mainly for tests
	Transport TransportFactory
}

// Client runs single-shot exchanges with logging, rate limiting and an
// optional reference cross-check
type Client struct {
	timeout      time.Duration
	version      uint8
	now          NowFunc
	rateLimiter  *RateLimiter
	reference    *ReferenceChecker
	newTransport TransportFactory
}

// NewClient creates a new client
func NewClient(opts ClientOptions) *Client {
	factory := opts.Transport
	if factory == nil {
		port, resolver := opts.Port, opts.Resolver
		factory = func(server string) Transport {
			return NewUDPTransport(server, port, resolver)
		}
	}

	return &Client{
		timeout:      opts.Timeout,
		version:      opts.Version,
		now:          opts.Now,
		rateLimiter:  opts.RateLimiter,
		reference:    opts.Reference,
		newTransport: factory,
	}
}

// Query performs one exchange with server. Failures are reported, never retried.
func (c *Client) Query(ctx context.Context, server string) (*Response, error) {
	id := uuid.NewString()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, server); err != nil {
			return nil, fmt.Errorf("%w for %s: %w", ErrRateLimited, server, err)
		}
	}

	start := time.Now()
	result, err := NewExchange(c.newTransport(server), c.now, c.timeout, c.version).Perform(ctx)
	elapsed := time.Since(start)

	if err != nil {
		logger.Exchange(id, server, elapsed, err, nil)
		return nil, fmt.Errorf("ntp exchange with %s failed: %w", server, err)
	}

	resp := &Response{
		Result:   result,
		ID:       id,
		Server:   server,
		Duration: elapsed,
	}

	if resp.IsKissOfDeath() {
		logger.Security("kiss_of_death", resp.KissCode(), map[string]interface{}{
			"server":      server,
			"exchange_id": id,
		})
	}
	if !resp.OriginMatches() {
		logger.Security("origin_mismatch", "reply does not echo our transmit timestamp", map[string]interface{}{
			"server":      server,
			"exchange_id": id,
			"sent":        resp.RequestTime.Seconds(),
			"echoed":      resp.Reply.OriginTime.Seconds(),
		})
	}

	if c.reference != nil {
		resp.Reference = c.reference.Check(server, resp.Offset)
	}

	logger.Exchange(id, server, elapsed, nil, map[string]interface{}{
		"offset":  resp.Offset.Seconds(),
		"delay":   resp.Delay.Seconds(),
		"stratum": resp.Stratum(),
		"version": resp.Reply.Version,
	})

	return resp, nil
}
