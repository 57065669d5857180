package ntp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/maximewewer/ntp-offset/internal/packet"
)

var (
	// ErrUnreachable reports that no reply was obtained from the server
	ErrUnreachable = errors.New("ntp server unreachable")

	// ErrTimeout reports that the reply did not arrive before the deadline.
	// It matches ErrUnreachable under errors.Is.
	ErrTimeout = fmt.Errorf("%w: no reply before deadline", ErrUnreachable)
)

// Transport sends one request datagram and waits up to timeout for the reply
type Transport interface {
	SendAndReceive(ctx context.Context, request []byte, timeout time.Duration) ([]byte, error)
}

// NowFunc returns the current wall-clock time
type NowFunc func() time.Time

// Result is the outcome of one client/server exchange.
//
// RequestTime is T1 as sent, Reply carries T1 (origin), T2 (receive) and
// T3 (transmit) as echoed by the server, ArrivalTime is T4.
type Result struct {
	Reply       *packet.Message
	RequestTime packet.Timestamp
	ArrivalTime packet.Timestamp

	// ServerTime estimates the server clock at ArrivalTime
	ServerTime packet.Timestamp

	// Offset is ((T2-T1) + (T3-T4)) / 2
	Offset time.Duration

	// Delay is the round trip minus server processing: (T4-T1) - (T3-T2)
	Delay time.Duration
}

// OriginMatches reports whether the server echoed our transmit timestamp
func (r *Result) OriginMatches() bool {
	return r.Reply.OriginTime == r.RequestTime
}

// Exchange performs a single request/reply round trip over a Transport.
// It never retries and never logs.
type Exchange struct {
	transport Transport
	now       NowFunc
	timeout   time.Duration
	version   uint8
}

// NewExchange creates an Exchange. A nil now uses time.Now, a zero timeout
// uses DefaultTimeout and a zero version uses packet.DefaultVersion.
func NewExchange(transport Transport, now NowFunc, timeout time.Duration, version uint8) *Exchange {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if version == 0 {
		version = packet.DefaultVersion
	}

	return &Exchange{
		transport: transport,
		now:       now,
		timeout:   timeout,
		version:   version,
	}
}

// Perform sends one request and computes the result from the reply.
//
// Transport failures return ErrUnreachable (or ErrTimeout) and the reply is
// never decoded. A reply that fails to decode returns packet.ErrMalformedPacket.
func (e *Exchange) Perform(ctx context.Context) (*Result, error) {
	requestTime := packet.TimestampFromTime(e.now())

	request, err := packet.Encode(packet.NewRequest(e.version, requestTime))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	data, err := e.transport.SendAndReceive(ctx, request, e.timeout)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	// Stamp before decoding so codec cost stays out of the measurement
	arrival := packet.TimestampFromTime(e.now())

	reply, err := packet.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	result := ComputeResult(reply, arrival)
	result.RequestTime = requestTime
	return result, nil
}

// ComputeResult derives the server clock estimate, offset and delay from a
// decoded reply and the local arrival timestamp
func ComputeResult(reply *packet.Message, arrival packet.Timestamp) *Result {
	t1 := reply.OriginTime
	t2 := reply.ReceiveTime
	t3 := reply.TransmitTime
	t4 := arrival

	roundTrip := t4.Since(t1)
	processing := t3.Since(t2)

	return &Result{
		Reply:       reply,
		RequestTime: t1,
		ArrivalTime: t4,
		ServerTime:  t3.Shift((roundTrip - processing) / 2),
		Offset:      ((t2.Since(t1) + t3.Since(t4)) / 2).Duration(),
		Delay:       (roundTrip - processing).Duration(),
	}
}

// classifyTransportError maps a transport failure onto ErrTimeout or ErrUnreachable
func classifyTransportError(err error) error {
	if errors.Is(err, ErrUnreachable) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
