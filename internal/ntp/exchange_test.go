package ntp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/maximewewer/ntp-offset/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTimestamp(t *testing.T, seconds float64) packet.Timestamp {
	t.Helper()
	ts, err := packet.TimestampFromSeconds(seconds)
	require.NoError(t, err)
	return ts
}

// fixedClock returns the given times in order, repeating the last one
func fixedClock(times ...time.Time) NowFunc {
	i := 0
	return func() time.Time {
		now := times[i]
		if i < len(times)-1 {
			i++
		}
		return now
	}
}

// timeoutError mimics the error returned by a socket read deadline
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestComputeResult_OffsetFormula(t *testing.T) {
	reply := &packet.Message{
		Mode:         packet.ModeServer,
		OriginTime:   mustTimestamp(t, 1000.0),
		ReceiveTime:  mustTimestamp(t, 1000.5),
		TransmitTime: mustTimestamp(t, 1001.0),
	}
	arrival := mustTimestamp(t, 1001.6)

	result := ComputeResult(reply, arrival)

	assert.InDelta(t, 1001.55, result.ServerTime.Seconds(), 1e-9)
	assert.Equal(t, arrival, result.ArrivalTime)
	assert.InDelta(t, -0.05, result.Offset.Seconds(), 1e-8, "((0.5) + (-0.6)) / 2")
	assert.InDelta(t, 1.1, result.Delay.Seconds(), 1e-8, "(1.6) - (0.5)")
	assert.Equal(t, reply, result.Reply)
}

func TestComputeResult_ServerTimeIsArrivalPlusOffset(t *testing.T) {
	reply := &packet.Message{
		OriginTime:   mustTimestamp(t, 3900000000.125),
		ReceiveTime:  mustTimestamp(t, 3900000003.5),
		TransmitTime: mustTimestamp(t, 3900000003.625),
	}
	arrival := mustTimestamp(t, 3900000000.375)

	result := ComputeResult(reply, arrival)

	estimated := result.ServerTime.Since(result.ArrivalTime).Duration()
	assert.InDelta(t, result.Offset.Seconds(), estimated.Seconds(), 1e-9)
	assert.InDelta(t, 3.3125, result.Offset.Seconds(), 1e-9)
	assert.InDelta(t, 0.125, result.Delay.Seconds(), 1e-9)
}

func TestExchange_Perform_Success(t *testing.T) {
	sent := time.Unix(1700000000, 0)
	arrived := sent.Add(40 * time.Millisecond)

	transport := NewMockTransport(func(request []byte) ([]byte, error) {
		req, err := packet.Decode(request)
		require.NoError(t, err)

		assert.Equal(t, packet.ModeClient, req.Mode)
		assert.Equal(t, uint8(4), req.Version)
		assert.Equal(t, packet.TimestampFromTime(sent), req.TransmitTime)
		assert.True(t, req.OriginTime.IsZero())
		assert.True(t, req.ReceiveTime.IsZero())
		assert.True(t, req.ReferenceTime.IsZero())

		return packet.Encode(&packet.Message{
			Version:      4,
			Mode:         packet.ModeServer,
			Stratum:      2,
			OriginTime:   req.TransmitTime,
			ReceiveTime:  packet.TimestampFromTime(sent.Add(1*time.Second + 20*time.Millisecond)),
			TransmitTime: packet.TimestampFromTime(sent.Add(1*time.Second + 20*time.Millisecond)),
		})
	})

	exchange := NewExchange(transport, fixedClock(sent, arrived), 0, 0)
	result, err := exchange.Perform(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, transport.Calls())
	assert.True(t, result.OriginMatches())
	assert.InDelta(t, 1.0, result.Offset.Seconds(), 1e-6)
	assert.InDelta(t, 0.040, result.Delay.Seconds(), 1e-6)
	assert.WithinDuration(t, arrived.Add(time.Second), result.ServerTime.Time(), time.Microsecond)
	assert.WithinDuration(t, arrived, result.ArrivalTime.Time(), time.Microsecond)
}

func TestExchange_Perform_ArrivalStampedBeforeDecode(t *testing.T) {
	calls := 0
	now := func() time.Time {
		calls++
		return time.Unix(1700000000+int64(calls), 0)
	}

	transport := NewMockTransport(func([]byte) ([]byte, error) {
		return []byte{0x24}, nil
	})

	_, err := NewExchange(transport, now, time.Second, 4).Perform(context.Background())

	assert.ErrorIs(t, err, packet.ErrMalformedPacket)
	assert.Equal(t, 2, calls, "arrival is stamped even when the reply turns out malformed")
}

func TestExchange_Perform_TransportErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantTimeout bool
	}{
		{"net_timeout", &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}, true},
		{"deadline_exceeded", context.DeadlineExceeded, true},
		{"connection_refused", errors.New("connection refused"), false},
		{"dns_failure", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, false},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewMockTransport(func([]byte) ([]byte, error) {
				return nil, tt.err
			})

			result, err := NewExchange(transport, nil, time.Second, 4).Perform(context.Background())

			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrUnreachable)
			assert.ErrorIs(t, err, tt.err)
			assert.NotErrorIs(t, err, packet.ErrMalformedPacket)
			assert.Equal(t, tt.wantTimeout, errors.Is(err, ErrTimeout))
		})
	}
}

func TestExchange_Perform_Timeout(t *testing.T) {
	transport := NewServerMockTransport(0, 0, 2)
	transport.SetDelay(time.Hour)

	start := time.Now()
	result, err := NewExchange(transport, nil, 50*time.Millisecond, 4).Perform(context.Background())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExchange_Perform_MalformedReply(t *testing.T) {
	for _, size := range []int{0, 47, 49} {
		transport := NewMockTransport(func([]byte) ([]byte, error) {
			return make([]byte, size), nil
		})

		result, err := NewExchange(transport, nil, time.Second, 4).Perform(context.Background())

		assert.Nil(t, result)
		assert.ErrorIs(t, err, packet.ErrMalformedPacket, "size %d", size)
		assert.NotErrorIs(t, err, ErrUnreachable)
	}
}

func TestExchange_Perform_EncodingError(t *testing.T) {
	transport := NewServerMockTransport(0, 0, 2)

	_, err := NewExchange(transport, nil, time.Second, 8).Perform(context.Background())

	assert.ErrorIs(t, err, packet.ErrEncoding)
	assert.Equal(t, 0, transport.Calls(), "nothing is sent when the request cannot be encoded")
}

func TestExchange_Perform_NoRetry(t *testing.T) {
	transport := NewMockTransport(func([]byte) ([]byte, error) {
		return nil, timeoutError{}
	})

	_, err := NewExchange(transport, nil, time.Second, 4).Perform(context.Background())

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, transport.Calls())
}

func TestExchange_Perform_OriginMismatch(t *testing.T) {
	transport := NewMockTransport(func([]byte) ([]byte, error) {
		return packet.Encode(&packet.Message{
			Version:      4,
			Mode:         packet.ModeServer,
			Stratum:      2,
			OriginTime:   packet.NewTimestamp(1, 0),
			ReceiveTime:  packet.TimestampFromTime(time.Now()),
			TransmitTime: packet.TimestampFromTime(time.Now()),
		})
	})

	result, err := NewExchange(transport, nil, time.Second, 4).Perform(context.Background())

	require.NoError(t, err)
	assert.False(t, result.OriginMatches())
}

func TestNewExchange_Defaults(t *testing.T) {
	exchange := NewExchange(NewServerMockTransport(0, 0, 1), nil, 0, 0)

	assert.Equal(t, DefaultTimeout, exchange.timeout)
	assert.Equal(t, uint8(packet.DefaultVersion), exchange.version)
	assert.NotNil(t, exchange.now)
}

func TestErrTimeoutIsUnreachable(t *testing.T) {
	assert.ErrorIs(t, ErrTimeout, ErrUnreachable)
	assert.ErrorIs(t, ErrCircuitOpen, ErrUnreachable)
	assert.NotErrorIs(t, ErrUnreachable, ErrTimeout)
}
