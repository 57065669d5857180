package ntp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maximewewer/ntp-offset/internal/packet"
)

// MockTransport answers requests with canned replies, for testing
type MockTransport struct {
	mu    sync.Mutex
	reply func(request []byte) ([]byte, error)
	delay time.Duration
	calls int
	last  []byte
}

// NewMockTransport creates a transport that answers with reply
func NewMockTransport(reply func(request []byte) ([]byte, error)) *MockTransport {
	return &MockTransport{reply: reply}
}

// NewServerMockTransport behaves like a well-behaved server whose clock is
// ahead of ours by offset, with processing time between receive and transmit
func NewServerMockTransport(offset, processing time.Duration, stratum uint8) *MockTransport {
	return NewMockTransport(func(request []byte) ([]byte, error) {
		req, err := packet.Decode(request)
		if err != nil {
			return nil, err
		}

		received := time.Now().Add(offset)
		reply := &packet.Message{
			Version:        req.Version,
			Mode:           packet.ModeServer,
			Stratum:        stratum,
			Poll:           6,
			Precision:      -20,
			RootDelay:      packet.NewShort(0, 0x0100),
			RootDispersion: packet.NewShort(0, 0x0200),
			ReferenceID:    0x4E495354,
			ReferenceTime:  packet.TimestampFromTime(received.Add(-time.Minute)),
			OriginTime:     req.TransmitTime,
			ReceiveTime:    packet.TimestampFromTime(received),
			TransmitTime:   packet.TimestampFromTime(received.Add(processing)),
		}
		return packet.Encode(reply)
	})
}

// SetDelay delays every reply, honoring the timeout
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delay = delay
}

// SendAndReceive implements Transport
func (m *MockTransport) SendAndReceive(ctx context.Context, request []byte, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.last = append([]byte(nil), request...)
	delay := m.delay
	reply := m.reply
	m.mu.Unlock()

	if delay > 0 {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return reply(request)
}

// Calls returns how many requests were sent
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// LastRequest returns a copy of the last request sent
func (m *MockTransport) LastRequest() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]byte(nil), m.last...)
}

// MockQuerier is a mock Querier for testing collectors and the CLI
type MockQuerier struct {
	mu         sync.RWMutex
	responses  map[string]*Response
	errors     map[string]error
	callCounts map[string]int
}

// NewMockQuerier creates a new mock querier
func NewMockQuerier() *MockQuerier {
	return &MockQuerier{
		responses:  make(map[string]*Response),
		errors:     make(map[string]error),
		callCounts: make(map[string]int),
	}
}

// Query returns the configured response or error for server
func (m *MockQuerier) Query(ctx context.Context, server string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCounts[server]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errors[server]; ok {
		return nil, err
	}
	if resp, ok := m.responses[server]; ok {
		return resp, nil
	}

	return nil, errors.New("server not configured in mock")
}

// SetupSuccessfulServer configures a reply with the given offset and stratum
func (m *MockQuerier) SetupSuccessfulServer(server string, offset time.Duration, stratum uint8) {
	now := time.Now()
	arrival := packet.TimestampFromTime(now)
	sent := packet.TimestampFromTime(now.Add(-20 * time.Millisecond))

	reply := &packet.Message{
		Version:      packet.DefaultVersion,
		Mode:         packet.ModeServer,
		Stratum:      stratum,
		ReferenceID:  0x4E495354,
		OriginTime:   sent,
		ReceiveTime:  packet.TimestampFromTime(now.Add(offset - 10*time.Millisecond)),
		TransmitTime: packet.TimestampFromTime(now.Add(offset - 10*time.Millisecond)),
	}

	result := ComputeResult(reply, arrival)
	result.RequestTime = sent

	m.SetResponse(server, &Response{
		Result:   result,
		ID:       "mock-" + server,
		Server:   server,
		Duration: 20 * time.Millisecond,
	})
}

// SetupUnreachableServer configures a timeout for server
func (m *MockQuerier) SetupUnreachableServer(server string) {
	m.SetError(server, ErrTimeout)
}

// SetError sets a custom error for a server
func (m *MockQuerier) SetError(server string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.responses, server)
	m.errors[server] = err
}

// SetResponse sets a custom response for a server
func (m *MockQuerier) SetResponse(server string, resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.errors, server)
	m.responses[server] = resp
}

// GetCallCount returns the number of times a server was queried
func (m *MockQuerier) GetCallCount(server string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCounts[server]
}
