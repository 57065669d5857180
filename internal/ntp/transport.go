package ntp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// UDPTransport exchanges datagrams with one NTP server. Every call opens
// and closes its own socket.
type UDPTransport struct {
	host     string
	port     int
	resolver Resolver
	dialer   net.Dialer
	dial     func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewUDPTransport creates a transport for host:port. When resolver is nil
// the dialer resolves the name itself.
func NewUDPTransport(host string, port int, resolver Resolver) *UDPTransport {
	if port == 0 {
		port = DefaultPort
	}

	t := &UDPTransport{
		host:     host,
		port:     port,
		resolver: resolver,
	}
	t.dial = t.dialer.DialContext
	return t
}

// Address returns the host:port the transport targets
func (t *UDPTransport) Address() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// SendAndReceive writes request and returns the first datagram received
// before the timeout elapses
func (t *UDPTransport) SendAndReceive(ctx context.Context, request []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := t.resolve(ctx)
	if err != nil {
		return nil, err
	}

	conn, addr, err := t.connect(ctx, addrs)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline on %s: %w", addr, err)
	}

	// Unblock the read if the caller cancels before the deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("send to %s: %w", addr, err)
	}

	buf := getDatagram()
	defer putDatagram(buf)

	n, err := conn.Read(*buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("receive from %s: %w", addr, ctxErr)
		}
		return nil, fmt.Errorf("receive from %s: %w", addr, err)
	}

	// The pooled buffer is reused, the caller gets its own copy
	return append([]byte(nil), (*buf)[:n]...), nil
}

// connect dials the candidate addresses in order and returns the first
// socket that could be opened. A UDP dial fails early when the host has no
// route for the address family, so the next candidate is tried.
func (t *UDPTransport) connect(ctx context.Context, addrs []string) (net.Conn, string, error) {
	var errs []error
	for _, addr := range addrs {
		conn, err := t.dial(ctx, "udp", addr)
		if err == nil {
			return conn, addr, nil
		}
		errs = append(errs, fmt.Errorf("dial %s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", errors.Join(errs...)
}

// resolve returns the host:port candidates to dial, in resolver order
func (t *UDPTransport) resolve(ctx context.Context) ([]string, error) {
	if t.resolver == nil {
		return []string{t.Address()}, nil
	}

	ips, err := t.resolver.Resolve(ctx, t.host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", t.host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", t.host)
	}

	addrs := make([]string, len(ips))
	for i, ip := range ips {
		addrs[i] = net.JoinHostPort(ip, strconv.Itoa(t.port))
	}
	return addrs, nil
}
