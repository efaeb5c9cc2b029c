package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/okabe-project/lifx-go/pkg/log"
)

// Transport constants.
const (
	// DevicePort is the UDP port LIFX devices listen on. Broadcast
	// discovery targets the same port.
	DevicePort = 56700

	// MaxDatagramSize bounds receive buffers. LIFX packets are small;
	// anything larger is not a protocol packet.
	MaxDatagramSize = 1024

	// MaxLogPayloadSize is the maximum datagram prefix included in log
	// events. Larger datagrams are truncated in the event record.
	MaxLogPayloadSize = 256
)

// Transport errors.
var (
	// ErrReceiveTimeout indicates no datagram arrived within the wait
	// budget. This is the expected steady state between retries, not a
	// fatal condition.
	ErrReceiveTimeout = errors.New("receive timed out")

	// ErrEndpointClosed indicates the endpoint has been closed.
	ErrEndpointClosed = errors.New("endpoint closed")
)

// Endpoint is one open UDP socket. It is a pure byte/address conduit:
// encoding, correlation and retries are the concern of higher layers.
// Send and Receive are safe for concurrent use.
type Endpoint struct {
	conn *net.UDPConn

	mu        sync.Mutex
	closed    bool
	logger    log.Logger
	sessionID string
}

// Open binds a UDP endpoint on bindAddr (use ":0" for an ephemeral port).
// The socket is configured for broadcast sends and address reuse. A bind
// failure is fatal for the session and is returned immediately.
func Open(bindAddr string) (*Endpoint, error) {
	lc := net.ListenConfig{Control: setSocketOptions}
	pc, err := lc.ListenPacket(context.Background(), "udp4", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport unavailable: %w", err)
	}
	return &Endpoint{conn: pc.(*net.UDPConn)}, nil
}

// setSocketOptions enables SO_BROADCAST and SO_REUSEADDR before bind.
func setSocketOptions(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
			sockErr = fmt.Errorf("SO_BROADCAST: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("SO_REUSEADDR: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// SetLogger configures protocol event logging for this endpoint.
// Pass nil to disable logging.
func (e *Endpoint) SetLogger(logger log.Logger, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
	e.sessionID = sessionID
}

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Send transmits one datagram to dst, which may be a unicast device
// address or a subnet broadcast address. Send failures surface
// immediately; they are never absorbed into a retry timeout.
func (e *Endpoint) Send(data []byte, dst *net.UDPAddr) error {
	if _, err := e.conn.WriteToUDP(data, dst); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrEndpointClosed
		}
		e.logError(fmt.Sprintf("send to %v: %v", dst, err))
		return fmt.Errorf("transport unavailable: %w", err)
	}
	e.logPacket(data, dst, log.DirectionOut)
	return nil
}

// Receive waits up to wait for one datagram and copies it into buf.
// A wait of zero blocks until a datagram arrives or the endpoint closes.
// Expiry of the wait budget returns ErrReceiveTimeout.
func (e *Endpoint) Receive(buf []byte, wait time.Duration) (int, *net.UDPAddr, error) {
	if wait > 0 {
		if err := e.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return 0, nil, err
		}
	} else {
		if err := e.conn.SetReadDeadline(time.Time{}); err != nil {
			return 0, nil, err
		}
	}

	n, src, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, nil, ErrEndpointClosed
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, nil, ErrReceiveTimeout
		}
		return 0, nil, fmt.Errorf("receive: %w", err)
	}

	e.logPacket(buf[:n], src, log.DirectionIn)
	return n, src, nil
}

// Close releases the socket. Blocked Receive calls return
// ErrEndpointClosed. Close is idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.conn.Close()
}

// logPacket records a raw datagram event at the transport layer.
func (e *Endpoint) logPacket(data []byte, addr *net.UDPAddr, direction log.Direction) {
	e.mu.Lock()
	logger, sessionID := e.logger, e.sessionID
	e.mu.Unlock()
	if logger == nil {
		return
	}

	sample := data
	truncated := false
	if len(sample) > MaxLogPayloadSize {
		sample = sample[:MaxLogPayloadSize]
		truncated = true
	}

	logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Direction:  direction,
		Layer:      log.LayerTransport,
		Category:   log.CategoryPacket,
		RemoteAddr: addr.String(),
		Packet: &log.PacketEvent{
			Size:      len(data),
			Payload:   sample,
			Truncated: truncated,
		},
	})
}

// logError records a transport-layer error event.
func (e *Endpoint) logError(msg string) {
	e.mu.Lock()
	logger, sessionID := e.logger, e.sessionID
	e.mu.Unlock()
	if logger == nil {
		return
	}

	logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: msg,
		},
	})
}
