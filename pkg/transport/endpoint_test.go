package transport

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/okabe-project/lifx-go/pkg/log"
)

func TestEndpointSendReceive(t *testing.T) {
	a, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open a failed: %v", err)
	}
	defer a.Close()

	b, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open b failed: %v", err)
	}
	defer b.Close()

	payload := []byte{0x31, 0x00, 0x00, 0x34, 0xef, 0xbe, 0xad, 0xde}
	if err := a.Send(payload, b.LocalAddr()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	buf := make([]byte, MaxDatagramSize)
	n, src, err := b.Receive(buf, time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("payload = %x, want %x", buf[:n], payload)
	}
	if src.Port != a.LocalAddr().Port {
		t.Errorf("source port = %d, want %d", src.Port, a.LocalAddr().Port)
	}
}

func TestEndpointReceiveTimeout(t *testing.T) {
	e, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Close()

	buf := make([]byte, MaxDatagramSize)
	start := time.Now()
	_, _, err = e.Receive(buf, 50*time.Millisecond)
	if !errors.Is(err, ErrReceiveTimeout) {
		t.Fatalf("expected ErrReceiveTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, want at least the wait budget", elapsed)
	}
}

func TestEndpointClosedReceive(t *testing.T) {
	e, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, MaxDatagramSize)
		_, _, err := e.Receive(buf, 0)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrEndpointClosed) {
			t.Errorf("expected ErrEndpointClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}

	// Close is idempotent.
	if err := e.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestEndpointOpenBadAddress(t *testing.T) {
	if _, err := Open("256.0.0.1:0"); err == nil {
		t.Error("expected error for invalid bind address")
	}
}

func TestEndpointLogsPackets(t *testing.T) {
	var rec recordingLogger
	a, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open a failed: %v", err)
	}
	defer a.Close()
	a.SetLogger(&rec, "test-session")

	b, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open b failed: %v", err)
	}
	defer b.Close()

	if err := a.Send([]byte("ping"), b.LocalAddr()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("logged %d events, want 1", len(events))
	}
	e := events[0]
	if e.Direction != log.DirectionOut || e.Layer != log.LayerTransport {
		t.Errorf("event direction/layer = %v/%v", e.Direction, e.Layer)
	}
	if e.SessionID != "test-session" || e.Packet == nil || e.Packet.Size != 4 {
		t.Errorf("event metadata mismatch: %+v", e)
	}
}

func TestSubnetBroadcast(t *testing.T) {
	tests := []struct {
		name string
		cidr string
		want string
	}{
		{
			name: "slash 24",
			cidr: "192.168.1.17/24",
			want: "192.168.1.255",
		},
		{
			name: "slash 16",
			cidr: "10.1.2.3/16",
			want: "10.1.255.255",
		},
		{
			name: "slash 27",
			cidr: "172.16.0.33/27",
			want: "172.16.0.63",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, ipnet, err := net.ParseCIDR(tt.cidr)
			if err != nil {
				t.Fatalf("ParseCIDR failed: %v", err)
			}
			ipnet.IP = ip

			got := subnetBroadcast(ipnet)
			if got.String() != tt.want {
				t.Errorf("subnetBroadcast(%s) = %v, want %v", tt.cidr, got, tt.want)
			}
		})
	}
}

func TestSubnetBroadcastIPv6(t *testing.T) {
	_, ipnet, err := net.ParseCIDR("fe80::1/64")
	if err != nil {
		t.Fatalf("ParseCIDR failed: %v", err)
	}
	if got := subnetBroadcast(ipnet); got != nil {
		t.Errorf("expected nil for IPv6 network, got %v", got)
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) snapshot() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}
