package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe-project/lifx-go/pkg/wire"
)

// fakeDevice is a scripted UDP responder standing in for a light on the
// loopback interface. The handler receives each decoded request together
// with its 1-based arrival count and returns the payloads to answer with.
type fakeDevice struct {
	t       *testing.T
	conn    *net.UDPConn
	target  wire.Target
	handler func(count int, hdr wire.Header, p wire.Payload) []wire.Payload

	mu      sync.Mutex
	packets [][]byte

	done chan struct{}
}

func newFakeDevice(t *testing.T, target wire.Target,
	handler func(count int, hdr wire.Header, p wire.Payload) []wire.Payload) *fakeDevice {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp4", addr)
	require.NoError(t, err)

	d := &fakeDevice{
		t:       t,
		conn:    conn,
		target:  target,
		handler: handler,
		done:    make(chan struct{}),
	}
	go d.run()
	t.Cleanup(d.close)
	return d
}

func (d *fakeDevice) run() {
	defer close(d.done)
	buf := make([]byte, 2048)
	for {
		n, src, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		d.mu.Lock()
		d.packets = append(d.packets, data)
		count := len(d.packets)
		d.mu.Unlock()

		hdr, payload, err := wire.Decode(data)
		if err != nil {
			continue
		}
		if d.handler == nil {
			continue
		}
		for _, reply := range d.handler(count, hdr, payload) {
			out, err := wire.Encode(wire.Header{
				Source:   hdr.Source,
				Target:   d.target,
				Sequence: hdr.Sequence,
			}, reply)
			if err != nil {
				continue
			}
			d.conn.WriteToUDP(out, src)
		}
	}
}

func (d *fakeDevice) addr() *net.UDPAddr {
	return d.conn.LocalAddr().(*net.UDPAddr)
}

func (d *fakeDevice) received() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.packets))
	copy(out, d.packets)
	return out
}

func (d *fakeDevice) close() {
	d.conn.Close()
	<-d.done
}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.SettleWindow == 0 {
		cfg.SettleWindow = 50 * time.Millisecond
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSendReceivesResponse(t *testing.T) {
	target := wire.Target{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	dev := newFakeDevice(t, target, func(count int, hdr wire.Header, p wire.Payload) []wire.Payload {
		if p.Type() == wire.TypeGetPower {
			return []wire.Payload{&wire.StatePowerPayload{Level: wire.PowerOn}}
		}
		return nil
	})

	s := newTestSession(t, Config{})

	reply, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.NoError(t, err)
	require.NotNil(t, reply)

	state, ok := reply.Payload.(*wire.StatePowerPayload)
	require.True(t, ok)
	assert.Equal(t, wire.PowerOn, state.Level)
	assert.Equal(t, target, reply.Header.Target)
}

func TestSendRetriesThenUnreachable(t *testing.T) {
	target := wire.Target{1, 2, 3, 4, 5, 6}
	dev := newFakeDevice(t, target, nil) // never answers

	s := newTestSession(t, Config{Timeout: 40 * time.Millisecond, MaxRetries: 2})

	_, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.ErrorIs(t, err, ErrDeviceUnreachable)

	// Initial send plus two retries, every attempt byte-identical.
	packets := dev.received()
	require.Len(t, packets, 3)
	assert.Equal(t, packets[0], packets[1])
	assert.Equal(t, packets[0], packets[2])
}

func TestSendResendKeepsSequence(t *testing.T) {
	target := wire.Target{1, 2, 3, 4, 5, 6}
	dev := newFakeDevice(t, target, func(count int, hdr wire.Header, p wire.Payload) []wire.Payload {
		// Drop the first attempt, answer the resend.
		if count < 2 {
			return nil
		}
		return []wire.Payload{&wire.AcknowledgementPayload{}}
	})

	s := newTestSession(t, Config{Timeout: 40 * time.Millisecond, MaxRetries: 3})

	reply, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.SetPowerPayload{Level: wire.PowerOn},
		Expect:  []wire.MessageType{wire.TypeAcknowledgement},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.TypeAcknowledgement, reply.Payload.Type())

	packets := dev.received()
	require.Len(t, packets, 2)
	assert.Equal(t, packets[0], packets[1], "resend must reuse the original bytes")
}

func TestSendDuplicateResponsesTolerated(t *testing.T) {
	target := wire.Target{7, 7, 7, 7, 7, 7}
	dev := newFakeDevice(t, target, func(count int, hdr wire.Header, p wire.Payload) []wire.Payload {
		// The network duplicated the answer.
		return []wire.Payload{
			&wire.StatePowerPayload{Level: wire.PowerOff},
			&wire.StatePowerPayload{Level: wire.PowerOff},
		}
	})

	s := newTestSession(t, Config{})

	reply, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.NoError(t, err)
	require.NotNil(t, reply)

	// The second copy must not linger in the pending table or crash the
	// dispatcher; a follow-up request works normally.
	reply, err = s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
}

func TestSendUnexpectedTypeIgnored(t *testing.T) {
	target := wire.Target{8, 8, 8, 8, 8, 8}
	dev := newFakeDevice(t, target, func(count int, hdr wire.Header, p wire.Payload) []wire.Payload {
		// Answers with the wrong message type.
		return []wire.Payload{&wire.StateLabelPayload{Label: "nope"}}
	})

	s := newTestSession(t, Config{Timeout: 40 * time.Millisecond, MaxRetries: 0})

	_, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.ErrorIs(t, err, ErrDeviceUnreachable)
}

func TestSendFireAndForget(t *testing.T) {
	target := wire.Target{9, 9, 9, 9, 9, 9}
	dev := newFakeDevice(t, target, nil)

	s := newTestSession(t, Config{})

	reply, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.SetPowerPayload{Level: wire.PowerOff},
	})
	require.NoError(t, err)
	assert.Nil(t, reply)

	require.Eventually(t, func() bool {
		return len(dev.received()) == 1
	}, time.Second, 10*time.Millisecond)

	hdr, _, err := wire.Decode(dev.received()[0])
	require.NoError(t, err)
	assert.False(t, hdr.AckRequired)
	assert.False(t, hdr.ResRequired)
}

func TestSendContextCancelReleasesOnlyOneRequest(t *testing.T) {
	slow := wire.Target{1, 0, 0, 0, 0, 1}
	slowDev := newFakeDevice(t, slow, nil) // never answers

	fast := wire.Target{1, 0, 0, 0, 0, 2}
	fastDev := newFakeDevice(t, fast, func(count int, hdr wire.Header, p wire.Payload) []wire.Payload {
		time.Sleep(50 * time.Millisecond)
		return []wire.Payload{&wire.StatePowerPayload{Level: wire.PowerOn}}
	})

	s := newTestSession(t, Config{Timeout: 500 * time.Millisecond, MaxRetries: 0})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Send(ctx, Request{
			Target:  slow,
			Addr:    slowDev.addr(),
			Payload: &wire.GetPowerPayload{},
			Expect:  []wire.MessageType{wire.TypeStatePower},
		})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled request did not return")
	}

	// The other request proceeds undisturbed.
	reply, err := s.Send(context.Background(), Request{
		Target:  fast,
		Addr:    fastDev.addr(),
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
}

func TestSendAfterClose(t *testing.T) {
	s := newTestSession(t, Config{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	_, err := s.Send(context.Background(), Request{
		Target:  wire.Target{1, 2, 3, 4, 5, 6},
		Addr:    &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 56700},
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSendMalformedPayloadFailsBeforeNetwork(t *testing.T) {
	target := wire.Target{1, 2, 3, 4, 5, 6}
	dev := newFakeDevice(t, target, nil)

	s := newTestSession(t, Config{})

	_, err := s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.SetColorPayload{Color: wire.HSBK{Kelvin: 99}}, // below the valid range
		Expect:  []wire.MessageType{wire.TypeAcknowledgement},
	})
	require.ErrorIs(t, err, wire.ErrMalformedPayload)
	assert.Empty(t, dev.received())
}

func TestStateResponsesRefreshRegistry(t *testing.T) {
	target := wire.Target{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	dev := newFakeDevice(t, target, func(count int, hdr wire.Header, p wire.Payload) []wire.Payload {
		switch p.Type() {
		case wire.TypeGetService:
			return []wire.Payload{&wire.StateServicePayload{Service: 1, Port: 56700}}
		case wire.TypeGetColor:
			return []wire.Payload{&wire.LightStatePayload{
				Color: wire.HSBK{Hue: 100, Saturation: 200, Brightness: 300, Kelvin: 3500},
				Power: wire.PowerOn,
				Label: "Desk",
			}}
		}
		return nil
	})

	s := newTestSession(t, Config{DiscoveryAddrs: []*net.UDPAddr{dev.addr()}})

	devices, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	_, err = s.Send(context.Background(), Request{
		Target:  target,
		Addr:    dev.addr(),
		Payload: &wire.GetColorPayload{},
		Expect:  []wire.MessageType{wire.TypeLightState},
	})
	require.NoError(t, err)

	d, err := s.Registry().Get(target)
	require.NoError(t, err)
	assert.Equal(t, "Desk", d.Label)
	require.NotNil(t, d.Power)
	assert.Equal(t, wire.PowerOn, *d.Power)
	require.NotNil(t, d.Color)
	assert.Equal(t, uint16(3500), d.Color.Kelvin)
}
