package session

import (
	"net"
	"sync"

	"github.com/okabe-project/lifx-go/pkg/registry"
	"github.com/okabe-project/lifx-go/pkg/wire"
)

// Reply is a response delivered for a pending request.
type Reply struct {
	// Header is the decoded packet header.
	Header wire.Header

	// Payload is the decoded typed payload.
	Payload wire.Payload

	// Addr is the responding device's address.
	Addr *net.UDPAddr
}

// pendingRequest correlates an outgoing packet to its expected response.
// Owned exclusively by the session; destroyed on completion, final
// timeout, cancellation or session shutdown.
type pendingRequest struct {
	seq    uint8
	expect map[wire.MessageType]bool

	// reply has capacity 1; the dispatcher never blocks on it. The entry
	// is removed from the pending table on delivery, so duplicate
	// responses for a completed request find no match and are dropped.
	reply chan *Reply
}

func newPendingRequest(seq uint8, expect []wire.MessageType) *pendingRequest {
	m := make(map[wire.MessageType]bool, len(expect))
	for _, t := range expect {
		m[t] = true
	}
	return &pendingRequest{
		seq:    seq,
		expect: m,
		reply:  make(chan *Reply, 1),
	}
}

// discoveryRun collects responders for one broadcast discovery request.
// It accepts any responder, recording each distinct identity once.
type discoveryRun struct {
	mu    sync.Mutex
	seen  map[wire.Target]registry.Device
	count int

	// notify has capacity 1 and coalesces wake-ups; the dispatcher never
	// blocks on it.
	notify chan struct{}
}

func newDiscoveryRun() *discoveryRun {
	return &discoveryRun{
		seen:   make(map[wire.Target]registry.Device),
		notify: make(chan struct{}, 1),
	}
}

// add records a responder, returning false for a duplicate identity.
func (d *discoveryRun) add(dev registry.Device) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[dev.Target]; dup {
		return false
	}
	d.seen[dev.Target] = dev
	d.count++

	select {
	case d.notify <- struct{}{}:
	default:
	}
	return true
}

// responders returns the distinct devices recorded so far.
func (d *discoveryRun) responders() []registry.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	devices := make([]registry.Device, 0, len(d.seen))
	for _, dev := range d.seen {
		devices = append(devices, dev)
	}
	return devices
}

// size returns the number of distinct responders recorded so far.
func (d *discoveryRun) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}
