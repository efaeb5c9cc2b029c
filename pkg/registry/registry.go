// Package registry caches devices discovered on the local network.
//
// The registry is process-lifetime state only: devices are created on
// first discovery response, refreshed on every packet bearing their
// identity, and never actively destroyed. Staleness is advisory and
// decided by the caller through the List max-age parameter.
package registry

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/okabe-project/lifx-go/pkg/wire"
)

// ErrNotFound indicates no device with the requested identity is known.
var ErrNotFound = errors.New("device not found")

// Device is one discovered unit. Power and Color are populated lazily
// from state responses and stay nil until the first one arrives.
type Device struct {
	// Target is the device hardware identity.
	Target wire.Target

	// Addr is the last-known unicast address.
	Addr *net.UDPAddr

	// Port is the service port the device advertised during discovery.
	Port uint32

	// Label is the last-known device label, empty until reported.
	Label string

	// Power is the last-known power level.
	Power *uint16

	// Color is the last-known color state.
	Color *wire.HSBK

	// LastSeen is the time of the most recent packet from this device.
	LastSeen time.Time
}

// Registry is the shared device cache. All mutation happens on the
// session dispatch path (single writer); readers may run concurrently.
type Registry struct {
	mu      sync.RWMutex
	devices map[wire.Target]Device
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices: make(map[wire.Target]Device),
	}
}

// Upsert merges d into the cache. Address, port and last-seen always
// replace the stored values; label, power and color replace only when the
// incoming record carries them, so partial responses don't erase
// last-known state.
func (r *Registry) Upsert(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.devices[d.Target]
	if !ok {
		r.devices[d.Target] = d
		return
	}

	cur.Addr = d.Addr
	cur.LastSeen = d.LastSeen
	if d.Port != 0 {
		cur.Port = d.Port
	}
	if d.Label != "" {
		cur.Label = d.Label
	}
	if d.Power != nil {
		cur.Power = d.Power
	}
	if d.Color != nil {
		cur.Color = d.Color
	}
	r.devices[d.Target] = cur
}

// Get looks up a device by hardware identity.
func (r *Registry) Get(target wire.Target) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[target]
	if !ok {
		return Device{}, ErrNotFound
	}
	return d, nil
}

// List returns devices seen within maxAge, sorted by identity for stable
// output. A maxAge of zero returns every known device; staleness is
// advisory, not an error.
func (r *Registry) List(maxAge time.Duration) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = time.Now().Add(-maxAge)
	}

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		if !cutoff.IsZero() && d.LastSeen.Before(cutoff) {
			continue
		}
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Target.String() < devices[j].Target.String()
	})
	return devices
}

// Len returns the number of known devices regardless of age.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
