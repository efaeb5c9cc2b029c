// Package client is the high-level command surface for controlling LIFX
// devices: discovery plus typed color, power and label operations. It
// hides sequence numbers, retries and payload encoding behind plain Go
// calls; reliability policy lives in the underlying session.
package client

import (
	"context"
	"net"
	"time"

	"github.com/okabe-project/lifx-go/pkg/log"
	"github.com/okabe-project/lifx-go/pkg/registry"
	"github.com/okabe-project/lifx-go/pkg/session"
	"github.com/okabe-project/lifx-go/pkg/wire"
)

// Client drives LIFX devices over one session.
type Client struct {
	session *session.Session
}

// State is a device's full light state as reported by the device itself.
type State struct {
	Color wire.HSBK
	Power uint16
	Label string
}

// On reports whether the device considers itself powered on.
func (s *State) On() bool { return s.Power != 0 }

// New opens a client with its own session. The logger may be nil.
func New(cfg session.Config, logger log.Logger) (*Client, error) {
	if logger != nil {
		cfg.Logger = logger
	}
	s, err := session.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

// Close releases the underlying session.
func (c *Client) Close() error { return c.session.Close() }

// Session exposes the underlying session for advanced use.
func (c *Client) Session() *session.Session { return c.session }

// Discover finds devices on the local network and records them in the
// registry. Already-known devices answering again simply refresh.
func (c *Client) Discover(ctx context.Context) ([]registry.Device, error) {
	return c.session.Discover(ctx)
}

// Devices lists known devices seen within maxAge (0 = all).
func (c *Client) Devices(maxAge time.Duration) []registry.Device {
	return c.session.Registry().List(maxAge)
}

// resolve maps a device identity to its last-known address. Commands to a
// device that was never discovered fail with registry.ErrNotFound.
func (c *Client) resolve(target wire.Target) (*net.UDPAddr, error) {
	d, err := c.session.Registry().Get(target)
	if err != nil {
		return nil, err
	}
	return d.Addr, nil
}

// SetColor transitions the device to the given color over duration. The
// device confirms with its resulting light state.
func (c *Client) SetColor(ctx context.Context, target wire.Target, color wire.HSBK, duration time.Duration) error {
	addr, err := c.resolve(target)
	if err != nil {
		return err
	}
	_, err = c.session.Send(ctx, session.Request{
		Target: target,
		Addr:   addr,
		Payload: &wire.SetColorPayload{
			Color:    color,
			Duration: uint32(duration.Milliseconds()),
		},
		Expect: []wire.MessageType{wire.TypeLightState},
	})
	return err
}

// SetPower switches the device on or off.
func (c *Client) SetPower(ctx context.Context, target wire.Target, on bool) error {
	addr, err := c.resolve(target)
	if err != nil {
		return err
	}
	level := wire.PowerOff
	if on {
		level = wire.PowerOn
	}
	_, err = c.session.Send(ctx, session.Request{
		Target:  target,
		Addr:    addr,
		Payload: &wire.SetPowerPayload{Level: level},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	return err
}

// GetPower reports whether the device is powered on.
func (c *Client) GetPower(ctx context.Context, target wire.Target) (bool, error) {
	addr, err := c.resolve(target)
	if err != nil {
		return false, err
	}
	reply, err := c.session.Send(ctx, session.Request{
		Target:  target,
		Addr:    addr,
		Payload: &wire.GetPowerPayload{},
		Expect:  []wire.MessageType{wire.TypeStatePower},
	})
	if err != nil {
		return false, err
	}
	return reply.Payload.(*wire.StatePowerPayload).Level != 0, nil
}

// GetState queries the device's current color, power and label.
func (c *Client) GetState(ctx context.Context, target wire.Target) (*State, error) {
	addr, err := c.resolve(target)
	if err != nil {
		return nil, err
	}
	reply, err := c.session.Send(ctx, session.Request{
		Target:  target,
		Addr:    addr,
		Payload: &wire.GetColorPayload{},
		Expect:  []wire.MessageType{wire.TypeLightState},
	})
	if err != nil {
		return nil, err
	}
	state := reply.Payload.(*wire.LightStatePayload)
	return &State{
		Color: state.Color,
		Power: state.Power,
		Label: state.Label,
	}, nil
}

// SetLabel renames the device. The device confirms with its new label.
func (c *Client) SetLabel(ctx context.Context, target wire.Target, label string) error {
	addr, err := c.resolve(target)
	if err != nil {
		return err
	}
	_, err = c.session.Send(ctx, session.Request{
		Target:  target,
		Addr:    addr,
		Payload: &wire.SetLabelPayload{Label: label},
		Expect:  []wire.MessageType{wire.TypeStateLabel},
	})
	return err
}

// GetLabel queries the device's label.
func (c *Client) GetLabel(ctx context.Context, target wire.Target) (string, error) {
	addr, err := c.resolve(target)
	if err != nil {
		return "", err
	}
	reply, err := c.session.Send(ctx, session.Request{
		Target:  target,
		Addr:    addr,
		Payload: &wire.GetLabelPayload{},
		Expect:  []wire.MessageType{wire.TypeStateLabel},
	})
	if err != nil {
		return "", err
	}
	return reply.Payload.(*wire.StateLabelPayload).Label, nil
}
