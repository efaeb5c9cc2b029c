package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okabe-project/lifx-go/pkg/log"
	"github.com/okabe-project/lifx-go/pkg/registry"
	"github.com/okabe-project/lifx-go/pkg/transport"
	"github.com/okabe-project/lifx-go/pkg/wire"
)

// Session errors.
var (
	// ErrDeviceUnreachable indicates all retries for a request were
	// exhausted without a response.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrSessionClosed indicates the session has been shut down.
	ErrSessionClosed = errors.New("session closed")
)

// Config configures a session.
type Config struct {
	// BindAddress is the local UDP address (default ":0", an ephemeral port).
	BindAddress string

	// Timeout is the wait budget for a single response attempt and the
	// overall discovery budget (default 1s).
	Timeout time.Duration

	// MaxRetries is the number of idempotent resends after the initial
	// send (default 0; use DefaultConfig for the standard policy).
	MaxRetries int

	// SettleWindow is the quiet period after the last new discovery
	// responder before the result set is considered final (default 300ms).
	// This is policy, not protocol: tune it to the network.
	SettleWindow time.Duration

	// DiscoveryAddrs overrides the discovery destinations. Empty means
	// every subnet broadcast address of the local interfaces.
	DiscoveryAddrs []*net.UDPAddr

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger
}

// DefaultConfig returns the standard session policy.
func DefaultConfig() Config {
	return Config{
		BindAddress:  ":0",
		Timeout:      time.Second,
		MaxRetries:   3,
		SettleWindow: 300 * time.Millisecond,
	}
}

// Request describes one outgoing command.
type Request struct {
	// Target is the addressed device identity, or the broadcast target.
	Target wire.Target

	// Addr is the destination address (unicast device address, or a
	// broadcast address for tagged packets).
	Addr *net.UDPAddr

	// Payload is the typed message to send.
	Payload wire.Payload

	// Expect lists the message types that complete this request. An
	// empty list means fire-and-forget: Send returns after the packet is
	// on the wire. Including TypeAcknowledgement sets the ack-required
	// header flag; any other type sets response-required.
	Expect []wire.MessageType

	// Timeout overrides the session's per-attempt wait budget (0 = default).
	Timeout time.Duration

	// Retries overrides the session's retry limit (nil = default).
	Retries *int
}

// Session owns one UDP endpoint, a stable source identifier and the
// table of pending requests. Multiple sessions can coexist in a process;
// there is no global state.
type Session struct {
	cfg      Config
	id       string
	source   uint32
	endpoint *transport.Endpoint
	reg      *registry.Registry
	logger   log.Logger

	seqCounter atomic.Uint32

	mu          sync.Mutex
	pending     map[uint8]*pendingRequest
	discoveries map[*discoveryRun]struct{}

	closeOnce  sync.Once
	closed     chan struct{}
	readerDone chan struct{}
}

// New opens a session endpoint and starts the reader goroutine. A bind
// failure is fatal and returned immediately.
func New(cfg Config) (*Session, error) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = ":0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.SettleWindow == 0 {
		cfg.SettleWindow = 300 * time.Millisecond
	}

	endpoint, err := transport.Open(cfg.BindAddress)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	s := &Session{
		cfg:         cfg,
		id:          uuid.New().String(),
		source:      randomSource(),
		endpoint:    endpoint,
		reg:         registry.New(),
		logger:      logger,
		pending:     make(map[uint8]*pendingRequest),
		discoveries: make(map[*discoveryRun]struct{}),
		closed:      make(chan struct{}),
		readerDone:  make(chan struct{}),
	}
	if cfg.Logger != nil {
		endpoint.SetLogger(cfg.Logger, s.id)
	}

	go s.readLoop()

	s.logState(log.StateEntitySession, "", "OPEN", "")
	return s, nil
}

// randomSource picks a nonzero session source identifier. Sources 0 and 1
// are reserved by the protocol for untagged and legacy traffic.
func randomSource() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return uint32(time.Now().UnixNano()) | 2
		}
		if v := binary.LittleEndian.Uint32(b[:]); v >= 2 {
			return v
		}
	}
}

// ID returns the session identifier used in protocol log events.
func (s *Session) ID() string { return s.id }

// Source returns the session's source identifier.
func (s *Session) Source() uint32 { return s.source }

// Registry returns the session's device cache.
func (s *Session) Registry() *registry.Registry { return s.reg }

// LocalAddr returns the endpoint's bound address.
func (s *Session) LocalAddr() *net.UDPAddr { return s.endpoint.LocalAddr() }

// Send transmits one request and, when a response is expected, waits for
// it. Timer expiry resends the identical bytes under the same sequence
// number; the correlation key never changes across retries. Exhausted
// retries yield ErrDeviceUnreachable; cancelling ctx releases this
// request without disturbing others.
func (s *Session) Send(ctx context.Context, req Request) (*Reply, error) {
	select {
	case <-s.closed:
		return nil, ErrSessionClosed
	default:
	}
	if req.Addr == nil {
		return nil, errors.New("request has no destination address")
	}

	hdr := wire.Header{
		Source: s.source,
		Target: req.Target,
		Tagged: req.Target.IsBroadcast(),
	}
	for _, t := range req.Expect {
		if t == wire.TypeAcknowledgement {
			hdr.AckRequired = true
		} else {
			hdr.ResRequired = true
		}
	}

	// Fire-and-forget: no pending entry, done once the send succeeds.
	if len(req.Expect) == 0 {
		hdr.Sequence = uint8(s.seqCounter.Add(1))
		data, err := wire.Encode(hdr, req.Payload)
		if err != nil {
			return nil, err
		}
		s.logPacket(hdr, len(data), req.Addr, log.DirectionOut)
		return nil, s.endpoint.Send(data, req.Addr)
	}

	p, err := s.register(req.Expect)
	if err != nil {
		return nil, err
	}
	defer s.unregister(p.seq)
	hdr.Sequence = p.seq

	// Malformed payloads are rejected here, before any network I/O.
	data, err := wire.Encode(hdr, req.Payload)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.cfg.Timeout
	}
	retries := s.cfg.MaxRetries
	if req.Retries != nil {
		retries = *req.Retries
	}

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			s.logState(log.StateEntityRequest, "WAITING", "RETRYING",
				fmt.Sprintf("seq %d attempt %d", p.seq, attempt+1))
		}
		s.logPacket(hdr, len(data), req.Addr, log.DirectionOut)
		if err := s.endpoint.Send(data, req.Addr); err != nil {
			return nil, err
		}

		timer := time.NewTimer(timeout)
		select {
		case reply := <-p.reply:
			timer.Stop()
			return reply, nil
		case <-timer.C:
			// resend with the same sequence number
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-s.closed:
			timer.Stop()
			return nil, ErrSessionClosed
		}
	}

	s.logState(log.StateEntityRequest, "WAITING", "UNREACHABLE",
		fmt.Sprintf("seq %d", p.seq))
	return nil, fmt.Errorf("%w: %v gave no response in %d attempts",
		ErrDeviceUnreachable, req.Target, retries+1)
}

// Discover broadcasts a discovery request and collects responses until the
// settle window elapses with no new responder, bounded by the session
// timeout. Multiple devices are expected to answer the same broadcast;
// discovery never completes early on the first answer. Responders are
// upserted into the registry as they arrive.
func (s *Session) Discover(ctx context.Context) ([]registry.Device, error) {
	select {
	case <-s.closed:
		return nil, ErrSessionClosed
	default:
	}

	run := newDiscoveryRun()
	s.mu.Lock()
	s.discoveries[run] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.discoveries, run)
		s.mu.Unlock()
	}()

	hdr := wire.Header{
		Source:      s.source,
		Tagged:      true,
		ResRequired: true,
		Sequence:    uint8(s.seqCounter.Add(1)),
	}
	data, err := wire.Encode(hdr, &wire.GetServicePayload{})
	if err != nil {
		return nil, err
	}

	addrs := s.cfg.DiscoveryAddrs
	if len(addrs) == 0 {
		addrs, err = transport.BroadcastAddrs()
		if err != nil {
			return nil, err
		}
	}
	for _, addr := range addrs {
		s.logPacket(hdr, len(data), addr, log.DirectionOut)
		if err := s.endpoint.Send(data, addr); err != nil {
			return nil, err
		}
	}
	s.logState(log.StateEntityDiscovery, "", "COLLECTING", "")

	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()

	// The settle timer arms on the first responder; until then only the
	// overall deadline bounds the wait.
	settle := time.NewTimer(s.cfg.SettleWindow)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	seen := 0
	for {
		select {
		case <-run.notify:
			if n := run.size(); n > seen {
				seen = n
				// A new responder restarts the quiet period. Duplicate
				// answers from known responders do not.
				if !settle.Stop() {
					select {
					case <-settle.C:
					default:
					}
				}
				settle.Reset(s.cfg.SettleWindow)
			}
		case <-settle.C:
			return s.finishDiscovery(run, "settled"), nil
		case <-deadline.C:
			return s.finishDiscovery(run, "timeout"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, ErrSessionClosed
		}
	}
}

func (s *Session) finishDiscovery(run *discoveryRun, reason string) []registry.Device {
	devices := run.responders()
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Target.String() < devices[j].Target.String()
	})
	s.logState(log.StateEntityDiscovery, "COLLECTING", "DONE",
		fmt.Sprintf("%s, %d devices", reason, len(devices)))
	return devices
}

// Close shuts the session down: the endpoint is released, the reader
// stops, and every pending request fails with ErrSessionClosed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.endpoint.Close()
		<-s.readerDone
		s.logState(log.StateEntitySession, "OPEN", "CLOSED", "")
	})
	return err
}

// register allocates a free sequence number and installs a pending entry
// under it. Sequence numbers wrap modulo 256; a slot still held by an
// outstanding request is skipped so correlation keys stay unambiguous.
func (s *Session) register(expect []wire.MessageType) (*pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < 256; i++ {
		seq := uint8(s.seqCounter.Add(1))
		if _, busy := s.pending[seq]; busy {
			continue
		}
		p := newPendingRequest(seq, expect)
		s.pending[seq] = p
		return p, nil
	}
	return nil, errors.New("no free sequence numbers: 256 requests outstanding")
}

func (s *Session) unregister(seq uint8) {
	s.mu.Lock()
	delete(s.pending, seq)
	s.mu.Unlock()
}

// readLoop is the single continuous reader for the endpoint. It dispatches
// every inbound datagram without blocking on any request's resolution.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	buf := make([]byte, transport.MaxDatagramSize)
	for {
		n, src, err := s.endpoint.Receive(buf, 0)
		if err != nil {
			if errors.Is(err, transport.ErrEndpointClosed) {
				return
			}
			if errors.Is(err, transport.ErrReceiveTimeout) {
				continue
			}
			select {
			case <-s.closed:
				return
			default:
			}
			s.logError(log.LayerTransport, err.Error(), "receive")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.dispatch(data, src)
	}
}

// dispatch decodes one datagram, updates the registry and resolves a
// matching pending request. It runs on the reader goroutine and never
// blocks: reply channels are buffered and discovery notification is
// coalesced.
func (s *Session) dispatch(data []byte, src *net.UDPAddr) {
	hdr, payload, err := wire.Decode(data)
	if err != nil {
		// Decode anomalies are absorbed: expected protocol noise, never a
		// failure of an in-flight request.
		s.logError(log.LayerWire, err.Error(), "decode")
		return
	}

	s.logPacket(hdr, len(data), src, log.DirectionIn)

	if hdr.Source != s.source {
		// Another client's traffic on the shared port.
		return
	}

	now := time.Now()
	switch p := payload.(type) {
	case *wire.StateServicePayload:
		dev := registry.Device{Target: hdr.Target, Addr: src, Port: p.Port, LastSeen: now}
		s.reg.Upsert(dev)

		s.mu.Lock()
		runs := make([]*discoveryRun, 0, len(s.discoveries))
		for run := range s.discoveries {
			runs = append(runs, run)
		}
		s.mu.Unlock()
		for _, run := range runs {
			run.add(dev)
		}

	case *wire.LightStatePayload:
		if _, err := s.reg.Get(hdr.Target); err == nil {
			color, power := p.Color, p.Power
			s.reg.Upsert(registry.Device{
				Target: hdr.Target, Addr: src, Label: p.Label,
				Power: &power, Color: &color, LastSeen: now,
			})
		}

	case *wire.StatePowerPayload:
		if _, err := s.reg.Get(hdr.Target); err == nil {
			level := p.Level
			s.reg.Upsert(registry.Device{Target: hdr.Target, Addr: src, Power: &level, LastSeen: now})
		}

	case *wire.StateLabelPayload:
		if _, err := s.reg.Get(hdr.Target); err == nil {
			s.reg.Upsert(registry.Device{Target: hdr.Target, Addr: src, Label: p.Label, LastSeen: now})
		}
	}

	// Correlation: the (source, sequence) key plus expected type. The
	// entry is removed on delivery, so duplicates find nothing and fall
	// through as unsolicited noise.
	s.mu.Lock()
	p, ok := s.pending[hdr.Sequence]
	if ok && p.expect[hdr.Type] {
		delete(s.pending, hdr.Sequence)
	} else {
		p = nil
	}
	s.mu.Unlock()

	if p != nil {
		p.reply <- &Reply{Header: hdr, Payload: payload, Addr: src}
	}
	// Unmatched packets are dropped silently: stale responses and
	// unsolicited state broadcasts are normal network noise.
}

func (s *Session) logPacket(hdr wire.Header, size int, addr *net.UDPAddr, direction log.Direction) {
	if _, isNoop := s.logger.(log.NoopLogger); isNoop {
		return
	}
	target := ""
	if !hdr.Target.IsBroadcast() {
		target = hdr.Target.String()
	}
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Direction:  direction,
		Layer:      log.LayerWire,
		Category:   log.CategoryPacket,
		RemoteAddr: addr.String(),
		Target:     target,
		Packet: &log.PacketEvent{
			Type:     uint16(hdr.Type),
			TypeName: hdr.Type.String(),
			Source:   hdr.Source,
			Sequence: hdr.Sequence,
			Size:     size,
		},
	})
}

func (s *Session) logState(entity log.StateEntity, oldState, newState, reason string) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Session) logError(layer log.Layer, msg, context string) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Layer:     layer,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: msg,
			Context: context,
		},
	})
}
