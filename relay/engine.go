package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/meermanr/timeguard-gateway/codec"
)

// Mode selects the relay policy applied to cloud<->device traffic.
type Mode string

const (
	ModeRelay    Mode = "relay"
	ModeFallback Mode = "fallback"
	ModeLocal    Mode = "local"
)

// Direction identifies which side a parsed frame originated from.
type Direction int

const (
	FromDevice Direction = iota
	FromCloud
)

// InboundEvent is one parsed frame pushed onto the Bridge's event queue,
// regardless of the mode policy's forwarding decision.
type InboundEvent struct {
	Frame     codec.Frame
	Direction Direction
	DeviceID  uint32
}

const idleSleep = 100 * time.Millisecond

// Engine is the single-threaded UDP relay loop: it owns the Device
// Registry, the Pending-Reply Table, and the one UDP socket. No locks are
// used beyond the two channels connecting it to the Bridge.
type Engine struct {
	conn      *net.UDPConn
	cloudAddr *net.UDPAddr
	mode      Mode

	registry *Registry
	pending  *PendingTable

	inbound  chan InboundEvent
	outbound chan codec.Frame

	log       *slog.Logger
	debugHook func(InboundEvent)
}

// SetDebugHook installs a callback invoked synchronously for every parsed
// inbound frame, before it is pushed onto the Bridge's event queue. Intended
// for --debug/--print-parsed-data/--mask dumping; it must not block, since
// it runs inline in the relay loop.
func (e *Engine) SetDebugHook(hook func(InboundEvent)) {
	e.debugHook = hook
}

// NewEngine binds listenAddr with SO_REUSEADDR/SO_REUSEPORT set and returns
// an Engine ready to Run.
func NewEngine(ctx context.Context, listenAddr, cloudAddr string, mode Mode, retryInterval, giveUp time.Duration, log *slog.Logger) (*Engine, error) {
	cAddr, err := net.ResolveUDPAddr("udp", cloudAddr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp", listenAddr)
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	return &Engine{
		conn:      conn,
		cloudAddr: cAddr,
		mode:      mode,
		registry:  NewRegistry(),
		pending:   NewPendingTable(retryInterval, giveUp),
		inbound:   make(chan InboundEvent, 256),
		outbound:  make(chan codec.Frame, 256),
		log:       log,
	}, nil
}

// Inbound is the parsed-events queue the Bridge reads from.
func (e *Engine) Inbound() <-chan InboundEvent { return e.inbound }

// Outbound is the command queue the Bridge writes commands to.
func (e *Engine) Outbound() chan<- codec.Frame { return e.outbound }

// Stats exposes the pending table's round-trip latency accumulator.
func (e *Engine) Stats() *LatencyStats { return e.pending.Stats() }

// Close releases the UDP socket.
func (e *Engine) Close() error { return e.conn.Close() }

// LocalAddr returns the address the relay socket is bound to.
func (e *Engine) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Run executes the cooperative relay loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		didWork := false

		didWork = e.drainOutbound() || didWork
		didWork = e.readOne(buf) || didWork
		didWork = e.tickResends() || didWork

		if !didWork {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// drainOutbound pulls every currently-queued command from the Bridge and
// sends it, non-blocking.
func (e *Engine) drainOutbound() bool {
	did := false
	for {
		select {
		case f := <-e.outbound:
			e.sendCommand(f)
			did = true
		default:
			return did
		}
	}
}

func (e *Engine) sendCommand(f codec.Frame) {
	addr := e.registry.Lookup(f.Payload.DeviceID)
	if addr == nil {
		e.log.Warn("dropping command for unknown device", "device_id", f.Payload.DeviceID)
		return
	}

	assigned, ok := e.pending.Enqueue(f, time.Now())
	if !ok {
		e.log.Error("pending-reply table full, dropping command", "device_id", f.Payload.DeviceID)
		return
	}

	e.send(assigned, addr)
}

func (e *Engine) send(f codec.Frame, addr *net.UDPAddr) {
	if _, err := e.conn.WriteToUDP(f.Build(), addr); err != nil {
		e.log.Debug("write failed", "addr", addr, "error", err)
	}
}

// readOne reads and processes at most one datagram, non-blocking.
func (e *Engine) readOne(buf []byte) bool {
	e.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	n, srcAddr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false
		}
		return false
	}

	frame, err := codec.Parse(buf[:n])
	if err != nil {
		e.log.Debug("parse failed", "addr", srcAddr, "error", err)
		return true
	}

	fromCloud := srcAddr.IP.Equal(e.cloudAddr.IP) && srcAddr.Port == e.cloudAddr.Port
	var dir Direction
	var dest *net.UDPAddr
	if fromCloud {
		dir = FromCloud
		dest = e.registry.Lookup(frame.Payload.DeviceID)
	} else {
		dir = FromDevice
		e.pending.OnClientReply(frame.Payload.Seq, time.Now())
		e.registry.Learn(frame.Payload.DeviceID, srcAddr)
		dest = e.cloudAddr
	}

	ev := InboundEvent{Frame: frame, Direction: dir, DeviceID: frame.Payload.DeviceID}
	if e.debugHook != nil {
		e.debugHook(ev)
	}
	e.inbound <- ev

	e.applyModePolicy(frame, dir, dest, srcAddr)
	return true
}

// applyModePolicy implements the relay/fallback/local forwarding and
// synthesis rules for one parsed frame.
func (e *Engine) applyModePolicy(frame codec.Frame, dir Direction, dest, srcAddr *net.UDPAddr) {
	switch e.mode {
	case ModeRelay:
		if dest != nil {
			e.send(frame, dest)
		}

	case ModeFallback:
		if dir == FromDevice {
			if dest != nil {
				e.send(frame, dest)
			}
			return
		}
		if e.shouldDiscardFallback(frame) {
			return
		}
		if dest != nil {
			e.send(frame, dest)
		}

	case ModeLocal:
		if dir == FromCloud {
			return
		}
		e.synthesizeLocalResponse(frame, srcAddr)
	}
}

// shouldDiscardFallback reports whether a cloud-originated frame should be
// silently dropped in fallback mode: PING, or a successful CODE_VERSION
// update-request.
func (e *Engine) shouldDiscardFallback(f codec.Frame) bool {
	if f.Payload.MessageType == codec.MessageTypePing {
		return true
	}
	if f.Payload.MessageType == codec.MessageTypeCodeVersion &&
		f.Payload.MessageFlags&codec.FlagIsUpdateRequest != 0 &&
		f.Payload.MessageFlags&codec.FlagIsSuccess != 0 {
		return true
	}
	return false
}

// synthesizeLocalResponse answers PING and CODE_VERSION update-requests
// locally, never touching the cloud, per local mode's policy.
func (e *Engine) synthesizeLocalResponse(f codec.Frame, deviceAddr *net.UDPAddr) {
	switch {
	case f.Payload.MessageType == codec.MessageTypeCodeVersion && f.Payload.MessageFlags&codec.FlagIsUpdateRequest != 0:
		cv, ok := f.Payload.Params.(codec.CodeVersionParams)
		if !ok {
			return
		}
		resp := codec.Frame{
			MessageID: f.MessageID,
			Payload: codec.Payload{
				MessageType:  codec.MessageTypeCodeVersion,
				MessageFlags: codec.FlagIsFromServer | codec.FlagUnknown1 | codec.FlagIsSuccess,
				Seq:          0xFF,
				DeviceID:     f.Payload.DeviceID,
				Params:       cv,
			},
		}
		e.send(resp, deviceAddr)

	case f.Payload.MessageType == codec.MessageTypePing:
		resp := codec.Frame{
			MessageID: f.MessageID,
			Payload: codec.Payload{
				MessageType:  codec.MessageTypePing,
				MessageFlags: codec.FlagIsFromServer | codec.FlagUnknown1 | codec.FlagIsSuccess,
				Seq:          0xFF,
				DeviceID:     f.Payload.DeviceID,
				Params:       codec.PingResponseParams{Now: uint32(time.Now().Unix())},
			},
		}
		e.send(resp, deviceAddr)
	}
}

// tickResends flushes due resends from the Pending-Reply Table.
func (e *Engine) tickResends() bool {
	due := e.pending.Tick(time.Now())
	for _, f := range due {
		addr := e.registry.Lookup(f.Payload.DeviceID)
		if addr == nil {
			continue
		}
		e.send(f, addr)
	}
	return len(due) > 0
}
