// Package bridge translates parsed protocol events into bus publications
// and bus commands into protocol frames, tracking per-device state and
// home-automation discovery.
package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/meermanr/timeguard-gateway/bus"
	"github.com/meermanr/timeguard-gateway/codec"
	"github.com/meermanr/timeguard-gateway/relay"
)

// Config holds the bus topic and behaviour parameters for a Bridge.
type Config struct {
	Root                string
	DiscoveryRoot       string // empty disables discovery
	HAStatusTopic       string
	DeviceOnlineTimeout time.Duration
	NameResolver        func(deviceID uint32) string // may be nil
	DeviceSeen          func(deviceID uint32)        // may be nil; called once per newly-observed device
}

// Bridge owns per-device state and the bus connection, running its own
// cooperative loop that polls the Engine's inbound event queue.
type Bridge struct {
	client bus.Client
	cfg    Config
	log    *slog.Logger

	engineIn  <-chan relay.InboundEvent
	engineOut chan<- codec.Frame

	devices map[uint32]*deviceState
}

// New constructs a Bridge wired to client and the Engine's queues.
func New(client bus.Client, cfg Config, in <-chan relay.InboundEvent, out chan<- codec.Frame, log *slog.Logger) *Bridge {
	return &Bridge{
		client:    client,
		cfg:       cfg,
		log:       log,
		engineIn:  in,
		engineOut: out,
		devices:   make(map[uint32]*deviceState),
	}
}

func (b *Bridge) displayName(deviceID uint32) string {
	if b.cfg.NameResolver != nil {
		if name := b.cfg.NameResolver(deviceID); name != "" {
			return name
		}
	}
	return "Timeguard Timeswitch " + deviceHex(deviceID)
}

// Start publishes the gateway's online LWT and, when discovery is enabled,
// subscribes to the home-assistant status topic. Per-device command topics
// are subscribed later, when each device is first seen. Call once before Run.
func (b *Bridge) Start() error {
	if err := b.client.Publish(rootTopic(b.cfg.Root, "lwt"), []byte("online"), true); err != nil {
		return err
	}
	if b.cfg.DiscoveryRoot != "" && b.cfg.HAStatusTopic != "" {
		if err := b.client.Subscribe(b.cfg.HAStatusTopic, b.onHAStatus); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown publishes offline to the gateway's and every known device's
// availability topic, then disconnects the bus client.
func (b *Bridge) Shutdown() {
	for deviceID := range b.devices {
		b.client.Publish(deviceTopic(b.cfg.Root, deviceID, "lwt"), []byte("offline"), true)
	}
	b.client.Publish(rootTopic(b.cfg.Root, "lwt"), []byte("offline"), true)
	b.client.Disconnect()
}

const idleSleep = 100 * time.Millisecond

// Run executes the cooperative Bridge loop: polling inbound events and
// evicting idle devices, until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(idleSleep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.engineIn:
			b.handleEvent(ev)
		case <-ticker.C:
			b.evictIdle(time.Now())
		}
	}
}

func (b *Bridge) evictIdle(now time.Time) {
	for deviceID, st := range b.devices {
		if now.Sub(st.lastCommand) <= b.cfg.DeviceOnlineTimeout {
			continue
		}
		b.client.Publish(deviceTopic(b.cfg.Root, deviceID, "lwt"), []byte("offline"), true)
		delete(b.devices, deviceID)
	}
}

// handleEvent dispatches one parsed frame by (direction, message_type).
// Server-direction frames are ignored: the Relay mode policy already
// handled their forwarding/synthesis.
func (b *Bridge) handleEvent(ev relay.InboundEvent) {
	if ev.Direction != relay.FromDevice {
		return
	}

	deviceID := ev.DeviceID
	now := time.Now()
	st, known := b.devices[deviceID]
	if !known {
		st = newDeviceState(now)
		b.devices[deviceID] = st
		if b.cfg.DeviceSeen != nil {
			b.cfg.DeviceSeen(deviceID)
		}
		b.client.Subscribe(deviceSetTopic(b.cfg.Root, deviceID, "raw_command"), b.onRawCommand(deviceID))
		for _, entity := range []string{"boost", "advance_mode", "work_mode", "active_schedule"} {
			b.client.Subscribe(deviceSetTopic(b.cfg.Root, deviceID, entity), b.onEntityCommand(deviceID, entity))
		}
		b.client.Publish(deviceTopic(b.cfg.Root, deviceID, "lwt"), []byte("online"), true)
		if b.cfg.DiscoveryRoot != "" {
			b.publishAllDiscovery(deviceID)
		}
		st.discoveryDone = true
	}
	st.lastCommand = now

	switch ev.Frame.Payload.MessageType {
	case codec.MessageTypePing:
		b.handlePing(deviceID, st, ev.Frame, now)
	case codec.MessageTypeCodeVersion:
		b.handleCodeVersion(deviceID, st, ev.Frame)
	case codec.MessageTypeSchedule:
		b.handleSchedule(deviceID, st, ev.Frame)
	case codec.MessageTypeActiveSchedule:
		b.handleActiveSchedule(deviceID, st, ev.Frame)
	case codec.MessageTypeUpdateScheduleName:
		b.handleUpdateScheduleName(deviceID, st, ev.Frame)
	}
}

func (b *Bridge) publishChanged(deviceID uint32, st *deviceState, key, value string) {
	if st.set(key, value) {
		b.client.Publish(deviceTopic(b.cfg.Root, deviceID, key), []byte(value), false)
	}
}

func (b *Bridge) handlePing(deviceID uint32, st *deviceState, f codec.Frame, now time.Time) {
	p, ok := f.Payload.Params.(codec.PingRequestParams)
	if !ok {
		return
	}

	b.publishChanged(deviceID, st, "uptime", fmtUint(p.Uptime))
	b.publishChanged(deviceID, st, "switch_state", p.State.SwitchState.String())
	b.publishChanged(deviceID, st, "load_detected", onOff(p.State.LoadDetected))
	b.publishChanged(deviceID, st, "advance_mode", p.State.AdvanceMode.String())
	b.publishChanged(deviceID, st, "load_was_detected_previously", onOff(p.State.LoadWasDetectedPreviously))
	b.publishChanged(deviceID, st, "boost", p.Boost.BoostType.String())
	b.publishChanged(deviceID, st, "work_mode", p.WorkMode.String())
	b.publishChanged(deviceID, st, "boost_duration_left", boostDurationLeft(p.Boost, now))

	if !st.codeVersionKnown {
		b.enqueueCommand(newCommandFrame(deviceID, codec.MessageTypeCodeVersion, false, codec.EmptyParams{}))
	}
	if st.activeScheduleID == nil {
		b.enqueueCommand(newCommandFrame(deviceID, codec.MessageTypeActiveSchedule, false, codec.EmptyParams{}))
	}
	for id := uint8(0); id < totalScheduleSlots; id++ {
		if _, ok := st.schedules[id]; ok {
			continue
		}
		b.enqueueCommand(newCommandFrame(deviceID, codec.MessageTypeSchedule, false, codec.ScheduleIDParams{ScheduleID: id}))
	}
}

func (b *Bridge) handleCodeVersion(deviceID uint32, st *deviceState, f codec.Frame) {
	p, ok := f.Payload.Params.(codec.CodeVersionParams)
	if !ok {
		return
	}
	st.codeVersionKnown = true
	b.publishChanged(deviceID, st, "code_version", p.CodeVersion)
}

func (b *Bridge) handleSchedule(deviceID uint32, st *deviceState, f codec.Frame) {
	p, ok := f.Payload.Params.(codec.ScheduleInfoParams)
	if !ok {
		return
	}
	st.schedules[p.ScheduleID] = p

	if st.allSchedulesKnown() {
		b.publishActiveScheduleDiscovery(deviceID, st.scheduleOptions())
		if s, ok := st.activeScheduleString(); ok {
			b.publishChanged(deviceID, st, "active_schedule", s)
		}
	}
}

func (b *Bridge) handleActiveSchedule(deviceID uint32, st *deviceState, f codec.Frame) {
	p, ok := f.Payload.Params.(codec.ScheduleIDParams)
	if !ok {
		return
	}
	id := p.ScheduleID
	st.activeScheduleID = &id
	b.publishChanged(deviceID, st, "active_schedule_id", fmtUint(uint32(id)))

	if s, ok := st.activeScheduleString(); ok {
		b.publishChanged(deviceID, st, "active_schedule", s)
	}
}

func (b *Bridge) handleUpdateScheduleName(deviceID uint32, st *deviceState, f codec.Frame) {
	var id uint8
	switch p := f.Payload.Params.(type) {
	case codec.ScheduleIDParams:
		id = p.ScheduleID
	case codec.SetScheduleNameParams:
		id = p.ScheduleID
	default:
		return
	}
	b.enqueueCommand(newCommandFrame(deviceID, codec.MessageTypeSchedule, false, codec.ScheduleIDParams{ScheduleID: id}))
}

func (b *Bridge) enqueueCommand(f codec.Frame) {
	select {
	case b.engineOut <- f:
	default:
		b.log.Warn("command queue full, dropping", "device_id", f.Payload.DeviceID)
	}
}

// onHAStatus handles the home-assistant status topic: on "online" it
// republishes the gateway LWT and full state for every known device, to
// recover from a downstream restart.
func (b *Bridge) onHAStatus(_ string, payload []byte) {
	if string(payload) != "online" {
		return
	}
	b.client.Publish(rootTopic(b.cfg.Root, "lwt"), []byte("online"), true)
	for deviceID, st := range b.devices {
		b.client.Publish(deviceTopic(b.cfg.Root, deviceID, "lwt"), []byte("online"), true)
		for key, value := range st.parameters {
			b.client.Publish(deviceTopic(b.cfg.Root, deviceID, key), []byte(value), false)
		}
	}
}

func (b *Bridge) onRawCommand(deviceID uint32) bus.MessageHandler {
	return b.onEntityCommand(deviceID, "raw_command")
}

func (b *Bridge) onEntityCommand(deviceID uint32, entity string) bus.MessageHandler {
	return func(_ string, payload []byte) {
		frames, ok := buildCommands(deviceID, entity, payload)
		if !ok {
			b.log.Warn("dropping unrecognised command", "device_id", deviceID, "entity", entity, "payload", string(payload))
			return
		}
		for _, f := range frames {
			b.enqueueCommand(f)
		}
	}
}
