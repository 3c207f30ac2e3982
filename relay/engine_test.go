package relay_test

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/meermanr/timeguard-gateway/codec"
	"github.com/meermanr/timeguard-gateway/relay"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func pingRequestFrame(deviceID uint32) codec.Frame {
	return codec.Frame{
		MessageID: 1,
		Payload: codec.Payload{
			MessageType:  codec.MessageTypePing,
			MessageFlags: 0,
			Seq:          0xFF,
			DeviceID:     deviceID,
			Params: codec.PingRequestParams{
				State:    codec.DeviceState{SwitchState: codec.SwitchStateOn},
				WorkMode: codec.WorkModeAuto,
				Uptime:   3600,
				Boost:    codec.Boost{BoostType: codec.BoostOff},
			},
		},
	}
}

func mockSocket(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEngineRelayModeForwardsDeviceToCloud(t *testing.T) {
	cloud := mockSocket(t)

	ctx := context.Background()
	engine, err := relay.NewEngine(ctx, "127.0.0.1:0", cloud.LocalAddr().String(), relay.ModeRelay, 2*time.Second, 15*time.Second, silentLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(runCtx)

	device := mockSocket(t)
	engineAddr := engineLocalAddr(t, engine)

	f := pingRequestFrame(0x12345678)
	if _, err := device.WriteToUDP(f.Build(), engineAddr); err != nil {
		t.Fatalf("write to engine: %v", err)
	}

	cloud.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := cloud.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("cloud did not receive forwarded frame: %v", err)
	}

	got, err := codec.Parse(buf[:n])
	if err != nil {
		t.Fatalf("forwarded bytes failed to parse: %v", err)
	}
	if got.Payload.DeviceID != 0x12345678 {
		t.Errorf("forwarded DeviceID = %x, want 12345678", got.Payload.DeviceID)
	}
}

func TestEngineLocalModeNeverContactsCloud(t *testing.T) {
	cloud := mockSocket(t)

	ctx := context.Background()
	engine, err := relay.NewEngine(ctx, "127.0.0.1:0", cloud.LocalAddr().String(), relay.ModeLocal, 2*time.Second, 15*time.Second, silentLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(runCtx)

	device := mockSocket(t)
	engineAddr := engineLocalAddr(t, engine)

	f := pingRequestFrame(0xAABBCCDD)
	if _, err := device.WriteToUDP(f.Build(), engineAddr); err != nil {
		t.Fatalf("write to engine: %v", err)
	}

	// Expect a synthesized PING response delivered back to the device...
	device.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := device.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("device did not receive synthesized response: %v", err)
	}
	resp, err := codec.Parse(buf[:n])
	if err != nil {
		t.Fatalf("synthesized response failed to parse: %v", err)
	}
	if resp.Payload.Seq != 0xFF {
		t.Errorf("synthesized Seq = %x, want FF", resp.Payload.Seq)
	}
	wantFlags := codec.FlagIsFromServer | codec.FlagUnknown1 | codec.FlagIsSuccess
	if resp.Payload.MessageFlags != wantFlags {
		t.Errorf("synthesized response MessageFlags = %x, want %x (IS_FROM_SERVER|UNKNOWN1|IS_SUCCESS)", resp.Payload.MessageFlags, wantFlags)
	}

	// ...and never anything sent to the cloud.
	cloud.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := cloud.ReadFromUDP(buf); err == nil {
		t.Error("local mode must never produce output to the cloud address")
	}
}

func TestEngineFallbackDropsPingAndSuccessCodeVersion(t *testing.T) {
	cloud := mockSocket(t)

	ctx := context.Background()
	engine, err := relay.NewEngine(ctx, "127.0.0.1:0", cloud.LocalAddr().String(), relay.ModeFallback, 2*time.Second, 15*time.Second, silentLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(runCtx)

	device := mockSocket(t)
	engineAddr := engineLocalAddr(t, engine)

	// Learn the device's address by having it speak first.
	ping := pingRequestFrame(0x01020304)
	device.WriteToUDP(ping.Build(), engineAddr)
	cloud.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	if _, _, err := cloud.ReadFromUDP(buf); err != nil {
		t.Fatalf("cloud did not see initial device ping: %v", err)
	}

	cloudPing := codec.Frame{
		MessageID: 2,
		Payload: codec.Payload{
			MessageType:  codec.MessageTypePing,
			MessageFlags: codec.FlagIsFromServer | codec.FlagUnknown1,
			Seq:          0xFF,
			DeviceID:     0x01020304,
			Params:       codec.PingResponseParams{Now: 1000},
		},
	}
	if _, err := cloud.WriteToUDP(cloudPing.Build(), engineAddr); err != nil {
		t.Fatalf("cloud write: %v", err)
	}

	device.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	if _, _, err := device.ReadFromUDP(buf); err == nil {
		t.Error("fallback mode must drop cloud-originated PING")
	}

	cloudCodeVersion := codec.Frame{
		MessageID: 3,
		Payload: codec.Payload{
			MessageType:  codec.MessageTypeCodeVersion,
			MessageFlags: codec.FlagIsFromServer | codec.FlagUnknown1 | codec.FlagIsUpdateRequest | codec.FlagIsSuccess,
			Seq:          0xFF,
			DeviceID:     0x01020304,
			Params:       codec.CodeVersionParams{CodeVersion: "v1.0"},
		},
	}
	if _, err := cloud.WriteToUDP(cloudCodeVersion.Build(), engineAddr); err != nil {
		t.Fatalf("cloud write: %v", err)
	}

	device.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	if _, _, err := device.ReadFromUDP(buf); err == nil {
		t.Error("fallback mode must drop cloud-originated successful CODE_VERSION update-request")
	}
}

func engineLocalAddr(t *testing.T, e *relay.Engine) *net.UDPAddr {
	t.Helper()
	addr := e.LocalAddr()
	if addr == nil {
		t.Fatal("engine has no local address")
	}
	return addr
}
