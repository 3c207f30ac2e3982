package codec

import (
	"encoding/binary"
	"strings"
)

// Params is the variable-shape payload tail. Concrete types below realize
// every recognised message_type_id; RawParams carries anything else
// verbatim so unrecognised frames still parse and still forward.
type Params interface {
	encode() []byte
}

// RawParams holds the params bytes of a frame whose message_type_id isn't
// in the recognised table. Such frames parse successfully — they are
// forwarded by the Relay and ignored by the Bridge, never rejected.
type RawParams []byte

func (p RawParams) encode() []byte { return []byte(p) }

// decodeParams dispatches on id to the matching fixed-shape decoder, or
// falls back to RawParams for anything unrecognised.
func decodeParams(id MessageTypeID, data []byte) (Params, error) {
	dec, ok := paramDecoders[id]
	if !ok {
		return RawParams(append([]byte(nil), data...)), nil
	}
	return dec(data)
}

type paramDecoder func([]byte) (Params, error)

var paramDecoders = map[MessageTypeID]paramDecoder{
	IDGetCodeVersionResponse:     decodeCodeVersion,
	IDReportCodeVersionRequest:   decodeCodeVersion,
	IDReportCodeVersionResponse:  decodeCodeVersion,
	IDGetCodeVersionRequest:      decodeEmpty,
	IDPingRequest:                decodePingRequest,
	IDPingResponse:               decodePingResponse,
	IDBoostRequest:               decodeBoostRequest,
	IDBoostResponse:              decodeBoostResponse,
	IDAdvanceModeRequest:         decodeAdvanceMode,
	IDAdvanceModeResponse:        decodeAdvanceMode,
	IDSetWorkmodeRequest:         decodeSetWorkmode,
	IDSetWorkmodeResponse:        decodeSetWorkmode,
	IDSetHolidayRequest:          decodeHoliday,
	IDSetHolidayResponse:         decodeHoliday,
	IDGetHolidaySettingsRequest:  decodeEmpty,
	IDGetHolidaySettingsResponse: decodeHoliday,
	IDGetCurrentScheduleRequest:  decodeEmpty,
	IDGetCurrentScheduleResponse: decodeScheduleID,
	IDSetCurrentScheduleRequest:  decodeScheduleID,
	IDSetCurrentScheduleResponse: decodeScheduleID,
	IDSetScheduleNameRequest:     decodeSetScheduleName,
	IDSetScheduleNameResponse:    decodeScheduleID,
	IDGetScheduleInfoRequest:     decodeScheduleID,
	IDGetScheduleInfoResponse:    decodeScheduleInfo,
	IDSetScheduleInfoRequest:     decodeScheduleInfo,
	IDSetScheduleInfoResponse:    decodeScheduleInfo,
}

func requireLen(data []byte, n int) error {
	if len(data) != n {
		return &ParseError{Kind: ErrLength, Msg: "unexpected params length for known message_type_id"}
	}
	return nil
}

// padString trims trailing NUL padding (construct's PaddedString default).
func padString(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// fixedString renders s into a width-byte, NUL-padded field. Strings that
// don't fit are truncated to width bytes.
func fixedString(s string, width int) []byte {
	out := make([]byte, width)
	copy(out, s)
	return out
}

// --- Empty ---

// EmptyParams is used by requests that carry no payload.
type EmptyParams struct{}

func (EmptyParams) encode() []byte { return nil }

func decodeEmpty(data []byte) (Params, error) {
	if err := requireLen(data, 0); err != nil {
		return nil, err
	}
	return EmptyParams{}, nil
}

// --- CodeVersion ---

// CodeVersionParams carries the device firmware version string, used by
// both the report (device -> server) and get/response exchanges.
type CodeVersionParams struct {
	CodeVersion string
}

const codeVersionWidth = 13

func (p CodeVersionParams) encode() []byte {
	return fixedString(p.CodeVersion, codeVersionWidth)
}

func decodeCodeVersion(data []byte) (Params, error) {
	if err := requireLen(data, codeVersionWidth); err != nil {
		return nil, err
	}
	return CodeVersionParams{CodeVersion: padString(data)}, nil
}

// --- Ping ---

// PingRequestParams is the device's periodic status report.
type PingRequestParams struct {
	State    DeviceState
	Unknown2 [3]byte
	WorkMode WorkMode
	Unknown3 [3]byte
	Uptime   uint32
	Boost    Boost
	Unknown4 uint16
}

const pingRequestSize = 1 + 3 + 1 + 3 + 4 + 2 + 2

func (p PingRequestParams) encode() []byte {
	out := make([]byte, pingRequestSize)
	out[0] = p.State.encode()
	copy(out[1:4], p.Unknown2[:])
	out[4] = byte(p.WorkMode)
	copy(out[5:8], p.Unknown3[:])
	binary.LittleEndian.PutUint32(out[8:12], p.Uptime)
	boost := p.Boost.encode()
	copy(out[12:14], boost[:])
	binary.LittleEndian.PutUint16(out[14:16], p.Unknown4)
	return out
}

func decodePingRequest(data []byte) (Params, error) {
	if err := requireLen(data, pingRequestSize); err != nil {
		return nil, err
	}
	p := PingRequestParams{
		State:    decodeDeviceState(data[0]),
		WorkMode: WorkMode(data[4]),
		Uptime:   binary.LittleEndian.Uint32(data[8:12]),
		Boost:    decodeBoost([2]byte{data[12], data[13]}),
		Unknown4: binary.LittleEndian.Uint16(data[14:16]),
	}
	copy(p.Unknown2[:], data[1:4])
	copy(p.Unknown3[:], data[5:8])
	return p, nil
}

// PingResponseParams is the server's timestamp reply to a PING.
type PingResponseParams struct {
	Now uint32 // unix timestamp
}

func (p PingResponseParams) encode() []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, p.Now)
	return out
}

func decodePingResponse(data []byte) (Params, error) {
	if err := requireLen(data, 4); err != nil {
		return nil, err
	}
	return PingResponseParams{Now: binary.LittleEndian.Uint32(data)}, nil
}

// --- Boost ---

// BoostRequestParams selects a boost mode to apply.
type BoostRequestParams struct {
	BoostType BoostType
}

func (p BoostRequestParams) encode() []byte { return []byte{byte(p.BoostType)} }

func decodeBoostRequest(data []byte) (Params, error) {
	if err := requireLen(data, 1); err != nil {
		return nil, err
	}
	return BoostRequestParams{BoostType: BoostType(data[0])}, nil
}

// BoostResponseParams reports the boost currently counting down
// (ExpectedFinish) alongside the boost configuration that was last
// requested (StartConfig) — the device echoes both.
type BoostResponseParams struct {
	ExpectedFinish Boost
	StartConfig    Boost
}

func (p BoostResponseParams) encode() []byte {
	ef := p.ExpectedFinish.encode()
	sc := p.StartConfig.encode()
	return []byte{ef[0], ef[1], sc[0], sc[1]}
}

func decodeBoostResponse(data []byte) (Params, error) {
	if err := requireLen(data, 4); err != nil {
		return nil, err
	}
	return BoostResponseParams{
		ExpectedFinish: decodeBoost([2]byte{data[0], data[1]}),
		StartConfig:    decodeBoost([2]byte{data[2], data[3]}),
	}, nil
}

// --- Advance mode ---

// AdvanceModeParams carries the 1-bit advance state in the byte's LSB.
type AdvanceModeParams struct {
	Mode AdvanceState
}

func (p AdvanceModeParams) encode() []byte { return []byte{byte(p.Mode & 1)} }

func decodeAdvanceMode(data []byte) (Params, error) {
	if err := requireLen(data, 1); err != nil {
		return nil, err
	}
	return AdvanceModeParams{Mode: AdvanceState(data[0] & 1)}, nil
}

// --- Work mode ---

// SetWorkmodeParams carries the desired/reported scheduling mode.
type SetWorkmodeParams struct {
	WorkMode WorkMode
}

func (p SetWorkmodeParams) encode() []byte { return []byte{byte(p.WorkMode)} }

func decodeSetWorkmode(data []byte) (Params, error) {
	if err := requireLen(data, 1); err != nil {
		return nil, err
	}
	return SetWorkmodeParams{WorkMode: WorkMode(data[0])}, nil
}

// --- Holiday ---

// HolidayParams describes (or sets) the holiday-mode window.
type HolidayParams struct {
	IsActive bool
	Unknown  [3]byte
	End      uint32 // unix timestamp
	Start    uint32 // unix timestamp
}

const holidaySize = 1 + 3 + 4 + 4

func (p HolidayParams) encode() []byte {
	out := make([]byte, holidaySize)
	if p.IsActive {
		out[0] = 1
	}
	copy(out[1:4], p.Unknown[:])
	binary.LittleEndian.PutUint32(out[4:8], p.End)
	binary.LittleEndian.PutUint32(out[8:12], p.Start)
	return out
}

func decodeHoliday(data []byte) (Params, error) {
	if err := requireLen(data, holidaySize); err != nil {
		return nil, err
	}
	p := HolidayParams{
		IsActive: data[0] != 0,
		End:      binary.LittleEndian.Uint32(data[4:8]),
		Start:    binary.LittleEndian.Uint32(data[8:12]),
	}
	copy(p.Unknown[:], data[1:4])
	return p, nil
}

// --- Current schedule selector ---

// ScheduleIDParams carries a single 0-based schedule_id — used for the
// get/set current-schedule exchange, the set-schedule-name response and
// the get-schedule-info request.
type ScheduleIDParams struct {
	ScheduleID uint8
}

func (p ScheduleIDParams) encode() []byte { return []byte{p.ScheduleID} }

func decodeScheduleID(data []byte) (Params, error) {
	if err := requireLen(data, 1); err != nil {
		return nil, err
	}
	return ScheduleIDParams{ScheduleID: data[0]}, nil
}

// --- Schedule name ---

// SetScheduleNameParams renames one schedule slot.
type SetScheduleNameParams struct {
	ScheduleID uint8
	Name       string
}

const scheduleNameWidth = 50
const setScheduleNameSize = 1 + scheduleNameWidth

func (p SetScheduleNameParams) encode() []byte {
	out := make([]byte, setScheduleNameSize)
	out[0] = p.ScheduleID
	copy(out[1:], fixedString(p.Name, scheduleNameWidth))
	return out
}

func decodeSetScheduleName(data []byte) (Params, error) {
	if err := requireLen(data, setScheduleNameSize); err != nil {
		return nil, err
	}
	return SetScheduleNameParams{
		ScheduleID: data[0],
		Name:       padString(data[1:]),
	}, nil
}

// --- Schedule info ---

const scheduleCount = 6
const scheduleInfoSize = 1 + scheduleCount*scheduleSize + scheduleNameWidth

// ScheduleInfoParams is the full program for one schedule slot: six
// on/off windows plus its display name.
type ScheduleInfoParams struct {
	ScheduleID uint8
	Schedules  [scheduleCount]Schedule
	Name       string
}

func (p ScheduleInfoParams) encode() []byte {
	out := make([]byte, scheduleInfoSize)
	out[0] = p.ScheduleID
	offset := 1
	for _, s := range p.Schedules {
		copy(out[offset:offset+scheduleSize], s.encode())
		offset += scheduleSize
	}
	copy(out[offset:], fixedString(p.Name, scheduleNameWidth))
	return out
}

func decodeScheduleInfo(data []byte) (Params, error) {
	if err := requireLen(data, scheduleInfoSize); err != nil {
		return nil, err
	}
	p := ScheduleInfoParams{ScheduleID: data[0]}
	offset := 1
	for i := range p.Schedules {
		p.Schedules[i] = decodeSchedule(data[offset : offset+scheduleSize])
		offset += scheduleSize
	}
	p.Name = padString(data[offset:])
	return p, nil
}
