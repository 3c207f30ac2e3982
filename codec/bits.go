package codec

import "encoding/binary"

// DeviceState is the 1-byte bit-packed device status snapshot carried in
// every PingRequest. Fields are packed MSB-first within the byte:
//
//	bit7-6 switch_state
//	bit5   reserved
//	bit4   load_detected
//	bit3   advance_mode
//	bit2   load_was_detected_previously
//	bit1-0 reserved
type DeviceState struct {
	SwitchState               SwitchState
	LoadDetected              bool
	AdvanceMode               AdvanceState
	LoadWasDetectedPreviously bool
}

func decodeDeviceState(b byte) DeviceState {
	return DeviceState{
		SwitchState:               SwitchState((b >> 6) & 0b11),
		LoadDetected:              (b>>4)&0b1 != 0,
		AdvanceMode:               AdvanceState((b >> 3) & 0b1),
		LoadWasDetectedPreviously: (b>>2)&0b1 != 0,
	}
}

func (d DeviceState) encode() byte {
	var b byte
	b |= byte(d.SwitchState&0b11) << 6
	if d.LoadDetected {
		b |= 1 << 4
	}
	b |= byte(d.AdvanceMode&0b1) << 3
	if d.LoadWasDetectedPreviously {
		b |= 1 << 2
	}
	return b
}

// Boost is a 2-byte, byte-swapped bit-packed structure:
//
//	bit15-14 boost_type
//	bit13-0  minutes_from_sunday
//
// "byte-swapped" means the 2 wire bytes are read as a little-endian
// uint16 before the MSB-first bitfields are extracted — equivalently, the
// byte order is reversed relative to reading the bitfields MSB-first
// straight across the wire bytes. This is a wire-level requirement, not a convenience:
// the device firmware genuinely emits these groups reversed.
type Boost struct {
	BoostType         BoostType
	MinutesFromSunday uint16
}

// DurationInMinutes is the configured duration for BoostType.
func (b Boost) DurationInMinutes() int {
	return b.BoostType.DurationMinutes()
}

// ExpectedFinishTime is minutes-from-Sunday-midnight at which the boost ends.
func (b Boost) ExpectedFinishTime() uint16 {
	return b.MinutesFromSunday + uint16(b.DurationInMinutes())
}

func decodeBoost(raw [2]byte) Boost {
	word := binary.LittleEndian.Uint16(raw[:])
	return Boost{
		BoostType:         BoostType((word >> 14) & 0b11),
		MinutesFromSunday: word & 0x3FFF,
	}
}

func (b Boost) encode() [2]byte {
	word := uint16(b.BoostType&0b11)<<14 | (b.MinutesFromSunday & 0x3FFF)
	var raw [2]byte
	binary.LittleEndian.PutUint16(raw[:], word)
	return raw
}

// ScheduleTime is a 2-byte, byte-swapped bit-packed structure:
//
//	bit15-13 reserved
//	bit12    enabled
//	bit11-0  minutes_from_midnight
type ScheduleTime struct {
	Enabled             bool
	MinutesFromMidnight uint16
}

func decodeScheduleTime(raw [2]byte) ScheduleTime {
	word := binary.LittleEndian.Uint16(raw[:])
	return ScheduleTime{
		Enabled:             (word>>12)&0b1 != 0,
		MinutesFromMidnight: word & 0x0FFF,
	}
}

func (s ScheduleTime) encode() [2]byte {
	var word uint16
	if s.Enabled {
		word |= 1 << 12
	}
	word |= s.MinutesFromMidnight & 0x0FFF
	var raw [2]byte
	binary.LittleEndian.PutUint16(raw[:], word)
	return raw
}

// Schedule is one of the six program slots carried in ScheduleInfo frames.
type Schedule struct {
	Start  ScheduleTime
	End    ScheduleTime
	Repeat ScheduleRepeat
	// Unknown preserves the trailing reserved byte verbatim.
	Unknown byte
}

const scheduleSize = 6

func decodeSchedule(raw []byte) Schedule {
	return Schedule{
		Start:   decodeScheduleTime([2]byte{raw[0], raw[1]}),
		End:     decodeScheduleTime([2]byte{raw[2], raw[3]}),
		Repeat:  ScheduleRepeat(raw[4]),
		Unknown: raw[5],
	}
}

func (s Schedule) encode() []byte {
	start := s.Start.encode()
	end := s.End.encode()
	return []byte{start[0], start[1], end[0], end[1], byte(s.Repeat), s.Unknown}
}
