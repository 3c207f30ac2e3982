package bridge

import (
	"encoding/hex"
	"math/rand"
	"strconv"
	"strings"

	"github.com/meermanr/timeguard-gateway/codec"
)

// randomSeq returns a random seq in [0, 0xFE], the range the Pending-Reply
// Table manages (0xFF is the unsolicited sentinel).
func randomSeq() uint8 {
	return uint8(rand.Intn(0xFF))
}

func newCommandFrame(deviceID uint32, mt codec.MessageType, write bool, params codec.Params) codec.Frame {
	return codec.Frame{
		Payload: codec.Payload{
			MessageType:  mt,
			MessageFlags: codec.ServerFlags(write),
			Seq:          randomSeq(),
			DeviceID:     deviceID,
			Params:       params,
		},
	}
}

var boostByName = map[string]codec.BoostType{
	"Off":     codec.BoostOff,
	"1 hour":  codec.BoostOneHour,
	"2 hours": codec.BoostTwoHours,
}

var workModeByName = map[string]codec.WorkMode{
	"Auto":       codec.WorkModeAuto,
	"Always off": codec.WorkModeAlwaysOff,
	"Always on":  codec.WorkModeAlwaysOn,
	"Holiday":    codec.WorkModeHoliday,
}

var advanceByName = map[string]codec.AdvanceState{
	"ON":  codec.AdvanceOn,
	"OFF": codec.AdvanceOff,
}

// parseActiveScheduleSelection extracts the 0-based schedule_id from a
// "#<1-based-id>: <name>" selection string.
func parseActiveScheduleSelection(s string) (uint8, bool) {
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	rest := s[1:]
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		idx = len(rest)
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:idx]))
	if err != nil || n < 1 || n > totalScheduleSlots {
		return 0, false
	}
	return uint8(n - 1), true
}

// buildCommands translates one bus command (entity, payload) into the
// protocol frame(s) it produces. Unknown payloads return ok=false; the
// caller logs at warn and discards.
func buildCommands(deviceID uint32, entity string, payload []byte) ([]codec.Frame, bool) {
	text := strings.TrimSpace(string(payload))

	switch entity {
	case "raw_command":
		raw, err := hex.DecodeString(text)
		if err != nil {
			return nil, false
		}
		f, err := codec.Parse(raw)
		if err != nil {
			return nil, false
		}
		return []codec.Frame{f}, true

	case "boost":
		bt, ok := boostByName[text]
		if !ok {
			return nil, false
		}
		return []codec.Frame{newCommandFrame(deviceID, codec.MessageTypeBoost, true, codec.BoostRequestParams{BoostType: bt})}, true

	case "advance_mode":
		a, ok := advanceByName[text]
		if !ok {
			return nil, false
		}
		return []codec.Frame{newCommandFrame(deviceID, codec.MessageTypeAdvance, true, codec.AdvanceModeParams{Mode: a})}, true

	case "work_mode":
		wm, ok := workModeByName[text]
		if !ok {
			return nil, false
		}
		return []codec.Frame{newCommandFrame(deviceID, codec.MessageTypeWorkMode, true, codec.SetWorkmodeParams{WorkMode: wm})}, true

	case "active_schedule":
		id, ok := parseActiveScheduleSelection(text)
		if !ok {
			return nil, false
		}
		set := newCommandFrame(deviceID, codec.MessageTypeActiveSchedule, true, codec.ScheduleIDParams{ScheduleID: id})
		get := newCommandFrame(deviceID, codec.MessageTypeActiveSchedule, false, codec.EmptyParams{})
		return []codec.Frame{set, get}, true

	default:
		return nil, false
	}
}
