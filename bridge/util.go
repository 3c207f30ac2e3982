package bridge

import "strconv"

func fmtUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
