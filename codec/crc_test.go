package codec

import "testing"

func TestCRC16KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", []byte{}, 0x0000},
		{"123456789", []byte("123456789"), 0x31C3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crc16(tt.data); got != tt.want {
				t.Errorf("crc16(%q) = %04x, want %04x", tt.data, got, tt.want)
			}
		})
	}
}
