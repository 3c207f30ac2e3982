package relay

import (
	"net"
	"testing"
)

func mustUDPAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		t.Fatalf("ResolveUDPAddr(%q): %v", s, err)
	}
	return addr
}

func TestRegistryFirstWriteWins(t *testing.T) {
	r := NewRegistry()
	a1 := mustUDPAddr(t, "192.0.2.1:9997")
	a2 := mustUDPAddr(t, "192.0.2.2:9997")

	r.Learn(0x12345678, a1)
	r.Learn(0x12345678, a2)

	got := r.Lookup(0x12345678)
	if got.String() != a1.String() {
		t.Errorf("Lookup = %v, want %v (first write should win)", got, a1)
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	r := NewRegistry()
	if got := r.Lookup(0xDEADBEEF); got != nil {
		t.Errorf("Lookup of unknown device = %v, want nil", got)
	}
}
