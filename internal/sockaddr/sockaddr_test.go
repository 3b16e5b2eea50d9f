package sockaddr

import "testing"

func TestIsWildcard(t *testing.T) {
	if !IPv4Wildcard(0).IsWildcard() {
		t.Error("IPv4Wildcard should be wildcard")
	}
	if IPv4Loopback(0).IsWildcard() {
		t.Error("IPv4Loopback should not be wildcard")
	}
	if !IPv6Wildcard(0).IsWildcard() {
		t.Error("IPv6Wildcard should be wildcard")
	}
	if IPv6Loopback(0).IsWildcard() {
		t.Error("IPv6Loopback should not be wildcard")
	}
}

func TestIsPortZero(t *testing.T) {
	if !IPv4Wildcard(0).IsPortZero() {
		t.Error("port 0 should report IsPortZero")
	}
	if IPv4Wildcard(8080).IsPortZero() {
		t.Error("port 8080 should not report IsPortZero")
	}
}

func TestEqual(t *testing.T) {
	a := IPv4Loopback(9000)
	b := IPv4Loopback(9000)
	if !a.Equal(b) {
		t.Error("two identical IPv4 addresses should be Equal")
	}
	if a.Equal(IPv4Loopback(9001)) {
		t.Error("different ports should not be Equal")
	}
	if a.Equal(IPv6Loopback(9000)) {
		t.Error("different families should not be Equal")
	}

	c := IPv6(80, [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 1, 2)
	d := IPv6(80, [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 1, 2)
	if !c.Equal(d) {
		t.Error("identical IPv6 addresses with matching flow/zone should be Equal")
	}
	if c.Equal(IPv6(80, [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 1, 3)) {
		t.Error("differing ZoneID should not be Equal")
	}
}

func TestStringifyIPv4(t *testing.T) {
	got := IPv4Loopback(8080).Stringify()
	want := "127.0.0.1:8080"
	if got != want {
		t.Errorf("Stringify() = %q, want %q", got, want)
	}
}

func TestStringifyIPv6(t *testing.T) {
	got := IPv6Loopback(80).Stringify()
	want := "[0000:0000:0000:0000:0000:0000:0000:0001]:80"
	if got != want {
		t.Errorf("Stringify() = %q, want %q", got, want)
	}
}

func TestStringifyZeroPort(t *testing.T) {
	got := IPv4Wildcard(0).Stringify()
	want := "0.0.0.0:0"
	if got != want {
		t.Errorf("Stringify() = %q, want %q", got, want)
	}
}
