package ah

import "testing"

func TestLoggingTransportDelegatesBind(t *testing.T) {
	mt := NewMockTransport()
	lt := NewLoggingTransport(mt, nil)

	fd, err := lt.Bind(nil, FamilyIPv4, IPv4Wildcard(0))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if fd < 0 {
		t.Errorf("Bind returned fd %d, want >= 0", fd)
	}
	if mt.CallCounts()["bind"] != 1 {
		t.Errorf("inner bind calls = %d, want 1", mt.CallCounts()["bind"])
	}
}

func TestLoggingTransportDelegatesReadWriteClose(t *testing.T) {
	mt := NewMockTransport()
	lt := NewLoggingTransport(mt, nil)
	fd, _ := lt.Bind(nil, FamilyIPv4, IPv4Wildcard(0))

	var writeResult int
	if err := lt.Write(nil, fd, []byte("hi"), func(n int, k Kind) { writeResult = n }); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if writeResult != 2 {
		t.Errorf("write completion n = %d, want 2", writeResult)
	}
	if got := mt.Writes(fd); len(got) != 1 || string(got[0]) != "hi" {
		t.Errorf("inner Writes(fd) = %v, want [\"hi\"]", got)
	}

	var closeKind Kind
	if err := lt.Close(nil, fd, func(n int, k Kind) { closeKind = k }); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closeKind != KindOk {
		t.Errorf("close completion kind = %v, want KindOk", closeKind)
	}
	if !mt.IsClosed(fd) {
		t.Error("inner transport should report fd closed after LoggingTransport.Close")
	}
}

func TestLoggingTransportPrepareAcceptWrapsInner(t *testing.T) {
	mt := NewMockTransport()
	lt := NewLoggingTransport(mt, nil)

	prepared, err := lt.PrepareAccept(nil)
	if err != nil {
		t.Fatalf("PrepareAccept: %v", err)
	}
	wrapped, ok := prepared.(*LoggingTransport)
	if !ok {
		t.Fatalf("PrepareAccept returned %T, want *LoggingTransport", prepared)
	}
	if wrapped.Inner != mt {
		t.Error("wrapped transport's Inner should be the same MockTransport instance")
	}
}

func TestLoggingTransportSocketOptionsDelegate(t *testing.T) {
	mt := NewMockTransport()
	lt := NewLoggingTransport(mt, nil)
	fd, _ := lt.Bind(nil, FamilyIPv4, IPv4Wildcard(0))

	if err := lt.SetKeepalive(fd, true); err != nil {
		t.Fatalf("SetKeepalive: %v", err)
	}
	if err := lt.SetNodelay(fd, true); err != nil {
		t.Fatalf("SetNodelay: %v", err)
	}
	if err := lt.SetReuseaddr(fd, true); err != nil {
		t.Fatalf("SetReuseaddr: %v", err)
	}
}
