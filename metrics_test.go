package ah

import "testing"

func TestMetricsRecordCompletion(t *testing.T) {
	m := NewMetrics()
	m.RecordSubmit()
	m.RecordSubmit()
	m.RecordCompletion(KindOk, 500)
	m.RecordCompletion(KindConnReset, 1500)

	snap := m.Snapshot()
	if snap.Dispatched != 2 {
		t.Errorf("Dispatched = %d, want 2", snap.Dispatched)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
	if snap.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", snap.InFlight)
	}
}

func TestMetricsCancelledCounted(t *testing.T) {
	m := NewMetrics()
	m.RecordSubmit()
	m.RecordCompletion(KindCancelled, 0)

	snap := m.Snapshot()
	if snap.Cancelled != 1 {
		t.Errorf("Cancelled = %d, want 1", snap.Cancelled)
	}
	if snap.Errors != 0 {
		t.Errorf("Errors = %d, want 0 (cancelled is not an error)", snap.Errors)
	}
}

func TestMetricsMaxInFlight(t *testing.T) {
	m := NewMetrics()
	m.RecordSubmit()
	m.RecordSubmit()
	m.RecordSubmit()
	m.RecordCompletion(KindOk, 1)

	snap := m.Snapshot()
	if snap.MaxInFlight != 3 {
		t.Errorf("MaxInFlight = %d, want 3", snap.MaxInFlight)
	}
	if snap.InFlight != 2 {
		t.Errorf("InFlight = %d, want 2", snap.InFlight)
	}
}

func TestNoOpObserverDiscards(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveCompletion(KindOk, 100) // must not panic
}

func TestMetricsObserverRoutesToMetrics(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)
	m.RecordSubmit()
	o.ObserveCompletion(KindOk, 42)

	snap := m.Snapshot()
	if snap.Dispatched != 1 {
		t.Errorf("Dispatched = %d, want 1", snap.Dispatched)
	}
}
