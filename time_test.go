package ah

import (
	"runtime"
	"testing"
)

func TestTimeMonotonicity(t *testing.T) {
	t1 := Now()
	runtime.Gosched()
	t2 := Now()

	if t2.Before(t1) {
		t.Errorf("second Now() compared before the first: %v before %v", t2, t1)
	}

	future, err := t1.Add(5_000_000) // 5ms
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if !future.After(t1) {
		t.Errorf("t1+5ms did not compare after t1")
	}
}

func TestTimeZeroValue(t *testing.T) {
	var z Time
	if !z.IsZero() {
		t.Error("zero-value Time should report IsZero() == true")
	}
	if Now().IsZero() {
		t.Error("Now() should never be IsZero()")
	}
}

func TestTimeOverflow(t *testing.T) {
	t1 := Now()
	if _, err := t1.Add(1 << 62); err == nil {
		t.Error("expected overflow error adding a huge delta")
	}
}

func TestTimeDiffAndCmp(t *testing.T) {
	t1 := Now()
	t2, _ := t1.Add(1000)
	d, err := t2.Diff(t1)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if d != 1000 {
		t.Errorf("Diff() = %d, want 1000", d)
	}
	if t1.Cmp(t2) != -1 {
		t.Errorf("Cmp(t1, t2) = %d, want -1", t1.Cmp(t2))
	}
	if t2.Cmp(t1) != 1 {
		t.Errorf("Cmp(t2, t1) = %d, want 1", t2.Cmp(t1))
	}
	if t1.Cmp(t1) != 0 {
		t.Errorf("Cmp(t1, t1) = %d, want 0", t1.Cmp(t1))
	}
}
