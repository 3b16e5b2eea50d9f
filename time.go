package ah

import (
	"math"

	"github.com/ehrlich-b/ah/internal/clock"
)

// Time is an opaque monotonic instant in nanosecond units. The zero value
// is a sentinel meaning "unset", not a real instant. The epoch is
// arbitrary and unrelated to wall-clock time — see internal/clock.
type Time struct {
	nanos int64
	valid bool
}

// Now reads the current monotonic instant.
func Now() Time {
	return Time{nanos: clock.NowNanos(), valid: true}
}

// IsZero reports whether t is the unset sentinel.
func (t Time) IsZero() bool {
	return !t.valid
}

// Add returns t advanced by d nanoseconds, or a zero Time and
// KindRange if the addition overflows.
func (t Time) Add(d int64) (Time, error) {
	if t.IsZero() {
		return Time{}, NewError("time.add", KindInvalid, "operand is OutOfDomain")
	}
	sum, ok := addOverflow(t.nanos, d)
	if !ok {
		return Time{}, NewError("time.add", KindRange, "addition overflowed")
	}
	return Time{nanos: sum, valid: true}, nil
}

// Sub returns t - d nanoseconds, or KindRange on overflow.
func (t Time) Sub(d int64) (Time, error) {
	if t.IsZero() {
		return Time{}, NewError("time.sub", KindInvalid, "operand is OutOfDomain")
	}
	diff, ok := subOverflow(t.nanos, d)
	if !ok {
		return Time{}, NewError("time.sub", KindRange, "subtraction overflowed")
	}
	return Time{nanos: diff, valid: true}, nil
}

// Diff returns t - u in nanoseconds, or KindRange on overflow.
func (t Time) Diff(u Time) (int64, error) {
	if t.IsZero() || u.IsZero() {
		return 0, NewError("time.diff", KindInvalid, "operand is OutOfDomain")
	}
	d, ok := subOverflow(t.nanos, u.nanos)
	if !ok {
		return 0, NewError("time.diff", KindRange, "difference overflowed")
	}
	return d, nil
}

// Cmp returns -1, 0 or 1 as t is before, equal to, or after u.
func (t Time) Cmp(u Time) int {
	switch {
	case t.nanos < u.nanos:
		return -1
	case t.nanos > u.nanos:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t.Cmp(u) < 0 }

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool { return t.Cmp(u) > 0 }

func addOverflow(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subOverflow(a, b int64) (int64, bool) {
	if b == math.MinInt64 {
		// -b is not representable; a - MinInt64 fits only when a < 0.
		if a >= 0 {
			return 0, false
		}
		return a - b, true
	}
	return addOverflow(a, -b)
}
