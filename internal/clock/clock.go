// Package clock exposes the monotonic time source backing ah.Time. It
// never reads wall-clock fields, matching the contract that the epoch is
// arbitrary and unrelated to wall-clock time.
package clock

import "time"

var epoch = time.Now()

// NowNanos returns a monotonically non-decreasing nanosecond count
// relative to an arbitrary, process-local epoch.
func NowNanos() int64 {
	return int64(time.Since(epoch))
}
