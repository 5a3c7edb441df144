package instance

import "time"

// Clock supplies commit timestamps. The reducer never reads the wall
// clock itself, so tests substitute a deterministic Clock.
type Clock interface {
	Now() int64
}

// SystemClock returns Unix milliseconds.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}
