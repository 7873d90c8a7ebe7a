// Package pipeline moves frames from a video source through detection, digit
// reading and the confirmation state machine.
package pipeline

import "time"

// Frame is one captured video frame as JPEG bytes.
type Frame struct {
	JPEG       []byte
	Number     uint64
	CapturedAt time.Time
}
