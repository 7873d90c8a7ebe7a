// Package speedlimit holds the detection-state coordinator: the data model
// for per-frame sign observations, the confirmation state machine that folds
// a noisy observation stream into a stable confirmed value, and the shared
// store that exposes that value to concurrent readers.
package speedlimit

import "time"

// Status describes where the coordinator is in its detection cycle.
type Status string

const (
	// StatusNoDetection means no speed limit has ever been confirmed.
	StatusNoDetection Status = "no_detection"
	// StatusDetecting means a candidate is accumulating consecutive frames.
	StatusDetecting Status = "detecting"
	// StatusConfirmed means a speed limit reached the confirmation threshold.
	StatusConfirmed Status = "confirmed"
)

// ValidLimits is the set of speed limit values signs can carry, in km/h.
// Upstream validation rejects anything outside this set before it reaches
// the state machine.
var ValidLimits = map[int]bool{
	20: true, 30: true, 40: true, 50: true, 60: true,
	70: true, 80: true, 100: true, 120: true,
}

// BoundingBox is the axis-aligned pixel region of a detected sign.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the box width.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the box center point.
func (b BoundingBox) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Observation is one frame's detection+OCR output. It is immutable once
// created and discarded after being folded into the state machine.
type Observation struct {
	SpeedLimit    int
	Confidence    float64
	BBox          BoundingBox
	TimeCondition *TimeCondition
	ObservedAt    time.Time
}

// PendingCandidate is a not-yet-confirmed value accumulating consecutive
// agreement. It is replaced wholesale when a differing value is observed and
// cleared on any frame without an observation.
type PendingCandidate struct {
	SpeedLimit    int
	Count         int
	TimeCondition *TimeCondition
}

// ConfirmedLimit is the authoritative current value. It persists across any
// number of no-observation frames and is only ever replaced by a different
// value completing confirmation.
type ConfirmedLimit struct {
	SpeedLimit     int
	TimeCondition  *TimeCondition
	ConfirmedAt    time.Time
	LastSeenAt     time.Time
	DetectionCount int
}

// Snapshot is the complete externally visible coordinator state at one
// instant. Invariants: Status == StatusConfirmed iff Confirmed != nil;
// Status == StatusDetecting implies Pending != nil (a previously confirmed
// value may still be present); Status == StatusNoDetection implies both nil.
type Snapshot struct {
	Status      Status
	Confirmed   *ConfirmedLimit
	Pending     *PendingCandidate
	LastUpdated time.Time
}

// EffectiveLimit returns the confirmed value filtered by its time window:
// present iff a value is confirmed and either carries no time condition or
// its condition is active at now.
func (s Snapshot) EffectiveLimit(now time.Time) (int, bool) {
	if s.Confirmed == nil {
		return 0, false
	}
	if tc := s.Confirmed.TimeCondition; tc != nil && !tc.IsActive(now) {
		return 0, false
	}
	return s.Confirmed.SpeedLimit, true
}

// clone returns a structurally independent copy. Mutating the copy (or
// anything reachable from it) never affects the source snapshot.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.Confirmed != nil {
		c := *s.Confirmed
		if c.TimeCondition != nil {
			tc := *c.TimeCondition
			c.TimeCondition = &tc
		}
		out.Confirmed = &c
	}
	if s.Pending != nil {
		p := *s.Pending
		if p.TimeCondition != nil {
			tc := *p.TimeCondition
			p.TimeCondition = &tc
		}
		out.Pending = &p
	}
	return out
}
