package speedlimit

import (
	"sync"
	"testing"
	"time"
)

// testClock is an advancing fake time source so every update gets a distinct
// timestamp.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(100 * time.Millisecond)
	return c.t
}

func newTestMachine(threshold int) (*Machine, *Store, *testClock) {
	clock := newTestClock()
	store := NewStore(WithClock(clock.now))
	m := NewMachine(MachineConfig{ConfirmationFrames: threshold}, store)
	return m, store, clock
}

func obs(limit int) *Observation {
	return &Observation{
		SpeedLimit: limit,
		Confidence: 0.9,
		BBox:       BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100},
	}
}

func obsWithCondition(limit int, tc TimeCondition) *Observation {
	o := obs(limit)
	o.TimeCondition = &tc
	return o
}

// checkInvariant verifies Status == CONFIRMED iff Confirmed != nil, and the
// companion rules for DETECTING and NO_DETECTION.
func checkInvariant(t *testing.T, snap Snapshot) {
	t.Helper()
	switch snap.Status {
	case StatusConfirmed:
		if snap.Confirmed == nil {
			t.Fatal("status confirmed but no confirmed value")
		}
	case StatusDetecting:
		if snap.Pending == nil {
			t.Fatal("status detecting but no pending candidate")
		}
	case StatusNoDetection:
		if snap.Confirmed != nil || snap.Pending != nil {
			t.Fatal("status no_detection but state present")
		}
	default:
		t.Fatalf("unknown status %q", snap.Status)
	}
}

func TestMachine_InitialState(t *testing.T) {
	_, store, _ := newTestMachine(3)

	snap := store.Read()
	if snap.Status != StatusNoDetection {
		t.Errorf("initial status: got %q, want %q", snap.Status, StatusNoDetection)
	}
	if snap.Confirmed != nil || snap.Pending != nil {
		t.Error("initial state should have no confirmed or pending value")
	}
}

func TestMachine_ConfirmsAfterThreshold(t *testing.T) {
	m, _, _ := newTestMachine(3)

	snap := m.Update(obs(40))
	if snap.Status != StatusDetecting {
		t.Fatalf("after 1 frame: got %q, want %q", snap.Status, StatusDetecting)
	}
	if snap.Pending == nil || snap.Pending.Count != 1 {
		t.Fatalf("after 1 frame: pending = %+v, want count 1", snap.Pending)
	}

	snap = m.Update(obs(40))
	if snap.Status != StatusDetecting || snap.Pending.Count != 2 {
		t.Fatalf("after 2 frames: status %q pending %+v", snap.Status, snap.Pending)
	}

	snap = m.Update(obs(40))
	if snap.Status != StatusConfirmed {
		t.Fatalf("after 3 frames: got %q, want %q", snap.Status, StatusConfirmed)
	}
	if snap.Confirmed.SpeedLimit != 40 {
		t.Errorf("confirmed value: got %d, want 40", snap.Confirmed.SpeedLimit)
	}
	if snap.Confirmed.DetectionCount != 3 {
		t.Errorf("detection count: got %d, want 3", snap.Confirmed.DetectionCount)
	}
	if snap.Pending != nil {
		t.Error("pending should be cleared on confirmation")
	}
	if !snap.Confirmed.ConfirmedAt.Equal(snap.Confirmed.LastSeenAt) {
		t.Error("ConfirmedAt and LastSeenAt should match at confirmation")
	}
}

func TestMachine_AlmostConfirmedThenDifferentValue(t *testing.T) {
	m, _, _ := newTestMachine(3)

	m.Update(obs(40))
	m.Update(obs(40))

	// Count must restart at 1 for the new candidate, not 0.
	snap := m.Update(obs(60))
	if snap.Status != StatusDetecting {
		t.Fatalf("status: got %q, want %q", snap.Status, StatusDetecting)
	}
	if snap.Pending.SpeedLimit != 60 || snap.Pending.Count != 1 {
		t.Errorf("pending: got %+v, want value 60 count 1", snap.Pending)
	}
	if snap.Confirmed != nil {
		t.Error("nothing should be confirmed yet")
	}
}

func TestMachine_NoObservationClearsPendingOnly(t *testing.T) {
	m, _, _ := newTestMachine(3)

	m.Update(obs(40))
	m.Update(obs(40))

	snap := m.Update(nil)
	if snap.Status != StatusNoDetection {
		t.Errorf("status: got %q, want %q", snap.Status, StatusNoDetection)
	}
	if snap.Pending != nil {
		t.Error("pending should be cleared")
	}

	// The interrupted candidate must start over.
	snap = m.Update(obs(40))
	if snap.Pending == nil || snap.Pending.Count != 1 {
		t.Errorf("pending after restart: got %+v, want count 1", snap.Pending)
	}
}

func TestMachine_ConfirmedSurvivesAbsence(t *testing.T) {
	m, _, _ := newTestMachine(3)

	for i := 0; i < 3; i++ {
		m.Update(obs(40))
	}

	var snap Snapshot
	for i := 0; i < 150; i++ {
		snap = m.Update(nil)
		checkInvariant(t, snap)
	}

	if snap.Status != StatusConfirmed {
		t.Fatalf("after 150 empty frames: got %q, want %q", snap.Status, StatusConfirmed)
	}
	if snap.Confirmed.SpeedLimit != 40 {
		t.Errorf("confirmed value: got %d, want 40", snap.Confirmed.SpeedLimit)
	}
}

func TestMachine_Reinforcement(t *testing.T) {
	m, _, _ := newTestMachine(3)

	for i := 0; i < 3; i++ {
		m.Update(obs(40))
	}
	before := m.Update(nil)

	snap := m.Update(obs(40))
	if snap.Status != StatusConfirmed {
		t.Fatalf("status: got %q, want %q", snap.Status, StatusConfirmed)
	}
	if snap.Pending != nil {
		t.Error("reinforcement must not create a pending candidate")
	}
	if snap.Confirmed.DetectionCount != before.Confirmed.DetectionCount+1 {
		t.Errorf("detection count: got %d, want %d",
			snap.Confirmed.DetectionCount, before.Confirmed.DetectionCount+1)
	}
	if !snap.Confirmed.LastSeenAt.After(before.Confirmed.LastSeenAt) {
		t.Error("LastSeenAt should advance on reinforcement")
	}
	if !snap.Confirmed.ConfirmedAt.Equal(before.Confirmed.ConfirmedAt) {
		t.Error("ConfirmedAt must not change on reinforcement")
	}
}

func TestMachine_NewSignReplacesConfirmed(t *testing.T) {
	m, _, _ := newTestMachine(3)

	for i := 0; i < 3; i++ {
		m.Update(obs(40))
	}
	oldConfirmedAt := m.Update(nil).Confirmed.ConfirmedAt

	// A different sign appears: detecting, old value intact.
	snap := m.Update(obs(60))
	if snap.Status != StatusDetecting {
		t.Fatalf("status: got %q, want %q", snap.Status, StatusDetecting)
	}
	if snap.Confirmed == nil || snap.Confirmed.SpeedLimit != 40 {
		t.Fatalf("old confirmed value should remain: got %+v", snap.Confirmed)
	}
	if snap.Pending.SpeedLimit != 60 || snap.Pending.Count != 1 {
		t.Errorf("pending: got %+v, want value 60 count 1", snap.Pending)
	}

	m.Update(obs(60))
	snap = m.Update(obs(60))
	if snap.Status != StatusConfirmed {
		t.Fatalf("status: got %q, want %q", snap.Status, StatusConfirmed)
	}
	if snap.Confirmed.SpeedLimit != 60 {
		t.Errorf("confirmed value: got %d, want 60", snap.Confirmed.SpeedLimit)
	}
	if !snap.Confirmed.ConfirmedAt.After(oldConfirmedAt) {
		t.Error("replacement must carry a fresh ConfirmedAt")
	}
}

func TestMachine_ReinforcementBeatsPendingCheck(t *testing.T) {
	m, _, _ := newTestMachine(3)

	for i := 0; i < 3; i++ {
		m.Update(obs(40))
	}
	m.Update(obs(60)) // pending 60

	// Seeing the confirmed value again drops the pending candidate instead of
	// re-entering detection.
	snap := m.Update(obs(40))
	if snap.Status != StatusConfirmed {
		t.Fatalf("status: got %q, want %q", snap.Status, StatusConfirmed)
	}
	if snap.Pending != nil {
		t.Error("pending candidate should be dropped")
	}
}

func TestMachine_CarriesTimeCondition(t *testing.T) {
	m, _, _ := newTestMachine(3)
	tc := TimeCondition{StartHour: 7, EndHour: 19}

	for i := 0; i < 3; i++ {
		m.Update(obsWithCondition(30, tc))
	}

	snap := m.Update(nil)
	if snap.Confirmed == nil || snap.Confirmed.TimeCondition == nil {
		t.Fatal("time condition should be carried onto the confirmed value")
	}
	if *snap.Confirmed.TimeCondition != tc {
		t.Errorf("time condition: got %+v, want %+v", snap.Confirmed.TimeCondition, tc)
	}
}

func TestMachine_Reset(t *testing.T) {
	m, store, _ := newTestMachine(3)

	for i := 0; i < 3; i++ {
		m.Update(obs(40))
	}
	m.Reset()

	snap := store.Read()
	if snap.Status != StatusNoDetection || snap.Confirmed != nil || snap.Pending != nil {
		t.Errorf("after reset: got %+v, want empty no_detection state", snap)
	}

	// And the pending counter starts from scratch.
	snap = m.Update(obs(40))
	if snap.Pending == nil || snap.Pending.Count != 1 {
		t.Errorf("pending after reset: got %+v, want count 1", snap.Pending)
	}
}

func TestMachine_CustomThreshold(t *testing.T) {
	m, _, _ := newTestMachine(5)

	var snap Snapshot
	for i := 0; i < 4; i++ {
		snap = m.Update(obs(50))
		if snap.Status != StatusDetecting {
			t.Fatalf("frame %d: got %q, want %q", i+1, snap.Status, StatusDetecting)
		}
	}
	snap = m.Update(obs(50))
	if snap.Status != StatusConfirmed || snap.Confirmed.DetectionCount != 5 {
		t.Errorf("after 5 frames: status %q count %d, want confirmed count 5",
			snap.Status, snap.Confirmed.DetectionCount)
	}
}

func TestMachine_InvariantHoldsAcrossRandomishSequence(t *testing.T) {
	m, _, _ := newTestMachine(3)

	sequence := []*Observation{
		obs(40), nil, obs(40), obs(40), obs(40), obs(60), nil, nil,
		obs(60), obs(60), obs(60), obs(40), obs(80), obs(80), nil,
		obs(80), obs(80), obs(80), nil, obs(80),
	}
	for _, o := range sequence {
		checkInvariant(t, m.Update(o))
	}
}

// An operator reset can land between any two frames, or mid-frame relative to
// the producer. Run with -race; whatever the interleaving, a reset must never
// be undone by an in-flight update writing back pre-reset state.
func TestMachine_ConcurrentResetDuringUpdates(t *testing.T) {
	store := NewStore()
	m := NewMachine(MachineConfig{ConfirmationFrames: 2}, store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			m.Update(obs(40))
			checkInvariant(t, store.Read())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Reset()
		}
	}()
	wg.Wait()

	m.Reset()
	snap := store.Read()
	if snap.Status != StatusNoDetection || snap.Confirmed != nil || snap.Pending != nil {
		t.Errorf("state survived reset: %+v", snap)
	}
	if next := m.Update(obs(40)); next.Pending == nil || next.Pending.Count != 1 {
		t.Errorf("first frame after reset should start a fresh candidate: %+v", next)
	}
}

// The end-to-end scenario from the design discussion: confirm 40, survive an
// empty frame, then switch to 60.
func TestMachine_Scenario(t *testing.T) {
	m, _, _ := newTestMachine(3)

	var snap Snapshot
	for i := 0; i < 3; i++ {
		snap = m.Update(obs(40))
	}
	if snap.Status != StatusConfirmed || snap.Confirmed.SpeedLimit != 40 || snap.Confirmed.DetectionCount != 3 {
		t.Fatalf("after 3x40: %+v", snap)
	}

	snap = m.Update(nil)
	if snap.Status != StatusConfirmed || snap.Confirmed.SpeedLimit != 40 {
		t.Fatalf("after empty frame: %+v", snap)
	}

	snap = m.Update(obs(60))
	if snap.Status != StatusDetecting || snap.Pending.SpeedLimit != 60 ||
		snap.Pending.Count != 1 || snap.Confirmed.SpeedLimit != 40 {
		t.Fatalf("after first 60: %+v", snap)
	}

	m.Update(obs(60))
	snap = m.Update(obs(60))
	if snap.Status != StatusConfirmed || snap.Confirmed.SpeedLimit != 60 {
		t.Fatalf("after 3x60: %+v", snap)
	}
}
