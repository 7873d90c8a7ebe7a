package speedlimit

import "sync"

// MachineConfig tunes the confirmation state machine.
type MachineConfig struct {
	// ConfirmationFrames is the number of consecutive matching observations
	// required before a candidate becomes the confirmed value.
	ConfirmationFrames int
}

// DefaultConfirmationFrames balances noise rejection against latency: a
// single-frame misread never changes state, while three frames is roughly
// 0.3s at 10fps.
const DefaultConfirmationFrames = 3

// Machine folds a stream of per-frame observations (or their absence) into
// the shared Store. Update is driven by a single producer, one call per frame
// in frame order, but Reset may arrive concurrently from request handlers, so
// every state transition (including the read-modify-write of the store) runs
// under the machine's own lock.
type Machine struct {
	mu      sync.Mutex
	cfg     MachineConfig
	store   *Store
	pending *PendingCandidate
}

// NewMachine creates a confirmation state machine writing into store.
func NewMachine(cfg MachineConfig, store *Store) *Machine {
	if cfg.ConfirmationFrames <= 0 {
		cfg.ConfirmationFrames = DefaultConfirmationFrames
	}
	return &Machine{cfg: cfg, store: store}
}

// Update advances the state machine with one frame's observation, or nil when
// the frame produced none, and returns the resulting snapshot.
//
// Rules, in priority order:
//  1. nil observation: the pending candidate is cleared; the confirmed value
//     (if any) is left completely untouched.
//  2. Observation matches the confirmed value: reinforcement. LastSeenAt
//     advances, DetectionCount increments, any pending candidate is dropped.
//  3. Observation matches the pending candidate: its count increments and, on
//     reaching the threshold, the candidate replaces the confirmed value
//     outright.
//  4. Anything else starts a fresh pending candidate with count 1. A
//     previously confirmed value stays in place until rule 3 replaces it.
func (m *Machine) Update(obs *Observation) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.store.Read()

	if obs == nil {
		m.pending = nil
		snap.Pending = nil
		if snap.Confirmed == nil {
			snap.Status = StatusNoDetection
		} else {
			snap.Status = StatusConfirmed
		}
		m.store.Write(snap)
		return m.store.Read()
	}

	switch {
	case snap.Confirmed != nil && snap.Confirmed.SpeedLimit == obs.SpeedLimit:
		snap.Confirmed.LastSeenAt = m.store.now()
		snap.Confirmed.DetectionCount++
		m.pending = nil
		snap.Pending = nil
		snap.Status = StatusConfirmed

	case m.pending != nil && m.pending.SpeedLimit == obs.SpeedLimit:
		m.pending.Count++
		if m.pending.Count >= m.cfg.ConfirmationFrames {
			now := m.store.now()
			snap.Confirmed = &ConfirmedLimit{
				SpeedLimit:     m.pending.SpeedLimit,
				TimeCondition:  m.pending.TimeCondition,
				ConfirmedAt:    now,
				LastSeenAt:     now,
				DetectionCount: m.pending.Count,
			}
			snap.Status = StatusConfirmed
			snap.Pending = nil
			m.pending = nil
		} else {
			snap.Status = StatusDetecting
			p := *m.pending
			snap.Pending = &p
		}

	default:
		m.pending = &PendingCandidate{
			SpeedLimit:    obs.SpeedLimit,
			Count:         1,
			TimeCondition: obs.TimeCondition,
		}
		snap.Status = StatusDetecting
		p := *m.pending
		snap.Pending = &p
	}

	m.store.Write(snap)
	return m.store.Read()
}

// Confirmed returns a copy of the currently confirmed value, or nil.
func (m *Machine) Confirmed() *ConfirmedLimit {
	return m.store.Read().Confirmed
}

// Reset forces the machine and its store back to the initial empty state.
// Safe to call while Update is running; the reset and the in-flight frame
// serialize, so a reset is never overwritten by a stale snapshot.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.store.Reset()
}
