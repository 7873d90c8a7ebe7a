package speedlimit

// HasSignificantChange reports whether the externally visible state differs
// enough between the response last pushed to a subscriber and the current one
// to warrant another push. It compares status, confirmed value, effective
// value, time condition and confirmation timestamp, and deliberately ignores
// LastUpdated and LastSeenAt so that reinforcement-only writes (the same
// confirmed sign re-seen frame after frame) do not produce a broadcast storm.
//
// Because each response captures the effective value at render time, a time
// window opening or closing between polls also registers as a change.
//
// old is the response last sent; nil means nothing has been sent yet and
// always counts as a change.
func HasSignificantChange(old *StateResponse, cur StateResponse) bool {
	if old == nil {
		return true
	}
	if old.Status != cur.Status {
		return true
	}
	if !intPtrEqual(old.SpeedLimit, cur.SpeedLimit) {
		return true
	}
	if !intPtrEqual(old.EffectiveSpeedLimit, cur.EffectiveSpeedLimit) {
		return true
	}
	if !timeConditionInfoEqual(old.TimeCondition, cur.TimeCondition) {
		return true
	}
	if (old.ConfirmedAt == nil) != (cur.ConfirmedAt == nil) {
		return true
	}
	if old.ConfirmedAt != nil && !old.ConfirmedAt.Equal(*cur.ConfirmedAt) {
		return true
	}
	return false
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timeConditionInfoEqual(a, b *TimeConditionInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
