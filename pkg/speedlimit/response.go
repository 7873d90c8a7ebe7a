package speedlimit

import "time"

// TimeConditionInfo is the wire form of a time-restricted limit.
type TimeConditionInfo struct {
	Range    string `json:"range"`
	IsActive bool   `json:"is_active"`
}

// PendingInfo exposes confirmation progress so a UI can render
// "detecting: 40 km/h (2/3)".
type PendingInfo struct {
	SpeedLimit int `json:"speed_limit"`
	Count      int `json:"count"`
}

// StateResponse is the JSON representation of a Snapshot served over REST and
// WebSocket. Nullable fields are present only when a value is confirmed.
type StateResponse struct {
	Status              Status             `json:"status"`
	SpeedLimit          *int               `json:"speed_limit"`
	EffectiveSpeedLimit *int               `json:"effective_speed_limit"`
	TimeCondition       *TimeConditionInfo `json:"time_condition"`
	ConfirmedAt         *time.Time         `json:"confirmed_at"`
	LastSeenAt          *time.Time         `json:"last_seen_at"`
	LastUpdated         time.Time          `json:"last_updated"`
	Pending             *PendingInfo       `json:"pending,omitempty"`
}

// Response renders the snapshot for transport, evaluating time conditions at
// the supplied instant.
func (s Snapshot) Response(now time.Time) StateResponse {
	return s.response(now, true)
}

// response is the shared rendering path. respectTimeCondition mirrors the
// store option of the same name: when false, the effective value is the
// confirmed value regardless of the clock. The time_condition block still
// reports the window's actual activity either way.
func (s Snapshot) response(now time.Time, respectTimeCondition bool) StateResponse {
	resp := StateResponse{
		Status:      s.Status,
		LastUpdated: s.LastUpdated,
	}

	if c := s.Confirmed; c != nil {
		v := c.SpeedLimit
		resp.SpeedLimit = &v
		if !respectTimeCondition {
			e := c.SpeedLimit
			resp.EffectiveSpeedLimit = &e
		} else if eff, ok := s.EffectiveLimit(now); ok {
			e := eff
			resp.EffectiveSpeedLimit = &e
		}
		confirmedAt, lastSeenAt := c.ConfirmedAt, c.LastSeenAt
		resp.ConfirmedAt = &confirmedAt
		resp.LastSeenAt = &lastSeenAt
		if tc := c.TimeCondition; tc != nil {
			resp.TimeCondition = &TimeConditionInfo{
				Range:    tc.String(),
				IsActive: tc.IsActive(now),
			}
		}
	}

	if p := s.Pending; p != nil {
		resp.Pending = &PendingInfo{SpeedLimit: p.SpeedLimit, Count: p.Count}
	}
	return resp
}
