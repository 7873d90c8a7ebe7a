package web

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/signwatch/go-signwatch/internal/log"
	"github.com/signwatch/go-signwatch/pkg/hub"
	"github.com/signwatch/go-signwatch/pkg/pipeline"
	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// handleSpeedWS subscribes a client to state updates. The current state is
// queued for the client before its pumps start, so it never starts blind,
// then the broadcaster takes over through the hub.
func (s *Server) handleSpeedWS(c *websocket.Conn) {
	s.opts.Metrics.ActiveClients.Add(1)
	s.opts.Metrics.TotalClients.Add(1)
	defer func() {
		s.opts.Metrics.ActiveClients.Add(^uint64(0))
	}()

	client := hub.NewClient(s.stateHub, c)
	if data, err := json.Marshal(speedUpdate{Type: "speed_update", Data: s.opts.Store.Response()}); err == nil {
		client.Send(hub.NewJSONMessage(data))
	}
	client.Run()
}

// detectionResult is the reply for each frame on /ws/frames.
type detectionResult struct {
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	SpeedLimit   *int       `json:"speed_limit"`
	PendingCount int        `json:"pending_count,omitempty"`
	Timestamp    *time.Time `json:"timestamp"`
}

// wsError is sent when an inbound frame cannot be processed.
type wsError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleFramesWS processes JPEG frames pushed by the client and replies with
// the detection outcome per frame. Each connection gets its own state
// machine, so one client's footage never influences another's results or the
// main pipeline state.
func (s *Server) handleFramesWS(c *websocket.Conn) {
	defer c.Close()

	store := speedlimit.NewStore()
	machine := speedlimit.NewMachine(
		speedlimit.MachineConfig{ConfirmationFrames: s.opts.FrameThreshold},
		store,
	)
	runner := pipeline.NewRunner(s.opts.Detector, s.opts.Reader, machine, s.opts.Metrics)

	log.Debug("frame stream connected")
	var frameNum uint64

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("frame stream disconnected", "frames", frameNum)
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		frameNum++
		if len(data) == 0 {
			if err := c.WriteJSON(wsError{Type: "error", Message: "empty frame"}); err != nil {
				return
			}
			continue
		}

		snap := runner.Process(pipeline.Frame{
			JPEG:       data,
			Number:     frameNum,
			CapturedAt: time.Now(),
		})

		if err := c.WriteJSON(frameResult(snap)); err != nil {
			return
		}
	}
}

// frameResult renders a snapshot in the per-frame reply shape. While a
// candidate is being confirmed the reply reports the candidate value and its
// progress, not the previously confirmed limit.
func frameResult(snap speedlimit.Snapshot) detectionResult {
	res := detectionResult{Type: "detection_result", Status: string(snap.Status)}

	switch snap.Status {
	case speedlimit.StatusDetecting:
		if snap.Pending != nil {
			v := snap.Pending.SpeedLimit
			res.SpeedLimit = &v
			res.PendingCount = snap.Pending.Count
		}
	case speedlimit.StatusConfirmed:
		if snap.Confirmed != nil {
			v := snap.Confirmed.SpeedLimit
			res.SpeedLimit = &v
			t := snap.Confirmed.ConfirmedAt
			res.Timestamp = &t
		}
	}

	return res
}
