package web

import (
	"context"
	"time"

	"github.com/signwatch/go-signwatch/internal/log"
	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// speedUpdate is the envelope pushed to /ws/speed subscribers.
type speedUpdate struct {
	Type string                   `json:"type"`
	Data speedlimit.StateResponse `json:"data"`
}

// broadcastLoop polls the store and pushes an update whenever the rendered
// state differs from the last one sent. Comparing rendered responses rather
// than raw snapshots means a time window opening or closing between polls is
// itself a change, even though nothing was written to the store.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Server.BroadcastInterval)
	defer ticker.Stop()

	var lastSent *speedlimit.StateResponse

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := s.opts.Store.Response()
			if !speedlimit.HasSignificantChange(lastSent, cur) {
				continue
			}

			if err := s.stateHub.BroadcastJSON(speedUpdate{Type: "speed_update", Data: cur}); err != nil {
				log.Warn("state broadcast failed", "error", err)
				continue
			}
			s.opts.Metrics.StateBroadcasts.Add(1)
			lastSent = &cur
		}
	}
}
