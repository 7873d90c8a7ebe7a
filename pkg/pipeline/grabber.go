package pipeline

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/signwatch/go-signwatch/internal/log"
	"github.com/signwatch/go-signwatch/internal/metrics"
)

// GrabberConfig describes the video source.
type GrabberConfig struct {
	// Source is a file path, stream URL or device index accepted by OpenCV.
	Source         string
	FPSLimit       int
	Loop           bool
	ReconnectDelay time.Duration
}

// Grabber reads frames from a video source and publishes them on a channel.
// Frames arriving faster than FPSLimit are dropped rather than queued, so the
// downstream always works on recent footage.
type Grabber struct {
	cfg     GrabberConfig
	metrics *metrics.Metrics
	frames  chan Frame
}

// NewGrabber creates a frame grabber. The frames channel has a buffer of one:
// a slow consumer causes drops, never backpressure into the capture loop.
func NewGrabber(cfg GrabberConfig, m *metrics.Metrics) *Grabber {
	return &Grabber{
		cfg:     cfg,
		metrics: m,
		frames:  make(chan Frame, 1),
	}
}

// Frames returns the output channel. It is closed when Run returns.
func (g *Grabber) Frames() <-chan Frame {
	return g.frames
}

// Run captures frames until ctx is cancelled. Capture errors trigger a
// reconnect after the configured delay; cancellation is only observed at
// frame boundaries, never mid-read.
func (g *Grabber) Run(ctx context.Context) error {
	defer close(g.frames)

	for {
		err := g.capture(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Warn("video capture ended, reconnecting",
				"source", g.cfg.Source,
				"delay", g.cfg.ReconnectDelay,
				"error", err)
			g.metrics.ReadErrors.Add(1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.cfg.ReconnectDelay):
		}
	}
}

// capture runs one open-read-close cycle against the source.
func (g *Grabber) capture(ctx context.Context) error {
	vc, err := gocv.OpenVideoCapture(g.cfg.Source)
	if err != nil {
		return fmt.Errorf("open video source %q: %w", g.cfg.Source, err)
	}
	defer vc.Close()

	log.Info("video source opened", "source", g.cfg.Source, "fps_limit", g.cfg.FPSLimit)

	img := gocv.NewMat()
	defer img.Close()

	minInterval := time.Second / time.Duration(g.cfg.FPSLimit)
	var lastEmit time.Time
	var frameNum uint64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if ok := vc.Read(&img); !ok {
			if g.cfg.Loop {
				// File sources report EOF as a failed read. Rewind and
				// keep going.
				vc.Set(gocv.VideoCapturePosFrames, 0)
				if ok := vc.Read(&img); !ok {
					return fmt.Errorf("read after rewind failed")
				}
			} else {
				return fmt.Errorf("video source exhausted")
			}
		}
		if img.Empty() {
			continue
		}

		frameNum++
		g.metrics.FramesRead.Add(1)

		now := time.Now()
		if now.Sub(lastEmit) < minInterval {
			g.metrics.FramesDropped.Add(1)
			continue
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			g.metrics.ReadErrors.Add(1)
			continue
		}
		jpeg := make([]byte, buf.Len())
		copy(jpeg, buf.GetBytes())
		buf.Close()

		frame := Frame{JPEG: jpeg, Number: frameNum, CapturedAt: now}

		select {
		case g.frames <- frame:
			lastEmit = now
		default:
			g.metrics.FramesDropped.Add(1)
		}
	}
}
