package pipeline

import (
	"context"
	"time"

	"github.com/signwatch/go-signwatch/internal/log"
	"github.com/signwatch/go-signwatch/internal/metrics"
	"github.com/signwatch/go-signwatch/pkg/detect"
	"github.com/signwatch/go-signwatch/pkg/ocr"
	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// cropMargin is the padding ratio around a detected sign before reading it.
const cropMargin = 0.1

// Runner consumes frames, runs detection and digit reading, and feeds every
// frame's outcome into the confirmation state machine. It is the single
// writer of the shared state store.
type Runner struct {
	detector detect.Detector
	reader   ocr.Reader
	machine  *speedlimit.Machine
	metrics  *metrics.Metrics
	crop     func(jpeg []byte, det detect.Detection, margin float64) ([]byte, error)
}

// NewRunner wires a processing stage over the given machine.
func NewRunner(d detect.Detector, r ocr.Reader, m *speedlimit.Machine, mx *metrics.Metrics) *Runner {
	return &Runner{
		detector: d,
		reader:   r,
		machine:  m,
		metrics:  mx,
		crop:     detect.Crop,
	}
}

// Run processes frames until the channel closes or ctx is cancelled.
// A frame that errors anywhere in the stage is skipped, not fatal, so a
// single corrupt frame never stalls the pipeline.
func (r *Runner) Run(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			r.Process(frame)
		}
	}
}

// Process runs the detection stage for one frame and updates the state
// machine. A frame with no usable sign is reported to the machine as a nil
// observation, which is what ultimately clears stale pending candidates.
func (r *Runner) Process(frame Frame) speedlimit.Snapshot {
	start := time.Now()
	defer func() {
		r.metrics.FramesProcessed.Add(1)
		r.metrics.UpdateProcessLatency(time.Since(start))
	}()

	obs := r.observe(frame)
	before := r.machine.Confirmed()
	snap := r.machine.Update(obs)

	if snap.Confirmed != nil && (before == nil ||
		before.SpeedLimit != snap.Confirmed.SpeedLimit ||
		!before.ConfirmedAt.Equal(snap.Confirmed.ConfirmedAt)) {
		r.metrics.Confirmations.Add(1)
		log.Info("speed limit confirmed",
			"speed_limit", snap.Confirmed.SpeedLimit,
			"detections", snap.Confirmed.DetectionCount,
			"frame", frame.Number)
	}

	return snap
}

// observe extracts at most one validated sign reading from the frame.
func (r *Runner) observe(frame Frame) *speedlimit.Observation {
	dets, err := r.detector.Detect(frame.JPEG)
	if err != nil {
		r.metrics.ProcessErrors.Add(1)
		log.Debug("detection failed", "frame", frame.Number, "error", err)
		return nil
	}
	if len(dets) == 0 {
		return nil
	}
	r.metrics.SignsDetected.Add(uint64(len(dets)))

	best := detect.SelectBest(dets)

	crop, err := r.crop(frame.JPEG, *best, cropMargin)
	if err != nil {
		r.metrics.ProcessErrors.Add(1)
		log.Debug("crop failed", "frame", frame.Number, "error", err)
		return nil
	}

	res, err := r.reader.Read(crop)
	if err != nil {
		r.metrics.ProcessErrors.Add(1)
		log.Debug("digit read failed", "frame", frame.Number, "error", err)
		return nil
	}
	if res == nil {
		r.metrics.OCRMisses.Add(1)
		return nil
	}
	r.metrics.OCRReads.Add(1)

	return &speedlimit.Observation{
		SpeedLimit:    res.SpeedLimit,
		Confidence:    res.Confidence,
		BBox:          best.BBox,
		TimeCondition: res.TimeCondition,
		ObservedAt:    frame.CapturedAt,
	}
}
