// Package detect locates speed limit sign candidates in video frames.
package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// Detection represents a candidate sign region in pixel coordinates.
type Detection struct {
	BBox       speedlimit.BoundingBox
	Confidence float64
}

// Area returns the area of the bounding box in pixels.
func (d Detection) Area() float64 {
	return d.BBox.Width() * d.BBox.Height()
}

// Detector is the interface for sign localization backends.
type Detector interface {
	// Detect finds candidate sign regions in the JPEG image.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration.
type Config struct {
	Backend             string  // "hsv" or "yolo"
	ModelPath           string  // Path to ONNX model (yolo backend only)
	ConfidenceThreshold float64 // Minimum confidence (default 0.5)
}

// New constructs the detector named by cfg.Backend.
func New(cfg Config) (Detector, error) {
	switch cfg.Backend {
	case "hsv":
		return NewHSV(DefaultHSVConfig()), nil
	case "yolo":
		return NewYOLO(YOLOConfig{
			ModelPath:        cfg.ModelPath,
			ConfidenceThresh: float32(cfg.ConfidenceThreshold),
			NMSThresh:        0.45,
			InputWidth:       640,
			InputHeight:      640,
		})
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

// SelectBest picks the most promising candidate from multiple detections.
// Priority: confidence * 0.7 + relative area * 0.3. Larger signs are closer
// and therefore more likely to apply to the current road.
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection

	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}

// Crop extracts the detection region from the JPEG frame, with a margin
// proportional to the box size so the digits are not clipped. Returns the
// crop re-encoded as JPEG.
func Crop(jpeg []byte, det Detection, margin float64) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	r := clampRect(det.BBox, margin, img.Cols(), img.Rows())
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, fmt.Errorf("detection outside frame bounds")
	}

	region := img.Region(r)
	defer region.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, region)
	if err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// clampRect expands the box by margin on every side and clips it to the
// frame dimensions.
func clampRect(b speedlimit.BoundingBox, margin float64, cols, rows int) image.Rectangle {
	pad := max(b.Width(), b.Height()) * margin
	x1 := int(b.X1 - pad)
	y1 := int(b.Y1 - pad)
	x2 := int(b.X2 + pad)
	y2 := int(b.Y2 + pad)

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > cols {
		x2 = cols
	}
	if y2 > rows {
		y2 = rows
	}
	return image.Rect(x1, y1, x2, y2)
}
