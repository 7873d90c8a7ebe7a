package detect

import (
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// HSVDetector finds circular red regions, the shape of Japanese speed limit
// signs. It needs no model file, only color masking and contour analysis.
type HSVDetector struct {
	config HSVConfig
	mu     sync.Mutex
}

// HSVConfig holds HSV detector thresholds.
type HSVConfig struct {
	MinArea        float64 // Minimum contour area in pixels
	MinCircularity float64 // 4*pi*area/perimeter^2 threshold
}

// DefaultHSVConfig returns production defaults tuned for dashcam footage.
func DefaultHSVConfig() HSVConfig {
	return HSVConfig{
		MinArea:        500,
		MinCircularity: 0.7,
	}
}

// NewHSV creates an HSV color-mask detector.
func NewHSV(cfg HSVConfig) *HSVDetector {
	return &HSVDetector{config: cfg}
}

// Detect finds circular red regions in the JPEG image. Confidence is the
// contour circularity, so a perfect circle scores close to 1.0.
func (d *HSVDetector) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	// Red wraps around the hue axis, so mask both ends.
	mask1 := gocv.NewMat()
	defer mask1.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 100, 100, 0),
		gocv.NewScalar(10, 255, 255, 0),
		&mask1)

	mask2 := gocv.NewMat()
	defer mask2.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(160, 100, 100, 0),
		gocv.NewScalar(180, 255, 255, 0),
		&mask2)

	redMask := gocv.NewMat()
	defer redMask.Close()
	gocv.BitwiseOr(mask1, mask2, &redMask)

	contours := gocv.FindContours(redMask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var detections []Detection
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < d.config.MinArea {
			continue
		}

		perimeter := gocv.ArcLength(contour, true)
		if perimeter == 0 {
			continue
		}
		circularity := 4 * math.Pi * area / (perimeter * perimeter)
		if circularity < d.config.MinCircularity {
			continue
		}

		rect := gocv.BoundingRect(contour)
		detections = append(detections, Detection{
			BBox: speedlimit.BoundingBox{
				X1: float64(rect.Min.X),
				Y1: float64(rect.Min.Y),
				X2: float64(rect.Max.X),
				Y2: float64(rect.Max.Y),
			},
			Confidence: circularity,
		})
	}

	return detections, nil
}

// Close is a no-op; the HSV detector holds no native resources between calls.
func (d *HSVDetector) Close() error {
	return nil
}
