package detect

import (
	"testing"

	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

func box(x1, y1, x2, y2 float64) speedlimit.BoundingBox {
	return speedlimit.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestDetection_Area(t *testing.T) {
	tests := []struct {
		name   string
		det    Detection
		expect float64
	}{
		{
			name:   "square sign",
			det:    Detection{BBox: box(100, 100, 200, 200)},
			expect: 10000,
		},
		{
			name:   "wide region",
			det:    Detection{BBox: box(0, 0, 50, 20)},
			expect: 1000,
		},
		{
			name:   "degenerate box",
			det:    Detection{BBox: box(10, 10, 10, 10)},
			expect: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			area := tc.det.Area()
			diff := area - tc.expect
			if diff < -0.0001 || diff > 0.0001 {
				t.Errorf("Area: got %.4f, want %.4f", area, tc.expect)
			}
		})
	}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		expectNil  bool
		expectIdx  int // Expected index of best detection
	}{
		{
			name:       "empty list",
			detections: []Detection{},
			expectNil:  true,
		},
		{
			name: "single detection",
			detections: []Detection{
				{BBox: box(100, 100, 200, 200), Confidence: 0.9},
			},
			expectNil: false,
			expectIdx: 0,
		},
		{
			name: "high confidence beats larger area",
			detections: []Detection{
				{BBox: box(0, 0, 400, 400), Confidence: 0.5},      // Larger but low conf
				{BBox: box(300, 300, 500, 500), Confidence: 0.95}, // Smaller but high conf
			},
			expectNil: false,
			expectIdx: 1, // 0.95*0.7 + 0.25*0.3 = 0.74 vs 0.5*0.7 + 1.0*0.3 = 0.65
		},
		{
			name: "similar confidence picks larger",
			detections: []Detection{
				{BBox: box(0, 0, 500, 500), Confidence: 0.8},     // Larger
				{BBox: box(300, 300, 400, 400), Confidence: 0.8}, // Smaller
			},
			expectNil: false,
			expectIdx: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			best := SelectBest(tc.detections)
			if tc.expectNil {
				if best != nil {
					t.Errorf("SelectBest: expected nil, got %+v", best)
				}
				return
			}

			if best == nil {
				t.Error("SelectBest: expected non-nil, got nil")
				return
			}

			expected := &tc.detections[tc.expectIdx]
			if best.Confidence != expected.Confidence || best.BBox != expected.BBox {
				t.Errorf("SelectBest: got %+v, want %+v", best, expected)
			}
		})
	}
}

func TestClampRect(t *testing.T) {
	tests := []struct {
		name       string
		bbox       speedlimit.BoundingBox
		margin     float64
		cols, rows int
		wantMinX   int
		wantMinY   int
		wantMaxX   int
		wantMaxY   int
	}{
		{
			name: "margin expands box",
			bbox: box(100, 100, 200, 200), margin: 0.1,
			cols: 640, rows: 480,
			wantMinX: 90, wantMinY: 90, wantMaxX: 210, wantMaxY: 210,
		},
		{
			name: "clipped at origin",
			bbox: box(5, 5, 105, 105), margin: 0.1,
			cols: 640, rows: 480,
			wantMinX: 0, wantMinY: 0, wantMaxX: 115, wantMaxY: 115,
		},
		{
			name: "clipped at frame edge",
			bbox: box(600, 440, 640, 480), margin: 0.5,
			cols: 640, rows: 480,
			wantMinX: 580, wantMinY: 420, wantMaxX: 640, wantMaxY: 480,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := clampRect(tc.bbox, tc.margin, tc.cols, tc.rows)
			if r.Min.X != tc.wantMinX || r.Min.Y != tc.wantMinY ||
				r.Max.X != tc.wantMaxX || r.Max.Y != tc.wantMaxY {
				t.Errorf("clampRect: got %v, want [%d,%d,%d,%d]",
					r, tc.wantMinX, tc.wantMinY, tc.wantMaxX, tc.wantMaxY)
			}
		})
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "tesseract"})
	if err == nil {
		t.Error("New: expected error for unknown backend")
	}
}

func TestNewHSVBackend(t *testing.T) {
	d, err := New(Config{Backend: "hsv"})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	defer d.Close()

	if _, ok := d.(*HSVDetector); !ok {
		t.Errorf("New: expected *HSVDetector, got %T", d)
	}
}
