package ocr

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// crnnCharset is the model's class order. Index 0 is the CTC blank.
const crnnCharset = "0123456789-:"

// CRNNReader reads digits with a CRNN text recognition model through the
// OpenCV DNN module. Each crop is tried with several preprocessing variants
// because lighting varies a lot between dashcam frames; the variant with the
// highest-confidence valid reading wins.
type CRNNReader struct {
	net       gocv.Net
	config    CRNNConfig
	mu        sync.Mutex
	inputSize image.Point
}

// CRNNConfig holds recognition model configuration.
type CRNNConfig struct {
	ModelPath     string
	MinConfidence float64
	InputWidth    int
	InputHeight   int
}

// DefaultCRNNConfig returns production defaults for a 100x32 CRNN export.
func DefaultCRNNConfig() CRNNConfig {
	return CRNNConfig{
		ModelPath:     "models/digits_crnn.onnx",
		MinConfidence: 0.3,
		InputWidth:    100,
		InputHeight:   32,
	}
}

// NewCRNN creates a CRNN digit reader.
func NewCRNN(cfg CRNNConfig) (*CRNNReader, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &CRNNReader{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Read extracts a speed limit from the cropped JPEG.
func (r *CRNNReader) Read(cropJPEG []byte) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, err := gocv.IMDecode(cropJPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	var best *Result
	for _, variant := range r.preprocess(gray) {
		res := r.recognize(variant)
		variant.Close()
		if res == nil {
			continue
		}
		if best == nil || res.Confidence > best.Confidence {
			best = res
		}
	}

	if best == nil || best.Confidence < r.config.MinConfidence {
		return nil, nil
	}
	return best, nil
}

// preprocess produces grayscale variants of the crop. The caller owns the
// returned Mats.
func (r *CRNNReader) preprocess(gray gocv.Mat) []gocv.Mat {
	plain := gray.Clone()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	enhanced := gocv.NewMat()
	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	clahe.Apply(gray, &enhanced)
	clahe.Close()

	return []gocv.Mat{plain, binary, enhanced}
}

// recognize runs one variant through the model and normalizes the decoded
// text. Returns nil when decoding yields no valid limit.
func (r *CRNNReader) recognize(gray gocv.Mat) *Result {
	blob := gocv.BlobFromImage(gray, 1.0/127.5, r.inputSize, gocv.NewScalar(127.5, 0, 0, 0), false, false)
	defer blob.Close()

	r.net.SetInput(blob, "")

	output := r.net.Forward("")
	defer output.Close()

	text, conf := decodeCTC(output)
	if text == "" {
		return nil
	}
	return Normalize(text, conf)
}

// decodeCTC greedy-decodes a CTC output of shape [T, 1, C] where class 0 is
// the blank. Confidence is the mean probability of the kept characters.
func decodeCTC(output gocv.Mat) (string, float64) {
	data, err := output.DataPtrFloat32()
	if err != nil {
		return "", 0
	}

	sizes := output.Size()
	if len(sizes) < 3 {
		return "", 0
	}
	steps := sizes[0]
	classes := sizes[2]
	if classes != len(crnnCharset)+1 {
		return "", 0
	}

	var sb strings.Builder
	var confSum float64
	var kept int
	prev := 0

	for t := 0; t < steps; t++ {
		base := t * classes
		bestClass := 0
		bestScore := data[base]
		for c := 1; c < classes; c++ {
			if data[base+c] > bestScore {
				bestScore = data[base+c]
				bestClass = c
			}
		}

		// Collapse repeats and drop blanks, standard CTC rules.
		if bestClass != 0 && bestClass != prev {
			sb.WriteByte(crnnCharset[bestClass-1])
			confSum += float64(bestScore)
			kept++
		}
		prev = bestClass
	}

	if kept == 0 {
		return "", 0
	}
	return sb.String(), confSum / float64(kept)
}

// Close releases the reader resources.
func (r *CRNNReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.net.Close()
	return nil
}
