// Package ocr reads speed limit values from cropped sign images.
package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// Result is a validated reading from a sign crop.
type Result struct {
	SpeedLimit    int
	Confidence    float64
	TimeCondition *speedlimit.TimeCondition
	RawText       string
}

// Reader is the interface for digit reading backends.
type Reader interface {
	// Read extracts a speed limit from the cropped JPEG. Returns nil when
	// the crop contains no usable reading.
	Read(cropJPEG []byte) (*Result, error)

	// Close releases resources
	Close() error
}

// inferredConfidence is assigned when the limit was reconstructed from a
// partial reading rather than read outright.
const inferredConfidence = 0.3

var (
	timeRangePattern = regexp.MustCompile(`\d{1,2}(?::\d{2})?-\d{1,2}(?::\d{2})?`)
	numberPattern    = regexp.MustCompile(`\d+`)
)

// Normalize turns raw OCR text into a validated reading. The text may contain
// a time window like "7-19" alongside the limit; that window is parsed out
// first so its digits are not mistaken for a speed value. Values outside the
// legal set are rejected as misreads, except that a lone digit is retried as
// a truncated reading ("4" for "40"). Returns nil when nothing valid remains.
func Normalize(raw string, confidence float64) *Result {
	text := strings.TrimSpace(raw)

	var cond *speedlimit.TimeCondition
	if m := timeRangePattern.FindString(text); m != "" {
		if tc, ok := speedlimit.ParseTimeCondition(m); ok {
			cond = &tc
		}
		text = strings.Replace(text, m, " ", 1)
	}

	numbers := numberPattern.FindAllString(text, -1)
	if len(numbers) == 0 {
		return nil
	}

	for _, s := range numbers {
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		if speedlimit.ValidLimits[n] {
			return &Result{
				SpeedLimit:    n,
				Confidence:    confidence,
				TimeCondition: cond,
				RawText:       raw,
			}
		}
	}

	// Truncated readings: a lone digit is usually a two-digit limit with the
	// trailing zero lost.
	for _, s := range numbers {
		n, err := strconv.Atoi(s)
		if err != nil || n >= 10 {
			continue
		}
		if possible := n * 10; speedlimit.ValidLimits[possible] {
			return &Result{
				SpeedLimit:    possible,
				Confidence:    inferredConfidence,
				TimeCondition: cond,
				RawText:       raw,
			}
		}
	}

	return nil
}
