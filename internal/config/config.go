// Package config defines the signwatch service configuration. It is loaded
// once at process start from the environment (after a best-effort .env load)
// and is immutable thereafter; components receive only the subsets they need.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level configuration for the signwatch service.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Video    VideoConfig
	Detector DetectorConfig
	OCR      OCRConfig
	State    StateConfig
	Server   ServerConfig
	Metrics  MetricsConfig
	Uploads  UploadsConfig
}

// VideoConfig describes the frame source.
type VideoConfig struct {
	// URL is a file path, RTSP/HTTP URL or device index. Empty runs the
	// service API-only, with no processing pipeline.
	URL            string        `envconfig:"VIDEO_URL"`
	FPSLimit       int           `envconfig:"VIDEO_FPS_LIMIT" default:"10"`
	Loop           bool          `envconfig:"VIDEO_LOOP" default:"true"`
	ReconnectDelay time.Duration `envconfig:"VIDEO_RECONNECT_DELAY" default:"5s"`
}

// DetectorConfig selects and tunes the sign localizer.
type DetectorConfig struct {
	// Backend is "hsv" (circular red-sign masking, no model file needed)
	// or "yolo" (ONNX model via the OpenCV DNN module).
	Backend             string  `envconfig:"DETECTOR_BACKEND" default:"hsv"`
	ModelPath           string  `envconfig:"DETECTOR_MODEL" default:"models/speedsign.onnx"`
	ConfidenceThreshold float64 `envconfig:"DETECTOR_CONFIDENCE" default:"0.5"`
}

// OCRConfig tunes the digit reader.
type OCRConfig struct {
	ModelPath     string  `envconfig:"OCR_MODEL" default:"models/digits_crnn.onnx"`
	MinConfidence float64 `envconfig:"OCR_MIN_CONFIDENCE" default:"0.3"`
}

// StateConfig tunes the confirmation state machine.
type StateConfig struct {
	// ConfirmationFrames is the consecutive-agreement threshold for the main
	// video pipeline.
	ConfirmationFrames int `envconfig:"CONFIRMATION_FRAMES" default:"3"`
	// FrameStreamConfirmationFrames applies to per-connection /ws/frames
	// sessions, where clients typically send at a lower rate.
	FrameStreamConfirmationFrames int `envconfig:"FRAME_STREAM_CONFIRMATION_FRAMES" default:"2"`
	// EffectiveRespectsTimeCondition filters the effective speed limit by the
	// sign's time window. Disable to always report the confirmed value.
	EffectiveRespectsTimeCondition bool `envconfig:"EFFECTIVE_RESPECTS_TIME_CONDITION" default:"true"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host string `envconfig:"API_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"API_PORT" default:"8000"`
	// BroadcastInterval is how often the broadcaster polls the store for
	// changes to push to /ws/speed subscribers.
	BroadcastInterval time.Duration `envconfig:"WS_BROADCAST_INTERVAL" default:"100ms"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:":9100"`
}

// UploadsConfig holds video upload storage settings.
type UploadsConfig struct {
	Dir string `envconfig:"UPLOAD_DIR" default:"./videos"`
}

// Addr returns the listen address for the API server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.State.ConfirmationFrames < 1 {
		return fmt.Errorf("CONFIRMATION_FRAMES must be >= 1, got %d", c.State.ConfirmationFrames)
	}
	if c.State.FrameStreamConfirmationFrames < 1 {
		return fmt.Errorf("FRAME_STREAM_CONFIRMATION_FRAMES must be >= 1, got %d", c.State.FrameStreamConfirmationFrames)
	}
	if c.Video.FPSLimit < 1 {
		return fmt.Errorf("VIDEO_FPS_LIMIT must be >= 1, got %d", c.Video.FPSLimit)
	}
	switch c.Detector.Backend {
	case "hsv", "yolo":
	default:
		return fmt.Errorf("DETECTOR_BACKEND must be \"hsv\" or \"yolo\", got %q", c.Detector.Backend)
	}
	if c.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("WS_BROADCAST_INTERVAL must be positive, got %s", c.Server.BroadcastInterval)
	}
	return nil
}
