// signwatch detects speed limit signs in a video stream and serves the
// confirmed limit over REST and WebSocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/signwatch/go-signwatch/internal/config"
	"github.com/signwatch/go-signwatch/internal/log"
	"github.com/signwatch/go-signwatch/internal/metrics"
	"github.com/signwatch/go-signwatch/pkg/detect"
	"github.com/signwatch/go-signwatch/pkg/ocr"
	"github.com/signwatch/go-signwatch/pkg/pipeline"
	"github.com/signwatch/go-signwatch/pkg/speedlimit"
	"github.com/signwatch/go-signwatch/pkg/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	go func() {
		log.Info("metrics listening", "addr", cfg.Metrics.Addr)
		if err := m.StartServer(cfg.Metrics.Addr); err != nil {
			log.Error("metrics server", "error", err)
		}
	}()

	store := speedlimit.NewStore(
		speedlimit.WithTimeConditionFiltering(cfg.State.EffectiveRespectsTimeCondition),
	)
	machine := speedlimit.NewMachine(
		speedlimit.MachineConfig{ConfirmationFrames: cfg.State.ConfirmationFrames},
		store,
	)

	detector, err := detect.New(detect.Config{
		Backend:             cfg.Detector.Backend,
		ModelPath:           cfg.Detector.ModelPath,
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
	})
	if err != nil {
		log.Error("init detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	reader, err := newReader(cfg)
	if err != nil {
		log.Error("init digit reader", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	server := web.NewServer(web.Options{
		Server:         cfg.Server,
		Uploads:        cfg.Uploads,
		FrameThreshold: cfg.State.FrameStreamConfirmationFrames,
		Store:          store,
		Machine:        machine,
		Detector:       detector,
		Reader:         reader,
		Metrics:        m,
	})

	if cfg.Video.URL != "" {
		go runPipeline(ctx, cfg, detector, reader, machine, m, server)
	} else {
		log.Info("no video source configured, running API only")
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("server shutdown", "error", err)
		}
	}()

	if err := server.Run(ctx); err != nil {
		log.Error("api server", "error", err)
		os.Exit(1)
	}
}

// newReader builds the digit reader. A missing model file is fatal because
// the pipeline cannot produce observations without it.
func newReader(cfg *config.Config) (ocr.Reader, error) {
	crnnCfg := ocr.DefaultCRNNConfig()
	crnnCfg.ModelPath = cfg.OCR.ModelPath
	crnnCfg.MinConfidence = cfg.OCR.MinConfidence
	return ocr.NewCRNN(crnnCfg)
}

// runPipeline drives frames from the configured source through the detection
// stage until ctx is cancelled.
func runPipeline(
	ctx context.Context,
	cfg *config.Config,
	detector detect.Detector,
	reader ocr.Reader,
	machine *speedlimit.Machine,
	m *metrics.Metrics,
	server *web.Server,
) {
	grabber := pipeline.NewGrabber(pipeline.GrabberConfig{
		Source:         cfg.Video.URL,
		FPSLimit:       cfg.Video.FPSLimit,
		Loop:           cfg.Video.Loop,
		ReconnectDelay: cfg.Video.ReconnectDelay,
	}, m)
	runner := pipeline.NewRunner(detector, reader, machine, m)

	server.SetPipelineRunning(true)
	defer server.SetPipelineRunning(false)

	go func() {
		if err := grabber.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("frame grabber stopped", "error", err)
		}
	}()

	if err := runner.Run(ctx, grabber.Frames()); err != nil && ctx.Err() == nil {
		log.Error("pipeline stopped", "error", err)
	}
}
