// feed streams JPEG frames from a local video file to a running signwatch
// instance over /ws/frames and prints each detection result. Useful for
// exercising the frame stream path without a browser client.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/signwatch/go-signwatch/internal/log"
)

func main() {
	var (
		video = flag.String("video", "", "video file to stream")
		url   = flag.String("url", "ws://localhost:8000/ws/frames", "frame stream endpoint")
		fps   = flag.Int("fps", 5, "frames per second to send")
	)
	flag.Parse()

	if *video == "" {
		fmt.Fprintln(os.Stderr, "usage: feed -video <file> [-url ws://...] [-fps n]")
		os.Exit(1)
	}
	if *fps <= 0 {
		fmt.Fprintln(os.Stderr, "feed: -fps must be positive")
		os.Exit(1)
	}

	if err := run(*video, *url, *fps); err != nil {
		log.Error("feed failed", "error", err)
		os.Exit(1)
	}
}

func run(video, url string, fps int) error {
	vc, err := gocv.OpenVideoCapture(video)
	if err != nil {
		return fmt.Errorf("open video %q: %w", video, err)
	}
	defer vc.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("connect %q: %w", url, err)
	}
	defer conn.Close()

	log.Info("streaming frames", "video", video, "url", url, "fps", fps)

	// Results arrive asynchronously; print them as they come.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var result map[string]any
			if err := conn.ReadJSON(&result); err != nil {
				return
			}
			fmt.Printf("%v\n", result)
		}
	}()

	img := gocv.NewMat()
	defer img.Close()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var sent int
	for range ticker.C {
		if ok := vc.Read(&img); !ok {
			break
		}
		if img.Empty() {
			continue
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			continue
		}
		err = conn.WriteMessage(websocket.BinaryMessage, buf.GetBytes())
		buf.Close()
		if err != nil {
			return fmt.Errorf("send frame: %w", err)
		}
		sent++
	}

	log.Info("video exhausted", "frames_sent", sent)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return nil
}
