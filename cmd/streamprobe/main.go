// streamprobe connects to one unit's live stream and prints frame statistics
// to the console. Useful for checking a unit's camera feed without running
// the full viewer.
//
// Usage: go run ./cmd/streamprobe --server https://apis.example.com --unit <unit-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hivewarden/apis-viewer/internal/stream"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "APIS server base URL")
	unitID := flag.String("unit", "", "unit id to probe")
	apiKey := flag.String("api-key", os.Getenv("APIS_API_KEY"), "bearer token for the APIS server")
	duration := flag.Duration("duration", 30*time.Second, "how long to watch the stream")
	verbose := flag.Bool("verbose", false, "print every frame")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *unitID == "" {
		logger.Error("--unit is required")
		os.Exit(1)
	}

	url, err := stream.StreamURL(*serverURL, *unitID)
	if err != nil {
		logger.Error("bad stream url", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("connecting", "url", url)

	dialer := stream.NewWSDialer(stream.DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		APIKey:           *apiKey,
	}, logger)

	transport, err := dialer.Dial(url)
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer transport.Close()

	logger.Info("connected, watching frames", "duration", *duration)

	var (
		frames    int64
		bytes     int64
		firstAt   time.Time
		lastAt    time.Time
		minSize   = -1
		maxSize   int
		statsTick = time.NewTicker(5 * time.Second)
	)
	defer statsTick.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case <-statsTick.C:
			logger.Info("stats", "frames", frames, "bytes", bytes, "fps", fps(frames, firstAt, lastAt))

		case msg, ok := <-transport.Messages():
			if !ok {
				continue
			}
			now := time.Now()
			if frames == 0 {
				firstAt = now
			}
			lastAt = now
			frames++
			bytes += int64(len(msg.Data))
			if minSize < 0 || len(msg.Data) < minSize {
				minSize = len(msg.Data)
			}
			if len(msg.Data) > maxSize {
				maxSize = len(msg.Data)
			}
			if *verbose {
				logger.Debug("frame", "n", frames, "size", len(msg.Data))
			}

		case ev := <-transport.Closed():
			logger.Info("stream closed by server", "code", ev.Code, "error", ev.Err)
			break loop
		}
	}

	fmt.Println()
	fmt.Printf("unit:        %s\n", *unitID)
	fmt.Printf("frames:      %d\n", frames)
	fmt.Printf("total bytes: %d\n", bytes)
	if frames > 0 {
		fmt.Printf("frame size:  min %d, max %d, avg %d\n", minSize, maxSize, bytes/frames)
		fmt.Printf("fps:         %.2f\n", fps(frames, firstAt, lastAt))
	}
}

func fps(frames int64, first, last time.Time) float64 {
	if frames < 2 {
		return 0
	}
	elapsed := last.Sub(first).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(frames-1) / elapsed
}
