package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statuslight"
)

func main() {
	// start the mock light and presence endpoint (see mock_device.go)
	go StartMockDevice(":9999")
	time.Sleep(100 * time.Millisecond)

	// read the label from the mock presence endpoint
	source, err := statuslight.HTTPStatusSource("http://localhost:9999/presence",
		statuslight.WithLabelExtractor(statuslight.JSONField("availability")),
		statuslight.WithSourceTimeout(2*time.Second),
	)
	if err != nil {
		slog.Error("failed to create status source", "error", err)
		os.Exit(1)
	}

	light, err := statuslight.New(
		statuslight.WithDeviceURL("http://localhost:9999"),
		statuslight.WithStatusSource(source),
		// the fixed table has no signal for "Presenting"
		statuslight.WithOverrides(map[string]statuslight.Category{
			"Presenting": statuslight.CategoryRed,
		}),
		statuslight.WithListenAddr(":8080"),
		statuslight.WithSyncCallback(func(r statuslight.SyncResult) {
			if r.Task == statuslight.TaskSync && r.Sent {
				fmt.Printf("  %-16s %s\n", r.Status, r.State)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create light", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   statuslight demo                                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Mock light + presence on http://localhost:9999      ║")
	fmt.Println("  ║   API on http://localhost:8080/api/state              ║")
	fmt.Println("  ║   Metrics on http://localhost:8080/metrics            ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := light.Start(ctx); err != nil {
		slog.Error("statuslight error", "error", err)
		os.Exit(1)
	}
}
