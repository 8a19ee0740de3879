// Standalone mock signal light for trying the CLI without hardware.
//
// Usage:
//
//	go run ./example/cmd/mockdevice
//
// Then in another terminal:
//
//	go run ./cmd/statuslight run -c example/statuslight.yaml
//	curl -X PUT localhost:8080/api/status -d '{"status": "Busy"}'
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
)

func main() {
	fmt.Println("Mock signal light starting on :9999")
	fmt.Println("Switch channels with GET /{channel}/{on|off}")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu       sync.Mutex
		channels = make(map[string]string)
	)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /{ch}/{state}", func(w http.ResponseWriter, r *http.Request) {
		ch, state := r.PathValue("ch"), r.PathValue("state")
		if state != "on" && state != "off" {
			http.NotFound(w, r)
			return
		}

		mu.Lock()
		changed := channels[ch] != state
		channels[ch] = state
		summary := describe(channels)
		mu.Unlock()

		if changed {
			slog.Info("light changed", "channels", summary)
		}
		_, _ = w.Write([]byte("ok"))
	})

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// describe renders channel states as "4=on 5=off".
func describe(channels map[string]string) string {
	keys := make([]string, 0, len(channels))
	for k := range channels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+channels[k])
	}
	return strings.Join(parts, " ")
}
