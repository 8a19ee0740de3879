package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// presenceCycle is the order the mock presence endpoint walks through.
var presenceCycle = []string{"Available", "Busy", "Be right back", "Do not disturb", "Away", "Presenting"}

// StartMockDevice runs a fake signal light and a fake presence endpoint on
// the same address:
//
//	GET /                 liveness, always 200
//	GET /{ch}/{on|off}    switches a channel and logs the new state
//	GET /presence         {"availability": "..."} changing every 10-20 seconds
//
// Call this in a goroutine before creating the Light.
func StartMockDevice(addr string) {
	var (
		mu       sync.Mutex
		channels = make(map[string]string)
		idx      int
		nextAt   = time.Now().Add(presenceDelay())
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
		mu.Unlock()

		if changed {
			slog.Info("light channel switched", "channel", ch, "state", state)
		}
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /presence", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if time.Now().After(nextAt) {
			from := presenceCycle[idx]
			idx = (idx + 1) % len(presenceCycle)
			nextAt = time.Now().Add(presenceDelay())
			slog.Info("presence change", "from", from, "to", presenceCycle[idx])
		}
		label := presenceCycle[idx]
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"availability": label}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock device error", "error", err)
	}
}

func presenceDelay() time.Duration {
	return time.Duration(10+rand.Intn(11)) * time.Second
}
