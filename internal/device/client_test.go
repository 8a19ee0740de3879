package device

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/statuslight/internal/signal"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a fake device that records every request path.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) sorted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]string(nil), r.paths...)
	sort.Strings(cp)
	return cp
}

func newDevice(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r.URL.Path)
		if handler != nil {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func newTestClient(t *testing.T, ep Endpoint) *Client {
	t.Helper()
	c, err := NewClient(ep, testLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	c := newTestClient(t, Endpoint{BaseURL: "http://10.0.0.30/"})
	ep := c.Endpoint()

	if ep.BaseURL != "http://10.0.0.30" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", ep.BaseURL)
	}
	if ep.ProbeTimeout != DefaultProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want %v", ep.ProbeTimeout, DefaultProbeTimeout)
	}
	if ep.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("WriteTimeout = %v, want %v", ep.WriteTimeout, DefaultWriteTimeout)
	}
	if ep.RedChannel != "4" || ep.YellowChannel != "5" {
		t.Errorf("channels = %q/%q, want 4/5", ep.RedChannel, ep.YellowChannel)
	}
}

func TestNewClient_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr string
	}{
		{"empty", Endpoint{}, "base url is required"},
		{"no scheme", Endpoint{BaseURL: "10.0.0.30"}, "scheme must be http or https"},
		{"ftp", Endpoint{BaseURL: "ftp://10.0.0.30"}, "scheme must be http or https"},
		{"no host", Endpoint{BaseURL: "http://"}, "must include a host"},
		{"same channels", Endpoint{BaseURL: "http://x", RedChannel: "4", YellowChannel: "4"}, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.ep, testLogger())
			if err == nil {
				t.Fatal("NewClient() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewClient() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckLiveness_AnyStatusIsAlive(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable}

	for _, code := range codes {
		server, rec := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		c := newTestClient(t, Endpoint{BaseURL: server.URL})

		if !c.CheckLiveness(context.Background()) {
			t.Errorf("CheckLiveness() with status %d = false, want true", code)
		}
		if got := rec.sorted(); len(got) != 1 || got[0] != "/" {
			t.Errorf("probe paths = %v, want [/]", got)
		}
	}
}

func TestCheckLiveness_Timeout(t *testing.T) {
	release := make(chan struct{})
	server, _ := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := newTestClient(t, Endpoint{BaseURL: server.URL, ProbeTimeout: 50 * time.Millisecond})

	start := time.Now()
	probe := c.Probe(context.Background())
	elapsed := time.Since(start)

	if probe.Alive {
		t.Error("Probe().Alive = true, want false on timeout")
	}
	if !errors.Is(probe.Err, context.DeadlineExceeded) {
		t.Errorf("Probe().Err = %v, want deadline exceeded", probe.Err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Probe() took %v, want bounded by the probe timeout", elapsed)
	}
}

func TestProbe_TimeoutIsLogged(t *testing.T) {
	server, _ := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	var logs bytes.Buffer
	c, err := NewClient(Endpoint{BaseURL: server.URL, ProbeTimeout: 50 * time.Millisecond},
		slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer c.Close()

	c.Probe(context.Background())

	out := logs.String()
	if !strings.Contains(out, `level=WARN msg="device liveness probe failed"`) {
		t.Errorf("log = %q, want probe failure warning", out)
	}
	if !strings.Contains(out, "timed out after 50ms") {
		t.Errorf("log = %q, want timeout error", out)
	}
}

func TestProbe_CancelledByCaller(t *testing.T) {
	server, _ := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	var logs bytes.Buffer
	c, err := NewClient(Endpoint{BaseURL: server.URL, ProbeTimeout: 5 * time.Second},
		slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	probe := c.Probe(ctx)

	if probe.Alive {
		t.Error("Probe().Alive = true, want false when cancelled")
	}
	if probe.Err == nil {
		t.Error("Probe().Err = nil, want cancellation error")
	}
	if out := logs.String(); strings.Contains(out, "probe failed") {
		t.Errorf("log = %q, want no failure warning for a cancelled probe", out)
	}
}

func TestCheckLiveness_ConnectionRefused(t *testing.T) {
	// grab a free port and close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := newTestClient(t, Endpoint{BaseURL: "http://" + addr, ProbeTimeout: time.Second})

	if c.CheckLiveness(context.Background()) {
		t.Error("CheckLiveness() = true, want false when nothing listens")
	}
}

func TestWriteSignal_Paths(t *testing.T) {
	server, rec := newDevice(t, nil)
	c := newTestClient(t, Endpoint{BaseURL: server.URL})

	if err := c.WriteSignal(context.Background(), signal.Red, true); err != nil {
		t.Fatalf("WriteSignal(red, on) error = %v", err)
	}
	if err := c.WriteSignal(context.Background(), signal.Yellow, false); err != nil {
		t.Fatalf("WriteSignal(yellow, off) error = %v", err)
	}

	want := []string{"/4/on", "/5/off"}
	got := rec.sorted()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestWriteSignal_StatusNotInterpreted(t *testing.T) {
	server, _ := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, Endpoint{BaseURL: server.URL})

	if err := c.WriteSignal(context.Background(), signal.Red, true); err != nil {
		t.Errorf("WriteSignal() error = %v, want nil for a 500 response", err)
	}
}

func TestSendSignalState_Paths(t *testing.T) {
	tests := []struct {
		name  string
		ep    Endpoint
		state signal.State
		want  []string
	}{
		{"busy", Endpoint{}, signal.State{Red: true}, []string{"/4/on", "/5/off"}},
		{"available", Endpoint{}, signal.State{}, []string{"/4/off", "/5/off"}},
		{"away", Endpoint{}, signal.State{Yellow: true}, []string{"/4/off", "/5/on"}},
		{"both", Endpoint{}, signal.State{Red: true, Yellow: true}, []string{"/4/on", "/5/on"}},
		{"custom channels", Endpoint{RedChannel: "12", YellowChannel: "13"}, signal.State{Red: true}, []string{"/12/on", "/13/off"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newDevice(t, nil)
			ep := tt.ep
			ep.BaseURL = server.URL
			c := newTestClient(t, ep)

			if err := c.SendSignalState(context.Background(), tt.state); err != nil {
				t.Fatalf("SendSignalState() error = %v", err)
			}

			got := rec.sorted()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("paths = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSendSignalState_Concurrent verifies both writes are in flight at once:
// each handler blocks until it has seen the other request arrive.
func TestSendSignalState_Concurrent(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	bothIn := make(chan struct{})
	go func() {
		arrived.Wait()
		close(bothIn)
	}()

	server, _ := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		select {
		case <-bothIn:
			w.WriteHeader(http.StatusOK)
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusGatewayTimeout)
		}
	})
	c := newTestClient(t, Endpoint{BaseURL: server.URL, WriteTimeout: 5 * time.Second})

	start := time.Now()
	if err := c.SendSignalState(context.Background(), signal.State{Red: true}); err != nil {
		t.Fatalf("SendSignalState() error = %v", err)
	}

	select {
	case <-bothIn:
	default:
		t.Fatal("writes were not in flight at the same time")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SendSignalState() took %v, writes appear sequential", elapsed)
	}
}

// TestSendSignalState_PartialFailure verifies a failing channel does not
// prevent the other write from being sent.
func TestSendSignalState_PartialFailure(t *testing.T) {
	server, rec := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/4/") {
			// drop the connection to produce a transport error
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient(t, Endpoint{BaseURL: server.URL})

	err := c.SendSignalState(context.Background(), signal.State{Red: true})
	if err == nil {
		t.Fatal("SendSignalState() error = nil, want red channel failure")
	}

	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("SendSignalState() error = %v, want *WriteError", err)
	}
	if werr.Channel != signal.Red {
		t.Errorf("WriteError.Channel = %v, want red", werr.Channel)
	}

	got := rec.sorted()
	if strings.Join(got, ",") != "/4/on,/5/off" {
		t.Errorf("paths = %v, want both channels attempted", got)
	}
}

func TestSendSignalState_HungChannelDoesNotStallOther(t *testing.T) {
	yellowDone := make(chan struct{})
	server, _ := newDevice(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/4/") {
			<-r.Context().Done()
			return
		}
		w.WriteHeader(http.StatusOK)
		close(yellowDone)
	})
	c := newTestClient(t, Endpoint{BaseURL: server.URL, WriteTimeout: 300 * time.Millisecond})

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SendSignalState(context.Background(), signal.State{})
	}()

	select {
	case <-yellowDone:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("yellow write was stalled by the hung red write")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("SendSignalState() error = %v, want deadline exceeded", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("SendSignalState() did not return after the write timeout")
	}
}

func TestClient_Close(t *testing.T) {
	var c *Client
	c.Close() // nil receiver must not panic

	c = newTestClient(t, Endpoint{BaseURL: "http://10.0.0.30"})
	c.Close()
	c.Close()
}
