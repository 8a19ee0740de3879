package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/statuslight/internal/signal"
)

const (
	// DefaultProbeTimeout bounds the liveness probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds each channel write.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultRedChannel and DefaultYellowChannel are the device's GPIO ids.
	DefaultRedChannel    = "4"
	DefaultYellowChannel = "5"

	// the device only needs the status line, never the body
	maxDrainBytes = 64 << 10
)

// connection pooling limits; a single device never needs more than a handful
const (
	defaultMaxIdleConns        = 4
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 30 * time.Second
)

// Endpoint identifies the device and how long to wait for it.
//
// Endpoint is a value; a [Client] is bound to one Endpoint for its lifetime.
// Reconfiguring the device means building a new Client.
type Endpoint struct {
	// BaseURL is the device root, e.g. "http://10.0.0.30".
	BaseURL string `json:"base_url"`

	// ProbeTimeout bounds the liveness probe. Zero means [DefaultProbeTimeout].
	ProbeTimeout time.Duration `json:"probe_timeout"`

	// WriteTimeout bounds each channel write. Zero means [DefaultWriteTimeout].
	WriteTimeout time.Duration `json:"write_timeout"`

	// RedChannel and YellowChannel are the device-side channel ids.
	RedChannel    string `json:"red_channel"`
	YellowChannel string `json:"yellow_channel"`
}

// WithDefaults returns a copy of e with zero fields filled in and the
// base URL's trailing slash removed.
func (e Endpoint) WithDefaults() Endpoint {
	e.BaseURL = strings.TrimRight(strings.TrimSpace(e.BaseURL), "/")
	if e.ProbeTimeout <= 0 {
		e.ProbeTimeout = DefaultProbeTimeout
	}
	if e.WriteTimeout <= 0 {
		e.WriteTimeout = DefaultWriteTimeout
	}
	if e.RedChannel == "" {
		e.RedChannel = DefaultRedChannel
	}
	if e.YellowChannel == "" {
		e.YellowChannel = DefaultYellowChannel
	}
	return e
}

// Validate checks that the endpoint can be used to build a [Client].
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.BaseURL) == "" {
		return errors.New("device base url is required")
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid device base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("device base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("device base url must include a host")
	}
	if e.RedChannel != "" && e.RedChannel == e.YellowChannel {
		return fmt.Errorf("red and yellow channels must differ, both are %q", e.RedChannel)
	}
	return nil
}

// ChannelID returns the device-side id for a channel.
func (e Endpoint) ChannelID(c signal.Channel) string {
	if c == signal.Red {
		return e.RedChannel
	}
	return e.YellowChannel
}

// ProbeResult describes one liveness probe.
type ProbeResult struct {
	// Alive is true when any HTTP response arrived before the timeout.
	Alive bool

	// StatusCode is the response code, zero if no response arrived.
	StatusCode int

	// Latency is the time the probe took.
	Latency time.Duration

	// Err is the transport error or timeout that made the probe fail.
	Err error
}

// WriteError reports a failed write to a single channel.
type WriteError struct {
	Channel signal.Channel
	URL     string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s channel (%s): %v", e.Channel, e.URL, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Client talks to exactly one device over HTTP.
//
// Timeouts are applied per request via context, not as a global client
// timeout, so the probe and the writes can have different bounds. All
// methods are safe for concurrent use.
type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a [Client] for the endpoint. Zero fields of the endpoint
// take their defaults. Returns an error if the base URL is unusable.
func NewClient(ep Endpoint, logger *slog.Logger) (*Client, error) {
	ep = ep.WithDefaults()
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint: ep,
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		logger: logger.With("device", ep.BaseURL),
	}, nil
}

// Endpoint returns the endpoint the client is bound to, with defaults applied.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Probe issues GET {baseURL}/ bounded by the probe timeout.
//
// Any completed response counts as alive regardless of status code. Probe
// never returns an error; failures are reported in the result and logged.
// A probe cut short by ctx is reported as not alive but is not logged as a
// device failure.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, c.endpoint.ProbeTimeout)
	defer cancel()

	start := time.Now()
	statusCode, err := c.get(probeCtx, c.endpoint.BaseURL+"/")
	result := ProbeResult{
		Alive:      err == nil,
		StatusCode: statusCode,
		Latency:    time.Since(start),
		Err:        err,
	}

	if err != nil {
		// the caller gave up; say nothing about the device
		if ctx.Err() != nil {
			c.logger.Debug("device liveness probe cancelled", "error", err.Error())
			return result
		}
		if errors.Is(err, context.DeadlineExceeded) {
			result.Err = fmt.Errorf("liveness probe timed out after %s: %w", c.endpoint.ProbeTimeout, err)
		}
		c.logger.Warn("device liveness probe failed",
			"error", result.Err.Error(),
			"latency_ms", result.Latency.Milliseconds(),
		)
	}

	return result
}

// CheckLiveness reports whether the device answered the probe in time.
func (c *Client) CheckLiveness(ctx context.Context) bool {
	return c.Probe(ctx).Alive
}

// WriteSignal issues GET {baseURL}/{channelID}/{on|off}.
//
// Only transport-level failure is an error; the response status and body are
// not interpreted. Failures are returned as *[WriteError].
func (c *Client) WriteSignal(ctx context.Context, ch signal.Channel, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	target := fmt.Sprintf("%s/%s/%s", c.endpoint.BaseURL, url.PathEscape(c.endpoint.ChannelID(ch)), state)

	ctx, cancel := context.WithTimeout(ctx, c.endpoint.WriteTimeout)
	defer cancel()

	if _, err := c.get(ctx, target); err != nil {
		return &WriteError{Channel: ch, URL: target, Err: err}
	}
	return nil
}

// SendSignalState writes both channels concurrently and waits for both.
//
// Both writes are always attempted; a failure on one channel never cancels
// or skips the other. The returned error joins every channel failure and is
// nil only if both writes succeeded.
func (c *Client) SendSignalState(ctx context.Context, state signal.State) error {
	errs := make([]error, len(signal.Channels))

	var wg sync.WaitGroup
	for i, ch := range signal.Channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.WriteSignal(ctx, ch, state.On(ch))
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close closes idle connections held by the client.
//
// Safe to call multiple times and on a nil client. The client remains usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// get performs a GET and drains the body so the connection can be reused.
func (c *Client) get(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}
