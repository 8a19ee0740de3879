package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxResponseBodySize = 1 << 20 // 1MB

	// DefaultHTTPTimeout bounds each status request.
	DefaultHTTPTimeout = 5 * time.Second
)

// Response holds the result of one status request.
//
// Response captures the body (limited to 1MB), status code, latency, and
// any transport error.
type Response struct {
	Body       []byte
	StatusCode int
	Latency    time.Duration
	Error      error
}

// HTTP reads the presence label from an HTTP endpoint.
type HTTP struct {
	url        string
	headers    map[string]string
	timeout    time.Duration
	extractor  Extractor
	httpClient *http.Client
}

// HTTPOption configures an [HTTP] source.
type HTTPOption func(*HTTP) error

// WithHeaders adds request headers as key-value pairs.
func WithHeaders(keyValues ...string) HTTPOption {
	return func(h *HTTP) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			h.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		h.timeout = d
		return nil
	}
}

// WithExtractor sets how the label is pulled from the response.
// Defaults to [Default].
func WithExtractor(e Extractor) HTTPOption {
	return func(h *HTTP) error {
		if e == nil {
			return errors.New("extractor cannot be nil")
		}
		h.extractor = e
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		h.httpClient = c
		return nil
	}
}

// NewHTTP creates an [HTTP] source polling rawURL with GET.
func NewHTTP(rawURL string, opts ...HTTPOption) (*HTTP, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("URL must have a scheme (http:// or https://)")
	}

	h := &HTTP{
		url:        rawURL,
		headers:    make(map[string]string),
		timeout:    DefaultHTTPTimeout,
		extractor:  Default,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// URL returns the polled URL.
func (h *HTTP) URL() string {
	return h.url
}

// CurrentStatus fetches the URL and extracts the label.
//
// Transport failures and non-2xx responses are errors. A 2xx response from
// which no label can be extracted yields "" and no error.
func (h *HTTP) CurrentStatus(ctx context.Context) (string, error) {
	resp := h.Fetch(ctx)
	if resp.Error != nil {
		return "", resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status source %s returned %d", h.url, resp.StatusCode)
	}
	return strings.TrimSpace(h.extractor(resp.Body, resp.StatusCode)), nil
}

// Fetch performs the request and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field.
func (h *HTTP) Fetch(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}
