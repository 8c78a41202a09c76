package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/leapstack-labs/leaplineage/internal/jsoncodec"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// Defaults for HTTPConfig.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 3
	DefaultBackoff    = 200 * time.Millisecond

	// EndpointPath is appended to the collector URL.
	EndpointPath = "/api/v1/lineage"
)

// ErrURLRequired is returned by NewHTTPEmitter without a collector URL.
var ErrURLRequired = errors.New("http transport requires a url")

// HTTPConfig configures HTTPEmitter.
type HTTPConfig struct {
	// URL is the collector base URL (required)
	URL string
	// APIKey is sent as a bearer token (optional)
	APIKey string
	// Timeout bounds each attempt (optional, defaults to DefaultTimeout)
	Timeout time.Duration
	// MaxRetries caps retries after the first attempt (optional, defaults to DefaultMaxRetries)
	MaxRetries uint64
	// Backoff is the first retry delay, doubled per retry (optional, defaults to DefaultBackoff)
	Backoff time.Duration
	// Client overrides the HTTP client (optional)
	Client *http.Client
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// HTTPEmitter posts events to an OpenLineage collector.
type HTTPEmitter struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	maxRetries uint64
	backoff    time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// StatusError is returned for a non-2xx collector response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector responded %d: %s", e.StatusCode, e.Body)
}

// NewHTTPEmitter creates an HTTP emitter.
func NewHTTPEmitter(cfg HTTPConfig) (*HTTPEmitter, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}

	e := &HTTPEmitter{
		endpoint:   strings.TrimRight(cfg.URL, "/") + EndpointPath,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		client:     cfg.Client,
		logger:     cfg.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.maxRetries == 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.backoff <= 0 {
		e.backoff = DefaultBackoff
	}
	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// Endpoint returns the URL events are posted to.
func (e *HTTPEmitter) Endpoint() string {
	return e.endpoint
}

// Emit posts ev, retrying network errors and 5xx responses with exponential backoff.
func (e *HTTPEmitter) Emit(ctx context.Context, ev *core.LineageEvent) error {
	body, err := jsoncodec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode lineage event: %w", err)
	}

	backoff := retry.WithMaxRetries(e.maxRetries, retry.NewExponential(e.backoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := e.post(ctx, body)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			return err
		}
		e.logger.Debug("lineage post failed, retrying",
			"attempt", attempt, "run_id", ev.Run.RunID, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("failed to post lineage event after %d attempt(s): %w", attempt, err)
	}
	return nil
}

func (e *HTTPEmitter) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}
