package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/domain"
)

const (
	DefaultPath      = "/api/mouse"
	defaultTimeout   = 10 * time.Second
	defaultRetryWait = 200 * time.Millisecond
)

var ErrUnexpectedStatus = errors.New("unexpected status code")

type TransportConfig struct {
	BaseURL string        `yaml:"base_url"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
	// RetryMax is zero by default: one attempt, failed batches are dropped.
	RetryMax int `yaml:"retry_max"`
}

type TransportOption func(*Transport)

// WithHTTPClient replaces the pooled client, e.g. with one backed by the
// browser fetch API under js/wasm. A client without a timeout gets the
// configured one.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		t.client.HTTPClient = client
	}
}

// Transport posts a batch as one JSON array.
type Transport struct {
	url    string
	client *retryablehttp.Client
	logger zerolog.Logger
}

func NewTransport(cfg TransportConfig, logger zerolog.Logger, opts ...TransportOption) *Transport {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = defaultRetryWait
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = leveledLogger{logger: logger.With().Str("component", "transport").Logger()}

	t := &Transport{
		url:    strings.TrimRight(cfg.BaseURL, "/") + path,
		client: client,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client.HTTPClient.Timeout <= 0 {
		t.client.HTTPClient.Timeout = timeout
	}
	return t
}

// URL is the endpoint batches are posted to.
func (t *Transport) URL() string {
	return t.url
}

func (t *Transport) Send(ctx context.Context, batch []domain.Event) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.url, body)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	res, err := t.client.Do(req)
	if err != nil {
		if res != nil {
			res.Body.Close()
		}
		return fmt.Errorf("could not send request: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}
	return nil
}

// leveledLogger routes retryablehttp logs through zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
