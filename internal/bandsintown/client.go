// Package bandsintown is a client for the Bandsintown REST API.
package bandsintown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pkordes/tour-manager/internal/config"
	"github.com/pkordes/tour-manager/internal/resilience"
)

var tracer = otel.Tracer("bandsintown")

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// ErrRequest is wrapped by every non-transport failure the API reports.
var ErrRequest = errors.New("bandsintown: request failed")

// Client fetches artist events. Calls go through a circuit breaker and are
// retried with backoff; 4xx responses are not retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	log        *slog.Logger
}

// NewClient creates a Client for baseURL (no trailing slash).
func NewClient(httpClient *http.Client, baseURL, appID string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, log *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		appID:      appID,
		cb:         cb,
		cfg:        cfg,
		log:        log,
	}
}

// NewFromConfig builds a Client with its own breaker, or returns nil when no
// app id is configured.
func NewFromConfig(cfg config.BandsintownConfig, timeout time.Duration, retry resilience.Config, log *slog.Logger) *Client {
	if cfg.AppID == "" {
		return nil
	}
	return NewClient(&http.Client{Timeout: timeout}, cfg.APIURL, cfg.AppID,
		resilience.NewCircuitBreaker("bandsintown"), retry, log)
}

// errorBody is what the API returns instead of an array on failure.
type errorBody struct {
	ErrorMessage string `json:"errorMessage"`
}

// ArtistEvents returns upcoming events for artist. An unknown artist yields
// an empty slice, not an error.
func (c *Client) ArtistEvents(ctx context.Context, artist string) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "Bandsintown.ArtistEvents")
	defer span.End()
	span.SetAttributes(attribute.String("artist.name", artist))

	q := url.Values{}
	q.Set("app_id", c.appID)
	q.Set("date", "upcoming")
	endpoint := fmt.Sprintf("%s/artists/%s/events?%s", c.baseURL, url.PathEscape(artist), q.Encode())

	var events []Event
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, status, err := c.get(ctx, endpoint)
			if err != nil {
				return err
			}

			switch {
			case status == http.StatusNotFound:
				events = []Event{}
				return nil
			case status >= 500:
				return fmt.Errorf("%w: artist %q: status %d", ErrRequest, artist, status)
			case status >= 400:
				return resilience.Permanent(fmt.Errorf("%w: artist %q: status %d: %s", ErrRequest, artist, status, body))
			}

			if err := json.Unmarshal(body, &events); err != nil {
				var eb errorBody
				if jerr := json.Unmarshal(body, &eb); jerr == nil && eb.ErrorMessage != "" {
					c.log.DebugContext(ctx, "bandsintown: artist lookup returned error body",
						"artist", artist, "message", eb.ErrorMessage)
					events = []Event{}
					return nil
				}
				return resilience.Permanent(fmt.Errorf("%w: artist %q: decode: %v", ErrRequest, artist, err))
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bandsintown.Client.ArtistEvents: %w", err)
	}
	return events, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "bandsintown: request failed", "error", err)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, err
	}

	c.log.DebugContext(ctx, "bandsintown: response", "status", resp.StatusCode, "bytes", len(body))
	return body, resp.StatusCode, nil
}
