package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// TransportOptions tunes a venue's HTTP transport.
type TransportOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// Consecutive failures before the breaker opens.
	FailureThreshold uint32
	// How long the breaker stays open before a half-open probe.
	OpenTimeout time.Duration
}

// DefaultTransportOptions returns conservative public-API settings.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
	}
}

// Transport performs rate-limited, circuit-broken JSON GETs against one
// venue's REST API.
type Transport struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status %d: %s", e.Code, e.Body)
}

// NewTransport builds a transport for venue name rooted at baseURL.
func NewTransport(name, baseURL string, opts TransportOptions) *Transport {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}

	threshold := opts.FailureThreshold
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("venue", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Client errors say nothing about venue health.
			var se *StatusError
			if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Transport{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name is the venue name.
func (t *Transport) Name() string { return t.name }

// BaseURL is the REST root.
func (t *Transport) BaseURL() string { return t.baseURL }

// State reports the breaker state.
func (t *Transport) State() gobreaker.State { return t.breaker.State() }

// GetJSON issues GET baseURL+endpoint?params and decodes the body into out.
func (t *Transport) GetJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", t.name, err)
	}

	fullURL := t.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	body, err := t.breaker.Execute(func() (interface{}, error) {
		return t.get(ctx, fullURL)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.name, endpoint, err)
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("%s %s: failed to unmarshal response: %w", t.name, endpoint, err)
	}
	return nil
}

func (t *Transport) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug().Str("venue", t.name).Str("url", fullURL).Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).Msg("Venue request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
