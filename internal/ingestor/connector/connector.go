package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-metrics-ingestor/internal/entity"
	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/pkg/logger"

	"golang.org/x/time/rate"
)

// Connector fetches one company's raw payload from one external provider and
// maps it into normalized metric records. A connector returns an empty slice
// for a payload that is present but carries none of the optional fields; it
// returns a classified *apperrors.ConnectorError for everything that went
// wrong, including the provider affirmatively reporting no data.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, ticker string) ([]entity.MetricRecord, error)
}

// transport is the shared HTTP plumbing for JSON providers: one rate limiter
// per provider instance, shared across all concurrent fetches for that
// provider.
type transport struct {
	source         string
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	log            *logger.Logger
}

func newTransport(source string, maxRequestPerMinute int, timeout time.Duration, log *logger.Logger) *transport {
	if maxRequestPerMinute <= 0 {
		maxRequestPerMinute = 60
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	secondsPerRequest := time.Minute / time.Duration(maxRequestPerMinute)
	return &transport{
		source:         source,
		httpClient:     &http.Client{Timeout: timeout},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		log:            log,
	}
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
func (t *transport) getJSON(ctx context.Context, url string, out interface{}) error {
	body, err := t.sendRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", t.source, err)
	}
	return nil
}

func (t *transport) sendRequest(ctx context.Context, method, url string) ([]byte, error) {
	if err := t.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "metrics-ingestor/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.log.ErrorContext(ctx, "Request to provider failed",
			logger.StringField("source", t.source),
			logger.StringField("url", url),
			logger.ErrorField(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.WarnContext(ctx, "Provider returned non-OK status",
			logger.StringField("source", t.source),
			logger.StringField("url", url),
			logger.IntField("status_code", resp.StatusCode))
		return nil, &apperrors.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}
