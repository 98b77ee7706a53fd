// Package verifier looks up deliverability statuses for contact emails
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MaxResponseSize caps how much of a verifier response is read
const MaxResponseSize = 1 << 20

type verifyRequest struct {
	Emails []string `json:"emails"`
}

type verifyResponse struct {
	Results map[string]string `json:"results"`
}

// Client calls an HTTP email verification endpoint
type Client struct {
	url        string
	httpClient *http.Client
	logger     ectologger.Logger
}

// NewClient creates a verifier client for url
func NewClient(url string, timeout time.Duration, logger ectologger.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Verify posts the emails in one request and returns statuses keyed by normalized email.
// Emails the endpoint does not report on are absent from the map.
func (c *Client) Verify(ctx context.Context, emails []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "verifier.Client.Verify")
	defer span.End()

	if len(emails) == 0 {
		return map[string]string{}, nil
	}

	body, err := json.Marshal(verifyRequest{Emails: emails})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if traceParent := tracing.GetTraceParent(ctx); traceParent != "" {
		req.Header.Set("traceparent", traceParent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.VerifierRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VerifierRequestsTotal.WithLabelValues("error").Inc()
		c.logger.WithContext(ctx).WithError(err).Error("Email verification request failed")
		return nil, httperror.NewHTTPError(http.StatusBadGateway, "email verification request failed")
	}
	defer resp.Body.Close()

	metrics.VerifierRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status_code": resp.StatusCode,
			"body":        string(raw),
		}).Error("Email verification returned an error status")
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "email verification returned status %d", resp.StatusCode)
	}

	var decoded verifyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}

	statuses := make(map[string]string, len(decoded.Results))
	for email, status := range decoded.Results {
		if e := normalizers.NormalizeEmail(email); e != "" && status != "" {
			statuses[e] = status
		}
	}
	return statuses, nil
}

// Noop reports no statuses. Used when no verification endpoint is configured.
type Noop struct{}

func (Noop) Verify(_ context.Context, _ []string) (map[string]string, error) {
	return map[string]string{}, nil
}
