// Package classifier implements the HTTP client for the external
// classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/dermnet/dermnet-go/internal/conf"
	"github.com/dermnet/dermnet-go/internal/errors"
	"github.com/dermnet/dermnet-go/internal/logging"
	"github.com/dermnet/dermnet-go/internal/observability/metrics"
)

// imageFieldName is the multipart field the classifier expects the image under.
const imageFieldName = "image"

// Result is the prediction payload returned by the classifier. The response
// shape is not fixed, the payload is stored and propagated as-is.
type Result map[string]any

// Confidence extracts the numeric confidence field from the payload.
// Absence or a non-numeric value yields 0, the range is not validated.
func (r Result) Confidence() float64 {
	return numericField(r, "confidence")
}

func numericField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Interface defines what methods a classifier client must have
type Interface interface {
	Classify(ctx context.Context, image []byte) (Result, error)
}

// Client holds the configuration for interacting with the external classifier API.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	debug      bool
	logger     *slog.Logger
	metrics    *metrics.ClassifierMetrics
}

// envelope is the classifier's response wrapper. The actual prediction payload
// is nested under the data field.
type envelope struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// New creates and initializes a new Client from the given settings.
// The HTTP client timeout bounds the classifier call so a hung upstream
// cannot block a request forever.
func New(settings *conf.Settings, classifierMetrics *metrics.ClassifierMetrics) *Client {
	logger := logging.ForService("classifier")
	if logger == nil {
		logger = slog.Default().With("service", "classifier")
	}
	return &Client{
		Endpoint: settings.Classifier.Endpoint,
		HTTPClient: &http.Client{
			Timeout: time.Duration(settings.Classifier.Timeout) * time.Second,
		},
		debug:   settings.Classifier.Debug,
		logger:  logger,
		metrics: classifierMetrics,
	}
}

// Classify sends a normalized JPEG image to the external classifier and
// returns the prediction payload nested under the response's data field.
// A single attempt is made per call, retry policy belongs to the caller.
func (c *Client) Classify(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return nil, errors.Newf("image data is empty").
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	body, contentType, err := buildMultipartBody(image)
	if err != nil {
		return nil, errors.Newf("building multipart request: %w", err).
			Component("classifier").
			Category(errors.CategoryUpstream).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return nil, errors.Newf("creating classifier request: %w", err).
			Component("classifier").
			Category(errors.CategoryUpstream).
			Context("endpoint", c.Endpoint).
			Build()
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "DermNet-Go")

	if c.metrics != nil {
		c.metrics.IncrementRequests()
	}
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveRequestDuration(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, c.handleNetworkError(err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countError("read-body")
		return nil, errors.Newf("%w: reading response body: %v", errors.ErrMalformedResponse, err).
			Component("classifier").
			Category(errors.CategoryResponseParsing).
			Build()
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.countError("status")
		c.logger.Error("Classifier returned error status",
			"endpoint", c.Endpoint,
			"status_code", resp.StatusCode,
			"body_size", len(responseBody))
		return nil, errors.Newf("%w: status code %d", errors.ErrUpstreamStatus, resp.StatusCode).
			Component("classifier").
			Category(errors.CategoryUpstream).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if c.debug {
		c.logger.Debug("Classifier response body", "body", string(responseBody))
	}

	var parsed envelope
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		c.countError("parse")
		return nil, errors.Newf("%w: %v", errors.ErrMalformedResponse, err).
			Component("classifier").
			Category(errors.CategoryResponseParsing).
			Build()
	}
	if parsed.Data == nil {
		c.countError("parse")
		return nil, errors.Newf("%w: missing data field", errors.ErrMalformedResponse).
			Component("classifier").
			Category(errors.CategoryResponseParsing).
			Build()
	}

	c.logger.Info("Classification completed",
		"endpoint", c.Endpoint,
		"duration_ms", time.Since(start).Milliseconds(),
		"confidence", Result(parsed.Data).Confidence())

	return Result(parsed.Data), nil
}

// buildMultipartBody encodes the image as a single multipart/form-data part.
func buildMultipartBody(image []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, imageFieldName,
			fmt.Sprintf("image-%d.jpeg", time.Now().UnixNano())))
	header.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("writing image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// handleNetworkError maps transport-level failures to the upstream-unavailable
// sentinel with a more specific message where possible.
func (c *Client) handleNetworkError(err error) error {
	c.countError("network")

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn("Classifier request timed out", "endpoint", c.Endpoint, "error", err)
		return errors.Newf("%w: request timed out: %v", errors.ErrUpstreamUnavailable, err).
			Component("classifier").
			Category(errors.CategoryNetwork).
			Context("endpoint", c.Endpoint).
			Build()
	}

	c.logger.Error("Classifier request failed", "endpoint", c.Endpoint, "error", err)
	return errors.Newf("%w: %v", errors.ErrUpstreamUnavailable, err).
		Component("classifier").
		Category(errors.CategoryNetwork).
		Context("endpoint", c.Endpoint).
		Build()
}

func (c *Client) countError(reason string) {
	if c.metrics != nil {
		c.metrics.IncrementRequestErrors(reason)
	}
}
