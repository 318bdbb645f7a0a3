// Package api implements the HTTP surface for detections.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/dermnet/dermnet-go/internal/conf"
	"github.com/dermnet/dermnet-go/internal/detection"
	"github.com/dermnet/dermnet-go/internal/errors"
	"github.com/dermnet/dermnet-go/internal/logging"
	"github.com/dermnet/dermnet-go/internal/observability"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Service  detection.Service
	Settings *conf.Settings

	apiLogger      *slog.Logger
	detectionCache *cache.Cache
	metrics        *observability.Metrics
	authMiddleware echo.MiddlewareFunc
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithAuthMiddleware sets the authentication middleware for the controller.
// The middleware must either set the caller identity in the request context
// or reject the request.
func WithAuthMiddleware(mw echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.authMiddleware = mw
	}
}

// New creates a new API controller and registers its routes on e.
func New(e *echo.Echo, svc detection.Service, settings *conf.Settings, m *observability.Metrics, opts ...Option) *Controller {
	apiLogger := logging.ForService("api")
	if apiLogger == nil {
		apiLogger = slog.Default().With("service", "api")
	}

	c := &Controller{
		Echo:           e,
		Service:        svc,
		Settings:       settings,
		apiLogger:      apiLogger,
		detectionCache: cache.New(time.Minute, 5*time.Minute),
		metrics:        m,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.authMiddleware == nil {
		c.authMiddleware = HeaderIdentity()
	}

	c.Group = e.Group("/api/v1")
	c.initDetectionRoutes()

	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	e.GET("/healthz", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return c
}

// successResponse is the envelope for all successful responses.
type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// failResponse is the envelope for request-level (4xx) failures.
type failResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is the envelope for server-side (5xx) failures. Internal
// detail stays out of the body, the correlation id ties the response to logs.
type errorResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// Fail reports a request-level failure with the given status code and message.
func (c *Controller) Fail(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, failResponse{Status: "fail", Message: message})
}

// HandleError maps an error from the service layer to a response. Validation
// failures become 4xx with a descriptive message, classifier failures become
// 502, everything else is a generic 500 without internal detail.
func (c *Controller) HandleError(ctx echo.Context, err error, operation string) error {
	if code, message, ok := userFacing(err); ok {
		return c.Fail(ctx, code, message)
	}

	correlationID := generateCorrelationID()
	code := http.StatusInternalServerError
	message := "Something went wrong while processing the request."
	if errors.Is(err, errors.ErrUpstreamUnavailable) ||
		errors.Is(err, errors.ErrUpstreamStatus) ||
		errors.Is(err, errors.ErrMalformedResponse) {
		code = http.StatusBadGateway
		message = "The classification service could not process the request."
	}

	c.apiLogger.Error("API error",
		"correlation_id", correlationID,
		"operation", operation,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
		"code", code,
		"error", err)

	return ctx.JSON(code, errorResponse{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
	})
}

// userFacing maps validation sentinels to 4xx responses.
func userFacing(err error) (code int, message string, ok bool) {
	switch {
	case errors.Is(err, errors.ErrMissingFile):
		return http.StatusBadRequest, "Please upload an image file.", true
	case errors.Is(err, errors.ErrInvalidFileType):
		return http.StatusBadRequest, "Not an image! Please upload only images.", true
	case errors.Is(err, errors.ErrImageDecode):
		return http.StatusBadRequest, "The uploaded file could not be decoded as an image.", true
	case errors.Is(err, errors.ErrMissingPrediction):
		return http.StatusBadRequest, "Missing 'prediction' in request body", true
	default:
		return 0, "", false
	}
}

// generateCorrelationID creates a unique identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
