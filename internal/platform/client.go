// Package platform holds the HTTP client shared by the per-platform harvesters and
// the classification of its failures into harvest error categories.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/pkg/utils"
)

// ErrUnexpectedStatusCode indicates an HTTP response with a non-2xx status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

var tracer = otel.Tracer("harvester/platform")

// StatusError carries the status of a failed response.
type StatusError struct {
	URL        string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrUnexpectedStatusCode, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatusCode
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Logger    *logger.Logger
	Headers   map[string]string
	Query     map[string]string
	Platform  string
	BaseURL   string
	Retry     config.RetryPolicy
	RateLimit config.RateLimitConfig
}

// Client issues JSON requests against one platform API with retries, a rate limit
// and a span per request.
type Client struct {
	http     *resty.Client
	log      *logger.Logger
	platform string
	retry    config.RetryPolicy
}

// NewClient creates a client for one platform.
func NewClient(opts ClientOptions) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	retry := opts.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	httpClient := resty.New()
	httpClient.SetLogger(restyLogger{log: log})
	httpClient.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	httpClient.SetTimeout(retry.GetTimeout())

	for key, values := range utils.NewHTTPHelper().BuildHeaders(opts.Headers) {
		httpClient.SetHeader(key, values[0])
	}

	if len(opts.Query) > 0 {
		httpClient.SetQueryParams(opts.Query)
	}

	if opts.RateLimit.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RateLimit.RequestsPerSecond), max(opts.RateLimit.Burst, 1))
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return &Client{
		http:     httpClient,
		log:      log.With("platform", opts.Platform),
		platform: opts.Platform,
		retry:    retry,
	}
}

// Platform returns the platform name the client was created for.
func (c *Client) Platform() string {
	return c.platform
}

// GetJSON issues a GET and decodes the JSON body into out. path is resolved against
// the base URL unless it is absolute, so next links returned by an API can be
// followed as they are.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// PostFormJSON issues a form POST with basic auth and decodes the JSON body into out.
func (c *Client) PostFormJSON(ctx context.Context, path string, form url.Values, username, password string, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, func(req *resty.Request) {
		req.SetFormDataFromValues(form)
		req.SetBasicAuth(username, password)
	}, out)
}

// PostJSON posts an already encoded JSON body with extra headers and decodes the
// response into out, which may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte, headers map[string]string, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json")
		req.SetHeaders(headers)
		req.SetBody(body)
	}, out)
}

// SetAuthToken sets a bearer token on every following request.
func (c *Client) SetAuthToken(token string) {
	c.http.SetAuthToken(token)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, prepare func(*resty.Request), out any) (err error) {
	ctx, span := tracer.Start(ctx, "http "+method, trace.WithAttributes(
		attribute.String("platform", c.platform),
		attribute.String("http.path", path),
	))

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if delay := c.retry.GetRetryDelay(attempt); delay > 0 {
			if sleepErr := sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		}

		req := c.http.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParamsFromValues(query)
		}

		if prepare != nil {
			prepare(req)
		}

		resp, reqErr := req.Execute(method, path)
		span.SetAttributes(attribute.Int("http.attempts", attempt))

		if reqErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, c.retry.MaxAttempts, reqErr)
			c.log.Debug("request failed", "path", path, "attempt", attempt, "error", reqErr)

			continue
		}

		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

		if !resp.IsSuccess() {
			lastErr = &StatusError{
				URL:        resp.Request.URL,
				StatusCode: resp.StatusCode(),
				Body:       utils.NewStringHelper().TruncateString(resp.String(), 512),
			}

			if !isRetryableStatus(resp.StatusCode()) {
				return lastErr
			}

			c.log.Debug("retryable status", "path", path, "attempt", attempt, "status", resp.StatusCode())

			continue
		}

		if out == nil {
			return nil
		}

		if decodeErr := json.Unmarshal(resp.Body(), out); decodeErr != nil {
			return fmt.Errorf("decode %s response: %w", path, decodeErr)
		}

		return nil
	}

	return lastErr
}

// restyLogger routes resty's own diagnostics into the harvester log.
type restyLogger struct {
	log *logger.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}

	return statusCode >= http.StatusInternalServerError
}

// isUnavailableStatus reports statuses meaning the requested entity cannot be read at all.
func isUnavailableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	}

	return false
}

// Classify maps a client error for entity onto the harvest error categories.
// Responses saying the entity is missing or forbidden become EntityUnavailableError.
// Everything else is returned unchanged and treated as transient by the caller.
func Classify(platform, entity string, err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && isUnavailableStatus(statusErr.StatusCode) {
		return harvesterr.Unavailable(platform, entity, err)
	}

	return err
}
