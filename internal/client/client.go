// Package client implements the fetch collaborator used by the status view
// and the submission flow to talk to the job and model services.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"tileexport/pkg/api"
)

// Config holds client settings.
type Config struct {
	Token   string
	Timeout time.Duration
	// RequestRate caps outgoing requests per second; 0 means unlimited.
	RequestRate float64
	Burst       int
}

// Client sends requests to the backend services.
type Client struct {
	http    *resty.Client
	token   string
	limiter *rate.Limiter
}

// New creates a client. Zero values in cfg fall back to defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Client{
		http:  resty.New().SetTimeout(cfg.Timeout),
		token: cfg.Token,
	}
	if cfg.RequestRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.Burst)
	}
	return c
}

// RequestInfo describes a request that failed. It is attached to registered
// errors as opaque context.
type RequestInfo struct {
	Method    string
	URL       string
	RequestID string
}

func (r RequestInfo) String() string {
	return fmt.Sprintf("%s %s (request %s)", r.Method, r.URL, r.RequestID)
}

// ResponseError is returned when the service answered with a non-2xx status.
// Name is the error kind reported in the body, empty if none was sent.
type ResponseError struct {
	StatusCode int
	Name       string
	Message    string
	Request    RequestInfo
}

func (e *ResponseError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("API error (%d) %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// ErrorName returns the error kind reported by the service.
func (e *ResponseError) ErrorName() string { return e.Name }

// FailedRequest returns the request that produced the error.
func (e *ResponseError) FailedRequest() any { return e.Request }

// TransportError is returned when no response was received.
type TransportError struct {
	Request RequestInfo
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s %s failed: %v", e.Request.Method, e.Request.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FailedRequest returns the request that produced the error.
func (e *TransportError) FailedRequest() any { return e.Request }

// Fetch sends method to baseURL+path with body encoded as JSON and decodes a
// successful response into out (which may be nil).
func (c *Client) Fetch(ctx context.Context, baseURL, path, method string, body, out any) error {
	endpoint := joinURL(baseURL, path)
	info := RequestInfo{Method: method, URL: endpoint, RequestID: uuid.NewString()}

	ctx, span := otel.Tracer("exportctl-client").Start(ctx, "fetch "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", endpoint),
			attribute.String("request.id", info.RequestID),
		),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			return &TransportError{Request: info, Err: err}
		}
	}

	var apiErr api.ErrorResponse
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", info.RequestID).
		SetError(&apiErr)
	if c.token != "" {
		req.SetHeader("Authorization", "Bearer "+c.token)
	}
	if body != nil && method != http.MethodGet {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return &TransportError{Request: info, Err: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))

	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		span.SetStatus(codes.Error, apiErr.Name)
		return &ResponseError{
			StatusCode: resp.StatusCode(),
			Name:       apiErr.Name,
			Message:    msg,
			Request:    info,
		}
	}

	return nil
}

// ListJobs sends GET baseURL+path and returns the job list.
func (c *Client) ListJobs(ctx context.Context, baseURL, path string) ([]api.JobResponse, error) {
	var result []api.JobResponse
	if err := c.Fetch(ctx, baseURL, path, http.MethodGet, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func joinURL(base, path string) string {
	if path == "" {
		return strings.TrimRight(base, "/")
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
