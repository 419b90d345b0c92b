package exporter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"tileexport/internal/notify"
	"tileexport/internal/registry"
	"tileexport/internal/reqstate"
	"tileexport/pkg/api"
)

// Fetcher sends one request and decodes the response into out.
// Errors may implement ErrorName() string to carry the backend error kind.
type Fetcher interface {
	Fetch(ctx context.Context, baseURL, path, method string, body, out any) error
}

// Endpoint describes where a submission goes and how its body is shaped.
type Endpoint struct {
	Name    string
	BaseURL string
	Path    string
	Payload func(Request) (any, error)
}

// ExportEndpoint is the POST /models variant.
func ExportEndpoint(baseURL, path string) Endpoint {
	return Endpoint{
		Name:    "export",
		BaseURL: baseURL,
		Path:    path,
		Payload: func(r Request) (any, error) {
			return r.ExportPayload()
		},
	}
}

// LoadEndpoint is the POST /ingestions variant.
func LoadEndpoint(baseURL, path string) Endpoint {
	return Endpoint{
		Name:    "load",
		BaseURL: baseURL,
		Path:    path,
		Payload: func(r Request) (any, error) {
			return r.IngestPayload()
		},
	}
}

// Result is delivered to subscribers after every submission.
type Result struct {
	Endpoint string
	Request  Request
	State    reqstate.State
	JobID    string
	Kind     registry.Kind // Set when State is Error
	Err      error
}

// Submitter runs the submission flow for one endpoint.
type Submitter struct {
	fetch    Fetcher
	endpoint Endpoint
	state    *reqstate.Tracker
	logger   *slog.Logger
	counter  metric.Int64Counter

	listeners notify.List[Result]
}

// New creates a Submitter. state must be dedicated to this endpoint.
func New(fetch Fetcher, endpoint Endpoint, state *reqstate.Tracker, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := otel.Meter("exportctl-exporter").Int64Counter("exportctl.submissions",
		metric.WithDescription("Submissions by endpoint and outcome"))
	if err != nil {
		logger.Warn("Failed to register metric", "name", "exportctl.submissions", "error", err)
	}

	return &Submitter{
		fetch:    fetch,
		endpoint: endpoint,
		state:    state,
		logger:   logger,
		counter:  counter,
	}
}

// Subscribe registers fn for every submission result, called in
// subscription order. The returned func removes it.
func (s *Submitter) Subscribe(fn func(Result)) func() {
	return s.listeners.Add(fn)
}

// Submit posts req and returns the resulting state, Done or Error.
// Failures are registered through the tracker and never returned.
func (s *Submitter) Submit(ctx context.Context, req Request) reqstate.State {
	s.state.Begin()
	res := Result{Endpoint: s.endpoint.Name, Request: req}

	body, err := s.endpoint.Payload(req)
	if err == nil {
		var out api.SubmitResponse
		err = s.fetch.Fetch(ctx, s.endpoint.BaseURL, s.endpoint.Path, http.MethodPost, body, &out)
		res.JobID = out.ID
	}

	if err != nil {
		res.Kind = kindOf(err)
		res.Err = err
		s.logger.Warn("submission failed", "endpoint", s.endpoint.Name, "kind", res.Kind, "error", err)
		s.state.Fail(registry.InternalError{Kind: res.Kind, Request: failedRequest(err)})
		res.State = reqstate.Error
	} else {
		s.logger.Info("submission accepted", "endpoint", s.endpoint.Name, "job_id", res.JobID)
		s.state.Succeed()
		res.State = reqstate.Done
	}

	if s.counter != nil {
		s.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", s.endpoint.Name),
			attribute.String("state", string(res.State)),
		))
	}

	s.listeners.Notify(res)
	return res.State
}

// kindOf maps the backend error name to a kind. Failures without a known
// name, transport errors included, are unclassified.
func kindOf(err error) registry.Kind {
	var named interface{ ErrorName() string }
	if errors.As(err, &named) {
		if kind, ok := registry.ParseKind(named.ErrorName()); ok {
			return kind
		}
	}
	return registry.KindGeneral
}

func failedRequest(err error) any {
	var re interface{ FailedRequest() any }
	if errors.As(err, &re) {
		return re.FailedRequest()
	}
	return nil
}
