package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"tileexport/internal/client"
	"tileexport/internal/registry"
	"tileexport/internal/reqstate"
	"tileexport/pkg/api"
)

// MockFetcher implements Fetcher for testing.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, baseURL, path, method string, body, out any) error

	calls []fetchCall
}

type fetchCall struct {
	BaseURL string
	Path    string
	Method  string
	Body    any
}

func (m *MockFetcher) Fetch(ctx context.Context, baseURL, path, method string, body, out any) error {
	m.calls = append(m.calls, fetchCall{BaseURL: baseURL, Path: path, Method: method, Body: body})
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, baseURL, path, method, body, out)
	}
	return nil
}

func validRequest() Request {
	polygon, err := BBox{MinX: 34, MinY: 31, MaxX: 35, MaxY: 32}.Polygon()
	if err != nil {
		panic(err)
	}
	return Request{
		ModelPath:       "/tmp/tilesets/TilesetWithDiscreteLOD",
		TilesetFilename: "tileset.json",
		ModelMetadata: api.ModelMetadata{
			Identifier:   "a0ba5dad-d27f-4b31-9aa3-b8a1b1bb3c2a",
			Title:        "Discrete LOD",
			ProducerName: "IDF",
			SRS:          "4326",
		},
		Geometry: polygon,
	}
}

func TestSubmit_Success(t *testing.T) {
	fetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, baseURL, path, method string, body, out any) error {
			out.(*api.SubmitResponse).ID = "job-1"
			return nil
		},
	}
	errs := registry.New()
	s := New(fetcher, ExportEndpoint("http://models:8080", "/models"), reqstate.New(errs), nil)

	var got Result
	s.Subscribe(func(r Result) { got = r })

	if state := s.Submit(context.Background(), validRequest()); state != reqstate.Done {
		t.Fatalf("expected DONE, got %s", state)
	}
	if errs.HasAny() {
		t.Errorf("expected no registered errors, got %+v", errs.Errors())
	}
	if got.JobID != "job-1" || got.State != reqstate.Done {
		t.Errorf("unexpected result: %+v", got)
	}

	if len(fetcher.calls) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(fetcher.calls))
	}
	call := fetcher.calls[0]
	if call.Method != http.MethodPost || call.BaseURL != "http://models:8080" || call.Path != "/models" {
		t.Errorf("unexpected call: %+v", call)
	}

	payload, ok := call.Body.(api.ExportModelRequest)
	if !ok {
		t.Fatalf("expected ExportModelRequest body, got %T", call.Body)
	}
	if payload.ModelPath != "/tmp/tilesets/TilesetWithDiscreteLOD" || payload.TilesetFilename != "tileset.json" {
		t.Errorf("unexpected primary fields: %+v", payload)
	}
	if payload.Metadata.Identifier != "a0ba5dad-d27f-4b31-9aa3-b8a1b1bb3c2a" || payload.Metadata.Title != "Discrete LOD" {
		t.Errorf("metadata not carried over: %+v", payload.Metadata)
	}

	var geom struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload.Metadata.Geometry, &geom); err != nil || geom.Type != "Polygon" {
		t.Errorf("expected polygon geometry, got %s (%v)", payload.Metadata.Geometry, err)
	}
}

func TestSubmit_PayloadKeepsModelLocationOutOfMetadata(t *testing.T) {
	payload, err := validRequest().ExportPayload()
	if err != nil {
		t.Fatalf("ExportPayload failed: %v", err)
	}

	data, _ := json.Marshal(payload)
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(data, &raw)

	var meta map[string]any
	_ = json.Unmarshal(raw["metadata"], &meta)
	if _, ok := meta["modelPath"]; ok {
		t.Error("modelPath must not be part of metadata")
	}
	if _, ok := meta["identifier"]; !ok {
		t.Error("identifier must be part of metadata")
	}
	if _, ok := meta["classification"]; ok {
		t.Error("empty optional fields must be omitted")
	}
}

func TestSubmit_KnownErrorName(t *testing.T) {
	fetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, baseURL, path, method string, body, out any) error {
			return &client.ResponseError{
				StatusCode: http.StatusConflict,
				Name:       "ERR_DUPLICATE_PATH",
				Message:    "path already exported",
				Request:    client.RequestInfo{Method: method, URL: baseURL + path},
			}
		},
	}
	errs := registry.New()
	s := New(fetcher, ExportEndpoint("http://models", "/models"), reqstate.New(errs), nil)

	if state := s.Submit(context.Background(), validRequest()); state != reqstate.Error {
		t.Fatalf("expected ERROR, got %s", state)
	}
	if !errs.Has(registry.KindDuplicatePath) {
		t.Errorf("expected duplicate path error, got %+v", errs.Errors())
	}
	if errs.Has(registry.KindGeneral) {
		t.Error("general kind must not be registered when the name is known")
	}

	entry := errs.Errors()[0]
	info, ok := entry.Request.(client.RequestInfo)
	if !ok || info.URL != "http://models/models" {
		t.Errorf("expected request context on registered error, got %#v", entry.Request)
	}
}

func TestSubmit_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		err      error
		want     registry.Kind
	}{
		{
			name:     "unknown name on export",
			endpoint: ExportEndpoint("http://m", "/models"),
			err:      &client.ResponseError{StatusCode: 500, Name: "SOMETHING_NEW"},
			want:     registry.KindGeneral,
		},
		{
			name:     "no name on load",
			endpoint: LoadEndpoint("http://m", "/ingestions"),
			err:      &client.ResponseError{StatusCode: 500},
			want:     registry.KindGeneral,
		},
		{
			name:     "transport failure",
			endpoint: ExportEndpoint("http://m", "/models"),
			err:      &client.TransportError{Err: errors.New("connection refused")},
			want:     registry.KindGeneral,
		},
		{
			name:     "plain error on load",
			endpoint: LoadEndpoint("http://m", "/ingestions"),
			err:      errors.New("boom"),
			want:     registry.KindGeneral,
		},
		{
			name:     "save failure named by export backend",
			endpoint: ExportEndpoint("http://m", "/models"),
			err:      &client.ResponseError{StatusCode: 500, Name: "ERR_SAVE_EXPORT_STATUS"},
			want:     registry.KindSavingExport,
		},
		{
			name:     "save failure named by load backend",
			endpoint: LoadEndpoint("http://m", "/ingestions"),
			err:      &client.ResponseError{StatusCode: 500, Name: "ERR_SAVE_LOAD_STATUS"},
			want:     registry.KindSavingLoad,
		},
		{
			name:     "bbox too large on load",
			endpoint: LoadEndpoint("http://m", "/ingestions"),
			err:      &client.ResponseError{StatusCode: 400, Name: "ERR_BBOX_AREA_TOO_LARGE"},
			want:     registry.KindBBoxTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &MockFetcher{
				FetchFunc: func(ctx context.Context, baseURL, path, method string, body, out any) error {
					return tt.err
				},
			}
			errs := registry.New()
			state := reqstate.New(errs)
			s := New(fetcher, tt.endpoint, state, nil)

			var got Result
			s.Subscribe(func(r Result) { got = r })

			s.Submit(context.Background(), validRequest())

			if !errs.Has(tt.want) {
				t.Errorf("expected %s, got %+v", tt.want, errs.Errors())
			}
			if got := errs.Errors(); len(got) != 1 {
				t.Errorf("expected exactly one registered error, got %+v", got)
			}
			if got.Kind != tt.want || got.Err == nil {
				t.Errorf("unexpected result: %+v", got)
			}
			if state.State() != reqstate.Error {
				t.Errorf("expected ERROR, got %s", state.State())
			}
		})
	}
}

func TestSubmit_LoadPayload(t *testing.T) {
	fetcher := &MockFetcher{}
	s := New(fetcher, LoadEndpoint("http://m", "/ingestions"), reqstate.New(registry.New()), nil)

	s.Submit(context.Background(), validRequest())

	payload, ok := fetcher.calls[0].Body.(api.IngestModelRequest)
	if !ok {
		t.Fatalf("expected IngestModelRequest body, got %T", fetcher.calls[0].Body)
	}
	if payload.Identifier != "a0ba5dad-d27f-4b31-9aa3-b8a1b1bb3c2a" || payload.TilesetFilename != "tileset.json" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestSubmit_InvalidGeometryIsSoftFailure(t *testing.T) {
	fetcher := &MockFetcher{}
	errs := registry.New()
	s := New(fetcher, ExportEndpoint("http://m", "/models"), reqstate.New(errs), nil)

	req := validRequest()
	req.Geometry = "{not json"

	if state := s.Submit(context.Background(), req); state != reqstate.Error {
		t.Fatalf("expected ERROR, got %s", state)
	}
	if len(fetcher.calls) != 0 {
		t.Error("nothing should be sent when the payload cannot be built")
	}
	if !errs.Has(registry.KindGeneral) {
		t.Error("expected general kind to be registered")
	}
}

func TestSubmit_RestartsFromPending(t *testing.T) {
	fail := true
	fetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, baseURL, path, method string, body, out any) error {
			if fail {
				return errors.New("boom")
			}
			return nil
		},
	}
	state := reqstate.New(registry.New())
	s := New(fetcher, ExportEndpoint("http://m", "/models"), state, nil)

	var seen []reqstate.State
	state.Subscribe(func(tr reqstate.Transition) { seen = append(seen, tr.To) })

	s.Submit(context.Background(), validRequest())
	fail = false
	s.Submit(context.Background(), validRequest())

	want := []reqstate.State{reqstate.Pending, reqstate.Error, reqstate.Pending, reqstate.Done}
	if len(seen) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestSubmit_ResultListenersInOrder(t *testing.T) {
	s := New(&MockFetcher{}, ExportEndpoint("http://m", "/models"), reqstate.New(registry.New()), nil)

	var order []string
	s.Subscribe(func(Result) { order = append(order, "history") })
	remove := s.Subscribe(func(Result) { order = append(order, "removed") })
	s.Subscribe(func(Result) { order = append(order, "printer") })
	remove()

	s.Submit(context.Background(), validRequest())

	if len(order) != 2 || order[0] != "history" || order[1] != "printer" {
		t.Errorf("unexpected listener order: %v", order)
	}
}
