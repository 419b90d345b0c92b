// Package exporter submits model export and ingestion requests and turns
// failures into registry entries.
package exporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tileexport/pkg/api"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// Request is the flat set of fields collected for one submission.
// It is built once and not modified afterwards.
type Request struct {
	ModelPath         string `yaml:"modelPath"`
	TilesetFilename   string `yaml:"tilesetFilename"`
	api.ModelMetadata `yaml:",inline"`

	// Geometry is a GeoJSON object sent verbatim as metadata.geometry.
	Geometry any `yaml:"geometry,omitempty"`
}

// LoadRequest reads a request from a YAML or JSON file.
// Unknown keys are rejected.
func LoadRequest(path string) (Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return Request{}, fmt.Errorf("open request file: %w", err)
	}
	defer f.Close()
	return DecodeRequest(f)
}

// DecodeRequest reads a request from YAML or JSON.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return Request{}, fmt.Errorf("%w: empty request file", ErrInvalidRequest)
		}
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// Validate checks the fields the backend uses to locate the model.
func (r Request) Validate() error {
	if !api.PathPattern.MatchString(r.ModelPath) {
		return fmt.Errorf("%w: model path %q must match %s", ErrInvalidRequest, r.ModelPath, api.PathPattern)
	}
	if !strings.HasSuffix(r.TilesetFilename, ".json") || r.TilesetFilename == ".json" {
		return fmt.Errorf("%w: tileset filename %q must end with .json", ErrInvalidRequest, r.TilesetFilename)
	}
	if !api.PathPattern.MatchString(r.Identifier) {
		return fmt.Errorf("%w: identifier %q must match %s", ErrInvalidRequest, r.Identifier, api.PathPattern)
	}
	return nil
}

// ExportPayload partitions the request into the POST /models body:
// the model location at the top level and everything else as metadata.
func (r Request) ExportPayload() (api.ExportModelRequest, error) {
	meta := r.ModelMetadata
	geometry, err := r.geometryJSON()
	if err != nil {
		return api.ExportModelRequest{}, err
	}
	meta.Geometry = geometry

	return api.ExportModelRequest{
		ModelPath:       r.ModelPath,
		TilesetFilename: r.TilesetFilename,
		Metadata:        meta,
	}, nil
}

// IngestPayload builds the POST /ingestions body.
func (r Request) IngestPayload() (api.IngestModelRequest, error) {
	return api.IngestModelRequest{
		ModelPath:       r.ModelPath,
		TilesetFilename: r.TilesetFilename,
		Identifier:      r.Identifier,
	}, nil
}

func (r Request) geometryJSON() (json.RawMessage, error) {
	switch g := r.Geometry.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return g, nil
	case []byte:
		return json.RawMessage(g), nil
	case string:
		if !json.Valid([]byte(g)) {
			return nil, fmt.Errorf("%w: geometry is not valid JSON", ErrInvalidRequest)
		}
		return json.RawMessage(g), nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(r.Geometry); err != nil {
		return nil, fmt.Errorf("%w: encode geometry: %v", ErrInvalidRequest, err)
	}
	return json.RawMessage(bytes.TrimSpace(buf.Bytes())), nil
}
