// Package docai reads page images with a Google Document AI OCR processor.
//
// The processor is a remote detector and recognizer in one call. Its lines become
// neural.Lines and the confidences of the tokens inside a line become the line's token
// probabilities.
//
// Authentication uses the credentials file from Config, or Application Default
// Credentials (GOOGLE_APPLICATION_CREDENTIALS) when none is given.
package docai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/gardar/ocrmux/pkg/engine/neural"
	"github.com/gardar/ocrmux/pkg/log"
)

// Config identifies the processor.
type Config struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"` // Defaults to <location>-documentai.googleapis.com:443
}

// Validate reports the first missing field.
func (c Config) Validate() error {
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("docai: project_id is required")
	case c.Location == "":
		return fmt.Errorf("docai: location is required")
	case c.ProcessorID == "":
		return fmt.Errorf("docai: processor_id is required")
	}
	return nil
}

// Name returns the processor resource name.
func (c Config) Name() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("%s-documentai.googleapis.com:443", c.Location)
}

type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// Model is a neural.Model backed by a Document AI processor.
type Model struct {
	name    string
	process processFunc
	close   func() error
	logger  log.Logger
}

var _ neural.Model = (*Model)(nil)

// New connects to the processor described by cfg. The client is shared by all calls.
func New(ctx context.Context, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithEndpoint(cfg.endpoint())}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	process := func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return client.ProcessDocument(ctx, req)
	}
	return &Model{name: cfg.Name(), process: process, close: client.Close, logger: log.Default}, nil
}

// Close releases the client connection.
func (m *Model) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}

// Read sends img as a PNG and converts the returned lines to image coordinates.
func (m *Model) Read(ctx context.Context, img image.Image) ([]neural.Line, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page: %w", err)
	}
	req := &documentaipb.ProcessRequest{
		Name: m.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  buf.Bytes(),
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}
	resp, err := m.process(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	doc := resp.GetDocument()
	if doc == nil {
		return nil, fmt.Errorf("empty response from %s", m.name)
	}
	m.debugDump(doc)

	b := img.Bounds()
	return Lines(doc, b.Dx(), b.Dy()), nil
}

// debugDump logs the response as JSON when debug logging is on. Page images are left out.
func (m *Model) debugDump(doc *documentaipb.Document) {
	if log.Level() != "debug" {
		return
	}
	data, err := protojson.Marshal(doc)
	if err != nil {
		m.logger.Debugw("cannot marshal Document AI response", "error", err)
		return
	}
	m.logger.Debugw("Document AI response", "processor", m.name, "json", log.Preview(string(data), 2000))
}
