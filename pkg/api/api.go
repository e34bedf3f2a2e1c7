// Package api serves the OCR pipeline over HTTP.
//
// Routes:
//
//	POST /v1/ocr?format=json|text|hocr|pdf   multipart field "file", or the raw document as the body
//	GET  /healthz                             liveness probe, answers "ok"
//
// Every response carries an X-Request-ID header, taken from the request when the client
// sent one. Failures are reported as {"error":{"code":...,"message":...,"page":...}}.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/pdfocr"
	"github.com/gardar/ocrmux/pkg/result"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// DefaultMaxUploadBytes is used when Options.MaxUploadBytes is zero.
const DefaultMaxUploadBytes = 32 << 20

// Processor runs a document through the pipeline. *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, data []byte, mediaType string) (*result.DocumentResult, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string // CORS origins, none allows no cross-origin requests
	MaxUploadBytes int64    // Request body limit
	DPI            int      // Resolution pages are rasterized at, for PDF output
	Language       string   // Declared language of hOCR and PDF output
	PDF            pdfocr.Config
	Logger         log.Logger
}

// Server is the HTTP front of a Processor.
type Server struct {
	proc    Processor
	opts    Options
	router  *mux.Router
	handler http.Handler
	logger  log.Logger
}

// New returns a Server handling requests with proc.
func New(proc Processor, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.Default
	}
	if opts.PDF.LayerName == "" {
		opts.PDF = pdfocr.DefaultConfig()
		opts.PDF.Logger = opts.Logger
	}

	s := &Server{
		proc:   proc,
		opts:   opts,
		router: mux.NewRouter(),
		logger: opts.Logger,
	}
	s.router.Use(s.withRequestID)
	s.router.HandleFunc("/v1/ocr", s.handleOCR).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader, "Content-Type", "Content-Length"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler { return s.handler }

type ctxKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestID returns the ID of the request ctx belongs to.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
