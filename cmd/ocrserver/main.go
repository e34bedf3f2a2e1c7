// ocrserver serves the OCR pipeline over HTTP.
//
// Models are loaded once at startup. A missing weight file stops the server before it
// accepts any request.
//
// Usage:
//
//	ocrserver [-config config.yml]
//
// Every setting can also be given through the environment, see package config. The
// most common ones:
//
//	OCRMUX_ADDR          Listen address (default ":8080")
//	OCRMUX_WEIGHTS_DIR   Directory holding detector.onnx, recognizer.onnx and charset.txt
//	OCRMUX_DEVICE        auto, cpu or gpu
//	ALLOWED_ORIGINS      Comma separated CORS origins
//
// Example:
//
//	curl -F file=@invoice.pdf 'http://localhost:8080/v1/ocr?format=text'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gardar/ocrmux/pkg/api"
	"github.com/gardar/ocrmux/pkg/config"
	"github.com/gardar/ocrmux/pkg/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)
	logger := log.Default

	if err := run(cfg, logger); err != nil {
		logger.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := cfg.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := svc.Close(shutdownTimeout); err != nil {
			logger.Warnw("failed to release engines", "error", err)
		}
	}()

	handler := api.New(svc.Pipeline, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		DPI:            svc.Rasterizer.DPI(),
		Language:       cfg.Classical.Language,
		Logger:         logger,
	}).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", cfg.Addr, "origins", cfg.AllowedOrigins)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
