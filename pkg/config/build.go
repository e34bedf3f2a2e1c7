package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gardar/ocrmux/pkg/engine"
	"github.com/gardar/ocrmux/pkg/engine/classical"
	"github.com/gardar/ocrmux/pkg/engine/classical/gosseract"
	"github.com/gardar/ocrmux/pkg/engine/neural"
	"github.com/gardar/ocrmux/pkg/engine/neural/docai"
	"github.com/gardar/ocrmux/pkg/engine/neural/onnx"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/pipeline"
	"github.com/gardar/ocrmux/pkg/raster"
	"github.com/gardar/ocrmux/pkg/weights"
)

// Service holds the long-lived components built from a Config. Models are loaded once
// and shared by every document until Close.
type Service struct {
	Pipeline   *pipeline.Pipeline
	Rasterizer *raster.Rasterizer
	closers    []func() error
}

// Build loads the models and starts the pipeline. A missing weight file fails with a
// MissingWeights error before any document is accepted.
func (c *Config) Build(ctx context.Context, logger log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Default
	}
	if c.Classical.Runner == RunnerGosseract && !gosseract.Enabled {
		return nil, gosseract.ErrNotEnabled
	}
	s := &Service{}
	var engines []engine.Engine

	if c.Neural.Backend != BackendNone {
		e, err := c.neuralEngine(ctx, s, logger)
		if err != nil {
			s.shutdown()
			return nil, err
		}
		engines = append(engines, e)
	}
	if c.Classical.Runner != RunnerNone {
		engines = append(engines, c.classicalEngine())
	}

	s.Rasterizer = raster.New(raster.Options{
		DPI:      c.Raster.DPI,
		MaxPages: c.Raster.MaxPages,
		Timeout:  c.Raster.Timeout,
		Logger:   logger,
	})
	p, err := pipeline.New(c.PipelineConfig(logger), s.Rasterizer, engines...)
	if err != nil {
		s.shutdown()
		return nil, err
	}
	s.Pipeline = p
	logger.Infow("service ready", "engines", p.Engines(), "rasterizer", s.Rasterizer.String())
	return s, nil
}

func (c *Config) neuralEngine(ctx context.Context, s *Service, logger log.Logger) (engine.Engine, error) {
	device, err := neural.ParseDevice(c.Neural.Device)
	if err != nil {
		return nil, err
	}
	agg, err := neural.ParseAggregation(c.Neural.Aggregation)
	if err != nil {
		return nil, err
	}

	var model neural.Model
	switch c.Neural.Backend {
	case BackendONNX:
		ocfg := onnx.Config{
			LibraryPath:    c.Neural.LibraryPath,
			Device:         device,
			DetectorFile:   c.Neural.DetectorFile,
			RecognizerFile: c.Neural.RecognizerFile,
			CharsetFile:    c.Neural.CharsetFile,
			RecHeight:      c.Neural.RecHeight,
			Logger:         logger,
		}
		store, err := weights.Open(c.Neural.WeightsDir, onnx.Files(ocfg)...)
		if err != nil {
			return nil, err
		}
		backend, err := onnx.Load(store, ocfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, backend.Close, onnx.Shutdown)
		model = backend.Model()
	case BackendDocAI:
		m, err := docai.New(ctx, c.Neural.DocAI)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, m.Close)
		model = m
	default:
		return nil, fmt.Errorf("unknown neural backend %q", c.Neural.Backend)
	}

	req := neural.DefaultRequirements
	req.MaxDimension = c.Neural.MaxDimension
	return neural.New(model, neural.Options{Name: c.Neural.Name, Aggregation: agg, Requirements: &req}), nil
}

func (c *Config) classicalEngine() engine.Engine {
	var runner classical.Runner
	switch c.Classical.Runner {
	case RunnerGosseract:
		runner = &gosseract.Runner{PageSegMode: c.Classical.PageSegMode, TessdataPrefix: c.Classical.TessdataPrefix}
	default:
		runner = &classical.CLIRunner{Path: c.Classical.Path, PageSegMode: c.Classical.PageSegMode}
	}
	req := classical.DefaultRequirements
	req.MaxDimension = c.Classical.MaxDimension
	req.Binarize = c.Classical.Binarize
	req.Deskew = c.Classical.Deskew
	return classical.New(runner, classical.Options{Name: c.Classical.Name, Language: c.Classical.Language, Requirements: &req})
}

// Close stops the pipeline, waiting up to timeout for running engine calls, then
// releases the models.
func (s *Service) Close(timeout time.Duration) error {
	var errs []error
	if s.Pipeline != nil {
		errs = append(errs, s.Pipeline.Close(timeout))
	}
	errs = append(errs, s.shutdown())
	return errors.Join(errs...)
}

func (s *Service) shutdown() error {
	var errs []error
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	s.closers = nil
	return errors.Join(errs...)
}
