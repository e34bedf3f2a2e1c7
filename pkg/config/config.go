// Package config loads the service configuration.
//
// Values come from three layers: built-in defaults, an optional YAML file, and
// environment variables, each overriding the one before it. Durations in YAML are Go
// duration strings such as "60s".
//
//	addr: ":8080"
//	allowed_origins: ["http://localhost:3000"]
//	raster:
//	  dpi: 150
//	merge:
//	  override_threshold: 0.6
//	  iou_threshold: 0.5
//	  policy: region
//	neural:
//	  backend: onnx
//	  weights_dir: /weights
//	classical:
//	  runner: cli
//	  language: eng
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gardar/ocrmux/pkg/engine/neural"
	"github.com/gardar/ocrmux/pkg/engine/neural/docai"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/pipeline"
	"github.com/gardar/ocrmux/pkg/raster"
)

// Neural backends.
const (
	BackendONNX  = "onnx"
	BackendDocAI = "docai"
	BackendNone  = "none"
)

// Classical runners.
const (
	RunnerCLI       = "cli"
	RunnerGosseract = "gosseract"
	RunnerNone      = "none"
)

// DefaultMaxUploadBytes limits request bodies to 32 MiB.
const DefaultMaxUploadBytes = 32 << 20

// Config is the complete service configuration.
type Config struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`

	Raster    RasterConfig         `yaml:"raster"`
	Pipeline  PipelineConfig       `yaml:"pipeline"`
	Merge     pipeline.MergeConfig `yaml:"merge"`
	Neural    NeuralConfig         `yaml:"neural"`
	Classical ClassicalConfig      `yaml:"classical"`
}

// RasterConfig configures page rendering.
type RasterConfig struct {
	DPI      int           `yaml:"dpi"`
	MaxPages int           `yaml:"max_pages"`
	Timeout  time.Duration `yaml:"timeout"` // Whole document, pdftoppm included
}

// PipelineConfig holds the concurrency limits.
type PipelineConfig struct {
	MaxDocuments    int           `yaml:"max_documents"`
	EngineWorkers   int           `yaml:"engine_workers"`
	PageParallelism int           `yaml:"page_parallelism"`
	EngineTimeout   time.Duration `yaml:"engine_timeout"`
}

// NeuralConfig selects and configures the neural engine.
type NeuralConfig struct {
	Backend      string `yaml:"backend"` // onnx, docai or none
	Name         string `yaml:"name"`
	Device       string `yaml:"device"`      // auto, cpu or gpu
	Aggregation  string `yaml:"aggregation"` // min or mean
	MaxDimension int    `yaml:"max_dimension"`

	WeightsDir     string `yaml:"weights_dir"`
	LibraryPath    string `yaml:"library_path"`
	DetectorFile   string `yaml:"detector_file"`
	RecognizerFile string `yaml:"recognizer_file"`
	CharsetFile    string `yaml:"charset_file"`
	RecHeight      int    `yaml:"rec_height"`

	DocAI docai.Config `yaml:"docai"`
}

// ClassicalConfig selects and configures the classical engine.
type ClassicalConfig struct {
	Runner         string `yaml:"runner"` // cli, gosseract or none
	Name           string `yaml:"name"`
	Path           string `yaml:"path"` // tesseract executable
	Language       string `yaml:"language"`
	PageSegMode    int    `yaml:"psm"`
	TessdataPrefix string `yaml:"tessdata_prefix"`
	MaxDimension   int    `yaml:"max_dimension"`
	Binarize       bool   `yaml:"binarize"`
	Deskew         bool   `yaml:"deskew"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		LogLevel:       log.LevelInfo,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Raster: RasterConfig{
			DPI:      raster.DefaultDPI,
			MaxPages: raster.DefaultMaxPages,
			Timeout:  pipeline.DefaultRasterTimeout,
		},
		Pipeline: PipelineConfig{
			MaxDocuments:    pipeline.DefaultMaxDocuments,
			EngineWorkers:   pipeline.DefaultEngineWorkers,
			PageParallelism: pipeline.DefaultPageParallelism,
			EngineTimeout:   pipeline.DefaultEngineTimeout,
		},
		Merge: pipeline.DefaultMergeConfig,
		Neural: NeuralConfig{
			Backend:      BackendONNX,
			Device:       string(neural.DeviceAuto),
			Aggregation:  "min",
			MaxDimension: 2560,
			WeightsDir:   "weights",
		},
		Classical: ClassicalConfig{
			Runner:       RunnerCLI,
			Language:     "eng",
			MaxDimension: 4000,
			Deskew:       true,
		},
	}
}

// Load reads the YAML file at path over the defaults, when path is not empty, then
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	switch c.LogLevel {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.Raster.DPI != 0 && (c.Raster.DPI < raster.MinDPI || c.Raster.DPI > raster.MaxDPI) {
		errs = append(errs, fmt.Errorf("dpi %d is outside [%d,%d]", c.Raster.DPI, raster.MinDPI, raster.MaxDPI))
	}
	if err := c.Merge.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("merge: %w", err))
	}
	errs = append(errs, c.Neural.validate()...)
	errs = append(errs, c.Classical.validate()...)
	if c.Neural.Backend == BackendNone && c.Classical.Runner == RunnerNone {
		errs = append(errs, errors.New("no engine enabled"))
	}
	return errors.Join(errs...)
}

func (n NeuralConfig) validate() []error {
	var errs []error
	if _, err := neural.ParseDevice(n.Device); err != nil {
		errs = append(errs, fmt.Errorf("neural: %w", err))
	}
	if _, err := neural.ParseAggregation(n.Aggregation); err != nil {
		errs = append(errs, fmt.Errorf("neural: %w", err))
	}
	switch n.Backend {
	case BackendONNX:
		if n.WeightsDir == "" {
			errs = append(errs, errors.New("neural: weights_dir is required for the onnx backend"))
		}
	case BackendDocAI:
		if err := n.DocAI.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("neural: %w", err))
		}
	case BackendNone:
	default:
		errs = append(errs, fmt.Errorf("neural: unknown backend %q (want onnx, docai or none)", n.Backend))
	}
	return errs
}

func (c ClassicalConfig) validate() []error {
	switch c.Runner {
	case RunnerCLI, RunnerGosseract, RunnerNone:
		return nil
	}
	return []error{fmt.Errorf("classical: unknown runner %q (want cli, gosseract or none)", c.Runner)}
}

// PipelineConfig returns the pipeline.Config the service runs with.
func (c *Config) PipelineConfig(logger log.Logger) pipeline.Config {
	return pipeline.Config{
		MaxDocuments:    c.Pipeline.MaxDocuments,
		EngineWorkers:   c.Pipeline.EngineWorkers,
		PageParallelism: c.Pipeline.PageParallelism,
		EngineTimeout:   c.Pipeline.EngineTimeout,
		RasterTimeout:   c.Raster.Timeout,
		Merge:           c.Merge,
		Logger:          logger,
	}
}
