package pipeline

import (
	"fmt"
	"time"

	"github.com/gardar/ocrmux/pkg/log"
)

// Defaults for zero Config fields.
const (
	DefaultMaxDocuments    = 2
	DefaultEngineWorkers   = 4
	DefaultPageParallelism = 4
	DefaultEngineTimeout   = 60 * time.Second
	DefaultRasterTimeout   = 120 * time.Second
)

// Config holds the pipeline limits.
type Config struct {
	MaxDocuments    int           // Documents processed at once, process-wide
	EngineWorkers   int           // Size of the shared engine worker pool
	PageParallelism int           // Pages of one document in flight at once
	EngineTimeout   time.Duration // Per engine call
	RasterTimeout   time.Duration // Per document rasterization
	Merge           MergeConfig
	Logger          log.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = DefaultMaxDocuments
	}
	if c.EngineWorkers <= 0 {
		c.EngineWorkers = DefaultEngineWorkers
	}
	if c.PageParallelism <= 0 {
		c.PageParallelism = DefaultPageParallelism
	}
	if c.EngineTimeout <= 0 {
		c.EngineTimeout = DefaultEngineTimeout
	}
	if c.RasterTimeout <= 0 {
		c.RasterTimeout = DefaultRasterTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Default
	}
	c.Merge = c.Merge.withDefaults()
	return c
}

// Validate checks the merge constants. Zero limits are replaced by defaults.
func (c Config) Validate() error {
	if err := c.withDefaults().Merge.Validate(); err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}
