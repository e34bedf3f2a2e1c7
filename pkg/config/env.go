package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gardar/ocrmux/pkg/pipeline"
)

// Environment variables read by Load.
const (
	EnvAddr              = "OCRMUX_ADDR"
	EnvDPI               = "OCRMUX_DPI"
	EnvMaxDimension      = "OCRMUX_MAX_DIMENSION"
	EnvOverrideThreshold = "OCRMUX_OVERRIDE_THRESHOLD"
	EnvIoUThreshold      = "OCRMUX_IOU_THRESHOLD"
	EnvOverridePolicy    = "OCRMUX_OVERRIDE_POLICY"
	EnvEngineTimeout     = "OCRMUX_ENGINE_TIMEOUT"
	EnvMaxDocuments      = "OCRMUX_MAX_DOCUMENTS"
	EnvEngineWorkers     = "OCRMUX_ENGINE_WORKERS"
	EnvWeightsDir        = "OCRMUX_WEIGHTS_DIR"
	EnvDevice            = "OCRMUX_DEVICE"
	EnvLanguage          = "OCRMUX_LANGUAGE"
	EnvLogLevel          = "OCRMUX_LOG_LEVEL"
	EnvAllowedOrigins    = "ALLOWED_ORIGINS"
)

type lookupFunc func(key string) (string, bool)

// envReader applies set, non-empty variables and collects parse errors.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) strVar(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) intVar(key string, dst ...*int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	for _, d := range dst {
		*d = n
	}
}

func (r *envReader) floatVar(key string, dst *float64) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

// durationVar accepts Go durations and plain numbers of seconds.
func (r *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (c *Config) applyEnv(lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	r.strVar(EnvAddr, &c.Addr)
	r.strVar(EnvLogLevel, &c.LogLevel)
	r.intVar(EnvDPI, &c.Raster.DPI)
	r.intVar(EnvMaxDimension, &c.Neural.MaxDimension, &c.Classical.MaxDimension)
	r.floatVar(EnvOverrideThreshold, &c.Merge.OverrideThreshold)
	r.floatVar(EnvIoUThreshold, &c.Merge.IoUThreshold)
	r.durationVar(EnvEngineTimeout, &c.Pipeline.EngineTimeout)
	r.intVar(EnvMaxDocuments, &c.Pipeline.MaxDocuments)
	r.intVar(EnvEngineWorkers, &c.Pipeline.EngineWorkers)
	r.strVar(EnvWeightsDir, &c.Neural.WeightsDir)
	r.strVar(EnvDevice, &c.Neural.Device)
	r.strVar(EnvLanguage, &c.Classical.Language)

	if v, ok := r.get(EnvOverridePolicy); ok {
		if p, err := pipeline.ParsePolicy(v); err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", EnvOverridePolicy, err))
		} else {
			c.Merge.Policy = p
		}
	}
	if v, ok := r.get(EnvAllowedOrigins); ok {
		c.AllowedOrigins = splitList(v)
	}
	return errors.Join(r.errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
