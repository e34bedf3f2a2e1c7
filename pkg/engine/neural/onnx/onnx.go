// Package onnx runs a text detector and a CTC text recognizer with ONNX Runtime.
//
// The detector is a DB style segmentation network with a [1,1,H,W] probability output,
// or a CRAFT network with a [1,H,W,2] region and affinity output. The recognizer emits
// [1,T,C] class scores decoded greedily, class 0 being the CTC blank and class i the
// i-th line of the charset file.
//
// Sessions are created once and shared by all pages; ONNX Runtime allows concurrent
// Run calls on one session.
package onnx

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/gardar/ocrmux/pkg/engine/neural"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/ocrerr"
	"github.com/gardar/ocrmux/pkg/weights"
)

// Default weight file names.
const (
	DetectorFile   = "detector.onnx"
	RecognizerFile = "recognizer.onnx"
	CharsetFile    = "charset.txt"
)

// Config configures Load.
type Config struct {
	LibraryPath    string // onnxruntime shared library, "" uses the platform default
	Device         neural.Device
	DetectorFile   string // "" means DetectorFile, "-" disables detection
	RecognizerFile string
	CharsetFile    string
	Detection      DetectionConfig
	RecHeight      int // Recognizer input height, default 48
	RecMaxWidth    int // Recognizer input width limit, default 1280
	Logger         log.Logger
}

func (c *Config) setDefaults() {
	if c.DetectorFile == "" {
		c.DetectorFile = DetectorFile
	}
	if c.RecognizerFile == "" {
		c.RecognizerFile = RecognizerFile
	}
	if c.CharsetFile == "" {
		c.CharsetFile = CharsetFile
	}
	if c.RecHeight <= 0 {
		c.RecHeight = 48
	}
	if c.RecMaxWidth <= 0 {
		c.RecMaxWidth = 1280
	}
	if c.Logger == nil {
		c.Logger = log.Default
	}
	c.Detection.setDefaults()
}

// Files returns the weight files cfg needs, for weights.Open.
func Files(cfg Config) []string {
	cfg.setDefaults()
	files := []string{cfg.RecognizerFile, cfg.CharsetFile}
	if cfg.DetectorFile != "-" {
		files = append(files, cfg.DetectorFile)
	}
	return files
}

// Backend holds the loaded sessions.
type Backend struct {
	Detector   *Detector // nil when detection is disabled
	Recognizer *Recognizer
	device     neural.Device
}

// Model returns the backend as a neural.Model.
func (b *Backend) Model() neural.TwoStage {
	m := neural.TwoStage{Recognizer: b.Recognizer}
	if b.Detector != nil {
		m.Detector = b.Detector
	}
	return m
}

// Device returns the device the sessions were created on.
func (b *Backend) Device() neural.Device { return b.device }

// Close destroys the sessions.
func (b *Backend) Close() error {
	var errs []error
	if b.Detector != nil {
		errs = append(errs, b.Detector.session.Destroy())
	}
	if b.Recognizer != nil {
		errs = append(errs, b.Recognizer.session.Destroy())
	}
	return errors.Join(errs...)
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment initializes the process-wide ONNX Runtime environment once.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Shutdown releases the ONNX Runtime environment. Call it once, after every Backend
// has been closed.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Load creates the detector and recognizer sessions from store. Missing files yield a
// MissingWeights error. The device is resolved here: auto tries CUDA and falls back to
// the CPU.
func Load(store *weights.Store, cfg Config) (*Backend, error) {
	cfg.setDefaults()
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	charsetData, err := store.Read(cfg.CharsetFile)
	if err != nil {
		return nil, err
	}
	charset := ParseCharset(charsetData)
	if len(charset) == 0 {
		return nil, ocrerr.New(ocrerr.MissingWeights, "charset %s is empty", cfg.CharsetFile)
	}

	b := &Backend{}
	recPath, err := store.Path(cfg.RecognizerFile)
	if err != nil {
		return nil, err
	}
	recSession, dev, err := newSession(recPath, cfg.Device, cfg.Logger)
	if err != nil {
		return nil, err
	}
	b.device = dev
	b.Recognizer = &Recognizer{session: recSession, charset: charset, height: cfg.RecHeight, maxWidth: cfg.RecMaxWidth}

	if cfg.DetectorFile != "-" {
		detPath, err := store.Path(cfg.DetectorFile)
		if err != nil {
			b.Close()
			return nil, err
		}
		detSession, _, err := newSession(detPath, dev, cfg.Logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Detector = &Detector{session: detSession, cfg: cfg.Detection}
	}

	cfg.Logger.Infow("loaded onnx models", "device", b.device, "charset", len(charset), "detector", b.Detector != nil)
	return b, nil
}

// session is the part of ort.DynamicAdvancedSession the backend uses.
type session interface {
	Run(inputs, outputs []ort.Value) error
	Destroy() error
}

// newSession opens path on dev. With DeviceAuto a CUDA failure falls back to the CPU.
func newSession(path string, dev neural.Device, logger log.Logger) (session, neural.Device, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, "", ocrerr.Wrap(ocrerr.MissingWeights, err, "unreadable model %s", path)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, "", ocrerr.New(ocrerr.MissingWeights, "model %s has no inputs or outputs", path)
	}
	in, out := []string{inputs[0].Name}, []string{outputs[0].Name}

	if dev != neural.DeviceCPU {
		s, err := openWithCUDA(path, in, out)
		if err == nil {
			return s, neural.DeviceGPU, nil
		}
		if dev == neural.DeviceGPU {
			return nil, "", fmt.Errorf("gpu requested but CUDA is unavailable: %w", err)
		}
		logger.Infow("CUDA unavailable, using CPU", "model", path, "error", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	s, err := ort.NewDynamicAdvancedSession(path, in, out, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", path, err)
	}
	return s, neural.DeviceCPU, nil
}

func openWithCUDA(path string, in, out []string) (session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}
	defer cuda.Destroy()
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return nil, err
	}
	return ort.NewDynamicAdvancedSession(path, in, out, opts)
}
