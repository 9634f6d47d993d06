package model

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

type ONNXOptions struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// runtime's platform default.
	LibraryPath string
	InputName   string
	OutputName  string
}

// ONNXLoader opens classifier artifacts as ONNX graphs. The scikit-learn
// classifiers are exported with skl2onnx and stored under the bundle's
// classifier file name.
type ONNXLoader struct {
	opts   ONNXOptions
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

func NewONNXLoader(opts ONNXOptions, logger *slog.Logger) *ONNXLoader {
	return &ONNXLoader{opts: opts, logger: logger}
}

func (l *ONNXLoader) Load(path string) (Classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Wrap(errs.KindModelLoad, err, "classifier artifact unavailable")
	}

	if err := l.initEnvironment(); err != nil {
		return nil, errs.Wrap(errs.KindModelLoad, err, "classifier runtime unavailable")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, FeatureLength))
	if err != nil {
		return nil, errs.Wrap(errs.KindModelLoad, err, "failed to create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		inputTensor.Destroy()
		return nil, errs.Wrap(errs.KindModelLoad, err, "failed to create output tensor")
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{l.opts.InputName}, []string{l.opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errs.Wrap(errs.KindModelLoad, err, "failed to create ONNX session")
	}

	l.logger.Debug("classifier loaded", "path", path)

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (l *ONNXLoader) initEnvironment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if l.opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(l.opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize ONNX environment")
	}
	l.initialized = true
	return nil
}

// Close tears down the runtime environment if this loader created it.
func (l *ONNXLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.initialized = false
	return ort.DestroyEnvironment()
}

// ONNXClassifier runs one row at a time through pre-allocated tensors, so
// calls are serialised.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[int64]
	closed       bool
}

func (c *ONNXClassifier) Predict(batch [][]float32) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("classifier is closed")
	}

	out := make([]int64, 0, len(batch))
	for i, row := range batch {
		if len(row) != FeatureLength {
			return nil, fmt.Errorf("row %d: expected %d values, got %d", i, FeatureLength, len(row))
		}
		copy(c.inputTensor.GetData(), row)

		if err := c.session.Run(); err != nil {
			return nil, errors.Wrap(err, "inference failed")
		}
		out = append(out, c.outputTensor.GetData()[0])
	}
	return out, nil
}

func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		return c.session.Destroy()
	}
	return nil
}
