package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/maauso/emotion-cli/internal/emotion"
	"github.com/maauso/emotion-cli/internal/feature"
)

// ONNXOptions configures the ONNX Runtime backend.
type ONNXOptions struct {
	LibraryPath string  // onnxruntime shared library; empty uses the runtime default
	InputName   string  // discovered from the model when empty
	OutputName  string  // discovered from the model when empty
	Threads     int     // intra-op threads, 0 lets the runtime decide
	InputShape  []int64 // default [1, 128, 150, 1]
}

// ONNXOpener returns an Opener that creates ONNX Runtime sessions.
func ONNXOpener(opts ONNXOptions) Opener {
	return func(path string) (Model, error) {
		return NewONNXModel(path, opts)
	}
}

var (
	envMu   sync.Mutex
	envRefs int
)

// acquireEnvironment initializes the process-wide runtime on first use.
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

// ONNXModel runs the classifier in-process with ONNX Runtime. Only an
// inference session is created; no training state is loaded.
type ONNXModel struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	inputShape []int64
	closed     bool
}

// NewONNXModel opens the model at path.
func NewONNXModel(path string, opts ONNXOptions) (*ONNXModel, error) {
	if err := acquireEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	m, err := newONNXSession(path, opts)
	if err != nil {
		_ = releaseEnvironment()
		return nil, err
	}
	return m, nil
}

func newONNXSession(path string, opts ONNXOptions) (*ONNXModel, error) {
	inputName, outputName := opts.InputName, opts.OutputName
	if inputName == "" || outputName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(path)
		if err != nil {
			return nil, fmt.Errorf("inspect model: %w", err)
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			return nil, fmt.Errorf("model has %d inputs and %d outputs", len(inputs), len(outputs))
		}
		if inputName == "" {
			inputName = inputs[0].Name
		}
		if outputName == "" {
			outputName = outputs[0].Name
		}
	}

	inputShape := opts.InputShape
	if len(inputShape) == 0 {
		inputShape = feature.InputShape(feature.DefaultConfig())
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, emotion.NumClasses))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	var sessionOpts *ort.SessionOptions
	if opts.Threads > 0 {
		sessionOpts, err = ort.NewSessionOptions()
		if err != nil {
			_ = inputTensor.Destroy()
			_ = outputTensor.Destroy()
			return nil, fmt.Errorf("session options: %w", err)
		}
		defer func() { _ = sessionOpts.Destroy() }()
		if err := sessionOpts.SetIntraOpNumThreads(opts.Threads); err != nil {
			_ = inputTensor.Destroy()
			_ = outputTensor.Destroy()
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	sess, err := ort.NewAdvancedSession(path,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		sessionOpts)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ONNXModel{
		session:    sess,
		input:      inputTensor,
		output:     outputTensor,
		inputShape: inputShape,
	}, nil
}

// Infer implements Model.
func (m *ONNXModel) Infer(ctx context.Context, t feature.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if err := t.CheckShape(m.inputShape); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	copy(m.input.GetData(), t.Data)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}

	data := m.output.GetData()
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close implements Model.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	for _, destroy := range []func() error{m.session.Destroy, m.input.Destroy, m.output.Destroy, releaseEnvironment} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compile-time check that ONNXModel implements Model.
var _ Model = (*ONNXModel)(nil)
