package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vagangabrain/Optimised-jess/internal/imaging"
)

// Stage is one loaded classifier: a session with pre-bound tensors and its
// label space. Forward passes are serialized by the stage mutex; the
// pre-allocated tensor pair keeps peak memory flat under concurrent load.
type Stage struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  []string
	width   int
	height  int
}

// NewStage loads the graph at modelPath configured for single-threaded,
// sequential, arena-less execution. That trades throughput for a
// predictable, low peak memory on a constrained host.
func NewStage(modelPath string, labels []string, width, height int) (*Stage, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	inputName, outputName, err := graphIONames(modelPath)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to configure session threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to configure session threads: %w", err)
	}
	if err := opts.SetCpuMemArena(false); err != nil {
		return nil, fmt.Errorf("failed to disable memory arena: %w", err)
	}
	if err := opts.SetMemPattern(false); err != nil {
		return nil, fmt.Errorf("failed to disable memory pattern: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(height), int64(width)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		opts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}

	return &Stage{
		session: session,
		input:   input,
		output:  output,
		labels:  labels,
		width:   width,
		height:  height,
	}, nil
}

// graphIONames resolves the graph's real input and output names instead of
// assuming a convention.
func graphIONames(modelPath string) (string, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to inspect %s: %w", modelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", "", fmt.Errorf("%s declares no inputs or outputs", modelPath)
	}
	return inputs[0].Name, outputs[0].Name, nil
}

// InputSize returns the width and height the stage expects.
func (s *Stage) InputSize() (int, int) {
	return s.width, s.height
}

// Classify runs one forward pass and returns the top label with its
// softmax probability.
func (s *Stage) Classify(t *imaging.Tensor) (string, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.input.GetData()
	if len(t.Data) != len(dst) {
		return "", 0, fmt.Errorf("tensor has %d values, stage input expects %d", len(t.Data), len(dst))
	}
	copy(dst, t.Data)

	if err := s.session.Run(); err != nil {
		return "", 0, fmt.Errorf("inference failed: %w", err)
	}

	idx, prob := topClass(s.output.GetData())
	return s.label(idx), prob, nil
}

// label maps a class index to its name, tolerating a mismatched manifest.
func (s *Stage) label(idx int) string {
	if idx < len(s.labels) {
		return s.labels[idx]
	}
	return fmt.Sprintf("unknown_%d", idx)
}

// Close releases the session and its tensors.
func (s *Stage) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}
