// Package onnx runs a causal language model exported to ONNX (for example
// with optimum's "text-generation" task) through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names used by causal-LM exports.
const (
	InputIDs      = "input_ids"
	AttentionMask = "attention_mask"
	PositionIDs   = "position_ids"
	Logits        = "logits"
)

// Options configures Open.
type Options struct {
	// Path is the .onnx graph.
	Path string
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
	// VocabSize is used when the graph leaves the logits width dynamic.
	VocabSize int
	// IntraOpThreads bounds ONNX Runtime's intra-op pool; 0 keeps its default.
	IntraOpThreads int
}

var (
	envMu   sync.Mutex
	envRefs int
)

// Model is a loaded ONNX causal LM. It recomputes the full sequence on every
// Forward call; graphs with past_key_values inputs are rejected.
type Model struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	vocab   int64
}

// Open initialises the runtime environment (shared across models) and loads
// the graph at opts.Path.
func Open(opts Options) (*Model, error) {
	if opts.Path == "" {
		return nil, errors.New("onnx: model path is required")
	}
	if err := acquireEnv(opts.LibraryPath); err != nil {
		return nil, err
	}
	m, err := open(opts)
	if err != nil {
		releaseEnv()
		return nil, err
	}
	return m, nil
}

func open(opts Options) (*Model, error) {
	ins, outs, err := ort.GetInputOutputInfo(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("onnx: inspect %s: %w", opts.Path, err)
	}

	var inputs []string
	for _, in := range ins {
		switch in.Name {
		case InputIDs, AttentionMask, PositionIDs:
			inputs = append(inputs, in.Name)
		default:
			return nil, fmt.Errorf("onnx: unsupported graph input %q (export without past key values)", in.Name)
		}
	}
	if !slices.Contains(inputs, InputIDs) {
		return nil, fmt.Errorf("onnx: graph has no %q input", InputIDs)
	}

	vocab := int64(opts.VocabSize)
	found := false
	for _, out := range outs {
		if out.Name != Logits {
			continue
		}
		found = true
		if dims := out.Dimensions; len(dims) == 3 && dims[2] > 0 {
			vocab = dims[2]
		}
	}
	if !found {
		return nil, fmt.Errorf("onnx: graph has no %q output", Logits)
	}
	if vocab <= 0 {
		return nil, errors.New("onnx: vocabulary size unknown")
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer so.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := so.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("onnx: set threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(opts.Path, inputs, []string{Logits}, so)
	if err != nil {
		return nil, fmt.Errorf("onnx: load %s: %w", opts.Path, err)
	}
	return &Model{session: session, inputs: inputs, vocab: vocab}, nil
}

// VocabSize reports the logits width.
func (m *Model) VocabSize() int { return int(m.vocab) }

// Forward runs the graph over ids and returns a copy of the logits row for
// the last position.
func (m *Model) Forward(ctx context.Context, ids []int) ([]float32, error) {
	if len(ids) == 0 {
		return nil, errors.New("onnx: empty sequence")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := int64(len(ids))
	shape := ort.NewShape(1, n)

	values := make([]ort.Value, 0, len(m.inputs))
	defer func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}()
	for _, name := range m.inputs {
		data := make([]int64, n)
		for i := range data {
			switch name {
			case InputIDs:
				data[i] = int64(ids[i])
			case AttentionMask:
				data[i] = 1
			case PositionIDs:
				data[i] = int64(i)
			}
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: %s tensor: %w", name, err)
		}
		values = append(values, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, m.vocab))
	if err != nil {
		return nil, fmt.Errorf("onnx: logits tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run(values, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	data := out.GetData()
	last := (n - 1) * m.vocab
	return slices.Clone(data[last : last+m.vocab]), nil
}

func (m *Model) Close() error {
	if m == nil || m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	releaseEnv()
	return err
}

func acquireEnv(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx: initialise runtime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnv() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}
