package inference

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/genserve/internal/onnx"
	"github.com/samcharles93/genserve/internal/tokenizer"
)

// ModelONNX is the graph file name expected in a model directory.
const ModelONNX = "model.onnx"

// Loader opens a model directory laid out as a Hugging Face ONNX export:
//
//	model.onnx
//	tokenizer.json
//	tokenizer_config.json   (optional)
//	generation_config.json  (optional)
type Loader struct {
	ONNXLibraryPath string
	IntraOpThreads  int
}

// Load opens the tokenizer and model in dir. Everything opened so far is
// closed again when a later step fails.
func (l Loader) Load(dir string) (*LocalEngine, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("model directory is required")
	}
	if st, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	} else if !st.IsDir() {
		return nil, fmt.Errorf("model directory: %s is not a directory", dir)
	}

	var closers []io.Closer
	cleanup := func(err error) (*LocalEngine, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	gen, err := LoadGenerationConfig(dir)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.Load(dir)
	if err != nil {
		return nil, err
	}
	closers = append(closers, tok)

	model, err := onnx.Open(onnx.Options{
		Path:           filepath.Join(dir, ModelONNX),
		LibraryPath:    l.ONNXLibraryPath,
		VocabSize:      tok.VocabSize(),
		IntraOpThreads: l.IntraOpThreads,
	})
	if err != nil {
		return cleanup(err)
	}
	closers = append(closers, model)

	tokCfg := tok.Config()
	return NewLocalEngine(LocalConfig{
		Tokenizer:     tok,
		Model:         model,
		Defaults:      gen,
		StopTokens:    BuildStopTokens(tokCfg, gen),
		SpecialTokens: tokCfg.SpecialTokens,
		Closers:       closers,
	}), nil
}
