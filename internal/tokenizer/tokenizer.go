package tokenizer

import (
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/daulet/tokenizers"
)

// ErrInvalidText is returned by Encode for input the tokenizer cannot take.
var ErrInvalidText = errors.New("text cannot be tokenized")

// HF is a Hugging Face tokenizer loaded from tokenizer.json through the
// tokenizers library bindings.
type HF struct {
	tk  *tokenizers.Tokenizer
	cfg Config
}

// Load opens the tokenizer files in a model directory.
func Load(dir string) (*HF, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	tk, err := tokenizers.FromFile(filepath.Join(dir, TokenizerJSON))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", TokenizerJSON, err)
	}
	return &HF{tk: tk, cfg: cfg}, nil
}

// Config returns the special token configuration.
func (t *HF) Config() Config { return t.cfg }

// VocabSize reports the tokenizer vocabulary size including added tokens.
func (t *HF) VocabSize() int { return int(t.tk.VocabSize()) }

// Encode converts text to token ids, adding the model's special tokens
// (for example BOS) the way the tokenizer's post-processor defines them.
func (t *HF) Encode(text string) ([]int, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrInvalidText)
	}
	raw, _ := t.tk.Encode(text, true)
	ids := make([]int, len(raw))
	for i, id := range raw {
		ids[i] = int(id)
	}
	return ids, nil
}

// Decode converts ids back to text. When skipSpecial is set, special
// tokens such as BOS/EOS are dropped.
func (t *HF) Decode(ids []int, skipSpecial bool) (string, error) {
	raw := make([]uint32, len(ids))
	for i, id := range ids {
		if id < 0 {
			return "", fmt.Errorf("decode: negative token id %d at %d", id, i)
		}
		raw[i] = uint32(id)
	}
	return t.tk.Decode(raw, skipSpecial), nil
}

func (t *HF) Close() error {
	if t == nil || t.tk == nil {
		return nil
	}
	err := t.tk.Close()
	t.tk = nil
	return err
}
