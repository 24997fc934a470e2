package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// File names looked up inside a model directory.
const (
	TokenizerJSON       = "tokenizer.json"
	TokenizerConfigJSON = "tokenizer_config.json"
)

// Config is what genserve needs from tokenizer.json and tokenizer_config.json.
type Config struct {
	BOSToken   string
	EOSToken   string
	BOSTokenID int
	EOSTokenID int
	// SpecialTokens lists the literal text of every special added token.
	SpecialTokens []string
}

type hfTokenizerJSON struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

type hfTokenizerConfig struct {
	BOS specialToken `json:"bos_token"`
	EOS specialToken `json:"eos_token"`
}

// specialToken accepts both the plain string and the AddedToken object
// forms used by tokenizer_config.json.
type specialToken string

func (s *specialToken) UnmarshalJSON(b []byte) error {
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		*s = specialToken(plain)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*s = specialToken(obj.Content)
	return nil
}

// ParseConfigBytes resolves special token ids from raw tokenizer.json and
// tokenizer_config.json contents. tokConfig may be empty.
func ParseConfigBytes(tokJSON, tokConfig []byte) (Config, error) {
	cfg := Config{BOSTokenID: -1, EOSTokenID: -1}

	var tj hfTokenizerJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", TokenizerJSON, err)
	}
	ids := make(map[string]int, len(tj.AddedTokens))
	for _, at := range tj.AddedTokens {
		ids[at.Content] = at.ID
		if at.Special {
			cfg.SpecialTokens = append(cfg.SpecialTokens, at.Content)
		}
	}
	lookup := func(tok string) int {
		if tok == "" {
			return -1
		}
		if id, ok := ids[tok]; ok {
			return id
		}
		if id, ok := tj.Model.Vocab[tok]; ok {
			return id
		}
		return -1
	}

	if len(tokConfig) > 0 {
		var tc hfTokenizerConfig
		if err := json.Unmarshal(tokConfig, &tc); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", TokenizerConfigJSON, err)
		}
		cfg.BOSToken = string(tc.BOS)
		cfg.EOSToken = string(tc.EOS)
	}
	cfg.BOSTokenID = lookup(cfg.BOSToken)
	cfg.EOSTokenID = lookup(cfg.EOSToken)
	return cfg, nil
}

// LoadConfig reads the tokenizer files from dir. tokenizer_config.json is
// optional.
func LoadConfig(dir string) (Config, error) {
	tokJSON, err := os.ReadFile(filepath.Join(dir, TokenizerJSON))
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", TokenizerJSON, err)
	}
	tokConfig, err := os.ReadFile(filepath.Join(dir, TokenizerConfigJSON))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", TokenizerConfigJSON, err)
	}
	return ParseConfigBytes(tokJSON, tokConfig)
}
