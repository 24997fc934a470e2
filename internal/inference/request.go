package inference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/genserve/internal/logits"
)

// GenerationConfigJSON is the optional sampling defaults file shipped with
// Hugging Face model exports.
const GenerationConfigJSON = "generation_config.json"

// Library defaults applied when generation_config.json leaves a knob unset.
const (
	defaultTemperature = 1.0
	defaultTopK        = 50
	defaultTopP        = 1.0
)

// GenDefaults are the model's own generation defaults. Nil fields were not
// present in generation_config.json.
type GenDefaults struct {
	DoSample          *bool    `json:"do_sample"`
	Temperature       *float64 `json:"temperature"`
	TopK              *int     `json:"top_k"`
	TopP              *float64 `json:"top_p"`
	RepetitionPenalty *float64 `json:"repetition_penalty"`
	EOSTokenIDs       tokenIDs `json:"eos_token_id"`
}

// tokenIDs decodes either a single id or a list of ids.
type tokenIDs []int

func (t *tokenIDs) UnmarshalJSON(b []byte) error {
	var one *int
	if err := json.Unmarshal(b, &one); err == nil {
		if one != nil {
			*t = tokenIDs{*one}
		}
		return nil
	}
	var many []int
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// ParseGenerationConfig decodes generation_config.json contents.
func ParseGenerationConfig(b []byte) (GenDefaults, error) {
	var d GenDefaults
	if len(b) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return GenDefaults{}, fmt.Errorf("parse %s: %w", GenerationConfigJSON, err)
	}
	return d, nil
}

// LoadGenerationConfig reads generation_config.json from dir. A missing file
// yields zero defaults (greedy decoding).
func LoadGenerationConfig(dir string) (GenDefaults, error) {
	b, err := os.ReadFile(filepath.Join(dir, GenerationConfigJSON))
	if errors.Is(err, os.ErrNotExist) {
		return GenDefaults{}, nil
	}
	if err != nil {
		return GenDefaults{}, fmt.Errorf("load %s: %w", GenerationConfigJSON, err)
	}
	return ParseGenerationConfig(b)
}

// ResolveSampler merges model defaults with the request overrides. Sampling
// is off unless the model enables it or the request sets a positive
// temperature; without a seed override sampling draws from the clock.
func ResolveSampler(d GenDefaults, req *Request) logits.SamplerConfig {
	cfg := logits.SamplerConfig{
		Temperature:       defaultTemperature,
		TopK:              defaultTopK,
		TopP:              defaultTopP,
		RepetitionPenalty: 1,
	}
	if d.DoSample != nil {
		cfg.DoSample = *d.DoSample
	}
	if d.Temperature != nil {
		cfg.Temperature = float32(*d.Temperature)
	}
	if d.TopK != nil {
		cfg.TopK = *d.TopK
	}
	if d.TopP != nil {
		cfg.TopP = float32(*d.TopP)
	}
	if d.RepetitionPenalty != nil {
		cfg.RepetitionPenalty = float32(*d.RepetitionPenalty)
	}

	if req != nil && req.Temperature != nil {
		if *req.Temperature <= 0 {
			cfg.DoSample = false
		} else {
			cfg.DoSample = true
			cfg.Temperature = float32(*req.Temperature)
		}
	}
	if req != nil && req.Seed != nil {
		cfg.Seed = *req.Seed
	} else {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}
