package inference

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseGenerationConfig(t *testing.T) {
	t.Parallel()

	d, err := ParseGenerationConfig([]byte(`{"_from_model_config":true,"bos_token_id":1,"eos_token_id":2,"transformers_version":"4.34.0"}`))
	if err != nil {
		t.Fatalf("ParseGenerationConfig: %v", err)
	}
	if !slices.Equal(d.EOSTokenIDs, []int{2}) {
		t.Fatalf("eos ids: got %v", d.EOSTokenIDs)
	}
	if d.DoSample != nil {
		t.Fatalf("do_sample should be unset, got %v", *d.DoSample)
	}

	d, err = ParseGenerationConfig([]byte(`{"do_sample":true,"temperature":0.6,"top_p":0.9,"eos_token_id":[128001,128009]}`))
	if err != nil {
		t.Fatalf("ParseGenerationConfig: %v", err)
	}
	if !slices.Equal(d.EOSTokenIDs, []int{128001, 128009}) {
		t.Fatalf("eos ids: got %v", d.EOSTokenIDs)
	}
	if d.DoSample == nil || !*d.DoSample || *d.Temperature != 0.6 {
		t.Fatalf("unexpected sampling defaults: %+v", d)
	}

	if _, err := ParseGenerationConfig([]byte(`{"eos_token_id":"x"}`)); err == nil {
		t.Fatal("expected error for string eos_token_id")
	}
}

func TestLoadGenerationConfigMissingFile(t *testing.T) {
	t.Parallel()

	d, err := LoadGenerationConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadGenerationConfig: %v", err)
	}
	if d.DoSample != nil || len(d.EOSTokenIDs) != 0 {
		t.Fatalf("expected zero defaults, got %+v", d)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, GenerationConfigJSON), []byte(`{"top_k":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGenerationConfig(dir); err == nil {
		t.Fatal("expected error for truncated generation config")
	}
}

func TestResolveSamplerGreedyWithoutDefaults(t *testing.T) {
	t.Parallel()

	cfg := ResolveSampler(GenDefaults{}, &Request{})
	if cfg.DoSample {
		t.Fatal("expected greedy decoding when the model does not enable sampling")
	}
	if cfg.TopK != defaultTopK || cfg.TopP != defaultTopP {
		t.Fatalf("unexpected library defaults: %+v", cfg)
	}
}

func TestResolveSamplerHonoursModelAndOverrides(t *testing.T) {
	t.Parallel()

	doSample := true
	temp := 0.7
	topK := 10
	d := GenDefaults{DoSample: &doSample, Temperature: &temp, TopK: &topK}

	cfg := ResolveSampler(d, &Request{})
	if !cfg.DoSample || cfg.Temperature != float32(0.7) || cfg.TopK != 10 {
		t.Fatalf("model defaults not applied: %+v", cfg)
	}

	zero := 0.0
	seed := int64(9)
	cfg = ResolveSampler(d, &Request{Temperature: &zero, Seed: &seed})
	if cfg.DoSample {
		t.Fatal("temperature 0 override should force greedy")
	}
	if cfg.Seed != 9 {
		t.Fatalf("seed override not applied: %d", cfg.Seed)
	}

	hot := 1.3
	cfg = ResolveSampler(GenDefaults{}, &Request{Temperature: &hot})
	if !cfg.DoSample || cfg.Temperature != float32(1.3) {
		t.Fatalf("positive temperature override should enable sampling: %+v", cfg)
	}
}
