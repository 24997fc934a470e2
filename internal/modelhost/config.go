package modelhost

import (
	"fmt"
	"strings"
	"time"
)

const (
	BackendONNX   = "onnx"
	BackendOllama = "ollama"
)

const (
	DefaultMaxLength          = 150
	DefaultNumReturnSequences = 1
	DefaultMaxConcurrent      = 1
)

// Config selects the model and the fixed generation policy.
type Config struct {
	Backend     string
	Model       string
	OllamaURL   string
	ONNXLibrary string

	MaxLength       int
	MaxConcurrent   int
	GenerateTimeout time.Duration

	Temperature *float64
	Seed        *int64
}

func (c Config) withDefaults() Config {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendONNX
	}
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	return c
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendONNX, BackendOllama:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendONNX, BackendOllama)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.GenerateTimeout < 0 {
		return fmt.Errorf("generate timeout must not be negative")
	}
	return nil
}
