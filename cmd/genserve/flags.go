package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/genserve/internal/modelhost"
	"github.com/samcharles93/genserve/internal/ollama"
)

const envPrefix = "GENSERVE_"

// settings collects flag destinations for one run of the CLI.
type settings struct {
	configPath string

	addr              string
	metricsAddr       string
	readHeaderTimeout time.Duration

	backend         string
	model           string
	ollamaURL       string
	onnxLibrary     string
	maxLength       int64
	maxConcurrent   int64
	temperature     float64
	seed            int64
	generateTimeout time.Duration

	// Resolved from the flag or the config file; nil keeps the model default.
	temperatureOverride *float64
	seedOverride        *int64

	logLevel  string
	logFormat string
	debug     bool

	text string
}

func (s *settings) hostConfig() modelhost.Config {
	return modelhost.Config{
		Backend:         s.backend,
		Model:           s.model,
		OllamaURL:       s.ollamaURL,
		ONNXLibrary:     s.onnxLibrary,
		MaxLength:       int(s.maxLength),
		MaxConcurrent:   int(s.maxConcurrent),
		GenerateTimeout: s.generateTimeout,
		Temperature:     s.temperatureOverride,
		Seed:            s.seedOverride,
	}
}

func configFlag(s *settings) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml (default $XDG_CONFIG_HOME/genserve/config.yaml)",
		Sources:     cli.EnvVars(envPrefix + "CONFIG"),
		Destination: &s.configPath,
	}
}

func modelFlags(s *settings) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "generation backend (onnx, ollama)",
			Value:       modelhost.BackendONNX,
			Sources:     cli.EnvVars(envPrefix + "BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model directory (onnx) or model name (ollama)",
			Value:       "models/mistral-7b-instruct-v0.1",
			Sources:     cli.EnvVars(envPrefix + "MODEL"),
			Destination: &s.model,
		},
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama server base URL",
			Value:       ollama.DefaultURL,
			Sources:     cli.EnvVars(envPrefix + "OLLAMA_URL"),
			Destination: &s.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "onnx-library",
			Usage:       "path to the onnxruntime shared library",
			Sources:     cli.EnvVars(envPrefix + "ONNX_LIBRARY"),
			Destination: &s.onnxLibrary,
		},
		&cli.Int64Flag{
			Name:        "max-length",
			Usage:       "maximum sequence length in tokens, prompt included",
			Value:       modelhost.DefaultMaxLength,
			Destination: &s.maxLength,
		},
		&cli.Int64Flag{
			Name:        "max-concurrent",
			Usage:       "generations allowed to run at once",
			Value:       modelhost.DefaultMaxConcurrent,
			Destination: &s.maxConcurrent,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Usage:       "sampling temperature; 0 forces greedy decoding",
			Destination: &s.temperature,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling seed",
			Destination: &s.seed,
		},
		&cli.DurationFlag{
			Name:        "generate-timeout",
			Usage:       "upper bound for a single generation (0 disables)",
			Destination: &s.generateTimeout,
		},
	}
}

func loggingFlags(s *settings) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars(envPrefix + "LOG_LEVEL"),
			Destination: &s.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Sources:     cli.EnvVars(envPrefix + "LOG_FORMAT"),
			Destination: &s.logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &s.debug,
		},
	}
}
