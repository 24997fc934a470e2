package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/genserve/internal/logger"
)

// Config is the optional config file. Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	Addr              string         `yaml:"addr"`
	MetricsAddr       string         `yaml:"metrics_addr"`
	ReadHeaderTimeout *time.Duration `yaml:"read_header_timeout"`

	Backend         string         `yaml:"backend"`
	Model           string         `yaml:"model"`
	OllamaURL       string         `yaml:"ollama_url"`
	ONNXLibrary     string         `yaml:"onnx_library"`
	MaxLength       *int64         `yaml:"max_length"`
	MaxConcurrent   *int64         `yaml:"max_concurrent"`
	Temperature     *float64       `yaml:"temperature"`
	Seed            *int64         `yaml:"seed"`
	GenerateTimeout *time.Duration `yaml:"generate_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "genserve", "config.yaml")
}

// LoadConfig reads path, or the default location when path is empty. A
// missing default file yields a zero Config; a missing explicit file is an
// error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies config file values into s for every flag that was not
// set on the command line or through the environment.
func applyConfig(s *settings, cfg Config, isSet func(string) bool) {
	setString := func(flag string, dst *string, v string) {
		if v != "" && !isSet(flag) {
			*dst = v
		}
	}
	setString("addr", &s.addr, cfg.Addr)
	setString("metrics-addr", &s.metricsAddr, cfg.MetricsAddr)
	setString("backend", &s.backend, cfg.Backend)
	setString("model", &s.model, cfg.Model)
	setString("ollama-url", &s.ollamaURL, cfg.OllamaURL)
	setString("onnx-library", &s.onnxLibrary, cfg.ONNXLibrary)
	setString("log-level", &s.logLevel, cfg.LogLevel)
	setString("log-format", &s.logFormat, cfg.LogFormat)

	if cfg.ReadHeaderTimeout != nil && !isSet("read-header-timeout") {
		s.readHeaderTimeout = *cfg.ReadHeaderTimeout
	}
	if cfg.MaxLength != nil && !isSet("max-length") {
		s.maxLength = *cfg.MaxLength
	}
	if cfg.MaxConcurrent != nil && !isSet("max-concurrent") {
		s.maxConcurrent = *cfg.MaxConcurrent
	}
	if cfg.GenerateTimeout != nil && !isSet("generate-timeout") {
		s.generateTimeout = *cfg.GenerateTimeout
	}

	switch {
	case isSet("temperature"):
		t := s.temperature
		s.temperatureOverride = &t
	case cfg.Temperature != nil:
		t := *cfg.Temperature
		s.temperatureOverride = &t
	}
	switch {
	case isSet("seed"):
		v := s.seed
		s.seedOverride = &v
	case cfg.Seed != nil:
		v := *cfg.Seed
		s.seedOverride = &v
	}
}

// prepare resolves the config file and installs the process logger on ctx.
func prepare(s *settings) cli.BeforeFunc {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		cfg, err := LoadConfig(s.configPath)
		if err != nil {
			return ctx, err
		}
		applyConfig(s, cfg, cmd.IsSet)

		level := s.logLevel
		if s.debug {
			level = "debug"
		}
		log, err := logger.Setup(os.Stderr, level, s.logFormat)
		if err != nil {
			return ctx, err
		}
		return logger.WithContext(ctx, log), nil
	}
}
