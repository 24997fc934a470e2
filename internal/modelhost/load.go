package modelhost

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/genserve/internal/inference"
	"github.com/samcharles93/genserve/internal/logger"
	"github.com/samcharles93/genserve/internal/ollama"
)

// Load opens the configured backend and returns a ready Host. It blocks
// until the model is usable; every failure wraps ErrStartupFailure.
func Load(ctx context.Context, cfg Config, log logger.Logger, opts ...Option) (*Host, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, wrap(ErrStartupFailure, err)
	}
	if log == nil {
		log = logger.Discard()
	}

	start := time.Now()
	log.Info("loading model", "backend", cfg.Backend, "model", cfg.Model)

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return nil, wrap(ErrStartupFailure, err)
	}

	h, err := New(engine, cfg, log, opts...)
	if err != nil {
		_ = engine.Close()
		return nil, wrap(ErrStartupFailure, err)
	}
	h.stats.SetModel(cfg.Backend, cfg.Model)
	log.Info("model loaded",
		"backend", cfg.Backend,
		"model", cfg.Model,
		"max_length", cfg.MaxLength,
		"max_concurrent", cfg.MaxConcurrent,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return h, nil
}

func openEngine(ctx context.Context, cfg Config) (inference.Engine, error) {
	switch cfg.Backend {
	case BackendOllama:
		client, err := ollama.NewClient(cfg.OllamaURL, nil)
		if err != nil {
			return nil, err
		}
		return ollama.Open(ctx, client, cfg.Model)
	case BackendONNX:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return inference.Loader{ONNXLibraryPath: cfg.ONNXLibrary}.Load(cfg.Model)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
